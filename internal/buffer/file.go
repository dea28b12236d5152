package buffer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/speedwagon-io/coldwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/coldwatch/internal/model"
)

// FileBuffer is an append-only log with one JSON encoded reading per line.
// A line cut short by a crash is skipped on read and costs only that reading.
type FileBuffer struct {
	log  *slog.Logger
	path string

	mu     sync.Mutex
	f      *os.File
	closed bool
}

var errClosed = errors.New("buffer is closed")

func NewFileBuffer(log *slog.Logger, path string) (*FileBuffer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create buffer directory: %w", err)
	}

	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}

	buf := &FileBuffer{
		log:  log,
		path: path,
		f:    f,
	}

	if _, err := buf.repairTail(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to repair buffer tail: %w", err)
	}

	return buf, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open buffer file: %w", err)
	}
	return f, nil
}

// file returns the append handle. MarkSent drops it after replacing the
// log, so it is reopened here on the next use.
func (b *FileBuffer) file() (*os.File, error) {
	if b.closed {
		return nil, errClosed
	}
	if b.f == nil {
		f, err := openAppend(b.path)
		if err != nil {
			return nil, err
		}
		b.f = f
	}
	return b.f, nil
}

// repairTail ends a partial last line so the next append starts on a fresh
// line instead of being glued to the broken record. It returns the size of
// the file afterwards.
func (b *FileBuffer) repairTail(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return 0, err
	}
	if last[0] == '\n' {
		return size, nil
	}

	b.log.Warn("buffer file ends with a partial record", slog.String("path", b.path))
	if _, err := f.Write([]byte{'\n'}); err != nil {
		return 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}
	return size + 1, nil
}

// rollback cuts off whatever a failed append left behind. If that fails too,
// repairTail still isolates the fragment before the next append.
func (b *FileBuffer) rollback(f *os.File, size int64) {
	if err := f.Truncate(size); err != nil {
		b.log.Warn("failed to roll back partial append", slog.String("path", b.path), sl.Err(err))
	}
}

func (b *FileBuffer) Store(ctx context.Context, reading *model.Reading) error {
	data, err := reading.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}
	data = append(data, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := b.file()
	if err != nil {
		return err
	}

	size, err := b.repairTail(f)
	if err != nil {
		return fmt.Errorf("failed to check buffer tail: %w", err)
	}

	// One write per record keeps appends line-atomic under O_APPEND.
	if _, err := f.Write(data); err != nil {
		b.rollback(f, size)
		return fmt.Errorf("failed to append reading: %w", err)
	}
	if err := f.Sync(); err != nil {
		b.rollback(f, size)
		return fmt.Errorf("failed to sync buffer file: %w", err)
	}

	b.log.Debug("reading stored in buffer", slog.String("id", reading.ID))
	return nil
}

func (b *FileBuffer) GetPending(ctx context.Context) ([]*model.Reading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines, err := b.readLines()
	if err != nil {
		return nil, err
	}

	readings := make([]*model.Reading, 0, len(lines))
	for _, l := range lines {
		if l.reading != nil {
			readings = append(readings, l.reading)
		}
	}
	return readings, nil
}

type line struct {
	raw     []byte
	reading *model.Reading
}

func (b *FileBuffer) readLines() ([]line, error) {
	f, err := os.Open(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open buffer file: %w", err)
	}
	defer f.Close()

	var lines []line
	r := bufio.NewReader(f)
	for n := 1; ; n++ {
		raw, err := r.ReadBytes('\n')
		if len(bytes.TrimSpace(raw)) > 0 {
			reading, parseErr := model.ReadingFromJSON(bytes.TrimSpace(raw))
			if parseErr != nil {
				b.log.Warn("skipping malformed buffer record",
					slog.String("path", b.path),
					slog.Int("line", n),
					sl.Err(parseErr),
				)
			}
			lines = append(lines, line{raw: raw, reading: reading})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read buffer file: %w", err)
		}
	}

	return lines, nil
}

// MarkSent rewrites the log without the sent readings and atomically
// replaces it. Malformed lines are dropped by the rewrite.
func (b *FileBuffer) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	sent := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		sent[id] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed
	}

	lines, err := b.readLines()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp buffer file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	kept := 0
	for _, l := range lines {
		if l.reading == nil {
			continue
		}
		if _, ok := sent[l.reading.ID]; ok {
			continue
		}
		raw := bytes.TrimRight(l.raw, "\n")
		if _, err := w.Write(append(raw, '\n')); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write temp buffer file: %w", err)
		}
		kept++
	}

	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush temp buffer file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp buffer file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp buffer file: %w", err)
	}

	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("failed to replace buffer file: %w", err)
	}

	// The old handle still points at the replaced inode.
	if b.f != nil {
		b.f.Close()
		b.f = nil
	}

	b.log.Debug("marked readings as sent",
		slog.Int("count", len(lines)-kept),
		slog.Int("remaining", kept),
	)
	return nil
}

func (b *FileBuffer) Count(ctx context.Context) (int64, error) {
	readings, err := b.GetPending(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(readings)), nil
}

func (b *FileBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	if b.f == nil {
		return nil
	}
	err := b.f.Close()
	b.f = nil
	return err
}
