// Package buffer holds readings that could not be delivered, oldest first,
// until a sender confirms them.
package buffer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/speedwagon-io/coldwatch/internal/model"
)

type Buffer interface {
	Store(ctx context.Context, reading *model.Reading) error
	// GetPending returns every buffered reading in insertion order.
	GetPending(ctx context.Context) ([]*model.Reading, error)
	// MarkSent removes the given readings. Unknown IDs are ignored.
	MarkSent(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Open picks the backend by name. Only "file" and "sqlite" are known.
func Open(log *slog.Logger, backend, path string) (Buffer, error) {
	switch strings.ToLower(backend) {
	case "", "file":
		return NewFileBuffer(log, path)
	case "sqlite":
		return NewSQLiteBuffer(log, path)
	default:
		return nil, fmt.Errorf("unknown buffer backend %q", backend)
	}
}
