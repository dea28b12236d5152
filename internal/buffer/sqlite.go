package buffer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/speedwagon-io/coldwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/coldwatch/internal/model"
)

type SQLiteBuffer struct {
	log *slog.Logger
	db  *sql.DB
}

func NewSQLiteBuffer(log *slog.Logger, dbPath string) (*SQLiteBuffer, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create buffer directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	buf := &SQLiteBuffer{
		log: log,
		db:  db,
	}

	if err := buf.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return buf, nil
}

func (b *SQLiteBuffer) migrate() error {
	query := `
		CREATE TABLE IF NOT EXISTS buffer (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			temperature REAL NOT NULL,
			humidity REAL NOT NULL,
			is_light INTEGER NOT NULL,
			timestamp TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`
	_, err := b.db.Exec(query)
	return err
}

func (b *SQLiteBuffer) Store(ctx context.Context, reading *model.Reading) error {
	query := `
		INSERT OR IGNORE INTO buffer (id, temperature, humidity, is_light, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		reading.ID,
		reading.Temperature,
		reading.Humidity,
		reading.IsLight,
		reading.Timestamp.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to store reading: %w", err)
	}

	b.log.Debug("reading stored in buffer", slog.String("id", reading.ID))
	return nil
}

func (b *SQLiteBuffer) GetPending(ctx context.Context) ([]*model.Reading, error) {
	query := `
		SELECT id, temperature, humidity, is_light, timestamp
		FROM buffer
		ORDER BY seq ASC
	`

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending readings: %w", err)
	}
	defer rows.Close()

	var readings []*model.Reading
	for rows.Next() {
		var (
			r            model.Reading
			timestampStr string
		)

		if err := rows.Scan(&r.ID, &r.Temperature, &r.Humidity, &r.IsLight, &timestampStr); err != nil {
			b.log.Error("failed to scan row", sl.Err(err))
			continue
		}

		r.Timestamp, err = time.Parse(time.RFC3339Nano, timestampStr)
		if err != nil {
			b.log.Error("failed to parse timestamp", slog.String("id", r.ID), sl.Err(err))
			continue
		}

		readings = append(readings, &r)
	}

	return readings, rows.Err()
}

func (b *SQLiteBuffer) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM buffer WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to delete reading %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	b.log.Debug("marked readings as sent", slog.Int("count", len(ids)))
	return nil
}

func (b *SQLiteBuffer) Count(ctx context.Context) (int64, error) {
	var count int64
	err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM buffer").Scan(&count)
	return count, err
}

func (b *SQLiteBuffer) Close() error {
	return b.db.Close()
}
