// Package sqlite provides an on-disk read-through cache of daily bars.
// The cache is a performance optimization only: every miss falls through to
// the provider, and a broken cache degrades to fetching everything.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"marketdash/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Cache stores fetched daily bars keyed by (symbol, day), plus the date
// ranges each symbol has been fetched for. A range query is a hit only when
// some previously fetched range covers it, so sparse rows are never
// mistaken for a complete answer.
type Cache struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (c *Cache) DB() *sql.DB {
	if c == nil {
		return nil
	}
	return c.db
}

// New opens (creating if needed) the cache database with WAL mode.
func New(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer, few readers
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite cache opened", slog.String("path", path))
	return &Cache{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars_1d (
			symbol  TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  INTEGER NOT NULL,
			PRIMARY KEY (symbol, ts)
		);

		CREATE TABLE IF NOT EXISTS coverage (
			symbol     TEXT    NOT NULL,
			start_ts   INTEGER NOT NULL,
			end_ts     INTEGER NOT NULL,
			fetched_at INTEGER NOT NULL,
			PRIMARY KEY (symbol, start_ts, end_ts)
		);
	`)
	return err
}

// GetBars returns cached bars for the inclusive [start, end] range.
// The second return value is false when the cache has no coverage for the
// full range; callers must then fetch from the provider.
func (c *Cache) GetBars(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceRow, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	startTS := model.NewDate(start).Unix()
	endTS := model.NewDate(end).Unix()

	cov, err := c.db.QueryContext(ctx, `
		SELECT end_ts, fetched_at FROM coverage
		WHERE symbol = ? AND start_ts <= ? AND end_ts >= ?
	`, symbol, startTS, endTS)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite coverage query: %w", err)
	}
	covered := false
	for cov.Next() {
		var rangeEnd, fetchedAt int64
		if err := cov.Scan(&rangeEnd, &fetchedAt); err != nil {
			cov.Close()
			return nil, false, fmt.Errorf("sqlite coverage scan: %w", err)
		}
		// Only trust ranges whose last day was already complete when
		// fetched — a bar for the fetch day itself may still be forming.
		if rangeEnd < model.NewDate(time.Unix(fetchedAt, 0)).Unix() {
			covered = true
		}
	}
	cov.Close()
	if err := cov.Err(); err != nil {
		return nil, false, fmt.Errorf("sqlite coverage rows: %w", err)
	}
	if !covered {
		return nil, false, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM bars_1d
		WHERE symbol = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, symbol, startTS, endTS)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite query bars_1d: %w", err)
	}
	defer rows.Close()

	var out []model.PriceRow
	for rows.Next() {
		var r model.PriceRow
		var ts int64
		if err := rows.Scan(&ts, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume); err != nil {
			return nil, false, fmt.Errorf("sqlite scan bars_1d: %w", err)
		}
		r.Date = model.NewDate(time.Unix(ts, 0))
		out = append(out, r)
	}
	return out, true, rows.Err()
}

// PutBars stores freshly fetched bars and records coverage for the range
// they answer, in one transaction.
func (c *Cache) PutBars(ctx context.Context, symbol string, start, end time.Time, bars []model.PriceRow) error {
	if c == nil {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars_1d (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(symbol, b.Date.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO coverage (symbol, start_ts, end_ts, fetched_at)
		VALUES (?, ?, ?, ?)
	`, symbol, model.NewDate(start).Unix(), model.NewDate(end).Unix(), time.Now().Unix())
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Close closes the database.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}
