package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const lastIndexRunKey = "last_index_run"

// GetMetadata retrieves a metadata value by key. It returns sql.ErrNoRows
// if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (value string, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, sql.ErrNoRows) {
			recordQuery("get_metadata", start, nil)
			return
		}
		recordQuery("get_metadata", start, err)
	}()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	defer func() { recordQuery("set_metadata", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetLastIndexRun returns when the indexer last completed, or the zero
// time if it never has.
func (d *Database) GetLastIndexRun(ctx context.Context) (time.Time, error) {
	value, err := d.GetMetadata(ctx, lastIndexRunKey)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && value == "") {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastIndexRun records when the indexer last completed. A zero time
// clears it.
func (d *Database) SetLastIndexRun(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return d.SetMetadata(ctx, lastIndexRunKey, "")
	}
	return d.SetMetadata(ctx, lastIndexRunKey, t.UTC().Format(time.RFC3339))
}
