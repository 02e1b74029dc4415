package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/llehouerou/cloudwaves/internal/catalog"
	"github.com/llehouerou/cloudwaves/internal/db"
)

var errNewerSchema = errors.New("cache catalog was written by a newer version")

// Catalog persists index entries so the cache survives restarts.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens the catalog database at path (":memory:" for a
// throwaway one) and makes sure its schema is usable.
func OpenCatalog(path string) (*Catalog, error) {
	sqlDB, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return &Catalog{db: sqlDB}, nil
}

// List returns every entry, least recently used first.
func (c *Catalog) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT cache_key, integrity, size, format, stored_at
		FROM cache_entries
		ORDER BY used_at, cache_key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var format sql.NullString
		var storedAt int64
		if err := rows.Scan(&e.Key, &e.Integrity, &e.Size, &format, &storedAt); err != nil {
			return nil, err
		}
		e.Format = db.NullStringValue(format)
		e.StoredAt = time.Unix(0, storedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Upsert stores e, replacing any previous row for the same key.
func (c *Catalog) Upsert(ctx context.Context, e Entry) error {
	trackID, q, _ := e.Key.Split()
	var format sql.NullString
	if e.Format != "" {
		format = sql.NullString{String: e.Format, Valid: true}
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cache_entries (cache_key, track_id, quality, integrity, size, format, stored_at, used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			integrity = excluded.integrity,
			size = excluded.size,
			format = excluded.format,
			stored_at = excluded.stored_at,
			used_at = excluded.used_at
	`, string(e.Key), trackID, int(q), e.Integrity, e.Size, format, e.StoredAt.UnixNano(), e.StoredAt.UnixNano())
	return err
}

// Touch records a recent access so the order survives a restart.
func (c *Catalog) Touch(ctx context.Context, key Key, at time.Time) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE cache_entries SET used_at = ? WHERE cache_key = ?`, at.UnixNano(), string(key))
	return err
}

// Delete removes the rows for keys. Missing keys are ignored.
func (c *Catalog) Delete(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}
	return db.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, k := range keys {
			if _, err := stmt.ExecContext(ctx, string(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteQualityNot removes every row whose tier is not q and returns how
// many were dropped.
func (c *Catalog) DeleteQualityNot(ctx context.Context, q catalog.Quality) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE quality != ?`, int(q))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
