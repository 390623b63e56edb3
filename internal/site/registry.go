// internal/site/registry.go
//
// Site-registry query helpers.
//
// Context
// -------
// The `site` table is the control-plane directory of tenant sites.  The
// provisioner inserts one row per tenant; the duplicate-hostname check
// and the loader both read it.  Callers supply a *sqlx.DB connected to
// the control-plane database; each helper executes exactly one
// parameterised statement and returns errors verbatim so the caller can
// wrap or log them with the project logger.
package site

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ByHost fetches one live site row.  Suspended or deleted rows are
// excluded at SQL level.  Returns (nil, nil) when no such site exists.
func ByHost(ctx context.Context, db *sqlx.DB, host string) (*Record, error) {
	const q = `
	    SELECT id, host, title, suspended_at, deleted_at, created_at, updated_at
	    FROM   site
	    WHERE  host = ?
	      AND  suspended_at IS NULL
	      AND  deleted_at   IS NULL
	    LIMIT  1`
	var rec Record
	if err := db.GetContext(ctx, &rec, q, host); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Create inserts a new site row and returns its generated identifier.
func Create(ctx context.Context, db *sqlx.DB, host, title string) (uint64, error) {
	const q = `INSERT INTO site (host, title) VALUES (?, ?)`
	res, err := db.ExecContext(ctx, q, host, title)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// SoftDelete marks a site as deleted.  Used as the compensating action
// when database setup fails after the row was created.
func SoftDelete(ctx context.Context, db *sqlx.DB, siteID uint64) error {
	const q = `UPDATE site SET deleted_at = NOW(), updated_at = NOW() WHERE id = ?`
	_, err := db.ExecContext(ctx, q, siteID)
	return err
}
