// internal/site/config.go
//
// Helpers for the `site_config` key-value table.  Reads run once when a
// tenant is loaded; writes come from the provisioner, which records the
// applied theme and plugin defaults here.
package site

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// ConfigBySite returns a map[key]value for one site_id.
func ConfigBySite(ctx context.Context, db *sqlx.DB, siteID uint64) (map[string]string, error) {
	const q = `
	    SELECT  ` + "`key`, value" + `
	    FROM    site_config
	    WHERE   site_id = ?`
	rows := make([]struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}, 0, 8) // small default cap

	if err := db.SelectContext(ctx, &rows, q, siteID); err != nil {
		return nil, err
	}

	cfg := make(map[string]string, len(rows))
	for _, r := range rows {
		cfg[r.Key] = r.Value
	}
	return cfg, nil
}

// SetConfig upserts one key-value pair for a site.
func SetConfig(ctx context.Context, db *sqlx.DB, siteID uint64, key, value string) error {
	const q = `
	    INSERT INTO site_config (site_id, ` + "`key`" + `, value)
	    VALUES (?, ?, ?)
	    ON DUPLICATE KEY UPDATE value = VALUES(value)`
	_, err := db.ExecContext(ctx, q, siteID, key, value)
	return err
}
