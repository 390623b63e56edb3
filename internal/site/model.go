// internal/site/model.go
//
// `site` table row model.
//
// Schema reference
//
//	CREATE TABLE site (
//	    id            INT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    host          VARCHAR(256)  NOT NULL UNIQUE,
//	    title         VARCHAR(256)  NOT NULL,
//	    suspended_at  TIMESTAMP NULL,
//	    deleted_at    TIMESTAMP NULL,
//	    created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
//	);
//
// Nullable timestamps are `*time.Time`; callers must nil-check before use.
// This struct contains no behaviour—pure data model for sqlx scans.
package site

import (
	"fmt"
	"time"
)

// Record mirrors one row in the `site` table.  The operational state is
// captured by two nullable timestamps:
//
//   - SuspendedAt – site is temporarily disabled (e.g., billing).
//   - DeletedAt   – site is permanently removed.
type Record struct {
	ID          uint64     `db:"id"`
	Host        string     `db:"host"`
	Title       string     `db:"title"`
	SuspendedAt *time.Time `db:"suspended_at"`
	DeletedAt   *time.Time `db:"deleted_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// DBName derives the dedicated database name for a site.  The correlation
// between a site and its database exists only through this convention and
// the hostname registry.
func DBName(siteID uint64) string {
	return fmt.Sprintf("tenant_%d", siteID)
}
