// internal/schema/cloner.go
//
// Template-schema cloner.
//
// Context
// -------
// Provisioning a tenant means copying the template site's prefixed tables
// (`wp_<id>_…`) plus the shared network tables (users, usermeta, site,
// sitemeta, blogs) into a freshly created database, then removing the
// now-duplicated tenant tables from the template database.
//
// The copy loop is deliberately best-effort: a single table failing to
// clone is logged, recorded in the Report, and skipped, so the batch
// continues.  The final drop is *not* best-effort about what it removes:
// only tenant-scoped tables whose definition and rows both copied cleanly
// are dropped from the template database; failed tables are retained and
// reported, and shared tables are never dropped.
//
// Every statement runs under a per-statement deadline so a stalled
// server call cannot wedge the provisioning request forever.
package schema

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/subsite/internal/metrics"
)

// ErrNoTenantTables is returned when the template site has no prefixed
// tables at all; cloning cannot proceed from an unprovisioned template.
var ErrNoTenantTables = errors.New("schema: no tenant tables found for template site")

// sharedSuffixes are the network-wide tables duplicated into every tenant
// database, relative to the base table prefix.
var sharedSuffixes = []string{"users", "usermeta", "site", "sitemeta", "blogs"}

var identPattern = regexp.MustCompile(`^[0-9A-Za-z$_]+$`)

// Cloner copies schema and rows between databases reachable over one
// control-plane connection.
type Cloner struct {
	db          *sqlx.DB
	templateDB  string
	prefix      string
	stmtTimeout time.Duration
}

// TableFailure records why one table was skipped during the copy loop.
type TableFailure struct {
	Table  string `json:"table"`
	Stage  string `json:"stage"` // definition | create | copy
	Reason string `json:"reason"`
}

// Report is the per-table outcome surfaced to the provisioner and, from
// there, to the API caller.
type Report struct {
	Target   string         `json:"target"`
	Cloned   []string       `json:"cloned"`
	Skipped  []TableFailure `json:"skipped,omitempty"`
	Dropped  []string       `json:"dropped"`
	Retained []string       `json:"retained,omitempty"`
}

// NewCloner wires a Cloner to the control-plane pool.  templateDB is the
// database holding the template site's tables, prefix the base table
// prefix (normally `wp_`).  stmtTimeout zero disables deadlines.
func NewCloner(db *sqlx.DB, templateDB, prefix string, stmtTimeout time.Duration) *Cloner {
	return &Cloner{db: db, templateDB: templateDB, prefix: prefix, stmtTimeout: stmtTimeout}
}

// Clone creates targetDB (if absent), copies the template site's tables
// plus the shared tables into it, and drops the successfully copied
// tenant tables from the template database.
func (c *Cloner) Clone(ctx context.Context, templateSiteID uint64, targetDB string) (*Report, error) {
	if !identPattern.MatchString(targetDB) {
		return nil, fmt.Errorf("schema: invalid target database name %q", targetDB)
	}

	// Create-if-absent keeps re-runs idempotent.
	createDB := fmt.Sprintf(
		"CREATE DATABASE IF NOT EXISTS %s CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci",
		quoteIdent(targetDB))
	if err := c.exec(ctx, createDB); err != nil {
		return nil, fmt.Errorf("schema: create database %s: %w", targetDB, err)
	}

	tenantTables, err := c.tenantTables(ctx, templateSiteID)
	if err != nil {
		return nil, err
	}
	if len(tenantTables) == 0 {
		return nil, ErrNoTenantTables
	}

	rep := &Report{Target: targetDB}

	// Tenant tables first, then the shared network tables.  Order within
	// the union is irrelevant; there are no cross-table constraints.
	copied := make(map[string]bool, len(tenantTables))
	for _, tbl := range append(append([]string{}, tenantTables...), c.sharedTables()...) {
		if fail := c.cloneTable(ctx, tbl, targetDB); fail != nil {
			rep.Skipped = append(rep.Skipped, *fail)
			metrics.CloneTablesTotal.WithLabelValues("skipped").Inc()
			zap.S().Errorw("table clone skipped",
				"table", tbl, "stage", fail.Stage, "reason", fail.Reason)
			continue
		}
		rep.Cloned = append(rep.Cloned, tbl)
		copied[tbl] = true
		metrics.CloneTablesTotal.WithLabelValues("cloned").Inc()
	}

	// Drop only tenant-scoped tables that copied cleanly.  Shared tables
	// stay in the template database; failed tables are retained so no
	// data is lost to a partial copy.
	for _, tbl := range tenantTables {
		if !copied[tbl] {
			rep.Retained = append(rep.Retained, tbl)
			continue
		}
		drop := fmt.Sprintf("DROP TABLE IF EXISTS %s.%s",
			quoteIdent(c.templateDB), quoteIdent(tbl))
		if err := c.exec(ctx, drop); err != nil {
			rep.Retained = append(rep.Retained, tbl)
			zap.S().Errorw("template table drop failed", "table", tbl, "err", err)
			continue
		}
		rep.Dropped = append(rep.Dropped, tbl)
	}

	return rep, nil
}

// tenantTables enumerates the template site's prefixed tables.
func (c *Cloner) tenantTables(ctx context.Context, siteID uint64) ([]string, error) {
	pattern := escapeLike(fmt.Sprintf("%s%d_", c.prefix, siteID)) + "%"

	qctx, cancel := c.deadline(ctx)
	defer cancel()

	var tables []string
	if err := c.db.SelectContext(qctx, &tables, "SHOW TABLES LIKE ?", pattern); err != nil {
		return nil, fmt.Errorf("schema: enumerate tenant tables: %w", err)
	}
	return tables, nil
}

// sharedTables returns the prefixed shared table names.
func (c *Cloner) sharedTables() []string {
	out := make([]string, 0, len(sharedSuffixes))
	for _, s := range sharedSuffixes {
		out = append(out, c.prefix+s)
	}
	return out
}

// cloneTable copies one table's definition and rows into targetDB.  A nil
// return means success; otherwise the failure is described for the Report.
func (c *Cloner) cloneTable(ctx context.Context, table, targetDB string) *TableFailure {
	if !identPattern.MatchString(table) {
		return &TableFailure{Table: table, Stage: "definition", Reason: "invalid table name"}
	}

	qctx, cancel := c.deadline(ctx)
	row := c.db.QueryRowxContext(qctx,
		fmt.Sprintf("SHOW CREATE TABLE %s.%s", quoteIdent(c.templateDB), quoteIdent(table)))
	var name, createSQL string
	err := row.Scan(&name, &createSQL)
	cancel()
	if err != nil {
		return &TableFailure{Table: table, Stage: "definition", Reason: err.Error()}
	}

	target := quoteIdent(targetDB) + "." + quoteIdent(table)
	createSQL = strings.Replace(createSQL,
		"CREATE TABLE "+quoteIdent(table), "CREATE TABLE "+target, 1)

	if err := c.exec(ctx, createSQL); err != nil {
		return &TableFailure{Table: table, Stage: "create", Reason: err.Error()}
	}

	copySQL := fmt.Sprintf("INSERT INTO %s SELECT * FROM %s.%s",
		target, quoteIdent(c.templateDB), quoteIdent(table))
	if err := c.exec(ctx, copySQL); err != nil {
		return &TableFailure{Table: table, Stage: "copy", Reason: err.Error()}
	}

	return nil
}

// exec runs one statement under the per-statement deadline.
func (c *Cloner) exec(ctx context.Context, query string) error {
	qctx, cancel := c.deadline(ctx)
	defer cancel()
	_, err := c.db.ExecContext(qctx, query)
	return err
}

func (c *Cloner) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.stmtTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.stmtTimeout)
}

// quoteIdent backtick-quotes an already validated identifier.
func quoteIdent(s string) string { return "`" + s + "`" }

// escapeLike escapes LIKE wildcards so a literal prefix match is safe.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
