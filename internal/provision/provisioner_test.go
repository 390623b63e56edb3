// internal/provision/provisioner_test.go
//
// Service-level tests for the provisioning orchestrator.  SQL runs
// against sqlmock; the hostname registry and upload tree live in a
// temporary directory.
//
// Run: go test ./internal/provision -v

package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yanizio/subsite/internal/account"
	"github.com/yanizio/subsite/internal/config"
	"github.com/yanizio/subsite/internal/hostmap"
	"github.com/yanizio/subsite/internal/schema"
)

const tplDB = "wpdb"

func newProvisioner(t *testing.T) (*Provisioner, sqlmock.Sqlmock, string) {
	t.Helper()

	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })
	db := sqlx.NewDb(rawDB, "sqlmock")

	contentDir := t.TempDir()
	cfg := &config.Config{
		Network:  config.Network{RootDomain: "example.test"},
		Database: config.Database{DefaultName: tplDB, TablePrefix: "wp_"},
		Paths:    config.Paths{ContentDir: contentDir},
	}

	p := New(db, cfg,
		schema.NewCloner(db, tplDB, "wp_", 0),
		account.NewStore(db, "wp_"),
		hostmap.New(contentDir),
		1, zap.NewNop().Sugar())
	return p, mock, contentDir
}

func expectNoSite(mock sqlmock.Sqlmock, host string) {
	mock.ExpectQuery("SELECT id, host, title").
		WithArgs(host).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "host", "title", "suspended_at", "deleted_at", "created_at", "updated_at"}))
}

func expectTableClone(mock sqlmock.Sqlmock, targetDB, table string) {
	def := "CREATE TABLE `" + table + "` (`id` bigint) ENGINE=InnoDB"
	mock.ExpectQuery(regexp.QuoteMeta(
		"SHOW CREATE TABLE `" + tplDB + "`.`" + table + "`")).
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}).
			AddRow(table, def))
	mock.ExpectExec(regexp.QuoteMeta(
		"CREATE TABLE `" + targetDB + "`.`" + table + "` (`id` bigint) ENGINE=InnoDB")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO `" + targetDB + "`.`" + table + "` SELECT * FROM `" +
			tplDB + "`.`" + table + "`")).
		WillReturnResult(sqlmock.NewResult(0, 2))
}

func TestValidationOrdering(t *testing.T) {
	p, mock, _ := newProvisioner(t)

	// Valid subdomain and title, missing email: the request must fail
	// before any SQL runs.
	_, perr := p.Create(context.Background(), Request{
		Subdomain: "acme",
		Title:     "Acme Co",
	})
	require.NotNil(t, perr)
	require.Equal(t, KindMissingField, perr.Kind)
	require.Equal(t, "admin_email", perr.Field)
	require.Equal(t, "admin_email is required", perr.Msg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMissingSubdomain(t *testing.T) {
	p, mock, _ := newProvisioner(t)

	_, perr := p.Create(context.Background(), Request{
		Title:      "Acme Co",
		AdminEmail: "admin@acme.test",
	})
	require.NotNil(t, perr)
	require.Equal(t, KindMissingField, perr.Kind)
	require.Equal(t, "subdomain", perr.Field)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateHostname(t *testing.T) {
	p, mock, _ := newProvisioner(t)

	mock.ExpectQuery("SELECT id, host, title").
		WithArgs("acme.example.test").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "host", "title", "suspended_at", "deleted_at", "created_at", "updated_at"}).
			AddRow(4, "acme.example.test", "Old Acme", nil, nil, time.Now(), time.Now()))

	_, perr := p.Create(context.Background(), Request{
		Subdomain:  "ACME",
		Title:      "Acme Co",
		AdminEmail: "admin@acme.test",
	})
	require.NotNil(t, perr)
	require.Equal(t, KindDuplicateHostname, perr.Kind)
	// No insert, no clone, no registry write happened.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEndToEnd(t *testing.T) {
	p, mock, contentDir := newProvisioner(t)

	expectNoSite(mock, "acme.example.test")
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO site (host, title) VALUES (?, ?)")).
		WithArgs("acme.example.test", "Acme Co").
		WillReturnResult(sqlmock.NewResult(7, 1))

	mock.ExpectExec(regexp.QuoteMeta(
		"CREATE DATABASE IF NOT EXISTS `tenant_7` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SHOW TABLES LIKE ?")).
		WithArgs(`wp\_1\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_" + tplDB}).
			AddRow("wp_1_posts").AddRow("wp_1_options"))
	for _, tbl := range []string{
		"wp_1_posts", "wp_1_options",
		"wp_users", "wp_usermeta", "wp_site", "wp_sitemeta", "wp_blogs",
	} {
		expectTableClone(mock, "tenant_7", tbl)
	}
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS `" + tplDB + "`.`wp_1_posts`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS `" + tplDB + "`.`wp_1_options`")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT ID, user_login, user_email FROM wp_users WHERE user_login = ? LIMIT 1")).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"ID", "user_login", "user_email"}))
	mock.ExpectExec("INSERT INTO wp_users").
		WithArgs("admin", sqlmock.AnyArg(), "admin@acme.test").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec("INSERT INTO wp_usermeta").
		WithArgs(uint64(3), "wp_7_capabilities", "administrator").
		WillReturnResult(sqlmock.NewResult(1, 1))

	res, perr := p.Create(context.Background(), Request{
		Subdomain:     "acme",
		Title:         "Acme Co",
		AdminEmail:    "admin@acme.test",
		AdminUsername: "admin",
		AdminPassword: "s3cret-pass",
	})
	require.Nil(t, perr)
	require.Equal(t, uint64(7), res.SiteID)
	require.Equal(t, "acme", res.Subdomain)
	require.Equal(t, "acme.example.test", res.Hostname)
	require.Equal(t, "https://acme.example.test", res.SiteURL)
	require.Equal(t, "tenant_7", res.Database)
	require.Equal(t, "admin", res.Admin.Username)
	require.Equal(t, "s3cret-pass", res.Admin.Password)
	require.Len(t, res.Clone.Cloned, 7)
	require.Equal(t, []string{"wp_1_posts", "wp_1_options"}, res.Clone.Dropped)

	// Hostname registry now routes the new host.
	db, ok, err := hostmap.New(contentDir).Get("acme.example.test")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tenant_7", db)

	// Upload isolation directory exists.
	fi, err := os.Stat(filepath.Join(contentDir, "uploads", "tenant_7"))
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseSetupFailureCompensates(t *testing.T) {
	p, mock, contentDir := newProvisioner(t)

	expectNoSite(mock, "acme.example.test")
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO site (host, title) VALUES (?, ?)")).
		WithArgs("acme.example.test", "Acme Co").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS").
		WillReturnError(errors.New("access denied"))
	// Compensation: the orphaned site row is soft-deleted.
	mock.ExpectExec("UPDATE site SET deleted_at").
		WithArgs(uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, perr := p.Create(context.Background(), Request{
		Subdomain:  "acme",
		Title:      "Acme Co",
		AdminEmail: "admin@acme.test",
	})
	require.NotNil(t, perr)
	require.Equal(t, KindDatabaseSetupFailed, perr.Kind)

	// No hostname mapping was registered.
	_, ok, err := hostmap.New(contentDir).Get("acme.example.test")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmptyTemplateFailsFast(t *testing.T) {
	p, mock, _ := newProvisioner(t)

	expectNoSite(mock, "acme.example.test")
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO site (host, title) VALUES (?, ?)")).
		WithArgs("acme.example.test", "Acme Co").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec("CREATE DATABASE IF NOT EXISTS").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SHOW TABLES LIKE ?")).
		WithArgs(`wp\_1\_%`).
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_" + tplDB}))
	mock.ExpectExec("UPDATE site SET deleted_at").
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, perr := p.Create(context.Background(), Request{
		Subdomain:  "acme",
		Title:      "Acme Co",
		AdminEmail: "admin@acme.test",
	})
	require.NotNil(t, perr)
	require.Equal(t, KindNoTenantTables, perr.Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeSubdomain(t *testing.T) {
	cases := map[string]string{
		"ACME":        "acme",
		" My-Site ":   "my-site",
		"weird_chars": "weirdchars",
		"-edge-":      "edge",
	}
	for in, want := range cases {
		require.Equal(t, want, sanitizeSubdomain(in), "input %q", in)
	}
}
