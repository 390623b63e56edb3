// internal/provision/provisioner.go
//
// Tenant provisioning orchestrator.
//
// Context
// -------
// One call to Create runs the whole flow synchronously on the request
// goroutine: validate → duplicate check → site row → clone schema into
// the new database → hostname registry → admin account → grant →
// per-site configuration (theme, plugin, uploads).  Each step is an
// abort point with its own error Kind; the per-step trail plus the
// cloner's per-table report are surfaced in the Result so callers can
// tell exactly how far provisioning got.
//
// Compensation is deliberately thin: when database setup fails, the
// just-created site row is soft-deleted best-effort, and nothing else is
// unwound.  Cross-database transactional atomicity is out of scope.
package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/subsite/internal/account"
	"github.com/yanizio/subsite/internal/config"
	"github.com/yanizio/subsite/internal/hostmap"
	"github.com/yanizio/subsite/internal/metrics"
	"github.com/yanizio/subsite/internal/schema"
	"github.com/yanizio/subsite/internal/site"
	"github.com/yanizio/subsite/internal/uploads"
)

var validate = validator.New()

// Request is the provisioning input.  Subdomain, Title, and AdminEmail
// are mandatory; username and password are derived when omitted.
type Request struct {
	Subdomain     string `json:"subdomain"`
	Title         string `json:"title"`
	AdminEmail    string `json:"admin_email"`
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
}

// AdminInfo echoes the account attached to the new site.  Password holds
// the plaintext in effect for this request ("" when an existing account
// was reused); it appears once in the API response and nowhere else.
type AdminInfo struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// StageResult records the outcome of one provisioning step.
type StageResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok | failed | skipped
	Detail string `json:"detail,omitempty"`
}

// Result is returned on success.
type Result struct {
	SiteID    uint64         `json:"site_id"`
	Subdomain string         `json:"subdomain"`
	Hostname  string         `json:"hostname"`
	SiteURL   string         `json:"site_url"`
	Database  string         `json:"database"`
	Admin     AdminInfo      `json:"admin"`
	Clone     *schema.Report `json:"clone,omitempty"`
	Stages    []StageResult  `json:"stages"`
}

// Provisioner wires the collaborating stores together.
type Provisioner struct {
	db             *sqlx.DB
	cfg            *config.Config
	cloner         *schema.Cloner
	accounts       *account.Store
	registry       *hostmap.Registry
	templateSiteID uint64
	log            *zap.SugaredLogger
}

// New assembles a Provisioner.  templateSiteID identifies the site whose
// prefixed tables seed every new tenant database.
func New(db *sqlx.DB, cfg *config.Config, cloner *schema.Cloner,
	accounts *account.Store, registry *hostmap.Registry,
	templateSiteID uint64, log *zap.SugaredLogger) *Provisioner {
	return &Provisioner{
		db:             db,
		cfg:            cfg,
		cloner:         cloner,
		accounts:       accounts,
		registry:       registry,
		templateSiteID: templateSiteID,
		log:            log,
	}
}

// Create provisions one tenant end to end.
func (p *Provisioner) Create(ctx context.Context, req Request) (*Result, *Error) {
	norm, verr := p.normalize(req)
	if verr != nil {
		return nil, verr
	}

	var stages []StageResult
	step := func(name, status, detail string) {
		stages = append(stages, StageResult{Name: name, Status: status, Detail: detail})
	}

	hostname := norm.Subdomain + "." + p.cfg.Network.RootDomain

	// Duplicate check before any side effect.
	existing, err := site.ByHost(ctx, p.db, hostname)
	if err != nil {
		return nil, p.fail(kindFor(err, KindInternal), "duplicate_check",
			"hostname lookup failed", err)
	}
	if existing != nil {
		return nil, stepError(KindDuplicateHostname, "duplicate_check",
			"a subsite with this subdomain already exists", nil)
	}
	step("duplicate_check", "ok", "")

	siteID, err := site.Create(ctx, p.db, hostname, norm.Title)
	if err != nil {
		return nil, p.fail(kindFor(err, KindSiteCreationFailed), "create_site",
			"site registry insert failed", err)
	}
	step("create_site", "ok", fmt.Sprintf("site_id=%d", siteID))

	dbName := site.DBName(siteID)
	report, err := p.cloner.Clone(ctx, p.templateSiteID, dbName)
	if err != nil {
		// Compensate: the site row must not keep serving a hostname whose
		// database never materialised.
		if derr := site.SoftDelete(ctx, p.db, siteID); derr != nil {
			p.log.Errorw("site soft-delete compensation failed",
				"site_id", siteID, "err", derr)
		}
		kind := KindDatabaseSetupFailed
		if errors.Is(err, schema.ErrNoTenantTables) {
			kind = KindNoTenantTables
		}
		return nil, p.fail(kindFor(err, kind), "clone_schema",
			"database setup failed", err)
	}
	step("clone_schema", "ok",
		fmt.Sprintf("cloned=%d skipped=%d dropped=%d",
			len(report.Cloned), len(report.Skipped), len(report.Dropped)))

	if err := p.registry.Put(hostname, dbName); err != nil {
		return nil, p.fail(KindInternal, "register_hostname",
			"hostname registry write failed", err)
	}
	step("register_hostname", "ok", hostname+" -> "+dbName)

	admin, plaintext, err := p.accounts.Ensure(ctx,
		norm.AdminUsername, req.AdminPassword, norm.AdminEmail)
	if err != nil {
		return nil, p.fail(kindFor(err, KindAdminCreationFailed), "admin_account",
			"admin account setup failed", err)
	}
	if err := p.accounts.GrantAdmin(ctx, admin.ID, siteID); err != nil {
		return nil, p.fail(kindFor(err, KindAdminCreationFailed), "admin_grant",
			"administrator grant failed", err)
	}
	step("admin_account", "ok", admin.Login)

	// Per-site configuration is best-effort; the tenant is already
	// routable at this point.
	p.configureSite(ctx, siteID, step)

	metrics.ProvisionTotal.WithLabelValues("success").Inc()
	p.log.Infow("tenant provisioned",
		"site_id", siteID, "host", hostname, "db", dbName)

	return &Result{
		SiteID:    siteID,
		Subdomain: norm.Subdomain,
		Hostname:  hostname,
		SiteURL:   p.cfg.SiteScheme() + "://" + hostname,
		Database:  dbName,
		Admin: AdminInfo{
			Username: admin.Login,
			Password: plaintext,
			Email:    norm.AdminEmail,
		},
		Clone:  report,
		Stages: stages,
	}, nil
}

// normalize validates required fields and canonicalises values.
func (p *Provisioner) normalize(req Request) (Request, *Error) {
	req.Subdomain = sanitizeSubdomain(req.Subdomain)
	req.Title = strings.TrimSpace(req.Title)
	req.AdminEmail = strings.TrimSpace(req.AdminEmail)
	req.AdminUsername = strings.TrimSpace(req.AdminUsername)

	if req.Subdomain == "" {
		return req, missingField("subdomain")
	}
	if req.Title == "" {
		return req, missingField("title")
	}
	if req.AdminEmail == "" {
		return req, missingField("admin_email")
	}
	if err := validate.Var(req.AdminEmail, "email"); err != nil {
		e := missingField("admin_email")
		e.Msg = "admin_email is not a valid address"
		return req, e
	}
	return req, nil
}

// configureSite applies the theme and plugin defaults when present on
// disk, and ensures the upload directory exists.  Failures are logged
// and recorded in the stage trail, never fatal.
func (p *Provisioner) configureSite(ctx context.Context, siteID uint64,
	step func(name, status, detail string)) {

	if theme := p.cfg.Provision.DefaultTheme; theme != "" {
		if dirExists(filepath.Join(p.themesDir(), theme)) {
			if err := site.SetConfig(ctx, p.db, siteID, "template", theme); err != nil {
				p.log.Errorw("theme assignment failed", "site_id", siteID, "err", err)
				step("default_theme", "failed", err.Error())
			} else {
				step("default_theme", "ok", theme)
			}
		} else {
			step("default_theme", "skipped", "theme not installed")
		}
	}

	if plugin := p.cfg.Provision.DefaultPlugin; plugin != "" {
		if fileExists(filepath.Join(p.pluginsDir(), plugin)) {
			if err := site.SetConfig(ctx, p.db, siteID, "active_plugin", plugin); err != nil {
				p.log.Errorw("plugin activation failed", "site_id", siteID, "err", err)
				step("default_plugin", "failed", err.Error())
			} else {
				step("default_plugin", "ok", plugin)
			}
		} else {
			step("default_plugin", "skipped", "plugin not installed")
		}
	}

	if dir, err := uploads.Ensure(p.cfg.Paths.ContentDir, siteID); err != nil {
		p.log.Errorw("upload dir creation failed", "site_id", siteID, "err", err)
		step("upload_dir", "failed", err.Error())
	} else {
		step("upload_dir", "ok", dir)
	}
}

// fail logs, counts, and wraps one step failure.
func (p *Provisioner) fail(kind Kind, stepName, msg string, err error) *Error {
	metrics.ProvisionTotal.WithLabelValues("failure").Inc()
	p.log.Errorw("provisioning step failed", "step", stepName, "err", err)
	return stepError(kind, stepName, msg, err)
}

func (p *Provisioner) themesDir() string {
	if d := p.cfg.Paths.ThemesDir; d != "" {
		return d
	}
	return filepath.Join(p.cfg.Paths.ContentDir, "themes")
}

func (p *Provisioner) pluginsDir() string {
	if d := p.cfg.Paths.PluginsDir; d != "" {
		return d
	}
	return filepath.Join(p.cfg.Paths.ContentDir, "plugins")
}

// kindFor promotes deadline expiry to the Timeout kind.
func kindFor(err error, fallback Kind) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return fallback
}

// sanitizeSubdomain lowercases and strips anything outside [a-z0-9-].
func sanitizeSubdomain(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

func dirExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
