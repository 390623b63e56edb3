// cmd/web/main.go
//
// Subsite – HTTP entry point.
//
// Startup life-cycle
// ------------------
//
//  1. Load config (conf/.env → conf/global.yaml → SUBSITE_ env overlay,
//     Vault-resolved secrets).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Open the control-plane DB and log active-site count.
//
//  4. Apply the one-shot wp-config patch so PHP requests resolve the
//     same hostname map (idempotent; "already patched" is not an error).
//
//  5. Assemble hostname registry, schema cloner, account store, and the
//     provisioner on top of them.
//
//  6. Build tenant pool cache (lazy-opens each database on first hit).
//
//  7. Route: security headers and HTTPS enforcement first, then the
//     resolver middleware on every request, then the provisioning API;
//     Prometheus /metrics on the side.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanizio/subsite/internal/account"
	"github.com/yanizio/subsite/internal/api"
	"github.com/yanizio/subsite/internal/bootstrap"
	"github.com/yanizio/subsite/internal/config"
	"github.com/yanizio/subsite/internal/database"
	"github.com/yanizio/subsite/internal/hostmap"
	"github.com/yanizio/subsite/internal/logger"
	"github.com/yanizio/subsite/internal/middleware"
	"github.com/yanizio/subsite/internal/provision"
	"github.com/yanizio/subsite/internal/schema"
	"github.com/yanizio/subsite/internal/server"
	"github.com/yanizio/subsite/internal/tenant"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Paths.Root, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}

	//
	// ── 1.  Control-plane DB connect ────────────────────────────────────
	//
	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logOut.Infow("connecting to control-plane DB")
	db, err := database.Open(bootCtx, cfg.Database.DSN)
	if err != nil {
		logOut.Fatalw("connect control-plane DB", "err", err)
	}
	defer db.Close()
	logOut.Infow("control-plane DB online")

	// Log active-site count as an early sanity check.
	var active int
	_ = db.GetContext(bootCtx, &active, `
	    SELECT COUNT(*) FROM site
	    WHERE suspended_at IS NULL AND deleted_at IS NULL`)
	logOut.Infow("site registry checked", "active_sites", active)

	//
	// ── 2.  Hostname registry + one-shot wp-config patch ───────────────
	//
	registry := hostmap.New(cfg.Paths.ContentDir)

	wpConfig := cfg.Paths.WPConfig
	if wpConfig == "" {
		wpConfig = filepath.Join(filepath.Dir(cfg.Paths.ContentDir), "wp-config.php")
	}
	patcher := bootstrap.Patcher{
		ConfigPath: wpConfig,
		MapPath:    registry.Path(),
		DefaultDB:  cfg.Database.DefaultName,
	}
	switch err := patcher.Apply(); {
	case err == nil:
		logOut.Infow("wp-config patched", "file", wpConfig)
	case errors.Is(err, bootstrap.ErrAlreadyPatched):
		logOut.Infow("wp-config already patched", "file", wpConfig)
	default:
		// The Go side still routes via the registry; only PHP boot is
		// affected, so this is loud but not fatal.
		logOut.Errorw("wp-config patch failed", "file", wpConfig, "err", err)
	}

	//
	// ── 3.  Provisioner assembly ────────────────────────────────────────
	//
	templateID := cfg.Provision.TemplateSiteID
	if templateID == 0 {
		templateID = 1
	}
	cloner := schema.NewCloner(db, cfg.Database.DefaultName, cfg.Prefix(),
		cfg.Database.StatementTimeout)
	accounts := account.NewStore(db, cfg.Prefix())
	prov := provision.New(db, cfg, cloner, accounts, registry, templateID, logOut)

	//
	// ── 4.  Tenant pool cache (lazy per-database pools) ─────────────────
	//
	cache := tenant.New(cfg.Database.DSNTemplate, tenant.IdleTTL, tenant.MaxEntries, logOut)

	//
	// ── 5.  Routes: resolver first, then API; metrics on the side ─────
	//
	r := chi.NewRouter()
	r.Use(middleware.Security)
	r.Use(func(next http.Handler) http.Handler {
		return middleware.ForceHTTPS(registry, next)
	})
	r.Use(tenant.Resolver(registry, cache, cfg.Database.DefaultName))
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", api.New(db, prov, logOut).Routes())

	srv := server.New(cfg.HTTP.ListenAddr, r)
	logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logOut.Fatalw("http server", "err", err)
	}
}
