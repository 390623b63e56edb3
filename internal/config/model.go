// internal/config/model.go
//
// Typed configuration model for Subsite.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                           – dotenv values,
//   • `conf/global.yaml`                        – primary static file,
//   • `SUBSITE_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *after* unmarshalling, so the rest of the app
// never sees Vault URIs—only plain strings.
//
// Validation happens immediately after unmarshal; the app fails fast if
// required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • The `Paths.Root` field is filled at runtime; YAML must not set it.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

//
// Database section
//

// Database describes both the control-plane connection and the template
// from which per-tenant DSNs are derived.
//
// `DSN` points at the platform (template) database and is used for all
// DDL/DML issued by the schema cloner and the registries.  `DSNTemplate`
// must contain exactly one `%s` verb, replaced with a database name when
// the tenant cache opens a per-tenant pool.  The password may be stored
// in Vault and referenced as `vault:<path>#<key>`.
type Database struct {
	DSN              string        `koanf:"dsn"          validate:"required"`
	Password         string        `koanf:"password"`
	DSNTemplate      string        `koanf:"dsn_template" validate:"required"`
	DefaultName      string        `koanf:"default_name" validate:"required"`
	TablePrefix      string        `koanf:"table_prefix"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
}

//
// Network section
//

// Network holds multisite-wide settings: the root domain under which
// tenant hostnames are composed, and the scheme used in returned URLs.
type Network struct {
	RootDomain string `koanf:"root_domain" validate:"required,fqdn"`
	Scheme     string `koanf:"scheme"`
}

//
// Provision section
//

// Provision carries provisioning-time settings: the site whose prefixed
// tables seed every new tenant database, and the best-effort defaults
// applied to a freshly created tenant.  Empty defaults skip the
// corresponding step.
type Provision struct {
	TemplateSiteID uint64 `koanf:"template_site_id"`
	DefaultTheme   string `koanf:"default_theme"`
	DefaultPlugin  string `koanf:"default_plugin"`
}

//
// Paths section
//

// Paths locates the platform tree on disk.  `Root` is resolved at
// runtime—never set in YAML or env.  The remaining fields default
// relative to the platform root when left empty.
type Paths struct {
	Root       string // SUBSITE_ROOT or discovered parent
	ContentDir string `koanf:"content_dir" validate:"required"`
	ThemesDir  string `koanf:"themes_dir"`
	PluginsDir string `koanf:"plugins_dir"`
	WPConfig   string `koanf:"wp_config"`
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Database  Database  `koanf:"database"`
	Network   Network   `koanf:"network"`
	Provision Provision `koanf:"provision"`
	Paths     Paths     `koanf:"paths"`
}

// SiteScheme returns the configured URL scheme, defaulting to https.
func (c *Config) SiteScheme() string {
	if c.Network.Scheme != "" {
		return c.Network.Scheme
	}
	return "https"
}

// Prefix returns the shared table-name prefix, defaulting to `wp_`.
func (c *Config) Prefix() string {
	if c.Database.TablePrefix != "" {
		return c.Database.TablePrefix
	}
	return "wp_"
}
