// internal/config/loader_test.go
//
// Loader tests run against a throwaway root directory selected via
// SUBSITE_ROOT, so no repository files are touched.
//
// Run: go test ./internal/config -v

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
http:
  listen_addr: ":8080"
database:
  dsn: "wp:{password}@tcp(127.0.0.1:3306)/wpdb?parseTime=true"
  password: "hunter2"
  dsn_template: "wp:{password}@tcp(127.0.0.1:3306)/%s?parseTime=true"
  default_name: "wpdb"
network:
  root_domain: "example.test"
paths:
  content_dir: "/srv/wp-content"
`

func writeRoot(t *testing.T, yaml string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "conf"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "conf", "global.yaml"), []byte(yaml), 0o644))
	t.Setenv("SUBSITE_ROOT", root)
	return root
}

func TestLoadMergesAndSubstitutes(t *testing.T) {
	root := writeRoot(t, sampleYAML)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTP.ListenAddr)
	require.Equal(t, root, cfg.Paths.Root)
	require.Equal(t, "example.test", cfg.Network.RootDomain)

	// {password} token replaced in both DSNs.
	require.Equal(t,
		"wp:hunter2@tcp(127.0.0.1:3306)/wpdb?parseTime=true", cfg.Database.DSN)
	require.Equal(t,
		"wp:hunter2@tcp(127.0.0.1:3306)/%s?parseTime=true", cfg.Database.DSNTemplate)

	// Defaults.
	require.Equal(t, "wp_", cfg.Prefix())
	require.Equal(t, "https", cfg.SiteScheme())

	// Load() caches the aggregate for lock-free readers.
	require.Same(t, cfg, Get())
}

func TestLoadEnvOverride(t *testing.T) {
	writeRoot(t, sampleYAML)
	t.Setenv("SUBSITE_NETWORK__ROOT_DOMAIN", "override.test")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "override.test", cfg.Network.RootDomain)
}

func TestLoadRejectsBadTemplate(t *testing.T) {
	bad := `
http:
  listen_addr: ":8080"
database:
  dsn: "wp:pw@tcp(127.0.0.1:3306)/wpdb"
  dsn_template: "wp:pw@tcp(127.0.0.1:3306)/wpdb"
  default_name: "wpdb"
network:
  root_domain: "example.test"
paths:
  content_dir: "/srv/wp-content"
`
	writeRoot(t, bad)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsMissingRequired(t *testing.T) {
	writeRoot(t, "http:\n  listen_addr: \":8080\"\n")

	_, err := Load()
	require.Error(t, err)
}
