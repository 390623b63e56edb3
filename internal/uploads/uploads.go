// Package uploads isolates per-tenant upload storage.  Each provisioned
// site gets its own folder directly under `<content>/uploads`, flattening
// the platform's default `/sites/<id>` nesting.
package uploads

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName returns the per-tenant folder name for a site.
func DirName(siteID uint64) string {
	return fmt.Sprintf("tenant_%d", siteID)
}

// Dir computes the absolute upload directory for a site.
func Dir(contentDir string, siteID uint64) string {
	return filepath.Join(contentDir, "uploads", DirName(siteID))
}

// Ensure creates the per-tenant upload directory if it does not exist.
func Ensure(contentDir string, siteID uint64) (string, error) {
	dir := Dir(contentDir, siteID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// URL composes the public URL for a site's uploads given the content URL
// base (e.g. "https://acme.example.com/wp-content").
func URL(contentURL string, siteID uint64) string {
	return contentURL + "/uploads/" + DirName(siteID)
}

// Rewrite maps an upload destination onto the tenant's isolated folder,
// returning the filesystem path and public URL as a pair.
func Rewrite(contentDir, contentURL string, siteID uint64) (path, url string) {
	return Dir(contentDir, siteID), URL(contentURL, siteID)
}
