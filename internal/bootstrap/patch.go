// internal/bootstrap/patch.go
//
// One-shot wp-config.php patcher.
//
// Context
// -------
// The PHP side of the platform decides its active database at boot, long
// before this service sees a request.  To route PHP traffic with the same
// hostname map, first activation rewrites the platform's central config
// file: a marker-delimited snippet is inserted before the settings
// bootstrap that reads the db-map snapshot and defines the database name
// from it (falling back to the default), and any preexisting static
// database-name define is commented out.
//
// The patch is idempotent: a sentinel marker in the file means it was
// applied before and the second attempt returns ErrAlreadyPatched.  A
// `.bak` copy of the config file is taken before any modification.
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrNotWritable means the config file exists but cannot be modified.
	ErrNotWritable = errors.New("bootstrap: config file is not writable")
	// ErrAlreadyPatched means the sentinel marker is already present.
	ErrAlreadyPatched = errors.New("bootstrap: config file already patched")
	// ErrPatchFailed means the insertion point was not found.
	ErrPatchFailed = errors.New("bootstrap: config patch failed")
)

const (
	markerStart = "// Subsite DB Map - Start"
	markerEnd   = "// Subsite DB Map - End"
)

var (
	dbNameDefine    = regexp.MustCompile(`define\s*\(\s*['"]DB_NAME['"].*?\);`)
	settingsRequire = regexp.MustCompile(`require_once\s+ABSPATH\s*\.\s*'wp-settings\.php'\s*;`)
)

// Patcher rewrites one platform config file.
type Patcher struct {
	ConfigPath string // wp-config.php location
	MapPath    string // db-map snapshot the snippet will read
	DefaultDB  string // fallback database name
}

// Apply performs the idempotent patch.  The original file is copied to
// `<ConfigPath>.bak` before any change.
func (p Patcher) Apply() error {
	raw, err := os.ReadFile(p.ConfigPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotWritable, err)
	}
	current := string(raw)

	if strings.Contains(current, markerStart) {
		return ErrAlreadyPatched
	}

	fi, err := os.Stat(p.ConfigPath)
	if err != nil || fi.Mode().Perm()&0o200 == 0 {
		return ErrNotWritable
	}

	if err := os.WriteFile(p.ConfigPath+".bak", raw, fi.Mode().Perm()); err != nil {
		return fmt.Errorf("%w: backup: %v", ErrPatchFailed, err)
	}

	// Comment out the static DB_NAME define, keeping it visible.
	current = dbNameDefine.ReplaceAllString(current,
		fmt.Sprintf("// define( 'DB_NAME', '%s' ); // replaced by subsite service", p.DefaultDB))

	// Insert the snippet before the settings bootstrap.  Splice by index
	// rather than regexp replacement: the PHP snippet is full of `$`.
	loc := settingsRequire.FindStringIndex(current)
	if loc == nil {
		return ErrPatchFailed
	}
	updated := current[:loc[0]] + p.snippet() + "\n\n" + current[loc[0]:]

	if err := os.WriteFile(p.ConfigPath, []byte(updated), fi.Mode().Perm()); err != nil {
		return fmt.Errorf("%w: write: %v", ErrPatchFailed, err)
	}
	return nil
}

// snippet builds the marker-delimited PHP block.
func (p Patcher) snippet() string {
	var b strings.Builder
	b.WriteString(markerStart + "\n")
	b.WriteString("if ( isset( $_SERVER['HTTP_HOST'] ) ) {\n")
	fmt.Fprintf(&b, "\t$dbMapFile = '%s';\n", p.MapPath)
	b.WriteString("\tif ( file_exists( $dbMapFile ) ) {\n")
	b.WriteString("\t\t$map = json_decode( file_get_contents( $dbMapFile ), true );\n")
	b.WriteString("\t\t$host = $_SERVER['HTTP_HOST'];\n")
	b.WriteString("\t\tif ( isset( $map[$host] ) ) {\n")
	b.WriteString("\t\t\tdefine( 'DB_NAME', $map[$host] );\n")
	b.WriteString("\t\t} else {\n")
	fmt.Fprintf(&b, "\t\t\tdefine( 'DB_NAME', '%s' );\n", p.DefaultDB)
	b.WriteString("\t\t}\n")
	b.WriteString("\t}\n")
	b.WriteString("}\n")
	b.WriteString(markerEnd)
	return b.String()
}
