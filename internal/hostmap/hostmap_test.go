// internal/hostmap/hostmap_test.go
//
// Unit-tests for the hostname registry snapshot file.
//
// Run: go test ./internal/hostmap -v

package hostmap

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMissingFile(t *testing.T) {
	reg := New(t.TempDir())

	db, ok, err := reg.Get("acme.example.test")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, db)
}

func TestPutGetRoundTrip(t *testing.T) {
	reg := New(t.TempDir())

	require.NoError(t, reg.Put("acme.example.test", "tenant_7"))

	db, ok, err := reg.Get("acme.example.test")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tenant_7", db)

	// Unknown hostname is absent, not an error.
	_, ok, err = reg.Get("other.example.test")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutOverwrites(t *testing.T) {
	reg := New(t.TempDir())

	require.NoError(t, reg.Put("acme.example.test", "tenant_7"))
	require.NoError(t, reg.Put("acme.example.test", "tenant_9"))

	db, ok, err := reg.Get("acme.example.test")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tenant_9", db)
}

func TestSnapshotIsPrettyPrintedJSON(t *testing.T) {
	dir := t.TempDir()
	reg := New(dir)
	require.NoError(t, reg.Put("acme.example.test", "tenant_7"))

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	require.Contains(t, string(raw), "\n  ") // indented

	var m map[string]string
	require.NoError(t, json.Unmarshal(raw, &m))
	require.Equal(t, "tenant_7", m["acme.example.test"])
}

// Concurrent writers must not lose entries: the read-modify-write cycle
// is serialised and committed via atomic rename.
func TestConcurrentPuts(t *testing.T) {
	reg := New(t.TempDir())

	hosts := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, h := range hosts {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			require.NoError(t, reg.Put(h+".example.test", "tenant_"+h))
		}(h)
	}
	wg.Wait()

	all, err := reg.All()
	require.NoError(t, err)
	require.Len(t, all, len(hosts))
	for _, h := range hosts {
		require.Equal(t, "tenant_"+h, all[h+".example.test"])
	}
}
