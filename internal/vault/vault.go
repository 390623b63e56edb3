// internal/vault/vault.go
//
// Vault client wrapper for Subsite.
//
// Context
// -------
//   - Provides a concurrency-safe singleton around the HashiCorp Vault Go SDK.
//   - Adds simple KV-v2 helpers and per-key caching with TTL.
//   - Secrets are referenced in configuration as `vault:<mount/path>#<key>`.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx)                  // during boot.
//  2. pw,  err := cli.Resolve(ctx, ref)           // anywhere in the app.
//
// Address and token come from the standard VAULT_ADDR / VAULT_TOKEN
// environment variables (api.DefaultConfig reads them).
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// RefPrefix marks a configuration value as a Vault reference.
const RefPrefix = "vault:"

// cacheTTL bounds how long a fetched secret is reused before re-reading.
const cacheTTL = 5 * time.Minute

var (
	once      sync.Once
	singleton *Client
	initErr   error
)

// Client wraps one authenticated Vault API client plus a small read cache.
type Client struct {
	api *vault.Client

	mu    sync.Mutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	value   string
	fetched time.Time
}

// New returns the process-wide Client, constructing it on first call.
func New(ctx context.Context) (*Client, error) {
	once.Do(func() {
		cfg := vault.DefaultConfig()
		api, err := vault.NewClient(cfg)
		if err != nil {
			initErr = err
			return
		}
		singleton = &Client{api: api, cache: make(map[string]cachedSecret)}
	})
	return singleton, initErr
}

// Resolve expands a `vault:<mount/path>#<key>` reference to its secret
// value.  Non-reference strings are returned unchanged.
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	if !strings.HasPrefix(ref, RefPrefix) {
		return ref, nil
	}
	rest := strings.TrimPrefix(ref, RefPrefix)
	path, key, ok := strings.Cut(rest, "#")
	if !ok || path == "" || key == "" {
		return "", fmt.Errorf("vault: malformed reference %q", ref)
	}
	return c.GetKV(ctx, path, key)
}

// GetKV reads one key from a KV-v2 secret, consulting the cache first.
func (c *Client) GetKV(ctx context.Context, path, key string) (string, error) {
	cacheKey := path + "#" + key

	c.mu.Lock()
	if hit, ok := c.cache[cacheKey]; ok && time.Since(hit.fetched) < cacheTTL {
		c.mu.Unlock()
		return hit.value, nil
	}
	c.mu.Unlock()

	mount, rel, ok := strings.Cut(path, "/")
	if !ok {
		return "", fmt.Errorf("vault: path %q missing mount prefix", path)
	}

	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", err
	}
	raw, ok := sec.Data[key]
	if !ok {
		return "", errors.New("vault: key " + key + " not found at " + path)
	}
	val, ok := raw.(string)
	if !ok {
		return "", errors.New("vault: key " + key + " is not a string")
	}

	c.mu.Lock()
	c.cache[cacheKey] = cachedSecret{value: val, fetched: time.Now()}
	c.mu.Unlock()
	return val, nil
}
