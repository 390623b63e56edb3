// internal/account/account.go
//
// Admin-account helpers over the shared `users` / `usermeta` tables.
//
// Context
// -------
// Tenant provisioning attaches an administrator to every new site.  The
// account lives in the network-wide user tables (which the cloner also
// duplicates into each tenant database), so an existing login is reused
// rather than recreated.  Passwords are stored bcrypt-hashed; the
// plaintext is returned to the provisioner only so the one-time API
// response can echo it.
package account

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

const generatedPasswordLen = 20

// User is the subset of a `users` row the provisioner cares about.
type User struct {
	ID    uint64 `db:"ID"`
	Login string `db:"user_login"`
	Email string `db:"user_email"`
}

// Store issues queries against the prefixed shared tables.
type Store struct {
	db     *sqlx.DB
	prefix string
}

// NewStore wires a Store to the control-plane pool.  prefix is the base
// table prefix (normally `wp_`).
func NewStore(db *sqlx.DB, prefix string) *Store {
	return &Store{db: db, prefix: prefix}
}

// Ensure returns the user with the given login, creating it when absent.
// An empty login falls back to the email local part; an empty password is
// replaced with a random one.  The second return value is the plaintext
// password in effect, or "" when an existing account was reused.
func (s *Store) Ensure(ctx context.Context, login, password, email string) (*User, string, error) {
	if login == "" {
		login, _, _ = strings.Cut(email, "@")
	}
	login = sanitizeLogin(login)
	if login == "" {
		return nil, "", errors.New("account: empty login after sanitization")
	}

	existing, err := s.byLogin(ctx, login)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		return existing, "", nil
	}

	if password == "" {
		password, err = randomPassword(generatedPasswordLen)
		if err != nil {
			return nil, "", err
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	q := fmt.Sprintf(
		`INSERT INTO %susers (user_login, user_pass, user_email, user_registered)
		 VALUES (?, ?, ?, NOW())`, s.prefix)
	res, err := s.db.ExecContext(ctx, q, login, string(hash), email)
	if err != nil {
		return nil, "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, "", err
	}
	return &User{ID: uint64(id), Login: login, Email: email}, password, nil
}

// GrantAdmin records the administrator capability for one site in the
// shared usermeta table.
func (s *Store) GrantAdmin(ctx context.Context, userID, siteID uint64) error {
	metaKey := fmt.Sprintf("%s%d_capabilities", s.prefix, siteID)
	q := fmt.Sprintf(
		`INSERT INTO %susermeta (user_id, meta_key, meta_value) VALUES (?, ?, ?)`,
		s.prefix)
	_, err := s.db.ExecContext(ctx, q, userID, metaKey, "administrator")
	return err
}

// byLogin returns (nil, nil) when the login is unknown.
func (s *Store) byLogin(ctx context.Context, login string) (*User, error) {
	q := fmt.Sprintf(
		`SELECT ID, user_login, user_email FROM %susers WHERE user_login = ? LIMIT 1`,
		s.prefix)
	var u User
	if err := s.db.GetContext(ctx, &u, q, login); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// sanitizeLogin keeps the characters WordPress allows in strict user
// sanitization: alphanumerics, dot, dash, underscore, and at.
func sanitizeLogin(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_', r == '@':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// randomPassword draws n characters from a shell-safe alphabet.
func randomPassword(n int) (string, error) {
	const alphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!@#%^*"
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
