package stubapp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kuitang/hellopet-e2e/internal/accounts"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type member struct {
	account accounts.Account
	hash    string
}

// Directory holds the accounts that can sign in, keyed by lowercased email.
type Directory struct {
	hasher  PasswordHasher
	members map[string]member
}

// NewDirectory hashes every account's password with hasher.
func NewDirectory(hasher PasswordHasher, accts []accounts.Account) (*Directory, error) {
	d := &Directory{hasher: hasher, members: make(map[string]member, len(accts))}
	for _, a := range accts {
		hash, err := hasher.HashPassword(a.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", a.Email, err)
		}
		a.Password = ""
		d.members[normalizeEmail(a.Email)] = member{account: a, hash: hash}
	}
	return d, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate checks credentials. The returned account has no password.
func (d *Directory) Authenticate(email, password string) (accounts.Account, error) {
	m, ok := d.members[normalizeEmail(email)]
	if !ok || !d.hasher.VerifyPassword(password, m.hash) {
		return accounts.Account{}, ErrInvalidCredentials
	}
	return m.account, nil
}

// Lookup returns the account for email.
func (d *Directory) Lookup(email string) (accounts.Account, bool) {
	m, ok := d.members[normalizeEmail(email)]
	return m.account, ok
}
