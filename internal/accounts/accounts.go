// Package accounts holds the fixed test users that exist on every Hello Pet
// environment the suite targets.
package accounts

import (
	"math/rand/v2"
)

// Account is a test user. Identity is the email address.
type Account struct {
	Email       string
	Password    string
	Nickname    string
	Description string
}

// Fixture names.
const (
	Primary   = "primary"
	Secondary = "secondary"
	Test2     = "test2"
	Test3     = "test3"
)

var names = []string{Primary, Secondary, Test2, Test3}

var table = map[string]Account{
	Primary: {
		Email:       "test@test.test",
		Password:    "test123!@#",
		Nickname:    "테스트유저1",
		Description: "주요 테스트 계정",
	},
	Secondary: {
		Email:       "test1@test.com",
		Password:    "!test123",
		Nickname:    "테스트유저2",
		Description: "보조 테스트 계정",
	},
	Test2: {
		Email:       "test2@test.com",
		Password:    "!test123",
		Nickname:    "테스트유저3",
		Description: "테스트 계정 3번",
	},
	Test3: {
		Email:       "test3@test.com",
		Password:    "!test123",
		Nickname:    "테스트유저4",
		Description: "테스트 계정 4번",
	},
}

// Get returns the named account.
func Get(name string) (Account, bool) {
	a, ok := table[name]
	return a, ok
}

// MustGet returns the named account and panics if it does not exist.
func MustGet(name string) Account {
	a, ok := Get(name)
	if !ok {
		panic("accounts: unknown fixture " + name)
	}
	return a
}

// Default is the account most tests sign in with.
func Default() Account { return table[Primary] }

// SecondaryAccount is used when a test needs a second user.
func SecondaryAccount() Account { return table[Secondary] }

// Random picks an account uniformly.
func Random() Account {
	return table[names[rand.IntN(len(names))]]
}

// All returns every account in fixture order.
func All() []Account {
	out := make([]Account, 0, len(names))
	for _, n := range names {
		out = append(out, table[n])
	}
	return out
}

// Names returns the fixture names in fixture order.
func Names() []string {
	return append([]string(nil), names...)
}

// ByEmail finds the account with the given email.
func ByEmail(email string) (Account, bool) {
	for _, n := range names {
		if a := table[n]; a.Email == email {
			return a, true
		}
	}
	return Account{}, false
}
