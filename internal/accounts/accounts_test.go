package accounts

import (
	"testing"

	"pgregory.net/rapid"
)

func TestFixtureTable(t *testing.T) {
	p := Default()
	if p.Email != "test@test.test" || p.Password != "test123!@#" || p.Nickname != "테스트유저1" {
		t.Fatalf("primary = %+v", p)
	}
	if s := SecondaryAccount(); s.Email != "test1@test.com" || s.Password != "!test123" {
		t.Fatalf("secondary = %+v", s)
	}
	all := All()
	if len(all) != 4 {
		t.Fatalf("len(All) = %d, want 4", len(all))
	}
	wantEmails := []string{"test@test.test", "test1@test.com", "test2@test.com", "test3@test.com"}
	for i, a := range all {
		if a.Email != wantEmails[i] {
			t.Errorf("All()[%d].Email = %q, want %q", i, a.Email, wantEmails[i])
		}
	}
}

func TestEmailsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range All() {
		if seen[a.Email] {
			t.Fatalf("duplicate email %q", a.Email)
		}
		seen[a.Email] = true
	}
}

func TestGet(t *testing.T) {
	if _, ok := Get("nobody"); ok {
		t.Fatal("Get(nobody) should miss")
	}
	a, ok := Get(Test3)
	if !ok || a.Nickname != "테스트유저4" {
		t.Fatalf("Get(test3) = %+v, %t", a, ok)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("MustGet(nobody) should panic")
		}
	}()
	MustGet("nobody")
}

func TestAll_ReturnsCopies(t *testing.T) {
	all := All()
	all[0].Password = "changed"
	if Default().Password != "test123!@#" {
		t.Fatal("mutating All() changed the fixture table")
	}
	n := Names()
	n[0] = "changed"
	if Names()[0] != Primary {
		t.Fatal("mutating Names() changed the fixture order")
	}
}

func testRandom_IsAFixture(t *rapid.T) {
	a := Random()
	got, ok := ByEmail(a.Email)
	if !ok || got != a {
		t.Fatalf("Random() = %+v, not in table", a)
	}
}

func TestRandom_IsAFixture(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testRandom_IsAFixture)
}

func TestRandom_CoversTable(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 2000 && len(seen) < len(names); i++ {
		seen[Random().Email] = true
	}
	if len(seen) != len(names) {
		t.Fatalf("Random hit %d of %d accounts in 2000 draws", len(seen), len(names))
	}
}
