package idgen

import (
	"strings"
	"testing"
)

func TestRun(t *testing.T) {
	id := Run()
	if !strings.HasPrefix(id, RunPrefix) {
		t.Fatalf("id = %q, want %s prefix", id, RunPrefix)
	}
	u, err := ParseRun(id)
	if err != nil {
		t.Fatalf("ParseRun: %v", err)
	}
	if u.Version() != 7 {
		t.Errorf("version = %d, want 7", u.Version())
	}
}

func TestRun_Sortable(t *testing.T) {
	prev := Run()
	for range 100 {
		next := Run()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("x_", func() string { return "1" })
	if got := gen(); got != "x_1" {
		t.Errorf("got %q", got)
	}
}

func TestParseRun_Invalid(t *testing.T) {
	for _, id := range []string{"", "abc", "run_nope", "0190a0a0-0000-7000-8000-000000000000"} {
		if _, err := ParseRun(id); err == nil {
			t.Errorf("ParseRun(%q) should fail", id)
		}
	}
}
