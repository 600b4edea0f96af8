// Package idgen generates identifiers for regress runs.
//
// Constructors that record runs accept a Generator so tests can pin IDs.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings. They sort by
// creation time, which keeps history listings ordered.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every ID of gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// RunPrefix marks run identifiers.
const RunPrefix = "run_"

// Run is the default run ID generator: "run_" + UUIDv7.
var Run Generator = Prefixed(RunPrefix, UUIDv7())

// ParseRun validates a run ID and returns its UUID part.
func ParseRun(id string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(id, RunPrefix)
	if !ok {
		return uuid.Nil, fmt.Errorf("idgen: %q: missing %s prefix", id, RunPrefix)
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("idgen: %q: %w", id, err)
	}
	return u, nil
}
