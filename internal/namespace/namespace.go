// Package namespace allocates the identifiers that keep placeholders apart:
// per-pass keys for repeated value names, and process-wide scope IDs that
// stop one template instance from discovering another's placeholders.
package namespace

import (
	"strconv"
	"sync/atomic"
)

// Attribute names written on placeholder stubs.
const (
	// AttrScope holds the scope ID of the template instance that owns a stub.
	AttrScope = "data-template-id"
	// AttrKey holds the key of the host element projected into a stub.
	AttrKey = "data-template-key"
	// AttrName holds the value name of a stub on the static path.
	AttrName = "data-template-name"
)

var lastScopeID atomic.Int64

// NextScopeID returns the next process-wide scope ID, starting at 1.
func NextScopeID() int64 {
	return lastScopeID.Add(1)
}

// ResetScopeIDs restarts scope IDs at 1. It exists for deterministic tests
// and must not be called while templates are live.
func ResetScopeIDs() {
	lastScopeID.Store(0)
}

// Keys counts occurrences of value names within one render pass.
type Keys struct {
	counts map[string]int
}

// NewKeys returns an empty counter for a new pass.
func NewKeys() *Keys {
	return &Keys{counts: make(map[string]int)}
}

// Next returns "name:n" where n is the 1-based occurrence of name so far.
func (k *Keys) Next(name string) string {
	k.counts[name]++
	return name + ":" + strconv.Itoa(k.counts[name])
}

// Scope is the lazily allocated scope ID of one template instance.
// The zero value is unallocated.
type Scope struct {
	id int64
}

// ID allocates the scope ID on first use and returns it.
func (s *Scope) ID() int64 {
	if s.id == 0 {
		s.id = NextScopeID()
	}
	return s.id
}

// Allocated reports whether ID has been called.
func (s *Scope) Allocated() bool {
	return s.id != 0
}

// Value returns the attribute value for the scope, or "" when unallocated.
func (s *Scope) Value() string {
	if s.id == 0 {
		return ""
	}
	return strconv.FormatInt(s.id, 10)
}
