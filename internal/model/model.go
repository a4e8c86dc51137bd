// Package model defines the generic item-model contract the ledger engine
// dispatches against: a capability set of Apply, Refs, Properties and
// Validate, rather than an open inheritance hierarchy. Concrete item
// categories (cards, review records, future kinds) implement Model[T] and
// plug into internal/ledger without the engine ever importing them.
package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Key uniquely identifies an item within a category. It is a 128-bit value
// generated with google/uuid; two items in different categories may share
// the same Key without colliding, since the ledger keeps one engine per
// category.
type Key uuid.UUID

// NewKey generates a fresh random Key.
func NewKey() Key {
	return Key(uuid.New())
}

// ParseKey parses the canonical string form of a Key.
func ParseKey(s string) (Key, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Key{}, fmt.Errorf("parse key %q: %w", s, err)
	}
	return Key(u), nil
}

func (k Key) String() string {
	return uuid.UUID(k).String()
}

// IsZero reports whether k is the zero Key, used as a sentinel for "no
// target" in contexts such as a Create event's dependency-free form.
func (k Key) IsZero() bool {
	return k == Key{}
}

// MarshalText implements encoding.TextMarshaler so Key sorts and encodes
// deterministically in JSON, matching the canonical-encoding requirement on
// event payloads.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// RefKind labels a directed edge between two items. Each item category
// defines its own set of RefKind values; the ledger engine treats them as
// opaque strings except for the strong/weak distinction reported by
// Model.StrongRef.
type RefKind string

// Direction is the traversal direction for a Reference query or a
// dependency/dependents lookup.
type Direction int

const (
	// Outgoing follows edges from an item to the items it depends on.
	Outgoing Direction = iota
	// Incoming follows edges from an item to the items that depend on it.
	Incoming
)

// Property is a single indexed (name, value) fact about an item, such as
// ("kind", "instance") or ("suspended", "true"). The ledger engine
// maintains an inverted index over Properties so queries can select items
// by property without scanning the whole item set.
type Property struct {
	Name  string
	Value string
}

func (p Property) String() string {
	return p.Name + "=" + p.Value
}

// ValidationStatus is the result of Model.Validate for one item.
type ValidationStatus struct {
	Valid  bool
	Reason string
}

// Valid is the zero-value-friendly constructor for a passing status.
func Valid() ValidationStatus {
	return ValidationStatus{Valid: true}
}

// Invalid constructs a failing status carrying a human-readable reason.
// Whether a failing status rejects the triggering submission or is merely
// recorded as a cascade notice depends on which item Validate was called
// against: the engine rejects on the submission's own target (apply-pipeline
// step 7) but only records a notice for transitive dependents (step 8).
func Invalid(reason string) ValidationStatus {
	return ValidationStatus{Valid: false, Reason: reason}
}

// Resolver gives Model.Validate and Model.Refs read-only access to other
// items in the same category, without exposing the engine's write path.
type Resolver[T any] interface {
	Get(key Key) (T, bool)
}

// Model is the capability set a concrete item type supplies to
// internal/ledger. T is the concrete value type (e.g. card.Card); items are
// passed by value and the engine stores whatever Apply returns.
type Model[T any] interface {
	// Apply produces the next form of an item given its current form
	// (the zero value and ok=false on Create) and an opaque modifier.
	// Apply must be pure: no I/O, no access to global state, and it must
	// return an error rather than partially mutate current.
	Apply(current T, currentOK bool, modifier any) (T, error)

	// Refs reports every outgoing edge the item's current form implies,
	// grouped by RefKind. On each commit the engine drops the item's
	// previous edges and indexes the new result in both the dependency
	// and dependents indices (P4). resolve gives read access
	// to other items in the category, needed by models whose ref
	// extraction depends on a referenced item's own fields (e.g.
	// expanding an edge to a whole ancestor chain).
	Refs(item T, resolve Resolver[T]) map[RefKind][]Key

	// Properties reports every indexed (name, value) fact the item's
	// current form implies. On each commit the engine drops the item's
	// previous properties from the property index and indexes the new
	// result.
	Properties(item T) []Property

	// Validate checks the item's invariants given read access to its
	// resolved dependencies. It never mutates. The engine calls Validate
	// twice per submission: once against the submission's own target,
	// where a failing result rejects the submission outright, and once
	// against every transitive dependent, where a failing result is only
	// recorded and surfaced as a cascade notice (§7 CascadeInvalidation).
	Validate(item T, resolve Resolver[T]) ValidationStatus

	// StrongRef reports whether an edge of the given kind must resolve
	// to a live item (deleting the target is rejected while a strong
	// edge points at it) or may dangle silently (weak edge).
	StrongRef(kind RefKind) bool

	// EncodeModifier produces the canonical event-payload bytes for a
	// modifier, used when a submission is appended to the event log.
	EncodeModifier(modifier any) ([]byte, error)

	// DecodeModifier is EncodeModifier's inverse, used when replaying
	// the event log to rebuild the projection.
	DecodeModifier(payload []byte) (any, error)
}
