package ledger

import (
	"fmt"
	"strings"

	"github.com/speki-dev/cardledger/internal/model"
)

// UnknownKeyError is returned when a Modify or Delete submission targets
// a Key that is not in the item set.
type UnknownKeyError struct {
	Key model.Key
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown key %s", e.Key)
}

// KeyAlreadyExistsError is returned by a Create submission whose target
// Key is already present in the item set.
type KeyAlreadyExistsError struct {
	Key model.Key
}

func (e *KeyAlreadyExistsError) Error() string {
	return fmt.Sprintf("key %s already exists", e.Key)
}

// InvalidModifierError wraps a failure from Model.Apply or
// Model.DecodeModifier: the modifier could not be decoded or applied to
// the item's current form.
type InvalidModifierError struct {
	Key    model.Key
	Reason string
}

func (e *InvalidModifierError) Error() string {
	return fmt.Sprintf("invalid modifier for %s: %s", e.Key, e.Reason)
}

// DanglingStrongReferenceError is returned when a submission's resulting
// item set would have a strong reference pointing at a nonexistent item.
type DanglingStrongReferenceError struct {
	From model.Key
	Kind model.RefKind
	To   model.Key
}

func (e *DanglingStrongReferenceError) Error() string {
	return fmt.Sprintf("%s --[%s]--> %s: strong reference target does not exist", e.From, e.Kind, e.To)
}

// CycleDetectedError is returned when a submission would introduce a
// dependency cycle; Path lists the keys forming the cycle in traversal
// order, starting and ending at the same Key.
type CycleDetectedError struct {
	Path []model.Key
}

func (e *CycleDetectedError) Error() string {
	parts := make([]string, len(e.Path))
	for i, k := range e.Path {
		parts[i] = k.String()
	}
	return fmt.Sprintf("dependency cycle: %s", strings.Join(parts, " -> "))
}

// InvariantViolationError wraps a Validate failure that the engine elects
// to treat as a hard rejection (only ever used for the submission's own
// target item; dependents' failures become cascade notices instead).
type InvariantViolationError struct {
	Key    model.Key
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation on %s: %s", e.Key, e.Reason)
}

// DeleteWouldOrphanDependentsError is returned when deleting an item would
// leave one or more strong references dangling.
type DeleteWouldOrphanDependentsError struct {
	Key          model.Key
	Dependents   []model.Key
}

func (e *DeleteWouldOrphanDependentsError) Error() string {
	return fmt.Sprintf("delete %s would orphan %d dependent(s) via strong references", e.Key, len(e.Dependents))
}
