// Package ledger implements the event-sourced ledger engine (§4.C): it
// owns the apply pipeline, the dependency/dependents/property indices, and
// cycle and cascade-validation enforcement, dispatching against a concrete
// item category through the model.Model[T] capability set. One Engine
// instance is created per item category (cards, review records, ...); the
// engine itself never imports a concrete category package.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/speki-dev/cardledger/internal/eventlog"
	"github.com/speki-dev/cardledger/internal/model"
)

// CascadeNotice reports that, after an accepted submission, one of the
// target's transitive dependents failed its own Validate check (a target
// that fails its own check is rejected instead). A notice never blocks the submission it was produced
// by; it is informational (§7 CascadeInvalidation).
type CascadeNotice struct {
	Key    model.Key
	Status model.ValidationStatus
}

// Engine is the generic ledger engine for one item category T.
type Engine[T any] struct {
	mu       sync.RWMutex
	category string
	model    model.Model[T]
	chain    *eventlog.Chain
	now      func() time.Time

	items map[model.Key]T

	// outRefs[k][kind] is the set of keys k points at via an edge of
	// kind. inRefs is the same information inverted: inRefs[k][kind] is
	// the set of keys pointing at k via an edge of kind.
	outRefs map[model.Key]map[model.RefKind]map[model.Key]struct{}
	inRefs  map[model.Key]map[model.RefKind]map[model.Key]struct{}

	props     map[model.Key]map[model.Property]struct{}
	propIndex map[model.Property]map[model.Key]struct{}

	validation map[model.Key]model.ValidationStatus
}

// NewEngine constructs an Engine for category, backed by chain, and
// replays every record in chain to rebuild the projection. now is the
// clock used to stamp newly submitted events; pass time.Now in production
// and a fixed function in tests for determinism.
func NewEngine[T any](category string, m model.Model[T], chain *eventlog.Chain, now func() time.Time) (*Engine[T], error) {
	e := &Engine[T]{
		category:   category,
		model:      m,
		chain:      chain,
		now:        now,
		items:      make(map[model.Key]T),
		outRefs:    make(map[model.Key]map[model.RefKind]map[model.Key]struct{}),
		inRefs:     make(map[model.Key]map[model.RefKind]map[model.Key]struct{}),
		props:      make(map[model.Key]map[model.Property]struct{}),
		propIndex:  make(map[model.Property]map[model.Key]struct{}),
		validation: make(map[model.Key]model.ValidationStatus),
	}

	var replayErr error
	err := chain.Scan(func(r eventlog.Record) error {
		if err := e.replay(r); err != nil {
			replayErr = fmt.Errorf("replay record %d: %w", r.Index, err)
			return replayErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Replay skips Validate, so recompute every item's validation status
	// once against the fully rebuilt projection.
	resolver := engineResolver[T]{e: e}
	for k, item := range e.items {
		e.validation[k] = e.model.Validate(item, resolver)
	}
	return e, nil
}

// replay applies one already-accepted record to the projection without
// re-running the acceptance checks (those were already satisfied when the
// record was first appended; P2 requires replay to be deterministic and
// idempotent).
func (e *Engine[T]) replay(r eventlog.Record) error {
	modifier, err := e.decodePayload(r)
	if err != nil {
		return err
	}
	return e.commit(r.Target, r.Kind, modifier)
}

func (e *Engine[T]) decodePayload(r eventlog.Record) (any, error) {
	if r.Kind == eventlog.Delete {
		return nil, nil
	}
	modifier, err := e.model.DecodeModifier(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return modifier, nil
}

// Submit runs the full apply pipeline for one modifier against target:
// apply, strong-reference check, cycle check, self-validation, append to
// the event log, then commit and cascade validation. It returns the cascade notices
// produced by the commit (possibly empty) or a rejection error.
func (e *Engine[T]) Submit(ctx context.Context, kind eventlog.Kind, target model.Key, modifier any, actor string) ([]CascadeNotice, error) {
	return e.submit(ctx, kind, target, modifier, e.now().UnixNano(), actor)
}

// SubmitRaw re-runs the same acceptance pipeline as Submit for an event
// whose payload was already encoded (e.g. read from an imported log during
// a Merge import), preserving its original timestamp and actor rather
// than stamping a fresh one. The record is still appended at the engine's
// own next index, chained to its own current tip hash, so a merge import
// re-links the hash chain rather than reusing the foreign chain's hashes.
func (e *Engine[T]) SubmitRaw(ctx context.Context, kind eventlog.Kind, target model.Key, payload []byte, timestampNanos int64, actor string) ([]CascadeNotice, error) {
	var modifier any
	if kind != eventlog.Delete {
		var err error
		modifier, err = e.model.DecodeModifier(payload)
		if err != nil {
			return nil, &InvalidModifierError{Key: target, Reason: err.Error()}
		}
	}
	return e.submit(ctx, kind, target, modifier, timestampNanos, actor)
}

func (e *Engine[T]) submit(_ context.Context, kind eventlog.Kind, target model.Key, modifier any, timestampNanos int64, actor string) ([]CascadeNotice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, currentOK := e.items[target]

	switch kind {
	case eventlog.Create:
		if currentOK {
			return nil, &KeyAlreadyExistsError{Key: target}
		}
	case eventlog.Modify:
		if !currentOK {
			return nil, &UnknownKeyError{Key: target}
		}
	case eventlog.Delete:
		if !currentOK {
			return nil, &UnknownKeyError{Key: target}
		}
	}

	resolver := engineResolver[T]{e: e}

	var next T
	var nextRefs map[model.RefKind][]model.Key
	var selfStatus model.ValidationStatus
	if kind != eventlog.Delete {
		var err error
		next, err = e.model.Apply(current, currentOK, modifier)
		if err != nil {
			return nil, &InvalidModifierError{Key: target, Reason: err.Error()}
		}
		nextRefs = e.model.Refs(next, resolver)

		if err := e.checkStrongRefs(target, nextRefs); err != nil {
			return nil, err
		}
		if err := e.checkAcyclic(target, nextRefs); err != nil {
			return nil, err
		}

		// Apply-pipeline step 7: self-validate the item's new form
		// before committing it. A failure here rejects and rolls
		// back the tentative commit entirely (nothing has been
		// written to the indices yet), distinct from step 8's
		// cascade over dependents below, which never rejects.
		selfStatus = e.model.Validate(next, resolver)
		if !selfStatus.Valid {
			return nil, &InvariantViolationError{Key: target, Reason: selfStatus.Reason}
		}
	} else {
		if err := e.checkDeleteSafe(target); err != nil {
			return nil, err
		}
	}

	payload, err := e.encodePayload(kind, modifier)
	if err != nil {
		return nil, &InvalidModifierError{Key: target, Reason: err.Error()}
	}

	record, err := e.chain.Append(timestampNanos, e.category, target, kind, actor, payload)
	if err != nil {
		return nil, fmt.Errorf("append to event log: %w", err)
	}
	_ = record

	if kind == eventlog.Delete {
		e.removeIndices(target)
		delete(e.items, target)
		delete(e.validation, target)
		return e.cascadeValidateDependents(target), nil
	}

	e.removeIndices(target)
	e.items[target] = next
	e.addIndices(target, next)
	e.validation[target] = selfStatus

	return e.cascadeValidateDependents(target), nil
}

func (e *Engine[T]) encodePayload(kind eventlog.Kind, modifier any) ([]byte, error) {
	if kind == eventlog.Delete {
		return nil, nil
	}
	return e.model.EncodeModifier(modifier)
}

// commit applies an already-accepted mutation to the in-memory projection:
// item value, out/in ref indices, and property index.
func (e *Engine[T]) commit(target model.Key, kind eventlog.Kind, modifier any) error {
	if kind == eventlog.Delete {
		e.removeIndices(target)
		delete(e.items, target)
		delete(e.validation, target)
		return nil
	}

	current, currentOK := e.items[target]
	next, err := e.model.Apply(current, currentOK, modifier)
	if err != nil {
		return err
	}

	e.removeIndices(target)
	e.items[target] = next
	e.addIndices(target, next)
	return nil
}

func (e *Engine[T]) removeIndices(key model.Key) {
	for kind, targets := range e.outRefs[key] {
		for to := range targets {
			if e.inRefs[to] != nil {
				delete(e.inRefs[to][kind], key)
			}
		}
	}
	delete(e.outRefs, key)

	for p := range e.props[key] {
		if set := e.propIndex[p]; set != nil {
			delete(set, key)
			if len(set) == 0 {
				delete(e.propIndex, p)
			}
		}
	}
	delete(e.props, key)
}

func (e *Engine[T]) addIndices(key model.Key, item T) {
	refs := e.model.Refs(item, engineResolver[T]{e: e})
	outSet := make(map[model.RefKind]map[model.Key]struct{}, len(refs))
	for kind, targets := range refs {
		set := make(map[model.Key]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
			if e.inRefs[to] == nil {
				e.inRefs[to] = make(map[model.RefKind]map[model.Key]struct{})
			}
			if e.inRefs[to][kind] == nil {
				e.inRefs[to][kind] = make(map[model.Key]struct{})
			}
			e.inRefs[to][kind][key] = struct{}{}
		}
		outSet[kind] = set
	}
	e.outRefs[key] = outSet

	props := e.model.Properties(item)
	propSet := make(map[model.Property]struct{}, len(props))
	for _, p := range props {
		propSet[p] = struct{}{}
		if e.propIndex[p] == nil {
			e.propIndex[p] = make(map[model.Key]struct{})
		}
		e.propIndex[p][key] = struct{}{}
	}
	e.props[key] = propSet
}

func (e *Engine[T]) checkStrongRefs(from model.Key, refs map[model.RefKind][]model.Key) error {
	for kind, targets := range refs {
		if !e.model.StrongRef(kind) {
			continue
		}
		for _, to := range targets {
			if _, ok := e.items[to]; !ok {
				return &DanglingStrongReferenceError{From: from, Kind: kind, To: to}
			}
		}
	}
	return nil
}

// checkAcyclic builds the full outgoing adjacency (as it would be after
// this submission's change to target) and runs detectCycle over it.
func (e *Engine[T]) checkAcyclic(target model.Key, nextRefs map[model.RefKind][]model.Key) error {
	adj := make(map[model.Key][]model.Key, len(e.items)+1)
	for k, kinds := range e.outRefs {
		if k == target {
			continue
		}
		for _, set := range kinds {
			for to := range set {
				adj[k] = append(adj[k], to)
			}
		}
	}
	for _, targets := range nextRefs {
		adj[target] = append(adj[target], targets...)
	}

	if path, found := detectCycle(adj); found {
		return &CycleDetectedError{Path: path}
	}
	return nil
}

// checkDeleteSafe rejects a Delete that would leave a strong reference
// dangling.
func (e *Engine[T]) checkDeleteSafe(target model.Key) error {
	var dependents []model.Key
	for kind, from := range e.inRefs[target] {
		if !e.model.StrongRef(kind) {
			continue
		}
		for k := range from {
			dependents = append(dependents, k)
		}
	}
	if len(dependents) > 0 {
		return &DeleteWouldOrphanDependentsError{Key: target, Dependents: dependents}
	}
	return nil
}

// cascadeValidateDependents implements apply-pipeline step 8: it
// re-runs Validate on every transitive dependent of target (not target
// itself — target's own status was already decided by step 7, a
// rejecting self-validate, before this ran), recording and returning the
// failures. It never rejects; a failing dependent just gets its
// validation status marked invalid and surfaced as a CascadeNotice.
func (e *Engine[T]) cascadeValidateDependents(target model.Key) []CascadeNotice {
	resolver := engineResolver[T]{e: e}
	visited := map[model.Key]struct{}{target: {}}
	var queue []model.Key
	for _, from := range e.inRefs[target] {
		for dependent := range from {
			queue = append(queue, dependent)
		}
	}
	var notices []CascadeNotice

	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if _, seen := visited[k]; seen {
			continue
		}
		visited[k] = struct{}{}

		item, ok := e.items[k]
		if !ok {
			delete(e.validation, k)
			continue
		}
		status := e.model.Validate(item, resolver)
		e.validation[k] = status
		if !status.Valid {
			notices = append(notices, CascadeNotice{Key: k, Status: status})
		}

		for _, from := range e.inRefs[k] {
			for dependent := range from {
				queue = append(queue, dependent)
			}
		}
	}
	return notices
}

// AllKeys returns every key currently in the item set, implementing
// query.Index.
func (e *Engine[T]) AllKeys() map[model.Key]struct{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[model.Key]struct{}, len(e.items))
	for k := range e.items {
		out[k] = struct{}{}
	}
	return out
}

// PropertyMatch returns every key whose property index contains (name,
// value), implementing query.Index.
func (e *Engine[T]) PropertyMatch(name, value string) map[model.Key]struct{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := map[model.Key]struct{}{}
	for k := range e.propIndex[model.Property{Name: name, Value: value}] {
		out[k] = struct{}{}
	}
	return out
}

// Neighbors returns the keys reachable from key via one hop of an edge of
// kind in the given direction, implementing query.Index.
func (e *Engine[T]) Neighbors(key model.Key, kind model.RefKind, dir model.Direction) []model.Key {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx := e.outRefs
	if dir == model.Incoming {
		idx = e.inRefs
	}
	var out []model.Key
	for to := range idx[key][kind] {
		out = append(out, to)
	}
	return out
}

// Snapshot returns a copy of every item currently in the projection, keyed
// by Key. Used for export snapshots.
func (e *Engine[T]) Snapshot() map[model.Key]T {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[model.Key]T, len(e.items))
	for k, v := range e.items {
		out[k] = v
	}
	return out
}

// Category returns the item category name this engine was constructed
// with.
func (e *Engine[T]) Category() string {
	return e.category
}

// Get returns the current form of key, if it exists.
func (e *Engine[T]) Get(key model.Key) (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.items[key]
	return v, ok
}

// ValidationStatus returns the last computed validation status for key.
func (e *Engine[T]) ValidationStatus(key model.Key) (model.ValidationStatus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.validation[key]
	return v, ok
}

// Dependencies returns the keys key points at via a reference of kind (all
// kinds if kind is empty).
func (e *Engine[T]) Dependencies(key model.Key, kind model.RefKind) []model.Key {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.neighbors(e.outRefs, key, kind)
}

// Dependents returns the keys pointing at key via a reference of kind (all
// kinds if kind is empty).
func (e *Engine[T]) Dependents(key model.Key, kind model.RefKind) []model.Key {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.neighbors(e.inRefs, key, kind)
}

func (e *Engine[T]) neighbors(idx map[model.Key]map[model.RefKind]map[model.Key]struct{}, key model.Key, kind model.RefKind) []model.Key {
	var out []model.Key
	for k, set := range idx[key] {
		if kind != "" && k != kind {
			continue
		}
		for to := range set {
			out = append(out, to)
		}
	}
	return out
}

// engineResolver adapts Engine's read path to model.Resolver[T] without
// exposing the engine's write path to Model.Validate.
type engineResolver[T any] struct {
	e *Engine[T]
}

func (r engineResolver[T]) Get(key model.Key) (T, bool) {
	v, ok := r.e.items[key]
	return v, ok
}
