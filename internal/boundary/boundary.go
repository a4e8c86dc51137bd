// Package boundary implements the external submission API (§6.1): a thin
// wrapper around one ledger.Engine[T] exposing submit/get/evaluate plus the
// event-log export/import surface, including the three import strategies
// (FastForward, Merge, Reject). This is the only package an external
// producer (internal/config-driven CLI, a future daemon) talks to.
package boundary

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/speki-dev/cardledger/internal/eventlog"
	"github.com/speki-dev/cardledger/internal/ledger"
	"github.com/speki-dev/cardledger/internal/model"
	"github.com/speki-dev/cardledger/internal/query"
)

// ImportStrategy selects how ImportLog reconciles an incoming event log
// against the ledger's own (§6.1, §9.1 Open Question resolution).
type ImportStrategy int

const (
	// FastForward accepts the incoming log only if it is a strict
	// extension of the ledger's own log (same prefix, more records).
	FastForward ImportStrategy = iota
	// Merge re-applies every event from the incoming log that is not
	// already present (by Category/Target/Kind/Actor/Timestamp/Payload
	// equality) in timestamp order, re-linking the hash chain as each
	// is re-submitted. A dedupe-and-replay strategy rather than a 3-way
	// diff, since the ledger has no separate "base" revision to diff
	// against.
	Merge
	// Reject refuses any incoming log that differs from the ledger's own
	// in length or in any record hash.
	Reject
)

func (s ImportStrategy) String() string {
	switch s {
	case FastForward:
		return "fast-forward"
	case Merge:
		return "merge"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Ledger is the external-facing handle for one item category: the ledger
// engine plus the event log chain backing it.
type Ledger[T any] struct {
	Engine *ledger.Engine[T]
	Chain  *eventlog.Chain
}

// Submit appends and applies one event. See ledger.Engine.Submit.
func (l *Ledger[T]) Submit(ctx context.Context, kind eventlog.Kind, target model.Key, modifier any, actor string) ([]ledger.CascadeNotice, error) {
	return l.Engine.Submit(ctx, kind, target, modifier, actor)
}

// Get returns the current form of an item.
func (l *Ledger[T]) Get(key model.Key) (T, bool) {
	return l.Engine.Get(key)
}

// Evaluate runs a set-algebra query against the current projection.
func (l *Ledger[T]) Evaluate(expr query.Expr) map[model.Key]struct{} {
	return query.Evaluate(expr, l.Engine)
}

// ExportLog writes the full event log as JSONL to w (§6.1 export_log).
func (l *Ledger[T]) ExportLog(w io.Writer) error {
	return l.Chain.Export(w)
}

// ImportLog reads a JSONL event log from r and reconciles it against the
// ledger's own log using strategy (§6.1 import_log).
func (l *Ledger[T]) ImportLog(ctx context.Context, r io.Reader, strategy ImportStrategy, actor string) error {
	incoming, err := eventlog.Import(r)
	if err != nil {
		return fmt.Errorf("import_log: %w", err)
	}

	var existing []eventlog.Record
	if err := l.Chain.Scan(func(rec eventlog.Record) error {
		existing = append(existing, rec)
		return nil
	}); err != nil {
		return fmt.Errorf("import_log: read existing log: %w", err)
	}

	switch strategy {
	case FastForward:
		return l.importFastForward(ctx, existing, incoming, actor)
	case Reject:
		return l.importReject(ctx, existing, incoming, actor)
	case Merge:
		return l.importMerge(ctx, existing, incoming, actor)
	default:
		return fmt.Errorf("import_log: unknown strategy %v", strategy)
	}
}

// importFastForward requires incoming to start with exactly l's existing
// records (by Hash) and then appends only the suffix.
func (l *Ledger[T]) importFastForward(ctx context.Context, existing, incoming []eventlog.Record, actor string) error {
	if len(incoming) < len(existing) {
		return fmt.Errorf("import_log fast-forward: incoming log is shorter than the existing log")
	}
	for i, rec := range existing {
		if rec.Hash != incoming[i].Hash {
			return fmt.Errorf("import_log fast-forward: incoming log diverges from the existing log at index %d", i)
		}
	}
	for _, rec := range incoming[len(existing):] {
		if _, err := l.Engine.SubmitRaw(ctx, rec.Kind, rec.Target, rec.Payload, rec.Timestamp, rec.Actor); err != nil {
			return fmt.Errorf("import_log fast-forward: replay record %d: %w", rec.Index, err)
		}
	}
	return nil
}

// importReject requires incoming and existing to agree everywhere they
// both have a record; any divergence at all fails the import, even an
// incoming log that is merely longer but diverges earlier would already
// have failed the Hash comparison in importFastForward's loop, so Reject
// additionally refuses a strictly-longer incoming log outright: Reject
// means "only accept a log identical to what I already have."
func (l *Ledger[T]) importReject(_ context.Context, existing, incoming []eventlog.Record, _ string) error {
	if len(incoming) != len(existing) {
		return fmt.Errorf("import_log reject: incoming log has %d records, existing has %d", len(incoming), len(existing))
	}
	for i, rec := range existing {
		if rec.Hash != incoming[i].Hash {
			return fmt.Errorf("import_log reject: incoming log diverges from the existing log at index %d", i)
		}
	}
	return nil
}

// recordIdentity is the dedup key importMerge uses to decide whether an
// incoming record is "the same event" as one already present, independent
// of its position or hash-chain linkage (which differ once either log has
// been merged before).
type recordIdentity struct {
	category  string
	target    model.Key
	kind      eventlog.Kind
	actor     string
	timestamp int64
	payload   string
}

func identityOf(r eventlog.Record) recordIdentity {
	return recordIdentity{
		category:  r.Category,
		target:    r.Target,
		kind:      r.Kind,
		actor:     r.Actor,
		timestamp: r.Timestamp,
		payload:   string(r.Payload),
	}
}

// importMerge re-applies every incoming record not already present (by
// identityOf) in timestamp order, re-linking the hash chain as it goes.
func (l *Ledger[T]) importMerge(ctx context.Context, existing, incoming []eventlog.Record, actor string) error {
	seen := make(map[recordIdentity]struct{}, len(existing))
	for _, rec := range existing {
		seen[identityOf(rec)] = struct{}{}
	}

	var fresh []eventlog.Record
	for _, rec := range incoming {
		id := identityOf(rec)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, rec)
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Timestamp < fresh[j].Timestamp
	})

	for _, rec := range fresh {
		mergeActor := rec.Actor
		if mergeActor == "" {
			mergeActor = actor
		}
		if _, err := l.Engine.SubmitRaw(ctx, rec.Kind, rec.Target, rec.Payload, rec.Timestamp, mergeActor); err != nil {
			return fmt.Errorf("import_log merge: replay event (target=%s, ts=%d): %w", rec.Target, rec.Timestamp, err)
		}
	}
	return nil
}
