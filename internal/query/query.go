// Package query implements the set-algebra query engine (§4.F): item
// subsets are built from primitive selectors (All, Property, Reference,
// Explicit) combined with Union, Intersection, Difference and Complement,
// evaluated against an Index the ledger engine provides, using a
// per-node-kind dispatch via a type switch.
package query

import "github.com/speki-dev/cardledger/internal/model"

// Index is the read-only view into a ledger.Engine's indices that the
// evaluator needs. ledger.Engine[T] implements it for any T.
type Index interface {
	AllKeys() map[model.Key]struct{}
	PropertyMatch(name, value string) map[model.Key]struct{}
	// Neighbors returns the keys reachable from key via one hop of an
	// edge of kind in the given direction.
	Neighbors(key model.Key, kind model.RefKind, dir model.Direction) []model.Key
}

// Expr is a node in a set-algebra query. It is a closed set of variants
// (sealed via the unexported marker method), dispatched by Evaluate's type
// switch rather than an open interface hierarchy.
type Expr interface {
	exprNode()
}

// All selects every item currently known to the engine.
type All struct{}

// Property selects every item whose property index contains (Name,
// Value).
type Property struct {
	Name  string
	Value string
}

// Reference selects every item reachable from Seed via an edge of Kind in
// Direction. If Transitive is false, only one hop is followed.
type Reference struct {
	Kind       model.RefKind
	Direction  model.Direction
	Seed       Expr
	Transitive bool
}

// Union selects the union of its operands.
type Union struct{ Exprs []Expr }

// Intersection selects the intersection of its operands. An empty
// Intersection selects nothing (the identity for intersection is "All",
// but an explicitly empty list is treated as the empty set to avoid a
// surprising accidental All).
type Intersection struct{ Exprs []Expr }

// Difference selects items in A but not in B.
type Difference struct{ A, B Expr }

// Complement selects every item not in Expr (relative to All).
type Complement struct{ Expr Expr }

// Explicit selects exactly the given keys (existence is not checked here;
// Evaluate intersects with AllKeys implicitly via the engine's index
// lookups, so a stale key simply yields no match).
type Explicit struct{ Keys []model.Key }

func (All) exprNode()           {}
func (Property) exprNode()      {}
func (Reference) exprNode()     {}
func (Union) exprNode()         {}
func (Intersection) exprNode()  {}
func (Difference) exprNode()    {}
func (Complement) exprNode()    {}
func (Explicit) exprNode()      {}

// Evaluate computes the key set an Expr selects against idx.
func Evaluate(expr Expr, idx Index) map[model.Key]struct{} {
	switch e := expr.(type) {
	case All:
		return idx.AllKeys()

	case Property:
		return copySet(idx.PropertyMatch(e.Name, e.Value))

	case Reference:
		return evaluateReference(e, idx)

	case Union:
		out := map[model.Key]struct{}{}
		for _, sub := range e.Exprs {
			for k := range Evaluate(sub, idx) {
				out[k] = struct{}{}
			}
		}
		return out

	case Intersection:
		if len(e.Exprs) == 0 {
			return map[model.Key]struct{}{}
		}
		out := Evaluate(e.Exprs[0], idx)
		for _, sub := range e.Exprs[1:] {
			next := Evaluate(sub, idx)
			for k := range out {
				if _, ok := next[k]; !ok {
					delete(out, k)
				}
			}
		}
		return out

	case Difference:
		a := Evaluate(e.A, idx)
		b := Evaluate(e.B, idx)
		out := map[model.Key]struct{}{}
		for k := range a {
			if _, excluded := b[k]; !excluded {
				out[k] = struct{}{}
			}
		}
		return out

	case Complement:
		inner := Evaluate(e.Expr, idx)
		out := map[model.Key]struct{}{}
		for k := range idx.AllKeys() {
			if _, ok := inner[k]; !ok {
				out[k] = struct{}{}
			}
		}
		return out

	case Explicit:
		out := map[model.Key]struct{}{}
		all := idx.AllKeys()
		for _, k := range e.Keys {
			if _, ok := all[k]; ok {
				out[k] = struct{}{}
			}
		}
		return out

	default:
		return map[model.Key]struct{}{}
	}
}

func evaluateReference(e Reference, idx Index) map[model.Key]struct{} {
	seeds := Evaluate(e.Seed, idx)
	out := map[model.Key]struct{}{}
	frontier := make([]model.Key, 0, len(seeds))
	for k := range seeds {
		frontier = append(frontier, k)
	}

	visited := map[model.Key]struct{}{}
	for len(frontier) > 0 {
		var next []model.Key
		for _, k := range frontier {
			if _, seen := visited[k]; seen {
				continue
			}
			visited[k] = struct{}{}
			for _, n := range idx.Neighbors(k, e.Kind, e.Direction) {
				if _, ok := out[n]; !ok {
					out[n] = struct{}{}
				}
				if _, seen := visited[n]; !seen {
					next = append(next, n)
				}
			}
		}
		if !e.Transitive {
			break
		}
		frontier = next
	}
	return out
}

func copySet(in map[model.Key]struct{}) map[model.Key]struct{} {
	out := make(map[model.Key]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
