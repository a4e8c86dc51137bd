package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/speki-dev/cardledger/internal/model"
)

const depKind model.RefKind = "dep"

// fakeIndex is a small in-memory Index used to test the evaluator without
// standing up a full ledger engine.
type fakeIndex struct {
	keys  map[model.Key]struct{}
	props map[model.Property]map[model.Key]struct{}
	out   map[model.Key][]model.Key
	in    map[model.Key][]model.Key
}

func (f fakeIndex) AllKeys() map[model.Key]struct{} {
	out := map[model.Key]struct{}{}
	for k := range f.keys {
		out[k] = struct{}{}
	}
	return out
}

func (f fakeIndex) PropertyMatch(name, value string) map[model.Key]struct{} {
	out := map[model.Key]struct{}{}
	for k := range f.props[model.Property{Name: name, Value: value}] {
		out[k] = struct{}{}
	}
	return out
}

func (f fakeIndex) Neighbors(key model.Key, kind model.RefKind, dir model.Direction) []model.Key {
	if kind != depKind {
		return nil
	}
	if dir == model.Outgoing {
		return f.out[key]
	}
	return f.in[key]
}

func buildChain(t *testing.T) (fakeIndex, model.Key, model.Key, model.Key) {
	t.Helper()
	a, b, c := model.NewKey(), model.NewKey(), model.NewKey()
	idx := fakeIndex{
		keys: map[model.Key]struct{}{a: {}, b: {}, c: {}},
		props: map[model.Property]map[model.Key]struct{}{
			{Name: "kind", Value: "root"}: {a: {}},
			{Name: "kind", Value: "leaf"}: {c: {}},
		},
		out: map[model.Key][]model.Key{b: {a}, c: {b}},
		in:  map[model.Key][]model.Key{a: {b}, b: {c}},
	}
	return idx, a, b, c
}

func TestEvaluateAll(t *testing.T) {
	idx, _, _, _ := buildChain(t)
	result := Evaluate(All{}, idx)
	require.Len(t, result, 3)
}

func TestEvaluateProperty(t *testing.T) {
	idx, a, _, _ := buildChain(t)
	result := Evaluate(Property{Name: "kind", Value: "root"}, idx)
	require.Equal(t, map[model.Key]struct{}{a: {}}, result)
}

func TestEvaluateReferenceOneHop(t *testing.T) {
	idx, a, b, _ := buildChain(t)
	result := Evaluate(Reference{Kind: depKind, Direction: model.Outgoing, Seed: Explicit{Keys: []model.Key{b}}}, idx)
	require.Equal(t, map[model.Key]struct{}{a: {}}, result)
}

func TestEvaluateReferenceTransitive(t *testing.T) {
	idx, a, b, c := buildChain(t)
	result := Evaluate(Reference{Kind: depKind, Direction: model.Outgoing, Seed: Explicit{Keys: []model.Key{c}}, Transitive: true}, idx)
	require.Equal(t, map[model.Key]struct{}{b: {}, a: {}}, result)
}

func TestEvaluateUnionIntersectionDifference(t *testing.T) {
	idx, a, _, c := buildChain(t)
	union := Evaluate(Union{Exprs: []Expr{
		Property{Name: "kind", Value: "root"},
		Property{Name: "kind", Value: "leaf"},
	}}, idx)
	require.Equal(t, map[model.Key]struct{}{a: {}, c: {}}, union)

	intersection := Evaluate(Intersection{Exprs: []Expr{
		All{},
		Property{Name: "kind", Value: "root"},
	}}, idx)
	require.Equal(t, map[model.Key]struct{}{a: {}}, intersection)

	diff := Evaluate(Difference{A: All{}, B: Property{Name: "kind", Value: "root"}}, idx)
	require.NotContains(t, diff, a)
}

func TestEvaluateComplement(t *testing.T) {
	idx, a, b, c := buildChain(t)
	result := Evaluate(Complement{Expr: Property{Name: "kind", Value: "root"}}, idx)
	require.NotContains(t, result, a)
	require.Contains(t, result, b)
	require.Contains(t, result, c)
}
