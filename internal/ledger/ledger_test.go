package ledger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/speki-dev/cardledger/internal/eventlog"
	"github.com/speki-dev/cardledger/internal/model"
)

// testItem is a minimal item type used to exercise the generic engine
// independent of any concrete item category.
type testItem struct {
	Value string      `json:"value"`
	Deps  []model.Key `json:"deps"`
}

const depKind model.RefKind = "dep"

type testModel struct{}

func (testModel) Apply(current testItem, currentOK bool, modifier any) (testItem, error) {
	m := modifier.(testItem)
	return m, nil
}

func (testModel) Refs(item testItem, _ model.Resolver[testItem]) map[model.RefKind][]model.Key {
	if len(item.Deps) == 0 {
		return nil
	}
	return map[model.RefKind][]model.Key{depKind: item.Deps}
}

func (testModel) Properties(item testItem) []model.Property {
	return []model.Property{{Name: "value", Value: item.Value}}
}

func (testModel) Validate(item testItem, resolve model.Resolver[testItem]) model.ValidationStatus {
	for _, d := range item.Deps {
		if _, ok := resolve.Get(d); !ok {
			return model.Invalid("dangling dep")
		}
	}
	return model.Valid()
}

func (testModel) StrongRef(kind model.RefKind) bool {
	return kind == depKind
}

func (testModel) EncodeModifier(modifier any) ([]byte, error) {
	return json.Marshal(modifier.(testItem))
}

func (testModel) DecodeModifier(payload []byte) (any, error) {
	var item testItem
	if err := json.Unmarshal(payload, &item); err != nil {
		return nil, err
	}
	return item, nil
}

func newTestEngine(t *testing.T) *Engine[testItem] {
	t.Helper()
	chain, err := eventlog.OpenChain(eventlog.NewMemoryStore())
	require.NoError(t, err)
	clock := func() time.Time { return time.Unix(0, 0) }
	e, err := NewEngine[testItem]("test", testModel{}, chain, clock)
	require.NoError(t, err)
	return e
}

func TestSubmitCreateAndGet(t *testing.T) {
	e := newTestEngine(t)
	k := model.NewKey()
	notices, err := e.Submit(context.Background(), eventlog.Create, k, testItem{Value: "a"}, "tester")
	require.NoError(t, err)
	require.Empty(t, notices)

	got, ok := e.Get(k)
	require.True(t, ok)
	require.Equal(t, "a", got.Value)
}

func TestSubmitCreateDuplicateKeyRejected(t *testing.T) {
	e := newTestEngine(t)
	k := model.NewKey()
	_, err := e.Submit(context.Background(), eventlog.Create, k, testItem{Value: "a"}, "tester")
	require.NoError(t, err)

	_, err = e.Submit(context.Background(), eventlog.Create, k, testItem{Value: "b"}, "tester")
	require.Error(t, err)
	var exists *KeyAlreadyExistsError
	require.ErrorAs(t, err, &exists)
}

func TestModifyUnknownKeyRejected(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Submit(context.Background(), eventlog.Modify, model.NewKey(), testItem{Value: "a"}, "tester")
	require.Error(t, err)
	var unknown *UnknownKeyError
	require.ErrorAs(t, err, &unknown)
}

func TestDanglingStrongReferenceRejected(t *testing.T) {
	e := newTestEngine(t)
	k := model.NewKey()
	missing := model.NewKey()
	_, err := e.Submit(context.Background(), eventlog.Create, k, testItem{Value: "a", Deps: []model.Key{missing}}, "tester")
	require.Error(t, err)
	var dangling *DanglingStrongReferenceError
	require.ErrorAs(t, err, &dangling)
}

func TestCycleDetectedRejected(t *testing.T) {
	e := newTestEngine(t)
	a := model.NewKey()
	b := model.NewKey()

	_, err := e.Submit(context.Background(), eventlog.Create, a, testItem{Value: "a"}, "tester")
	require.NoError(t, err)
	_, err = e.Submit(context.Background(), eventlog.Create, b, testItem{Value: "b", Deps: []model.Key{a}}, "tester")
	require.NoError(t, err)

	_, err = e.Submit(context.Background(), eventlog.Modify, a, testItem{Value: "a", Deps: []model.Key{b}}, "tester")
	require.Error(t, err)
	var cycle *CycleDetectedError
	require.ErrorAs(t, err, &cycle)
}

func TestDeleteWouldOrphanDependentsRejected(t *testing.T) {
	e := newTestEngine(t)
	a := model.NewKey()
	b := model.NewKey()
	_, err := e.Submit(context.Background(), eventlog.Create, a, testItem{Value: "a"}, "tester")
	require.NoError(t, err)
	_, err = e.Submit(context.Background(), eventlog.Create, b, testItem{Value: "b", Deps: []model.Key{a}}, "tester")
	require.NoError(t, err)

	_, err = e.Submit(context.Background(), eventlog.Delete, a, nil, "tester")
	require.Error(t, err)
	var orphan *DeleteWouldOrphanDependentsError
	require.ErrorAs(t, err, &orphan)
}

func TestModifyWithValidDependentProducesNoNotices(t *testing.T) {
	e := newTestEngine(t)
	a := model.NewKey()
	b := model.NewKey()
	_, err := e.Submit(context.Background(), eventlog.Create, a, testItem{Value: "a"}, "tester")
	require.NoError(t, err)
	_, err = e.Submit(context.Background(), eventlog.Create, b, testItem{Value: "b", Deps: []model.Key{a}}, "tester")
	require.NoError(t, err)

	// Modifying a re-runs Validate on a and on every transitive
	// dependent (here, b). Since depKind is strong, a dependent's
	// reference can never dangle post-commit, so no notice is expected
	// and both a and b still report a valid status afterwards.
	notices, err := e.Submit(context.Background(), eventlog.Modify, a, testItem{Value: "a2"}, "tester")
	require.NoError(t, err)
	require.Empty(t, notices)

	status, ok := e.ValidationStatus(b)
	require.True(t, ok)
	require.True(t, status.Valid)

	status, ok = e.ValidationStatus(a)
	require.True(t, ok)
	require.True(t, status.Valid)
}

func TestReplayRebuildsProjectionFromLog(t *testing.T) {
	store := eventlog.NewMemoryStore()
	chain, err := eventlog.OpenChain(store)
	require.NoError(t, err)
	clock := func() time.Time { return time.Unix(0, 0) }
	e, err := NewEngine[testItem]("test", testModel{}, chain, clock)
	require.NoError(t, err)

	k := model.NewKey()
	_, err = e.Submit(context.Background(), eventlog.Create, k, testItem{Value: "a"}, "tester")
	require.NoError(t, err)

	chain2, err := eventlog.OpenChain(store)
	require.NoError(t, err)
	e2, err := NewEngine[testItem]("test", testModel{}, chain2, clock)
	require.NoError(t, err)

	got, ok := e2.Get(k)
	require.True(t, ok)
	require.Equal(t, "a", got.Value)
}

func TestQueryIndexAccessors(t *testing.T) {
	e := newTestEngine(t)
	a := model.NewKey()
	b := model.NewKey()
	_, err := e.Submit(context.Background(), eventlog.Create, a, testItem{Value: "shared"}, "tester")
	require.NoError(t, err)
	_, err = e.Submit(context.Background(), eventlog.Create, b, testItem{Value: "shared", Deps: []model.Key{a}}, "tester")
	require.NoError(t, err)

	all := e.AllKeys()
	require.Len(t, all, 2)

	matches := e.PropertyMatch("value", "shared")
	require.Len(t, matches, 2)

	deps := e.Neighbors(b, depKind, model.Outgoing)
	require.Equal(t, []model.Key{a}, deps)

	dependents := e.Neighbors(a, depKind, model.Incoming)
	require.Equal(t, []model.Key{b}, dependents)
}
