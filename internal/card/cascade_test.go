package card

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/speki-dev/cardledger/internal/eventlog"
	"github.com/speki-dev/cardledger/internal/ledger"
	"github.com/speki-dev/cardledger/internal/model"
)

func newTestEngine(t *testing.T) *ledger.Engine[Card] {
	t.Helper()
	chain, err := eventlog.OpenChain(eventlog.NewMemoryStore())
	require.NoError(t, err)
	clock := func() time.Time { return time.Unix(0, 0) }
	e, err := ledger.NewEngine[Card]("card", Model{}, chain, clock)
	require.NoError(t, err)
	return e
}

// TestCascadeNoticeOnAttributeRemoval exercises the full engine pipeline
// (§8 P-style scenario): removing an attribute descriptor from a Class
// invalidates any AttributeAnswer that answered it, as a cascade notice,
// without rejecting the RemoveAttribute submission itself.
func TestCascadeNoticeOnAttributeRemoval(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	classKey := model.NewKey()
	_, err := e.Submit(ctx, eventlog.Create, classKey, Action{
		Kind: CreateClass, Front: "Country",
	}, "tester")
	require.NoError(t, err)

	_, err = e.Submit(ctx, eventlog.Modify, classKey, Action{
		Kind: AddAttribute, Attribute: AttributeDescriptor{AttributeID: "capital"},
	}, "tester")
	require.NoError(t, err)

	instanceKey := model.NewKey()
	_, err = e.Submit(ctx, eventlog.Create, instanceKey, Action{
		Kind: CreateInstance, Front: "France", ClassOf: classKey,
	}, "tester")
	require.NoError(t, err)

	answerKey := model.NewKey()
	_, err = e.Submit(ctx, eventlog.Create, answerKey, Action{
		Kind: CreateAttributeAnswer, Front: "capital of France",
		AttrClass: classKey, InstanceOfAttr: instanceKey, AttrID: "capital",
	}, "tester")
	require.NoError(t, err)

	status, ok := e.ValidationStatus(answerKey)
	require.True(t, ok)
	require.True(t, status.Valid)

	notices, err := e.Submit(ctx, eventlog.Modify, classKey, Action{
		Kind: RemoveAttribute, Attribute: AttributeDescriptor{AttributeID: "capital"},
	}, "tester")
	require.NoError(t, err)

	var sawAnswerNotice bool
	for _, n := range notices {
		if n.Key == answerKey {
			sawAnswerNotice = true
		}
	}
	require.True(t, sawAnswerNotice, "removing the attribute should invalidate the answer that referenced it")

	status, ok = e.ValidationStatus(answerKey)
	require.True(t, ok)
	require.False(t, status.Valid)

	// The RemoveAttribute submission itself was accepted despite the
	// cascade failure; it is still readable.
	got, ok := e.Get(classKey)
	require.True(t, ok)
	require.Empty(t, got.Attributes)
}

func TestDeleteClassRejectedWhileInstanceExists(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	classKey := model.NewKey()
	_, err := e.Submit(ctx, eventlog.Create, classKey, Action{Kind: CreateClass, Front: "Country"}, "tester")
	require.NoError(t, err)

	instanceKey := model.NewKey()
	_, err = e.Submit(ctx, eventlog.Create, instanceKey, Action{
		Kind: CreateInstance, Front: "France", ClassOf: classKey,
	}, "tester")
	require.NoError(t, err)

	_, err = e.Submit(ctx, eventlog.Delete, classKey, nil, "tester")
	require.Error(t, err)
}

// TestLinkedInTextInvalidatesOnDeletedTarget exercises §8 scenario 4:
// a card's embedded ⟦key⟧ reference is weak, so deleting the referenced
// card is accepted (no strong dependent exists), but the linking card's
// validation status flips to invalid as a cascade notice (invariant 9).
func TestLinkedInTextInvalidatesOnDeletedTarget(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	target := model.NewKey()
	_, err := e.Submit(ctx, eventlog.Create, target, Action{Kind: CreateNormal, Front: "K8"}, "tester")
	require.NoError(t, err)

	linking := model.NewKey()
	_, err = e.Submit(ctx, eventlog.Create, linking, Action{
		Kind: CreateNormal, Front: "See ⟦" + target.String() + "⟧.",
	}, "tester")
	require.NoError(t, err)

	status, ok := e.ValidationStatus(linking)
	require.True(t, ok)
	require.True(t, status.Valid)

	notices, err := e.Submit(ctx, eventlog.Delete, target, nil, "tester")
	require.NoError(t, err, "LinkedInText is weak; deleting its target must not be rejected")

	var sawLinkingNotice bool
	for _, n := range notices {
		if n.Key == linking {
			sawLinkingNotice = true
		}
	}
	require.True(t, sawLinkingNotice, "linking card should be cascade-invalidated once its text link dangles")

	status, ok = e.ValidationStatus(linking)
	require.True(t, ok)
	require.False(t, status.Valid)

	_, err = e.Submit(ctx, eventlog.Modify, linking, Action{Kind: SetFront, Front: "See nothing now."}, "tester")
	require.NoError(t, err)
	status, ok = e.ValidationStatus(linking)
	require.True(t, ok)
	require.True(t, status.Valid)
}

// TestDanglingStrongParentClassReferenceRejected exercises finding #5: a
// Class created with a non-existent ParentClass must be rejected, since
// ParentClassRef is strong (every kind but LinkedInText is).
func TestDanglingStrongParentClassReferenceRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	missingParent := model.NewKey()
	_, err := e.Submit(ctx, eventlog.Create, model.NewKey(), Action{
		Kind: CreateClass, Front: "Scientist", ParentClass: missingParent,
	}, "tester")
	require.Error(t, err)
	var dangling *ledger.DanglingStrongReferenceError
	require.ErrorAs(t, err, &dangling)
}

// TestAttributeAnswerBackTypeMismatchRejectsSubmission exercises findings
// #3/#4 end to end: the engine's apply-pipeline step 7 self-validate
// rejects (not just cascade-notices) an AttributeAnswer whose back-side
// does not satisfy its attribute's constraint.
func TestAttributeAnswerBackTypeMismatchRejectsSubmission(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	classKey := model.NewKey()
	_, err := e.Submit(ctx, eventlog.Create, classKey, Action{Kind: CreateClass, Front: "Person"}, "tester")
	require.NoError(t, err)
	_, err = e.Submit(ctx, eventlog.Modify, classKey, Action{
		Kind: AddAttribute, Attribute: AttributeDescriptor{AttributeID: "birthdate", BackType: BackTimestamp},
	}, "tester")
	require.NoError(t, err)

	instanceKey := model.NewKey()
	_, err = e.Submit(ctx, eventlog.Create, instanceKey, Action{
		Kind: CreateInstance, Front: "Darwin", ClassOf: classKey,
	}, "tester")
	require.NoError(t, err)

	_, err = e.Submit(ctx, eventlog.Create, model.NewKey(), Action{
		Kind: CreateAttributeAnswer, Front: "birthdate of Darwin",
		AttrClass: classKey, InstanceOfAttr: instanceKey, AttrID: "birthdate",
		Back: BackSide{Kind: BackText, Text: "early spring"},
	}, "tester")
	require.Error(t, err)
	var invariant *ledger.InvariantViolationError
	require.ErrorAs(t, err, &invariant)
	require.Equal(t, "back_type_mismatch", invariant.Reason)

	accepted := model.NewKey()
	_, err = e.Submit(ctx, eventlog.Create, accepted, Action{
		Kind: CreateAttributeAnswer, Front: "birthdate of Darwin",
		AttrClass: classKey, InstanceOfAttr: instanceKey, AttrID: "birthdate",
		Back: BackSide{Kind: BackTimestamp, Time: -2863223292000000000},
	}, "tester")
	require.NoError(t, err)
	status, ok := e.ValidationStatus(accepted)
	require.True(t, ok)
	require.True(t, status.Valid)
}

func TestCycleViaExplicitDepRejected(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a := model.NewKey()
	b := model.NewKey()
	_, err := e.Submit(ctx, eventlog.Create, a, Action{Kind: CreateNormal, Front: "a"}, "tester")
	require.NoError(t, err)
	_, err = e.Submit(ctx, eventlog.Create, b, Action{Kind: CreateNormal, Front: "b"}, "tester")
	require.NoError(t, err)

	_, err = e.Submit(ctx, eventlog.Modify, a, Action{Kind: AddExplicitDep, Dep: b}, "tester")
	require.NoError(t, err)

	_, err = e.Submit(ctx, eventlog.Modify, b, Action{Kind: AddExplicitDep, Dep: a}, "tester")
	require.Error(t, err)
}
