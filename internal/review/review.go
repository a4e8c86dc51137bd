// Package review implements the review data item category (§4.G): a
// record of when a card was last reviewed and the scheduling bookkeeping a
// recall algorithm would consume, without implementing the spacing
// algorithm itself (explicitly out of scope, §1).
//
// Review records live in their own ledger.Engine[Review], a separate
// category from internal/card's. Their CardKey reference crosses
// categories, so it is declared weak here: a single ledger.Engine only
// ever checks strong-reference existence against its own item set, and a
// cross-category dangling check belongs at the boundary layer, not the
// per-category engine.
package review

import (
	"fmt"

	"github.com/speki-dev/cardledger/internal/model"
)

// ReviewOf is the (weak, cross-category) edge from a Review record to the
// card it concerns.
const ReviewOf model.RefKind = "review_of"

// Review is the current form of one review record: the latest outcome and
// the scheduling fields a future recall scheduler reads. EaseFactor and
// IntervalDays are plain data here; no component computes their next
// value.
type Review struct {
	CardKey      model.Key `json:"card_key"`
	Reviewed     int64     `json:"reviewed"` // unix nanoseconds of the last review
	Grade        int       `json:"grade"`    // caller-defined recall quality, e.g. 0-5
	EaseFactor   float64   `json:"ease_factor"`
	IntervalDays int       `json:"interval_days"`
	Suspended    bool      `json:"suspended"`
}

// RecordAction is the sole modifier Model accepts.
type RecordAction struct {
	Kind         RecordActionKind `json:"kind"`
	CardKey      model.Key        `json:"card_key,omitempty"`
	Grade        int              `json:"grade,omitempty"`
	ReviewedAt   int64            `json:"reviewed_at,omitempty"`
	EaseFactor   float64          `json:"ease_factor,omitempty"`
	IntervalDays int              `json:"interval_days,omitempty"`
	Suspended    bool             `json:"suspended,omitempty"`
}

// RecordActionKind discriminates RecordAction's shapes.
type RecordActionKind int

const (
	CreateRecord RecordActionKind = iota
	RecordOutcome
	SetSuspended
)

// Model implements model.Model[Review].
type Model struct{}

var _ model.Model[Review] = Model{}

func (Model) Apply(current Review, currentOK bool, modifier any) (Review, error) {
	action, ok := modifier.(RecordAction)
	if !ok {
		return Review{}, fmt.Errorf("review model: modifier is %T, want review.RecordAction", modifier)
	}

	switch action.Kind {
	case CreateRecord:
		if currentOK {
			return Review{}, fmt.Errorf("create action on an existing review record")
		}
		if action.CardKey.IsZero() {
			return Review{}, fmt.Errorf("review record requires card_key")
		}
		return Review{CardKey: action.CardKey}, nil

	case RecordOutcome:
		if !currentOK {
			return Review{}, fmt.Errorf("record outcome requires an existing review record")
		}
		next := current
		next.Reviewed = action.ReviewedAt
		next.Grade = action.Grade
		next.EaseFactor = action.EaseFactor
		next.IntervalDays = action.IntervalDays
		return next, nil

	case SetSuspended:
		if !currentOK {
			return Review{}, fmt.Errorf("set suspended requires an existing review record")
		}
		next := current
		next.Suspended = action.Suspended
		return next, nil

	default:
		return Review{}, fmt.Errorf("unknown review action kind %d", action.Kind)
	}
}

func (Model) Refs(item Review, _ model.Resolver[Review]) map[model.RefKind][]model.Key {
	if item.CardKey.IsZero() {
		return nil
	}
	return map[model.RefKind][]model.Key{ReviewOf: {item.CardKey}}
}

func (Model) Properties(item Review) []model.Property {
	props := []model.Property{{Name: "grade", Value: fmt.Sprintf("%d", item.Grade)}}
	if item.Suspended {
		props = append(props, model.Property{Name: "suspended", Value: "true"})
	}
	return props
}

// Validate has no cross-item invariants: a review record's correctness
// does not depend on the card it points at still existing.
func (Model) Validate(Review, model.Resolver[Review]) model.ValidationStatus {
	return model.Valid()
}

// StrongRef is always false: ReviewOf crosses categories, so the owning
// engine cannot check it against its own item set (see package doc).
func (Model) StrongRef(model.RefKind) bool {
	return false
}

func (Model) EncodeModifier(modifier any) ([]byte, error) {
	action, ok := modifier.(RecordAction)
	if !ok {
		return nil, fmt.Errorf("review model: modifier is %T, want review.RecordAction", modifier)
	}
	return encodeRecordAction(action)
}

func (Model) DecodeModifier(payload []byte) (any, error) {
	return decodeRecordAction(payload)
}

// DependencyKinds reports the reference kinds a recall scheduler might
// choose to gate on; the core takes no position on which of these should
// block a review (§9.1 Open Question resolution).
func DependencyKinds() []model.RefKind {
	return []model.RefKind{ReviewOf}
}
