// Package card implements the concrete ontological card model (§4.E): a
// tagged-variant Kind (Class, Instance, AttributeAnswer, Normal, Statement,
// Unfinished), the reference kinds that turn ontological relationships
// into DAG edges, and the model.Model[Card] capability set the ledger
// engine dispatches against. Kind is a closed tagged union rather than an
// open hierarchy.
package card

import (
	"crypto/sha256"
	"fmt"

	"github.com/speki-dev/cardledger/internal/model"
)

// Kind is the closed set of ontological roles a Card can hold.
type Kind int

const (
	// Unfinished is the only kind that may later transition to another
	// kind (the terminal kind chosen by Finish); every other kind
	// is terminal.
	Unfinished Kind = iota
	Normal
	Class
	Instance
	AttributeAnswer
	Statement
)

func (k Kind) String() string {
	switch k {
	case Unfinished:
		return "unfinished"
	case Normal:
		return "normal"
	case Class:
		return "class"
	case Instance:
		return "instance"
	case AttributeAnswer:
		return "attribute_answer"
	case Statement:
		return "statement"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// Reference kinds, labeling the DAG edges a Card's fields imply. Every
// kind is strong (must resolve to a live item) except LinkedInText, the
// sole weak kind (§3.6 invariant 9: a dangling mention invalidates the
// card rather than rejecting the event that created it). See
// Model.StrongRef.
const (
	ExplicitDep     model.RefKind = "explicit_dep"
	ClassOfInstance model.RefKind = "class_of_instance"
	ParentClassRef  model.RefKind = "parent_class"
	NamespaceRef    model.RefKind = "namespace"
	InstanceOfAttr  model.RefKind = "instance_of_attr"
	AttrClassRef    model.RefKind = "attr_class"
	LinkedInText    model.RefKind = "linked_in_text" // weak
	BacksideRef     model.RefKind = "backside_ref"
)

// BackSideKind is the closed set of shapes a Card's answer side may take.
type BackSideKind int

const (
	BackText BackSideKind = iota
	BackRef
	BackList
	BackBool
	BackTimestamp
)

func (k BackSideKind) String() string {
	switch k {
	case BackText:
		return "text"
	case BackRef:
		return "ref"
	case BackList:
		return "list"
	case BackBool:
		return "boolean"
	case BackTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("back_kind(%d)", k)
	}
}

// BackSide is a tagged-union value: exactly one of Text, Bool, Time, Ref,
// List is meaningful, selected by Kind.
type BackSide struct {
	Kind BackSideKind `json:"kind"`
	Text string       `json:"text,omitempty"`
	Bool bool         `json:"bool,omitempty"`
	Time int64        `json:"time,omitempty"` // unix nanoseconds
	Ref  model.Key    `json:"ref,omitempty"`
	List []BackSide   `json:"list,omitempty"`
}

// refs appends every Key this BackSide (recursively, for BackList)
// references, via BacksideRef.
func (b BackSide) refs(out []model.Key) []model.Key {
	switch b.Kind {
	case BackRef:
		if !b.Ref.IsZero() {
			out = append(out, b.Ref)
		}
	case BackList:
		for _, item := range b.List {
			out = item.refs(out)
		}
	}
	return out
}

// AttributeDescriptor is one question/answer-shape pair a Class declares
// for its Instances (§3 attribute descriptor). AttributeID is unique
// within the owning Class, not globally (§9.1 Open Question resolution).
// BackType constrains the shape any AttributeAnswer against this
// attribute must take; InstanceOfClass is only meaningful when BackType
// is BackRef (§4.E attribute resolution table).
type AttributeDescriptor struct {
	AttributeID     string       `json:"attribute_id"`
	Pattern         string       `json:"pattern"` // e.g. "{} has capital {}"
	BackType        BackSideKind `json:"back_type"`
	InstanceOfClass model.Key    `json:"instance_of_class,omitempty"`
}

// ParameterDescriptor is one named configuration slot a Class declares
// for itself (§3.2: "set of parameter descriptors"), distinct from the
// attribute descriptors its Instances answer. Parameters carry no
// back-side and are not answered by Instances; they exist so a Class can
// be templated (e.g. a "periodic table element" class parameterized by
// atomic number) without spec.md's attribute-answer machinery applying
// to them. ParameterID is unique within the owning Class.
type ParameterDescriptor struct {
	ParameterID string `json:"parameter_id"`
	Pattern     string `json:"pattern"`
}

// Card is the current form of one item in the card category.
type Card struct {
	Kind Kind `json:"kind"`

	Front string   `json:"front"`
	Back  BackSide `json:"back"`

	// ExplicitDeps are dependencies the author declared directly,
	// independent of ontological role.
	ExplicitDeps []model.Key `json:"explicit_deps,omitempty"`

	// ClassOf is set on an Instance: the Class it instantiates.
	ClassOf model.Key `json:"class_of,omitempty"`

	// ParentClass is set on a Class: its (optional) superclass.
	ParentClass model.Key `json:"parent_class,omitempty"`

	// Namespace is an optional grouping reference, any kind may set it.
	Namespace model.Key `json:"namespace,omitempty"`

	// InstanceOfAttr and AttrClass and AttrID are set on an
	// AttributeAnswer: which instance, which class owns the attribute,
	// and which attribute of that class this answers.
	InstanceOfAttr model.Key `json:"instance_of_attr,omitempty"`
	AttrClass      model.Key `json:"attr_class,omitempty"`
	AttrID         string    `json:"attr_id,omitempty"`

	// Attributes and Parameters are set on a Class: the attribute
	// descriptors its Instances may answer, and the parameter descriptors
	// the class itself carries (§3.2).
	Attributes []AttributeDescriptor `json:"attributes,omitempty"`
	Parameters []ParameterDescriptor `json:"parameters,omitempty"`

	Suspended bool `json:"suspended"`
	Trivial   bool `json:"trivial"`
}

// ContentHash returns the SHA-256 hash of the card's canonical JSON
// encoding; equal cards hash equally. Merge import and export do not call
// it: merge deduplicates by event-record identity.
func (c Card) ContentHash() ([32]byte, error) {
	encoded, err := encodeCard(c)
	if err != nil {
		return [32]byte{}, fmt.Errorf("hash card: %w", err)
	}
	return sha256.Sum256(encoded), nil
}
