package card

import "github.com/speki-dev/cardledger/internal/model"

// ActionKind discriminates the modifier shapes a Card accepts. A Create
// submission and a Modify submission both carry an Action; Apply decides
// what "current form" means for each kind (zero value with currentOK=false
// for the creating actions).
type ActionKind int

const (
	CreateNormal ActionKind = iota
	CreateClass
	CreateInstance
	CreateAttributeAnswer
	CreateStatement
	CreateUnfinished

	SetFront
	SetBack
	AddExplicitDep
	RemoveExplicitDep
	SetParentClass
	SetNamespace
	SetSuspended
	SetTrivial
	AddAttribute
	RemoveAttribute
	AddParameter
	RemoveParameter
	// Finish transitions an Unfinished card to a terminal Kind,
	// supplying whatever fields that Kind requires. It is the only
	// modifier Apply accepts on an Unfinished card; the setters above are
	// rejected until the card has a terminal Kind.
	Finish
)

// Action is the single modifier type card.Model accepts, dispatched on
// Kind. Unused fields for a given Kind are left zero.
type Action struct {
	Kind ActionKind `json:"kind"`

	Front string   `json:"front,omitempty"`
	Back  BackSide `json:"back,omitempty"`

	Dep model.Key `json:"dep,omitempty"`

	ClassOf        model.Key `json:"class_of,omitempty"`
	ParentClass    model.Key `json:"parent_class,omitempty"`
	Namespace      model.Key `json:"namespace,omitempty"`
	InstanceOfAttr model.Key `json:"instance_of_attr,omitempty"`
	AttrClass      model.Key `json:"attr_class,omitempty"`
	AttrID         string    `json:"attr_id,omitempty"`

	Suspended bool `json:"suspended,omitempty"`
	Trivial   bool `json:"trivial,omitempty"`

	Attribute AttributeDescriptor `json:"attribute,omitempty"`
	Parameter ParameterDescriptor `json:"parameter,omitempty"`

	// FinishKind is the terminal Kind an Unfinished card transitions
	// into via Finish. It must not be Unfinished itself.
	FinishKind Kind `json:"finish_kind,omitempty"`
}
