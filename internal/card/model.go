package card

import (
	"fmt"
	"regexp"

	"github.com/speki-dev/cardledger/internal/model"
)

// maxAncestorDepth bounds every parent-class chain walk (ancestorChain,
// classDeclaresAttribute, instanceIsOfClass) so a dangling or
// pathological chain cannot loop; the ledger already forbids cycles, but
// validation and ref-extraction must stay safe even mid-cascade, before
// a rejection lands.
const maxAncestorDepth = 64

// Model implements model.Model[Card] for the card item category.
type Model struct{}

var _ model.Model[Card] = Model{}

// Apply dispatches on modifier.(Action).Kind. The six Create* kinds
// require currentOK == false (they construct a fresh Card); every other
// kind requires currentOK == true and an existing Kind other than
// Unfinished, except Finish which requires Kind == Unfinished.
func (Model) Apply(current Card, currentOK bool, modifier any) (Card, error) {
	action, ok := modifier.(Action)
	if !ok {
		return Card{}, fmt.Errorf("card model: modifier is %T, want card.Action", modifier)
	}

	switch action.Kind {
	case CreateNormal, CreateClass, CreateInstance, CreateAttributeAnswer, CreateStatement, CreateUnfinished:
		if currentOK {
			return Card{}, fmt.Errorf("create action on an existing card")
		}
		return applyCreate(action)
	}

	if !currentOK {
		return Card{}, fmt.Errorf("%v action requires an existing card", action.Kind)
	}

	if action.Kind == Finish {
		return applyFinish(current, action)
	}

	if current.Kind == Unfinished {
		return Card{}, fmt.Errorf("card is unfinished; only Finish may change its kind-defining fields")
	}

	return applySetter(current, action)
}

func applyCreate(action Action) (Card, error) {
	c := Card{Front: action.Front, Back: action.Back}
	switch action.Kind {
	case CreateNormal:
		c.Kind = Normal
	case CreateClass:
		c.Kind = Class
		c.ParentClass = action.ParentClass
	case CreateInstance:
		c.Kind = Instance
		if action.ClassOf.IsZero() {
			return Card{}, fmt.Errorf("instance requires class_of")
		}
		c.ClassOf = action.ClassOf
	case CreateAttributeAnswer:
		c.Kind = AttributeAnswer
		if action.InstanceOfAttr.IsZero() || action.AttrClass.IsZero() || action.AttrID == "" {
			return Card{}, fmt.Errorf("attribute answer requires instance_of_attr, attr_class and attr_id")
		}
		c.InstanceOfAttr = action.InstanceOfAttr
		c.AttrClass = action.AttrClass
		c.AttrID = action.AttrID
	case CreateStatement:
		c.Kind = Statement
	case CreateUnfinished:
		c.Kind = Unfinished
	}
	c.Namespace = action.Namespace
	return c, nil
}

// applyFinish transitions an Unfinished card into a terminal Kind,
// re-running the same field requirements applyCreate enforces.
func applyFinish(current Card, action Action) (Card, error) {
	if current.Kind != Unfinished {
		return Card{}, fmt.Errorf("finish action on a card that is not unfinished (kind=%s)", current.Kind)
	}
	if action.FinishKind == Unfinished {
		return Card{}, fmt.Errorf("finish action must choose a terminal kind")
	}
	next, err := applyCreate(Action{
		Kind:           createKindFor(action.FinishKind),
		Front:          current.Front,
		Back:           current.Back,
		ClassOf:        action.ClassOf,
		ParentClass:    action.ParentClass,
		Namespace:      current.Namespace,
		InstanceOfAttr: action.InstanceOfAttr,
		AttrClass:      action.AttrClass,
		AttrID:         action.AttrID,
	})
	if err != nil {
		return Card{}, fmt.Errorf("finish: %w", err)
	}
	next.ExplicitDeps = current.ExplicitDeps
	next.Suspended = current.Suspended
	next.Trivial = current.Trivial
	return next, nil
}

func createKindFor(k Kind) ActionKind {
	switch k {
	case Class:
		return CreateClass
	case Instance:
		return CreateInstance
	case AttributeAnswer:
		return CreateAttributeAnswer
	case Statement:
		return CreateStatement
	default:
		return CreateNormal
	}
}

func applySetter(current Card, action Action) (Card, error) {
	next := current
	switch action.Kind {
	case SetFront:
		next.Front = action.Front
	case SetBack:
		next.Back = action.Back
	case AddExplicitDep:
		if !containsKey(next.ExplicitDeps, action.Dep) {
			next.ExplicitDeps = append(append([]model.Key{}, next.ExplicitDeps...), action.Dep)
		}
	case RemoveExplicitDep:
		next.ExplicitDeps = removeKey(next.ExplicitDeps, action.Dep)
	case SetParentClass:
		if current.Kind != Class {
			return Card{}, fmt.Errorf("set parent class on a non-class card")
		}
		next.ParentClass = action.ParentClass
	case SetNamespace:
		next.Namespace = action.Namespace
	case SetSuspended:
		next.Suspended = action.Suspended
	case SetTrivial:
		next.Trivial = action.Trivial
	case AddAttribute:
		if current.Kind != Class {
			return Card{}, fmt.Errorf("add attribute on a non-class card")
		}
		for _, a := range next.Attributes {
			if a.AttributeID == action.Attribute.AttributeID {
				return Card{}, fmt.Errorf("attribute id %q already declared on this class", action.Attribute.AttributeID)
			}
		}
		next.Attributes = append(append([]AttributeDescriptor{}, next.Attributes...), action.Attribute)
	case RemoveAttribute:
		if current.Kind != Class {
			return Card{}, fmt.Errorf("remove attribute on a non-class card")
		}
		filtered := next.Attributes[:0:0]
		for _, a := range next.Attributes {
			if a.AttributeID != action.Attribute.AttributeID {
				filtered = append(filtered, a)
			}
		}
		next.Attributes = filtered
	case AddParameter:
		if current.Kind != Class {
			return Card{}, fmt.Errorf("add parameter on a non-class card")
		}
		for _, p := range next.Parameters {
			if p.ParameterID == action.Parameter.ParameterID {
				return Card{}, fmt.Errorf("parameter id %q already declared on this class", action.Parameter.ParameterID)
			}
		}
		next.Parameters = append(append([]ParameterDescriptor{}, next.Parameters...), action.Parameter)
	case RemoveParameter:
		if current.Kind != Class {
			return Card{}, fmt.Errorf("remove parameter on a non-class card")
		}
		filtered := next.Parameters[:0:0]
		for _, p := range next.Parameters {
			if p.ParameterID != action.Parameter.ParameterID {
				filtered = append(filtered, p)
			}
		}
		next.Parameters = filtered
	default:
		return Card{}, fmt.Errorf("unknown action kind %d", action.Kind)
	}
	return next, nil
}

func containsKey(keys []model.Key, k model.Key) bool {
	for _, existing := range keys {
		if existing == k {
			return true
		}
	}
	return false
}

func removeKey(keys []model.Key, k model.Key) []model.Key {
	filtered := keys[:0:0]
	for _, existing := range keys {
		if existing != k {
			filtered = append(filtered, existing)
		}
	}
	return filtered
}

// linkPattern matches ⟦<uuid>⟧ or ⟦<uuid>|<alias>⟧ occurrences in free
// text (§3.2), the notation used to cross-reference another card from
// within a Front or BackText. The alias segment, if present, is ignored
// for ref-extraction purposes; it exists purely for display. These
// become the weak LinkedInText edge.
var linkPattern = regexp.MustCompile(`⟦([0-9a-fA-F-]{36})(?:\|[^⟧]*)?⟧`)

func extractLinkedKeys(text string) []model.Key {
	matches := linkPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]model.Key, 0, len(matches))
	for _, m := range matches {
		k, err := model.ParseKey(m[1])
		if err != nil {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Refs reports every outgoing edge implied by item's current form.
// resolve is used to expand ClassOfInstance to the instance's full
// ancestor-class chain (§8 scenario 5: a transitive incoming
// ClassOfInstance query from an ancestor class must still find its
// descendants' instances), not only the instance's immediate class.
func (Model) Refs(item Card, resolve model.Resolver[Card]) map[model.RefKind][]model.Key {
	refs := map[model.RefKind][]model.Key{}

	if len(item.ExplicitDeps) > 0 {
		refs[ExplicitDep] = append([]model.Key{}, item.ExplicitDeps...)
	}
	if !item.ClassOf.IsZero() {
		refs[ClassOfInstance] = ancestorChain(item.ClassOf, resolve)
	}
	if !item.ParentClass.IsZero() {
		refs[ParentClassRef] = []model.Key{item.ParentClass}
	}
	if !item.Namespace.IsZero() {
		refs[NamespaceRef] = []model.Key{item.Namespace}
	}
	if !item.InstanceOfAttr.IsZero() {
		refs[InstanceOfAttr] = []model.Key{item.InstanceOfAttr}
	}
	if !item.AttrClass.IsZero() {
		refs[AttrClassRef] = []model.Key{item.AttrClass}
	}

	if backRefs := item.Back.refs(nil); len(backRefs) > 0 {
		refs[BacksideRef] = backRefs
	}

	var linked []model.Key
	linked = append(linked, extractLinkedKeys(item.Front)...)
	linked = append(linked, extractLinkedKeys(item.Back.Text)...)
	if len(linked) > 0 {
		refs[LinkedInText] = linked
	}

	for k, v := range refs {
		if len(v) == 0 {
			delete(refs, k)
		}
	}
	return refs
}

// ancestorChain returns class and every resolvable ancestor reached by
// walking ParentClass, bounded by maxAncestorDepth. class itself is
// always included, even if it is dangling, so the direct-class edge
// still participates in strong-reference/dangling checks; the walk stops
// silently at the first non-resolving or non-Class link.
func ancestorChain(class model.Key, resolve model.Resolver[Card]) []model.Key {
	chain := []model.Key{class}
	current := class
	for depth := 0; depth < maxAncestorDepth; depth++ {
		card, ok := resolve.Get(current)
		if !ok || card.Kind != Class || card.ParentClass.IsZero() {
			break
		}
		chain = append(chain, card.ParentClass)
		current = card.ParentClass
	}
	return chain
}

// Properties reports the indexed facts the engine's query layer filters
// on: kind, suspension, trivia, and (for attribute answers) which
// attribute id they answer.
func (Model) Properties(item Card) []model.Property {
	props := []model.Property{
		{Name: "kind", Value: item.Kind.String()},
	}
	if item.Suspended {
		props = append(props, model.Property{Name: "suspended", Value: "true"})
	}
	if item.Trivial {
		props = append(props, model.Property{Name: "trivial", Value: "true"})
	}
	if item.Kind == AttributeAnswer && item.AttrID != "" {
		props = append(props, model.Property{Name: "attr_id", Value: item.AttrID})
	}
	return props
}

// StrongRef reports that every reference kind must resolve to a live
// item except LinkedInText (§4.C step 4: "only LinkedInText is weak").
// A card mentioned in free text and later deleted should not block the
// mention; every other edge (parent class, namespace, attribute links,
// explicit deps, class-of-instance, backside reference) is load-bearing
// enough to reject on a dangling target.
func (Model) StrongRef(kind model.RefKind) bool {
	return kind != LinkedInText
}

func (Model) EncodeModifier(modifier any) ([]byte, error) {
	action, ok := modifier.(Action)
	if !ok {
		return nil, fmt.Errorf("card model: modifier is %T, want card.Action", modifier)
	}
	return encodeAction(action)
}

func (Model) DecodeModifier(payload []byte) (any, error) {
	return decodeAction(payload)
}
