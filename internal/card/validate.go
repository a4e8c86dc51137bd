package card

import (
	"fmt"

	"github.com/speki-dev/cardledger/internal/model"
)

// Validate checks the invariants that depend on a card's resolved
// dependencies rather than its own fields alone. It never mutates; a
// failing result may be surfaced either as a hard rejection of the event
// that produced item (the ledger engine's apply-pipeline step 7, when
// item is the submission's own target) or as a cascade notice against a
// dependent (step 8) — Validate itself takes no position on which; that
// distinction is the caller's (internal/ledger.Engine.submit).
func (Model) Validate(item Card, resolve model.Resolver[Card]) model.ValidationStatus {
	if status := validateLinkedText(item, resolve); !status.Valid {
		return status
	}

	switch item.Kind {
	case Unfinished:
		// An unfinished card has no further invariants yet; it is
		// exempt until Finish supplies a terminal kind.
		return model.Valid()

	case Instance:
		return validateInstance(item, resolve)

	case AttributeAnswer:
		return validateAttributeAnswer(item, resolve)

	case Class:
		return validateClass(item, resolve)

	default:
		return model.Valid()
	}
}

// validateLinkedText enforces invariant 9: every ⟦key⟧ embedded in
// item's front or back text must resolve to a live card. Unlike a
// dangling strong reference (rejected at apply-pipeline step 4),
// LinkedInText is weak and so is allowed to dangle at commit time — it
// invalidates the card instead, which is why this check lives in
// Validate rather than checkStrongRefs.
func validateLinkedText(item Card, resolve model.Resolver[Card]) model.ValidationStatus {
	var linked []model.Key
	linked = append(linked, extractLinkedKeys(item.Front)...)
	linked = append(linked, extractLinkedKeys(item.Back.Text)...)
	for _, k := range linked {
		if _, ok := resolve.Get(k); !ok {
			return model.Invalid(fmt.Sprintf("linked-in-text reference %s does not resolve", k))
		}
	}
	return model.Valid()
}

func validateInstance(item Card, resolve model.Resolver[Card]) model.ValidationStatus {
	class, ok := resolve.Get(item.ClassOf)
	if !ok {
		return model.Invalid("class_of does not resolve to a live card")
	}
	if class.Kind != Class {
		return model.Invalid(fmt.Sprintf("class_of resolves to a %s, not a class", class.Kind))
	}
	return model.Valid()
}

// validateAttributeAnswer checks the attribute-resolution rule from §4.E:
// the answer's attr_id must be declared on attr_class (or one of its
// ancestor classes), instance_of_attr must actually be an instance of
// attr_class (directly or via an ancestor class), and the answer's
// back-side must satisfy the declared attribute's back-side constraint
// (invariant 6; rejected as back_type_mismatch, §8 scenario 3).
func validateAttributeAnswer(item Card, resolve model.Resolver[Card]) model.ValidationStatus {
	class, ok := resolve.Get(item.AttrClass)
	if !ok {
		return model.Invalid("attr_class does not resolve to a live card")
	}
	if class.Kind != Class {
		return model.Invalid(fmt.Sprintf("attr_class resolves to a %s, not a class", class.Kind))
	}
	descriptor, ok := classDeclaresAttribute(class, item.AttrID, resolve)
	if !ok {
		return model.Invalid(fmt.Sprintf("attribute %q is not declared on attr_class or its ancestors", item.AttrID))
	}

	instance, ok := resolve.Get(item.InstanceOfAttr)
	if !ok {
		return model.Invalid("instance_of_attr does not resolve to a live card")
	}
	if instance.Kind != Instance {
		return model.Invalid(fmt.Sprintf("instance_of_attr resolves to a %s, not an instance", instance.Kind))
	}
	if !instanceIsOfClass(instance, item.AttrClass, resolve) {
		return model.Invalid("instance_of_attr is not an instance of attr_class or one of its descendants")
	}

	if item.Back.Kind != descriptor.BackType {
		return model.Invalid("back_type_mismatch")
	}
	if descriptor.BackType == BackRef && !descriptor.InstanceOfClass.IsZero() {
		target, ok := resolve.Get(item.Back.Ref)
		if !ok || target.Kind != Instance || !instanceIsOfClass(target, descriptor.InstanceOfClass, resolve) {
			return model.Invalid("back_type_mismatch")
		}
	}
	return model.Valid()
}

func validateClass(item Card, resolve model.Resolver[Card]) model.ValidationStatus {
	if item.ParentClass.IsZero() {
		return model.Valid()
	}
	// ParentClassRef is strong (§4.C step 4: only LinkedInText is weak);
	// a dangling parent is already rejected by checkStrongRefs before
	// Validate ever runs, so resolve.Get here always succeeds in
	// practice. Still check defensively rather than assume.
	parent, ok := resolve.Get(item.ParentClass)
	if !ok {
		return model.Invalid("parent_class does not resolve to a live card")
	}
	if parent.Kind != Class {
		return model.Invalid(fmt.Sprintf("parent_class resolves to a %s, not a class", parent.Kind))
	}
	return model.Valid()
}

// classDeclaresAttribute walks the parent-class chain looking for attrID,
// bounded by maxAncestorDepth to tolerate a dangling or cyclic chain
// without looping (the ledger engine already forbids cycles, but
// validation must stay safe even mid-cascade, before a rejection lands).
// It returns the matched descriptor so the caller can check the answer's
// back-side against its constraint.
func classDeclaresAttribute(class Card, attrID string, resolve model.Resolver[Card]) (AttributeDescriptor, bool) {
	for depth := 0; depth < maxAncestorDepth; depth++ {
		for _, a := range class.Attributes {
			if a.AttributeID == attrID {
				return a, true
			}
		}
		if class.ParentClass.IsZero() {
			return AttributeDescriptor{}, false
		}
		parent, ok := resolve.Get(class.ParentClass)
		if !ok || parent.Kind != Class {
			return AttributeDescriptor{}, false
		}
		class = parent
	}
	return AttributeDescriptor{}, false
}

// instanceIsOfClass reports whether target is instance.ClassOf or one of
// its ancestors in the parent-class chain.
func instanceIsOfClass(instance Card, target model.Key, resolve model.Resolver[Card]) bool {
	current, ok := resolve.Get(instance.ClassOf)
	if !ok {
		return false
	}
	currentKey := instance.ClassOf
	for depth := 0; depth < maxAncestorDepth; depth++ {
		if currentKey == target {
			return true
		}
		if current.ParentClass.IsZero() {
			return false
		}
		next, ok := resolve.Get(current.ParentClass)
		if !ok {
			return false
		}
		currentKey = current.ParentClass
		current = next
	}
	return false
}
