// Package event provides the event type model for the bus.
//
// Event types are declared explicitly with an ordered list of typed
// fields and receive a numeric identity that is stable for the lifetime
// of the process:
//
//	types := event.NewRegistry()
//	combat := types.Group("combat")
//	hit := combat.MustDeclare("Hit",
//	    event.F("attacker", event.String),
//	    event.F("damage", event.Int),
//	)
//	types.Seal()
//
// An Event is a partially bound instance of a type. Every field is
// either unset, set to a value, or set to null (nil). The distinction
// matters for matching: a subscription template leaves fields unset to
// accept any value, and binds a field to nil to accept only events that
// explicitly carry null.
//
//	e := hit.New().MustSet("attacker", "orc")
//	v, err := e.Get("damage") // err wraps ErrFieldNotSet
//
// Field assignment is validated against the declared type. Enum fields
// accept either an EnumValue or the symbolic name of one.
//
// # Errors
//
// Schema violations are reported as *SchemaError (errors.Is ErrSchema),
// conflicting merges as *MergeConflictError (errors.Is ErrMergeConflict).
package event
