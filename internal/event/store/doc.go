// Package store holds the subscriptions of one event type and resolves,
// for an incoming event, the subset that should receive it.
//
// # Matching
//
// Delivery uses strict matching, field by field across every declared
// field of the type:
//
//   - event field unset: only templates that also leave it unset match
//   - event field set to V: templates that leave it unset, or bind it to
//     V, match. Null is a bindable value distinct from "any value".
//
// Loose matching additionally accepts templates binding a field the
// event leaves unset. It is only used by CopyLooseInto, which fills the
// shadow store of a prefiltered poster.
//
// # Strategies
//
// New picks Indexed when any declared field type is hashable and Linear
// otherwise. Both are safe for concurrent use and stamp every mutation
// with a monotonically increasing LastModified value.
package store
