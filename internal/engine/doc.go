// Package engine is the collaboration facade of treesync.
//
// An Engine wraps one store and exposes the item, version and element
// operations of a user's private working copy together with the
// collaboration operations that move content between spaces:
//
//   - Publish writes the dirty private content as a new public revision.
//   - Sync stages public changes newer than the private copy and commits
//     every entry that does not conflict.
//   - ForceSync discards local changes before syncing.
//   - Revert rewrites the private copy to match an older revision.
//
// Conflicts stay in the stage space until ResolveElementConflict settles
// them; the version is reported as MERGING meanwhile.
//
// The acting user and tenant come from the model.Session carried by the
// context. Calls on the same item version must be serialized by the caller.
//
// Publish and modification times come from a Clock that never repeats or
// goes backwards, so publish times can order revisions.
package engine
