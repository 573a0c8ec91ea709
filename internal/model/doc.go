// Package model provides the entity types shared by every treesync package.
//
// This package contains type definitions, the canonical JSON encoder used for
// content hashing, and the structured error taxonomy. All other internal
// packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Elements form an arena keyed by ID; hierarchy is expressed through
//     ParentID and SubElementIDs, never through pointers
//   - An element's Hash is a pure function of its payload (see ElementHash)
//   - Private and Stage rows always carry ZeroID as their revision
//   - A nil PublishTime means "never published"
package model
