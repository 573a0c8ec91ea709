// Package collab implements the services that move changes between spaces:
//
//   - Publish: Private -> Public, one new revision per call
//   - Sync: Public -> Stage, detecting conflicts with local edits
//   - CommitStaging: Stage -> Private, skipping conflicted entries
//   - DiscardChanges: re-derives Private from the last synced revision
//   - Revert: rewrites Private to match an older revision
//
// Services are stateless and sequential. Callers serialize requests per
// item version; a failure mid-batch leaves the already persisted prefix and
// the call can be repeated.
package collab
