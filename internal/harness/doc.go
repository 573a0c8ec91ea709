// Package harness runs collaboration scenarios against the engine.
//
// A scenario is a YAML file listing steps executed by named users on one
// item version, followed by assertions on the resulting state:
//
//	name: publish_sync
//	description: "alice publishes, bob syncs"
//	item: doc
//	version: v1
//	steps:
//	  - user: alice
//	    op: create_version
//	    args: { name: draft }
//	  - user: alice
//	    op: publish
//	    args: { message: first }
//	    expect: { published: true }
//	  - user: bob
//	    op: sync
//	    expect: { conflicted: false }
//	assertions:
//	  - type: element
//	    user: bob
//	    id: root
//	    expect: { name: draft }
//	  - type: revisions
//	    count: 1
//	snapshot: [alice, bob]
//
// # Operations
//
// create_version, update_version, delete_version, delete_item,
// create_element, update_element, delete_element, publish, sync,
// force_sync, revert and resolve. The element id "root" names the version
// data element.
//
// # Assertion Types
//
//   - element: the user's private element has the expected fields, or is
//     missing when missing is set
//   - conflicts: the user's version has exactly count conflicted elements
//   - revisions: the version has exactly count public revisions
//   - status: the user's version has the given sync status
//
// Every run uses a fresh in-memory database, a step clock and sequential
// revision ids ("rev-0001", ...), so traces and snapshots are identical
// across runs. RunWithGolden compares the final private trees of the
// snapshot users against testdata/golden/<name>.golden.
package harness
