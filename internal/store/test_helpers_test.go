package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/treesync/internal/model"
)

// createTestStore creates a new store backed by a temp-dir database.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func privateScope() model.Scope {
	return model.Scope{Space: "private/alice", ItemID: "item-1", VersionID: "v1", RevisionID: model.ZeroID}
}

func publicScope(revision model.ID) model.Scope {
	return model.Scope{Space: "public", ItemID: "item-1", VersionID: "v1", RevisionID: revision}
}

// testElement creates an element with a computed hash.
func testElement(id, parent model.ID, name string) model.Element {
	return model.Element{
		ID:       id,
		ParentID: parent,
		Info:     model.Info{Name: name},
		Data:     []byte(name + "-data"),
	}.WithHash()
}
