package collab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treesync/internal/model"
)

func TestCommit_EmptyStageIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.newVersion(f.alice)

	res, err := f.committer.Commit(f.alice, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.Empty(t, res.Applied)
	assert.False(t, res.VersionCommitted)
}

func TestCommit_Idempotent(t *testing.T) {
	f := sharedTree(t)
	f.rename(f.alice, "a", "a2")
	f.publish(f.alice, "alice")

	_, err := f.syncer.Sync(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)

	first, err := f.committer.Commit(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.Equal(t, []ElementChange{change("a", model.ActionUpdate)}, first.Applied)
	assert.True(t, first.VersionCommitted)

	before := f.privateIDs(f.bob)
	second, err := f.committer.Commit(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.Empty(t, second.Applied)
	assert.False(t, second.VersionCommitted)
	assert.Equal(t, before, f.privateIDs(f.bob))
	assert.Equal(t, "a2", f.name(f.bob, "a"))
}

func TestCommit_RejectsUnknownAction(t *testing.T) {
	f := newFixture(t)

	err := f.committer.commitElement(f.alice, f.ec, model.StageEntity[model.Element]{
		Entity: element("x", model.RootID, "x"),
		Action: model.Action("MOVE"),
	})
	require.Error(t, err)
	assert.True(t, model.IsInvalidOperation(err))
	assert.Equal(t, model.CodeInvalidArgument, model.CodeOf(err))
}

func TestCommit_IgnoreKeepsElementDirty(t *testing.T) {
	f := newFixture(t)
	f.newVersion(f.alice)
	f.add(f.alice, "a", model.RootID, "a")

	pt := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.stage.Create(f.alice, f.ec, model.StageEntity[model.Element]{
		Entity:      element("a", model.RootID, "ignored"),
		PublishTime: model.TimePtr(pt),
		Action:      model.ActionIgnore,
	}))

	res, err := f.committer.Commit(f.alice, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.Equal(t, []ElementChange{change("a", model.ActionIgnore)}, res.Applied)

	assert.Equal(t, "a", f.name(f.alice, "a"), "IGNORE keeps local content")
	st, _, err := f.private.GetSyncState(f.alice, f.ec, "a")
	require.NoError(t, err)
	assert.True(t, st.Dirty)
	assert.True(t, model.SameTime(model.TimePtr(pt), st.PublishTime))
}
