package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treesync/internal/model"
)

// sharedTree publishes root -> a -> b as alice and brings bob in sync.
func sharedTree(t *testing.T) *fixture {
	f := newFixture(t)
	f.newVersion(f.alice)
	f.add(f.alice, "a", model.RootID, "a")
	f.add(f.alice, "b", "a", "b")
	f.publish(f.alice, "initial")
	f.syncAll(f.bob)
	return f
}

func TestSync_NothingPublished(t *testing.T) {
	f := newFixture(t)
	f.newVersion(f.alice)

	res, err := f.syncer.Sync(f.alice, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
	assert.Empty(t, res.Changes)

	_, staged, err := f.stageVersion.Get(f.alice, f.ec)
	require.NoError(t, err)
	assert.False(t, staged)
}

func TestSync_FirstSyncCreatesEverything(t *testing.T) {
	f := newFixture(t)
	f.newVersion(f.alice)
	f.add(f.alice, "a", model.RootID, "a")
	f.add(f.alice, "b", "a", "b")
	pub := f.publish(f.alice, "initial")

	res, err := f.syncer.Sync(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.False(t, res.Conflicted)
	assert.Equal(t, []ElementChange{
		change(model.RootID, model.ActionCreate),
		change("a", model.ActionCreate),
		change("b", model.ActionCreate),
	}, res.Changes)

	staged, found, err := f.stageVersion.Get(f.bob, f.ec)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.ActionCreate, staged.Action)

	commit, err := f.committer.Commit(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.Len(t, commit.Applied, 3)
	assert.True(t, commit.VersionCommitted)

	assert.Equal(t, []model.ID{model.RootID, "a", "b"}, f.privateIDs(f.bob))
	assert.Empty(t, f.dirtyIDs(f.bob))
	a, _, err := f.private.Get(f.bob, f.ec, "a")
	require.NoError(t, err)
	assert.Equal(t, []model.ID{"b"}, a.SubElementIDs)

	st, found, err := f.privateVersion.GetSyncState(f.bob, f.ec)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, st.Dirty)
	assert.True(t, model.SameTime(model.TimePtr(pub.PublishTime), st.PublishTime))

	again, err := f.syncer.Sync(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.True(t, again.UpToDate)
}

func TestSync_StagesOnlyNewerChanges(t *testing.T) {
	f := sharedTree(t)

	f.rename(f.alice, "b", "b2")
	f.publish(f.alice, "rename b")

	res := f.syncAll(f.bob)
	assert.Equal(t, []ElementChange{change("b", model.ActionUpdate)}, res.Changes)
	assert.Equal(t, "b2", f.name(f.bob, "b"))
	assert.Empty(t, f.dirtyIDs(f.bob))

	ids, err := f.stage.ListIDs(f.bob, f.ec)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSync_RemoteCreateAndDelete(t *testing.T) {
	f := sharedTree(t)

	f.add(f.alice, "c", model.RootID, "c")
	f.remove(f.alice, "b")
	f.publish(f.alice, "add c drop b")

	res := f.syncAll(f.bob)
	assert.False(t, res.Conflicted)
	assert.Contains(t, res.Changes, change("c", model.ActionCreate))
	assert.Contains(t, res.Changes, change("b", model.ActionDelete))

	assert.Equal(t, []model.ID{model.RootID, "a", "c"}, f.privateIDs(f.bob))
	root, _, err := f.private.Get(f.bob, f.ec, model.RootID)
	require.NoError(t, err)
	assert.Equal(t, []model.ID{"a", "c"}, root.SubElementIDs)
	a, _, err := f.private.Get(f.bob, f.ec, "a")
	require.NoError(t, err)
	assert.Empty(t, a.SubElementIDs)
}

func TestSync_ConcurrentEditConflicts(t *testing.T) {
	f := sharedTree(t)

	f.rename(f.alice, "a", "by alice")
	f.publish(f.alice, "alice")
	f.rename(f.bob, "a", "by bob")

	res, err := f.syncer.Sync(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.True(t, res.Conflicted)
	assert.Equal(t, []ElementChange{{ID: "a", Action: model.ActionUpdate, Conflicted: true}}, res.Changes)

	commit, err := f.committer.Commit(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.Equal(t, 1, commit.Conflicted)
	assert.False(t, commit.VersionCommitted, "the version stays staged while conflicts remain")
	assert.Equal(t, "by bob", f.name(f.bob, "a"))

	conflicted, err := f.stage.ListConflictedDescriptors(f.bob, f.ec)
	require.NoError(t, err)
	require.Len(t, conflicted, 1)
	assert.Equal(t, "by alice", conflicted[0].Entity.Info.Name)
}

func TestSync_ResolveYoursKeepsLocalContent(t *testing.T) {
	f := sharedTree(t)

	f.rename(f.alice, "a", "by alice")
	f.publish(f.alice, "alice")
	f.rename(f.bob, "a", "by bob")
	f.syncAll(f.bob)

	require.NoError(t, f.stage.ResolveConflict(f.bob, f.ec, "a", model.ResolutionYours))
	commit, err := f.committer.Commit(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.Equal(t, []ElementChange{change("a", model.ActionIgnore)}, commit.Applied)
	assert.True(t, commit.VersionCommitted)

	assert.Equal(t, "by bob", f.name(f.bob, "a"))
	assert.Equal(t, []model.ID{"a"}, f.dirtyIDs(f.bob))

	// bob is in sync again and his content wins the next publish
	res := f.publish(f.bob, "bob")
	assert.Equal(t, []ElementChange{change("a", model.ActionUpdate)}, res.Changes)
	head, _, err := f.public.Get(f.bob, f.ec, "a")
	require.NoError(t, err)
	assert.Equal(t, "by bob", head.Info.Name)
}

func TestSync_ResolveTheirsTakesPublicContent(t *testing.T) {
	f := sharedTree(t)

	f.rename(f.alice, "a", "by alice")
	f.publish(f.alice, "alice")
	f.rename(f.bob, "a", "by bob")
	f.syncAll(f.bob)

	require.NoError(t, f.stage.ResolveConflict(f.bob, f.ec, "a", model.ResolutionTheirs))
	_, err := f.committer.Commit(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)

	assert.Equal(t, "by alice", f.name(f.bob, "a"))
	assert.Empty(t, f.dirtyIDs(f.bob))
	res := f.publish(f.bob, "nothing")
	assert.False(t, res.Published())
}

func TestSync_SameContentIsNotAConflict(t *testing.T) {
	f := sharedTree(t)

	f.rename(f.alice, "a", "same")
	f.publish(f.alice, "alice")
	f.rename(f.bob, "a", "same")

	res := f.syncAll(f.bob)
	assert.False(t, res.Conflicted)
	assert.Equal(t, []ElementChange{change("a", model.ActionUpdate)}, res.Changes)
	assert.Empty(t, f.dirtyIDs(f.bob))
}

func TestSync_LocalDeleteAgainstRemoteUpdateConflicts(t *testing.T) {
	f := sharedTree(t)

	f.rename(f.alice, "b", "b2")
	f.publish(f.alice, "alice")
	f.remove(f.bob, "b")

	res, err := f.syncer.Sync(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.True(t, res.Conflicted)
	assert.Equal(t, []ElementChange{{ID: "b", Action: model.ActionCreate, Conflicted: true}}, res.Changes)
}

func TestSync_ConflictedDeleteCarriesDependents(t *testing.T) {
	f := sharedTree(t)

	f.remove(f.alice, "a")
	f.publish(f.alice, "drop a")
	f.rename(f.bob, "a", "kept by bob")

	res, err := f.syncer.Sync(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.True(t, res.Conflicted)
	assert.Contains(t, res.Changes, ElementChange{ID: "a", Action: model.ActionDelete, Conflicted: true})
	assert.Contains(t, res.Changes, ElementChange{ID: "b", Action: model.ActionDelete, Conflicted: true})

	a, found, err := f.stage.Get(f.bob, f.ec, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []model.ID{"b"}, a.ConflictDependents)

	require.NoError(t, f.stage.ResolveConflict(f.bob, f.ec, "a", model.ResolutionTheirs))
	hasConflicts, err := f.stage.HasConflicts(f.bob, f.ec)
	require.NoError(t, err)
	assert.False(t, hasConflicts, "resolving the delete resolves its dependents")

	commit, err := f.committer.Commit(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.True(t, commit.VersionCommitted)
	assert.Equal(t, []model.ID{model.RootID}, f.privateIDs(f.bob))
	assert.Empty(t, f.dirtyIDs(f.bob))
}

func TestSync_ConflictedDeleteResolvedYoursRepublishes(t *testing.T) {
	f := sharedTree(t)

	f.remove(f.alice, "a")
	f.publish(f.alice, "drop a")
	f.rename(f.bob, "a", "kept by bob")
	f.syncAll(f.bob)

	require.NoError(t, f.stage.ResolveConflict(f.bob, f.ec, "a", model.ResolutionYours))
	_, err := f.committer.Commit(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.Equal(t, []model.ID{model.RootID, "a", "b"}, f.privateIDs(f.bob))

	res := f.publish(f.bob, "restore a")
	assert.Equal(t, []ElementChange{
		change("a", model.ActionCreate),
		change("b", model.ActionCreate),
	}, res.Changes)

	head, err := f.public.ListIDs(f.bob, f.ec)
	require.NoError(t, err)
	assert.Contains(t, head, model.ID("a"))
	assert.Contains(t, head, model.ID("b"))
}

// bobWorksUnderDeletedA has alice delete a published subtree while bob adds
// an unpublished element below its clean top.
func bobWorksUnderDeletedA(t *testing.T) *fixture {
	f := sharedTree(t)
	f.remove(f.alice, "a")
	f.publish(f.alice, "drop a")
	f.add(f.bob, "mine", "a", "mine")
	return f
}

func TestSync_RemoteDeleteOverLocalWorkBelowConflicts(t *testing.T) {
	f := bobWorksUnderDeletedA(t)

	res := f.syncAll(f.bob)
	assert.True(t, res.Conflicted)
	assert.Contains(t, res.Changes, ElementChange{ID: "a", Action: model.ActionDelete, Conflicted: true})
	assert.Contains(t, res.Changes, ElementChange{ID: "b", Action: model.ActionDelete, Conflicted: true})
	assert.Contains(t, res.Changes, ElementChange{ID: "mine", Action: model.ActionDelete, Conflicted: true})

	a, found, err := f.stage.Get(f.bob, f.ec, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []model.ID{"b", "mine"}, a.ConflictDependents)

	assert.Equal(t, []model.ID{model.RootID, "a", "b", "mine"}, f.privateIDs(f.bob))
	assert.Equal(t, "mine", f.name(f.bob, "mine"))
}

func TestSync_RemoteDeleteOverLocalWorkBelowResolvedYours(t *testing.T) {
	f := bobWorksUnderDeletedA(t)
	f.syncAll(f.bob)

	require.NoError(t, f.stage.ResolveConflict(f.bob, f.ec, "a", model.ResolutionYours))
	commit, err := f.committer.Commit(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.True(t, commit.VersionCommitted)
	assert.Equal(t, []model.ID{model.RootID, "a", "b", "mine"}, f.privateIDs(f.bob))
	assert.Equal(t, []model.ID{"a", "b", "mine"}, f.dirtyIDs(f.bob))

	res := f.publish(f.bob, "keep a")
	assert.Equal(t, []ElementChange{
		change("a", model.ActionCreate),
		change("b", model.ActionCreate),
		change("mine", model.ActionCreate),
	}, res.Changes)
}

func TestSync_RemoteDeleteOverLocalWorkBelowResolvedTheirs(t *testing.T) {
	f := bobWorksUnderDeletedA(t)
	f.syncAll(f.bob)

	require.NoError(t, f.stage.ResolveConflict(f.bob, f.ec, "a", model.ResolutionTheirs))
	commit, err := f.committer.Commit(f.bob, f.ec.ItemID, f.ec.VersionID)
	require.NoError(t, err)
	assert.True(t, commit.VersionCommitted)
	assert.Equal(t, []model.ID{model.RootID}, f.privateIDs(f.bob))
	assert.Empty(t, f.dirtyIDs(f.bob))
}

func TestSync_RemoteDeleteOfCleanSubtreeIsNotAConflict(t *testing.T) {
	f := sharedTree(t)
	f.remove(f.alice, "a")
	f.publish(f.alice, "drop a")

	res := f.syncAll(f.bob)
	assert.False(t, res.Conflicted)
	assert.Equal(t, []model.ID{model.RootID}, f.privateIDs(f.bob))
}

func TestSync_LocalOnlyElementsAreNeverStaged(t *testing.T) {
	f := sharedTree(t)

	f.add(f.bob, "mine", model.RootID, "mine")
	f.rename(f.alice, "b", "b2")
	f.publish(f.alice, "alice")

	res := f.syncAll(f.bob)
	assert.Equal(t, []ElementChange{change("b", model.ActionUpdate)}, res.Changes)
	assert.Equal(t, "mine", f.name(f.bob, "mine"))
	assert.Equal(t, []model.ID{"mine"}, f.dirtyIDs(f.bob))

	st, _, err := f.privateVersion.GetSyncState(f.bob, f.ec)
	require.NoError(t, err)
	assert.True(t, st.Dirty, "a version with local changes stays dirty after commit")
}
