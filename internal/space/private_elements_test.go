package space

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treesync/internal/model"
)

func TestPrivateElements_CreateMarksDirty(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.private.Create(f.ctx, f.ec, element(model.RootID, "", "root")))
	require.NoError(t, f.private.Create(f.ctx, f.ec, element("a", model.RootID, "a")))

	st, found, err := f.private.GetSyncState(f.ctx, f.ec, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, st.Dirty)
	assert.Nil(t, st.PublishTime)

	subs, err := f.private.ListSubs(f.ctx, f.ec, "")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, model.ID("a"), subs[0].ID)
	assert.Equal(t, model.MustElementHash(element("a", model.RootID, "a")), subs[0].Hash)
}

func TestPrivateElements_UpdateHashGuard(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.private.Create(f.ctx, f.ec, element("a", "", "a")))
	require.NoError(t, f.private.MarkAsPublished(f.ctx, f.ec, "a", at(10)))

	changed, err := f.private.Update(f.ctx, f.ec, element("a", "", "a"))
	require.NoError(t, err)
	assert.False(t, changed, "same content must not be written")

	st, _, err := f.private.GetSyncState(f.ctx, f.ec, "a")
	require.NoError(t, err)
	assert.False(t, st.Dirty, "hash guard keeps the element clean")

	changed, err = f.private.Update(f.ctx, f.ec, element("a", "", "renamed"))
	require.NoError(t, err)
	assert.True(t, changed)

	st, _, err = f.private.GetSyncState(f.ctx, f.ec, "a")
	require.NoError(t, err)
	assert.True(t, st.Dirty)
	assert.True(t, model.SameTime(model.TimePtr(at(10)), st.PublishTime))

	got, _, err := f.private.Get(f.ctx, f.ec, "a")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Info.Name)
}

func TestPrivateElements_DeleteCascade(t *testing.T) {
	f := newFixture(t)

	// root -> a -> b -> c, where a and b were published and c was not.
	require.NoError(t, f.private.Create(f.ctx, f.ec, element(model.RootID, "", "root")))
	require.NoError(t, f.private.Create(f.ctx, f.ec, element("a", model.RootID, "a")))
	require.NoError(t, f.private.Create(f.ctx, f.ec, element("b", "a", "b")))
	require.NoError(t, f.private.Create(f.ctx, f.ec, element("c", "b", "c")))
	for _, id := range []model.ID{model.RootID, "a", "b"} {
		require.NoError(t, f.private.MarkAsPublished(f.ctx, f.ec, id, at(5)))
	}

	a, _, err := f.private.Get(f.ctx, f.ec, "a")
	require.NoError(t, err)
	require.NoError(t, f.private.Delete(f.ctx, f.ec, a))

	ids, err := f.private.ListIDs(f.ctx, f.ec)
	require.NoError(t, err)
	assert.Equal(t, map[model.ID]model.ID{model.RootID: model.ZeroID}, ids)

	root, _, err := f.private.Get(f.ctx, f.ec, model.RootID)
	require.NoError(t, err)
	assert.Empty(t, root.SubElementIDs)

	for _, id := range []model.ID{"a", "b"} {
		st, found, err := f.private.GetSyncState(f.ctx, f.ec, id)
		require.NoError(t, err)
		require.True(t, found, "published %s keeps its state", id)
		assert.True(t, st.Dirty)
	}
	_, found, err := f.private.GetSyncState(f.ctx, f.ec, "c")
	require.NoError(t, err)
	assert.False(t, found, "never published element loses its state")
}

func TestPrivateElements_DeleteMissingIsNoop(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.private.Delete(f.ctx, f.ec, element("ghost", "", "")))
}

func TestPrivateElements_ListSubsMissingChild(t *testing.T) {
	f := newFixture(t)

	parent := element("p", "", "p")
	parent.SubElementIDs = []model.ID{"ghost"}
	require.NoError(t, f.private.Create(f.ctx, f.ec, parent))

	_, err := f.private.ListSubs(f.ctx, f.ec, "p")
	require.Error(t, err)
	assert.True(t, model.IsInternal(err))
	assert.Equal(t, model.CodeSubElementMissing, model.CodeOf(err))
}

func TestPrivateElements_CommitStaged(t *testing.T) {
	f := newFixture(t)
	pt := model.TimePtr(at(20))

	require.NoError(t, f.private.Create(f.ctx, f.ec, element("p", "", "p")))
	require.NoError(t, f.private.CommitStagedCreate(f.ctx, f.ec, element("c", "p", "c").WithHash(), pt))

	st, _, err := f.private.GetSyncState(f.ctx, f.ec, "c")
	require.NoError(t, err)
	assert.False(t, st.Dirty)
	assert.True(t, model.SameTime(pt, st.PublishTime))

	require.NoError(t, f.private.CommitStagedUpdate(f.ctx, f.ec, element("c", "p", "c2").WithHash(), pt))
	c, _, err := f.private.Get(f.ctx, f.ec, "c")
	require.NoError(t, err)
	assert.Equal(t, "c2", c.Info.Name)

	require.NoError(t, f.private.CommitStagedIgnore(f.ctx, f.ec, "p", pt))
	st, _, err = f.private.GetSyncState(f.ctx, f.ec, "p")
	require.NoError(t, err)
	assert.True(t, st.Dirty)
	assert.True(t, model.SameTime(pt, st.PublishTime))

	require.NoError(t, f.private.CommitStagedDelete(f.ctx, f.ec, model.NewElement("p")))
	ids, err := f.private.ListIDs(f.ctx, f.ec)
	require.NoError(t, err)
	assert.Empty(t, ids, "staged delete removes the subtree")
	states, err := f.private.ListSyncStates(f.ctx, f.ec)
	require.NoError(t, err)
	assert.Empty(t, states)

	// Absent element: no-op.
	assert.NoError(t, f.private.CommitStagedDelete(f.ctx, f.ec, model.NewElement("p")))
}

func TestPrivateElements_CleanAll(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.private.Create(f.ctx, f.ec, element("a", "", "a")))
	require.NoError(t, f.private.CleanAll(f.ctx, f.ec))

	ids, err := f.private.ListIDs(f.ctx, f.ec)
	require.NoError(t, err)
	assert.Empty(t, ids)
	states, err := f.private.ListSyncStates(f.ctx, f.ec)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestPrivateElements_PerUserSpaces(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.private.Create(f.ctx, f.ec, element("a", "", "a")))

	bob := model.WithSession(f.ctx, model.Session{UserID: "bob"})
	_, found, err := f.private.Get(bob, f.ec, "a")
	require.NoError(t, err)
	assert.False(t, found, "private spaces are per user")
}
