package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treesync/internal/model"
)

func TestElementStates_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := createTestStore(t).ElementStates()
	scope := privateScope()

	require.NoError(t, repo.Create(ctx, scope, model.SyncState{ID: "b", Dirty: true}))
	published := time.Unix(0, 1_700_000_000_123_456_789).UTC()
	require.NoError(t, repo.Create(ctx, scope, model.SyncState{ID: "a", PublishTime: &published}))

	states, err := repo.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, model.ID("a"), states[0].ID)
	assert.True(t, model.SameTime(&published, states[0].PublishTime), "nanosecond precision kept")
	assert.False(t, states[0].Dirty)
	assert.Nil(t, states[1].PublishTime)
	assert.True(t, states[1].Dirty)

	require.NoError(t, repo.MarkAsDirty(ctx, scope, "a"))
	st, found, err := repo.Get(ctx, scope, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, st.Dirty)
	assert.Equal(t, model.ZeroID, st.RevisionID)

	require.NoError(t, repo.Update(ctx, scope, model.SyncState{ID: "a", PublishTime: &published}))
	st, _, err = repo.Get(ctx, scope, "a")
	require.NoError(t, err)
	assert.False(t, st.Dirty)

	require.NoError(t, repo.Delete(ctx, scope, "a"))
	_, found, err = repo.Get(ctx, scope, "a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.DeleteAll(ctx, scope))
	states, err = repo.List(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestVersionStates_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := createTestStore(t).VersionStates()

	t1 := time.Unix(100, 0).UTC()
	t2 := time.Unix(200, 0).UTC()
	require.NoError(t, repo.Create(ctx, publicScope("rev-1"),
		model.SyncState{PublishTime: &t1, Message: "first", User: "alice"}))
	require.NoError(t, repo.Create(ctx, publicScope("rev-2"),
		model.SyncState{PublishTime: &t2, Message: "second", User: "bob"}))

	head, found, err := repo.Get(ctx, publicScope(""))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.ID("rev-2"), head.RevisionID)
	assert.Equal(t, model.ID("v1"), head.ID)
	assert.Equal(t, "second", head.Message)
	assert.Equal(t, "bob", head.User)

	first, found, err := repo.Get(ctx, publicScope("rev-1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "first", first.Message)

	states, err := repo.List(ctx, publicScope(""))
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, model.ID("rev-2"), states[0].RevisionID)
	assert.Equal(t, model.ID("rev-1"), states[1].RevisionID)

	require.NoError(t, repo.Delete(ctx, publicScope("")))
	_, found, err = repo.Get(ctx, publicScope(""))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestVersionStates_UpdatePublishTime(t *testing.T) {
	ctx := context.Background()
	repo := createTestStore(t).VersionStates()
	scope := privateScope()

	require.NoError(t, repo.Create(ctx, scope, model.SyncState{Dirty: true}))

	published := time.Unix(300, 0).UTC()
	require.NoError(t, repo.UpdatePublishTime(ctx, scope, published, false))

	st, found, err := repo.Get(ctx, scope)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, st.Dirty)
	assert.True(t, model.SameTime(&published, st.PublishTime))
}
