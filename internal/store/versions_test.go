package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/treesync/internal/model"
)

func TestVersions_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := createTestStore(t).Versions()
	scope := privateScope()

	created := time.Unix(10, 5).UTC()
	v := model.Version{ID: "v1", BaseID: "v0", CreationTime: created, ModificationTime: created}
	require.NoError(t, repo.Create(ctx, scope, v))
	require.NoError(t, repo.Create(ctx, scope.AtRevision(model.ZeroID), model.Version{ID: "v0", CreationTime: created, ModificationTime: created}))

	got, found, err := repo.Get(ctx, scope)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.ID("v0"), got.BaseID)
	assert.True(t, created.Equal(got.CreationTime))

	modified := created.Add(time.Hour)
	v.ModificationTime = modified
	require.NoError(t, repo.Update(ctx, scope, v))
	got, _, err = repo.Get(ctx, scope)
	require.NoError(t, err)
	assert.True(t, modified.Equal(got.ModificationTime))
	assert.True(t, created.Equal(got.CreationTime))

	versions, err := repo.List(ctx, scope.Space, scope.ItemID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, model.ID("v0"), versions[0].ID)
	assert.Equal(t, model.ID("v1"), versions[1].ID)

	require.NoError(t, repo.Delete(ctx, scope))
	_, found, err = repo.Get(ctx, scope)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestVersions_VersionElements(t *testing.T) {
	ctx := context.Background()
	repo := createTestStore(t).Versions()

	_, found, err := repo.GetVersionElements(ctx, publicScope("rev-1"))
	require.NoError(t, err)
	assert.False(t, found)

	m := map[model.ID]model.ID{"a": "rev-1", "b": "rev-0"}
	require.NoError(t, repo.CreateVersionElements(ctx, publicScope("rev-1"), m))

	got, found, err := repo.GetVersionElements(ctx, publicScope("rev-1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, m, got)

	require.NoError(t, repo.Delete(ctx, publicScope("")))
	_, found, err = repo.GetVersionElements(ctx, publicScope("rev-1"))
	require.NoError(t, err)
	assert.False(t, found)
}
