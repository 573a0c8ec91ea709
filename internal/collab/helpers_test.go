package collab

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/treesync/internal/model"
	"github.com/roach88/treesync/internal/space"
	"github.com/roach88/treesync/internal/store"
	"github.com/roach88/treesync/internal/testutil"
)

type fixture struct {
	t     *testing.T
	alice context.Context
	bob   context.Context
	ec    model.ElementContext
	clock *testutil.StepClock
	repos space.Repositories

	private        *space.PrivateElements
	public         *space.PublicElements
	stage          *space.StageElements
	privateVersion *space.PrivateVersions
	publicVersion  *space.PublicVersions
	stageVersion   *space.StageVersions

	publisher *PublishService
	syncer    *SyncService
	committer *CommitService
	discarder *DiscardService
	reverter  *RevertService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "collab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	repos := space.Repositories{
		Elements:      s.Elements(),
		ElementStates: s.ElementStates(),
		Versions:      s.Versions(),
		VersionStates: s.VersionStates(),
		ElementStage:  s.ElementStage(),
		VersionStage:  s.VersionStage(),
	}
	stores := NewStores(repos)
	clock := testutil.NewStepClock(time.Time{}, time.Second)

	return &fixture{
		t:              t,
		alice:          model.WithSession(context.Background(), model.Session{UserID: "alice"}),
		bob:            model.WithSession(context.Background(), model.Session{UserID: "bob"}),
		ec:             model.ElementContext{ItemID: "item", VersionID: "v1"},
		clock:          clock,
		repos:          repos,
		private:        space.NewPrivateElements(repos),
		public:         space.NewPublicElements(repos),
		stage:          space.NewStageElements(repos),
		privateVersion: space.NewPrivateVersions(repos),
		publicVersion:  space.NewPublicVersions(repos),
		stageVersion:   space.NewStageVersions(repos),
		publisher:      NewPublishService(stores, clock, testutil.NewSequenceGenerator("rev"), nil),
		syncer:         NewSyncService(stores, nil),
		committer:      NewCommitService(stores, nil),
		discarder:      NewDiscardService(stores, nil),
		reverter:       NewRevertService(stores, nil),
	}
}

// newVersion creates the private version with its root element in ctx's space.
func (f *fixture) newVersion(ctx context.Context) {
	f.t.Helper()
	now := testutil.DefaultEpoch
	require.NoError(f.t, f.privateVersion.Create(ctx, f.ec,
		model.Version{ID: f.ec.VersionID, CreationTime: now, ModificationTime: now}))
	require.NoError(f.t, f.private.Create(ctx, f.ec, element(model.RootID, "", "root")))
}

// privateScope is the row scope of ctx's private space.
func (f *fixture) privateScope(ctx context.Context) model.Scope {
	return model.Scope{
		Space:      model.SessionFrom(ctx).SpaceName(model.SpacePrivate),
		ItemID:     f.ec.ItemID,
		VersionID:  f.ec.VersionID,
		RevisionID: model.ZeroID,
	}
}

func (f *fixture) add(ctx context.Context, id, parent model.ID, name string) {
	f.t.Helper()
	require.NoError(f.t, f.private.Create(ctx, f.ec, element(id, parent, name)))
}

func (f *fixture) rename(ctx context.Context, id model.ID, name string) {
	f.t.Helper()
	e, found, err := f.private.Get(ctx, f.ec, id)
	require.NoError(f.t, err)
	require.True(f.t, found, "element %s", id)
	e.Info.Name = name
	changed, err := f.private.Update(ctx, f.ec, e)
	require.NoError(f.t, err)
	require.True(f.t, changed)
}

func (f *fixture) remove(ctx context.Context, id model.ID) {
	f.t.Helper()
	e, found, err := f.private.Get(ctx, f.ec, id)
	require.NoError(f.t, err)
	require.True(f.t, found, "element %s", id)
	require.NoError(f.t, f.private.Delete(ctx, f.ec, e))
}

func (f *fixture) publish(ctx context.Context, message string) PublishResult {
	f.t.Helper()
	res, err := f.publisher.Publish(ctx, f.ec.ItemID, f.ec.VersionID, message)
	require.NoError(f.t, err)
	return res
}

// syncAll runs sync followed by a commit of the staging area.
func (f *fixture) syncAll(ctx context.Context) MergeResult {
	f.t.Helper()
	res, err := f.syncer.Sync(ctx, f.ec.ItemID, f.ec.VersionID)
	require.NoError(f.t, err)
	_, err = f.committer.Commit(ctx, f.ec.ItemID, f.ec.VersionID)
	require.NoError(f.t, err)
	return res
}

func (f *fixture) name(ctx context.Context, id model.ID) string {
	f.t.Helper()
	e, found, err := f.private.Get(ctx, f.ec, id)
	require.NoError(f.t, err)
	require.True(f.t, found, "element %s", id)
	return e.Info.Name
}

func (f *fixture) privateIDs(ctx context.Context) []model.ID {
	f.t.Helper()
	m, err := f.private.ListIDs(ctx, f.ec)
	require.NoError(f.t, err)
	return sortedIDs(m)
}

func (f *fixture) dirtyIDs(ctx context.Context) []model.ID {
	f.t.Helper()
	states, err := f.private.ListSyncStates(ctx, f.ec)
	require.NoError(f.t, err)
	var ids []model.ID
	for _, st := range states {
		if st.Dirty {
			ids = append(ids, st.ID)
		}
	}
	return ids
}

func element(id, parent model.ID, name string) model.Element {
	return model.Element{ID: id, ParentID: parent, Info: model.Info{Name: name}}
}

func change(id model.ID, action model.Action) ElementChange {
	return ElementChange{ID: id, Action: action}
}
