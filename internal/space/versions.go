package space

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/treesync/internal/model"
)

// PrivateVersions is the version store of the user's working copy.
type PrivateVersions struct {
	tree
}

// NewPrivateVersions creates the private version store.
func NewPrivateVersions(repos Repositories) *PrivateVersions {
	return &PrivateVersions{tree{space: model.SpacePrivate, repos: repos}}
}

// List returns the private versions of an item ordered by id.
func (s *PrivateVersions) List(ctx context.Context, itemID model.ID) ([]model.Version, error) {
	return s.repos.Versions.List(ctx, model.SessionFrom(ctx).SpaceName(model.SpacePrivate), itemID)
}

// Get returns the private version of ec.
func (s *PrivateVersions) Get(ctx context.Context, ec model.ElementContext) (model.Version, bool, error) {
	return s.repos.Versions.Get(ctx, s.scope(ctx, ec))
}

// GetSyncState returns the synchronization state of the private version.
func (s *PrivateVersions) GetSyncState(ctx context.Context, ec model.ElementContext) (model.SyncState, bool, error) {
	return s.repos.VersionStates.Get(ctx, s.scope(ctx, ec))
}

// Create stores a new version, dirty and never published.
func (s *PrivateVersions) Create(ctx context.Context, ec model.ElementContext, v model.Version) error {
	scope := s.scope(ctx, ec)
	if err := s.repos.Versions.Create(ctx, scope, v); err != nil {
		return err
	}
	return s.repos.VersionStates.Create(ctx, scope, model.SyncState{ID: v.ID, Dirty: true})
}

// Update stores the modification time and marks the version dirty.
func (s *PrivateVersions) Update(ctx context.Context, ec model.ElementContext, v model.Version) error {
	scope := s.scope(ctx, ec)
	if err := s.repos.Versions.Update(ctx, scope, v); err != nil {
		return err
	}
	st, _, err := s.repos.VersionStates.Get(ctx, scope)
	if err != nil {
		return err
	}
	st.ID = v.ID
	st.Dirty = true
	return s.repos.VersionStates.Create(ctx, scope, st)
}

// Delete removes the version row and its state.
func (s *PrivateVersions) Delete(ctx context.Context, ec model.ElementContext) error {
	scope := s.scope(ctx, ec)
	if err := s.repos.Versions.Delete(ctx, scope); err != nil {
		return err
	}
	return s.repos.VersionStates.Delete(ctx, scope)
}

// MarkAsPublished records that the version was published at publishTime.
func (s *PrivateVersions) MarkAsPublished(ctx context.Context, ec model.ElementContext, publishTime time.Time) error {
	return s.repos.VersionStates.UpdatePublishTime(ctx, s.scope(ctx, ec), publishTime, false)
}

// CommitStagedCreate stores a version that arrived from public, clean.
func (s *PrivateVersions) CommitStagedCreate(ctx context.Context, ec model.ElementContext, v model.Version, publishTime *time.Time) error {
	scope := s.scope(ctx, ec)
	if err := s.repos.Versions.Create(ctx, scope, v); err != nil {
		return err
	}
	return s.repos.VersionStates.Create(ctx, scope, model.SyncState{ID: v.ID, PublishTime: publishTime})
}

// CommitStagedUpdate adopts the staged publish time. dirty tells whether
// local element changes survive the commit.
func (s *PrivateVersions) CommitStagedUpdate(ctx context.Context, ec model.ElementContext, v model.Version, publishTime *time.Time, dirty bool) error {
	scope := s.scope(ctx, ec)
	_, found, err := s.repos.Versions.Get(ctx, scope)
	if err != nil {
		return fmt.Errorf("commit staged version %s: %w", v.ID, err)
	}
	if found {
		err = s.repos.Versions.Update(ctx, scope, v)
	} else {
		err = s.repos.Versions.Create(ctx, scope, v)
	}
	if err != nil {
		return err
	}
	return s.repos.VersionStates.Create(ctx, scope, model.SyncState{ID: v.ID, PublishTime: publishTime, Dirty: dirty})
}

// CommitStagedIgnore adopts the staged publish time but keeps the version dirty.
func (s *PrivateVersions) CommitStagedIgnore(ctx context.Context, ec model.ElementContext, v model.Version, publishTime *time.Time) error {
	return s.repos.VersionStates.Create(ctx, s.scope(ctx, ec), model.SyncState{ID: v.ID, PublishTime: publishTime, Dirty: true})
}

// PublicVersions is the shared version store; each state row is a revision.
type PublicVersions struct {
	tree
}

// NewPublicVersions creates the public version store.
func NewPublicVersions(repos Repositories) *PublicVersions {
	return &PublicVersions{tree{space: model.SpacePublic, repos: repos}}
}

// List returns the public versions of an item ordered by id.
func (s *PublicVersions) List(ctx context.Context, itemID model.ID) ([]model.Version, error) {
	return s.repos.Versions.List(ctx, model.SessionFrom(ctx).SpaceName(model.SpacePublic), itemID)
}

// Get returns the public version row.
func (s *PublicVersions) Get(ctx context.Context, ec model.ElementContext) (model.Version, bool, error) {
	return s.repos.Versions.Get(ctx, s.scope(ctx, ec))
}

// GetSyncState returns the state of ec.RevisionID, or of the head revision
// when it is empty.
func (s *PublicVersions) GetSyncState(ctx context.Context, ec model.ElementContext) (model.SyncState, bool, error) {
	return s.repos.VersionStates.Get(ctx, s.scope(ctx, ec))
}

// ListSyncStates returns every revision state, newest first.
func (s *PublicVersions) ListSyncStates(ctx context.Context, ec model.ElementContext) ([]model.SyncState, error) {
	return s.repos.VersionStates.List(ctx, s.scope(ctx, ec.AtRevision("")))
}

// ListRevisions returns the revision history, newest first.
func (s *PublicVersions) ListRevisions(ctx context.Context, ec model.ElementContext) ([]model.Revision, error) {
	states, err := s.ListSyncStates(ctx, ec)
	if err != nil {
		return nil, err
	}
	revisions := make([]model.Revision, 0, len(states))
	for _, st := range states {
		rev := model.Revision{ID: st.RevisionID, Message: st.Message, User: st.User}
		if st.PublishTime != nil {
			rev.Time = *st.PublishTime
		}
		revisions = append(revisions, rev)
	}
	return revisions, nil
}

// FindRevision returns the revision published at publishTime.
func (s *PublicVersions) FindRevision(ctx context.Context, ec model.ElementContext, publishTime time.Time) (model.SyncState, bool, error) {
	states, err := s.ListSyncStates(ctx, ec)
	if err != nil {
		return model.SyncState{}, false, err
	}
	for _, st := range states {
		if model.SameTime(st.PublishTime, &publishTime) {
			return st, true, nil
		}
	}
	return model.SyncState{}, false, nil
}

// Create records the first revision of a version.
func (s *PublicVersions) Create(ctx context.Context, ec model.ElementContext, v model.Version, rev PublishedRevision) error {
	scope := s.scope(ctx, ec)
	if err := s.repos.Versions.Create(ctx, scope, v); err != nil {
		return err
	}
	return s.record(ctx, scope, v, rev)
}

// Update records a further revision of a version.
func (s *PublicVersions) Update(ctx context.Context, ec model.ElementContext, v model.Version, rev PublishedRevision) error {
	scope := s.scope(ctx, ec)
	if err := s.repos.Versions.Update(ctx, scope, v); err != nil {
		return err
	}
	return s.record(ctx, scope, v, rev)
}

func (s *PublicVersions) record(ctx context.Context, scope model.Scope, v model.Version, rev PublishedRevision) error {
	if err := s.repos.Versions.CreateVersionElements(ctx, scope, rev.Elements); err != nil {
		return err
	}
	return s.repos.VersionStates.Create(ctx, scope, model.SyncState{
		ID:          v.ID,
		RevisionID:  scope.RevisionID,
		PublishTime: model.TimePtr(rev.PublishTime),
		Message:     rev.Message,
		User:        rev.User,
	})
}

// Delete removes the version row, its revision maps and every revision state.
func (s *PublicVersions) Delete(ctx context.Context, ec model.ElementContext) error {
	scope := s.scope(ctx, ec)
	if err := s.repos.Versions.Delete(ctx, scope); err != nil {
		return err
	}
	return s.repos.VersionStates.Delete(ctx, scope)
}

// CheckHealth reports whether the underlying storage is reachable.
func (s *PublicVersions) CheckHealth(ctx context.Context) error {
	return s.repos.Versions.CheckHealth(ctx)
}

// PublishedRevision describes one public revision being recorded.
type PublishedRevision struct {
	PublishTime time.Time
	Message     string
	User        string
	Elements    map[model.ID]model.ID
}

// StageVersions holds the staged version of each item version.
type StageVersions struct {
	tree
}

// NewStageVersions creates the stage version store.
func NewStageVersions(repos Repositories) *StageVersions {
	return &StageVersions{tree{space: model.SpaceStage, repos: repos}}
}

// Get returns the staged version.
func (s *StageVersions) Get(ctx context.Context, ec model.ElementContext) (model.StageEntity[model.Version], bool, error) {
	return s.repos.VersionStage.Get(ctx, s.scope(ctx, ec))
}

// Create stages the version.
func (s *StageVersions) Create(ctx context.Context, ec model.ElementContext, staged model.StageEntity[model.Version]) error {
	return s.repos.VersionStage.Create(ctx, s.scope(ctx, ec), staged)
}

// Delete removes the staged version.
func (s *StageVersions) Delete(ctx context.Context, ec model.ElementContext) error {
	return s.repos.VersionStage.Delete(ctx, s.scope(ctx, ec))
}
