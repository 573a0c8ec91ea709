package collab

import (
	"context"
	"time"

	"github.com/roach88/treesync/internal/model"
	"github.com/roach88/treesync/internal/space"
)

type privateElementStore interface {
	ListIDs(ctx context.Context, ec model.ElementContext) (map[model.ID]model.ID, error)
	Get(ctx context.Context, ec model.ElementContext, id model.ID) (model.Element, bool, error)
	GetDescriptor(ctx context.Context, ec model.ElementContext, id model.ID) (model.Element, bool, error)
	ListSubs(ctx context.Context, ec model.ElementContext, parentID model.ID) ([]model.Element, error)
	GetSyncState(ctx context.Context, ec model.ElementContext, id model.ID) (model.SyncState, bool, error)
	ListSyncStates(ctx context.Context, ec model.ElementContext) ([]model.SyncState, error)
	Create(ctx context.Context, ec model.ElementContext, e model.Element) error
	Update(ctx context.Context, ec model.ElementContext, e model.Element) (bool, error)
	Delete(ctx context.Context, ec model.ElementContext, e model.Element) error
	MarkAsPublished(ctx context.Context, ec model.ElementContext, id model.ID, publishTime time.Time) error
	MarkDeletionAsPublished(ctx context.Context, ec model.ElementContext, id model.ID) error
	CommitStagedCreate(ctx context.Context, ec model.ElementContext, e model.Element, publishTime *time.Time) error
	CommitStagedUpdate(ctx context.Context, ec model.ElementContext, e model.Element, publishTime *time.Time) error
	CommitStagedDelete(ctx context.Context, ec model.ElementContext, e model.Element) error
	CommitStagedIgnore(ctx context.Context, ec model.ElementContext, id model.ID, publishTime *time.Time) error
}

type publicElementStore interface {
	ListIDs(ctx context.Context, ec model.ElementContext) (map[model.ID]model.ID, error)
	ListWrittenIDs(ctx context.Context, ec model.ElementContext) ([]model.ID, error)
	Get(ctx context.Context, ec model.ElementContext, id model.ID) (model.Element, bool, error)
	GetSyncState(ctx context.Context, ec model.ElementContext, id model.ID) (model.SyncState, bool, error)
	ListSyncStates(ctx context.Context, ec model.ElementContext) ([]model.SyncState, error)
	Create(ctx context.Context, ec model.ElementContext, e model.Element, publishTime time.Time) error
	Update(ctx context.Context, ec model.ElementContext, e model.Element, publishTime time.Time) error
	Delete(ctx context.Context, ec model.ElementContext, e model.Element, publishTime time.Time) error
}

type stageElementStore interface {
	ListIDs(ctx context.Context, ec model.ElementContext) ([]model.ID, error)
	Get(ctx context.Context, ec model.ElementContext, id model.ID) (model.StageEntity[model.Element], bool, error)
	Create(ctx context.Context, ec model.ElementContext, staged model.StageEntity[model.Element]) error
	Delete(ctx context.Context, ec model.ElementContext, id model.ID) error
}

type privateVersionStore interface {
	Get(ctx context.Context, ec model.ElementContext) (model.Version, bool, error)
	GetSyncState(ctx context.Context, ec model.ElementContext) (model.SyncState, bool, error)
	MarkAsPublished(ctx context.Context, ec model.ElementContext, publishTime time.Time) error
	CommitStagedCreate(ctx context.Context, ec model.ElementContext, v model.Version, publishTime *time.Time) error
	CommitStagedUpdate(ctx context.Context, ec model.ElementContext, v model.Version, publishTime *time.Time, dirty bool) error
	CommitStagedIgnore(ctx context.Context, ec model.ElementContext, v model.Version, publishTime *time.Time) error
}

type publicVersionStore interface {
	Get(ctx context.Context, ec model.ElementContext) (model.Version, bool, error)
	GetSyncState(ctx context.Context, ec model.ElementContext) (model.SyncState, bool, error)
	FindRevision(ctx context.Context, ec model.ElementContext, publishTime time.Time) (model.SyncState, bool, error)
	Create(ctx context.Context, ec model.ElementContext, v model.Version, rev space.PublishedRevision) error
	Update(ctx context.Context, ec model.ElementContext, v model.Version, rev space.PublishedRevision) error
}

type stageVersionStore interface {
	Get(ctx context.Context, ec model.ElementContext) (model.StageEntity[model.Version], bool, error)
	Create(ctx context.Context, ec model.ElementContext, staged model.StageEntity[model.Version]) error
	Delete(ctx context.Context, ec model.ElementContext) error
}

// Stores bundles the space stores the services operate on.
type Stores struct {
	PrivateElements privateElementStore
	PublicElements  publicElementStore
	StageElements   stageElementStore
	PrivateVersions privateVersionStore
	PublicVersions  publicVersionStore
	StageVersions   stageVersionStore
}

// NewStores wires the space stores over one set of repositories.
func NewStores(repos space.Repositories) Stores {
	return Stores{
		PrivateElements: space.NewPrivateElements(repos),
		PublicElements:  space.NewPublicElements(repos),
		StageElements:   space.NewStageElements(repos),
		PrivateVersions: space.NewPrivateVersions(repos),
		PublicVersions:  space.NewPublicVersions(repos),
		StageVersions:   space.NewStageVersions(repos),
	}
}

// ElementChange is one element affected by a service call.
type ElementChange struct {
	ID         model.ID     `json:"id"`
	Action     model.Action `json:"action"`
	Conflicted bool         `json:"conflicted,omitempty"`
}

// findAnchor returns the public revision whose publish time equals the
// private version's publish time: the last revision Private converged with.
func findAnchor(ctx context.Context, versions publicVersionStore, ec model.ElementContext, publishTime time.Time) (model.SyncState, error) {
	anchor, found, err := versions.FindRevision(ctx, ec, publishTime)
	if err != nil {
		return model.SyncState{}, err
	}
	if !found {
		return model.SyncState{}, model.Internal(model.CodePrivateRevisionNotOnPublic,
			"no public revision of version %s was published at %s", ec.VersionID, publishTime.Format(time.RFC3339Nano))
	}
	return anchor, nil
}

// stagedVersion returns the version entity to stage: the public row when
// there is one, else a bare version carrying only its id.
func stagedVersion(ctx context.Context, versions publicVersionStore, ec model.ElementContext) (model.Version, error) {
	v, found, err := versions.Get(ctx, ec)
	if err != nil {
		return model.Version{}, err
	}
	if !found {
		v = model.Version{ID: ec.VersionID}
	}
	return v, nil
}
