package space

import (
	"context"
	"time"

	"github.com/roach88/treesync/internal/model"
)

// ElementRepository stores element rows.
type ElementRepository interface {
	ListIDs(ctx context.Context, scope model.Scope) (map[model.ID]model.ID, error)
	Get(ctx context.Context, scope model.Scope, id model.ID) (model.Element, bool, error)
	GetDescriptor(ctx context.Context, scope model.Scope, id model.ID) (model.Element, bool, error)
	GetHash(ctx context.Context, scope model.Scope, id model.ID) (string, bool, error)
	Create(ctx context.Context, scope model.Scope, e model.Element) error
	Update(ctx context.Context, scope model.Scope, e model.Element) error
	Delete(ctx context.Context, scope model.Scope, e model.Element) error
	CleanAllRevisions(ctx context.Context, scope model.Scope) error
	CreateNamespace(ctx context.Context, scope model.Scope, id model.ID, namespace string) error
}

// ElementSyncStateRepository stores element synchronization states.
type ElementSyncStateRepository interface {
	Create(ctx context.Context, scope model.Scope, st model.SyncState) error
	Update(ctx context.Context, scope model.Scope, st model.SyncState) error
	MarkAsDirty(ctx context.Context, scope model.Scope, id model.ID) error
	Delete(ctx context.Context, scope model.Scope, id model.ID) error
	DeleteAll(ctx context.Context, scope model.Scope) error
	Get(ctx context.Context, scope model.Scope, id model.ID) (model.SyncState, bool, error)
	List(ctx context.Context, scope model.Scope) ([]model.SyncState, error)
}

// VersionRepository stores version rows and public revision element maps.
type VersionRepository interface {
	List(ctx context.Context, space string, itemID model.ID) ([]model.Version, error)
	Get(ctx context.Context, scope model.Scope) (model.Version, bool, error)
	Create(ctx context.Context, scope model.Scope, v model.Version) error
	Update(ctx context.Context, scope model.Scope, v model.Version) error
	Delete(ctx context.Context, scope model.Scope) error
	CreateVersionElements(ctx context.Context, scope model.Scope, elements map[model.ID]model.ID) error
	GetVersionElements(ctx context.Context, scope model.Scope) (map[model.ID]model.ID, bool, error)
	CheckHealth(ctx context.Context) error
}

// VersionSyncStateRepository stores version synchronization states.
type VersionSyncStateRepository interface {
	Create(ctx context.Context, scope model.Scope, st model.SyncState) error
	UpdatePublishTime(ctx context.Context, scope model.Scope, publishTime time.Time, dirty bool) error
	Delete(ctx context.Context, scope model.Scope) error
	Get(ctx context.Context, scope model.Scope) (model.SyncState, bool, error)
	List(ctx context.Context, scope model.Scope) ([]model.SyncState, error)
}

// ElementStageRepository stores staged elements.
type ElementStageRepository interface {
	ListIDs(ctx context.Context, scope model.Scope) ([]model.ID, error)
	ListConflictedIDs(ctx context.Context, scope model.Scope) ([]model.ID, error)
	Get(ctx context.Context, scope model.Scope, id model.ID) (model.StageEntity[model.Element], bool, error)
	GetDescriptor(ctx context.Context, scope model.Scope, id model.ID) (model.StageEntity[model.Element], bool, error)
	Create(ctx context.Context, scope model.Scope, staged model.StageEntity[model.Element]) error
	MarkAsNotConflicted(ctx context.Context, scope model.Scope, id model.ID, action *model.Action) error
	Delete(ctx context.Context, scope model.Scope, id model.ID) error
	DeleteAll(ctx context.Context, scope model.Scope) error
}

// VersionStageRepository stores the staged version.
type VersionStageRepository interface {
	Get(ctx context.Context, scope model.Scope) (model.StageEntity[model.Version], bool, error)
	Create(ctx context.Context, scope model.Scope, staged model.StageEntity[model.Version]) error
	Delete(ctx context.Context, scope model.Scope) error
}

// Repositories bundles every repository the stores need.
type Repositories struct {
	Elements      ElementRepository
	ElementStates ElementSyncStateRepository
	Versions      VersionRepository
	VersionStates VersionSyncStateRepository
	ElementStage  ElementStageRepository
	VersionStage  VersionStageRepository
}
