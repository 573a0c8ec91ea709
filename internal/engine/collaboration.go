package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/treesync/internal/collab"
	"github.com/roach88/treesync/internal/model"
)

// ElementConflict pairs the public and the local side of a conflicted
// element. A side is nil when the element does not exist there.
type ElementConflict struct {
	Remote *model.Element `json:"remote,omitempty"`
	Local  *model.Element `json:"local,omitempty"`
}

// VersionDataConflict is a conflict on the version data.
type VersionDataConflict struct {
	Remote *ItemVersionData `json:"remote,omitempty"`
	Local  *ItemVersionData `json:"local,omitempty"`
}

// ItemVersionConflict lists the conflicts of a version being merged.
type ItemVersionConflict struct {
	VersionData *VersionDataConflict `json:"version_data,omitempty"`
	Elements    []ElementConflict    `json:"elements"`
}

// Publish publishes the private changes of the version as a new revision.
func (e *Engine) Publish(ctx context.Context, itemID, versionID model.ID, message string) (collab.PublishResult, error) {
	if err := validateContext(model.ElementContext{ItemID: itemID, VersionID: versionID}); err != nil {
		return collab.PublishResult{}, err
	}
	return e.publisher.Publish(ctx, itemID, versionID, message)
}

// Sync stages the public changes and commits everything that does not
// conflict. Conflicts stay staged until resolved.
func (e *Engine) Sync(ctx context.Context, itemID, versionID model.ID) (collab.MergeResult, error) {
	if err := validateContext(model.ElementContext{ItemID: itemID, VersionID: versionID}); err != nil {
		return collab.MergeResult{}, err
	}
	result, err := e.syncer.Sync(ctx, itemID, versionID)
	if err != nil {
		return collab.MergeResult{}, err
	}
	if _, err := e.committer.Commit(ctx, itemID, versionID); err != nil {
		return collab.MergeResult{}, err
	}
	return result, nil
}

// ForceSync drops every local change, then syncs.
func (e *Engine) ForceSync(ctx context.Context, itemID, versionID model.ID) (collab.MergeResult, error) {
	if err := validateContext(model.ElementContext{ItemID: itemID, VersionID: versionID}); err != nil {
		return collab.MergeResult{}, err
	}
	if _, err := e.discarder.DiscardChanges(ctx, itemID, versionID); err != nil {
		return collab.MergeResult{}, err
	}
	if _, err := e.committer.Commit(ctx, itemID, versionID); err != nil {
		return collab.MergeResult{}, err
	}
	return e.Sync(ctx, itemID, versionID)
}

// Merge of another version into this one is not supported.
func (e *Engine) Merge(ctx context.Context, itemID, versionID, sourceVersionID model.ID) (collab.MergeResult, error) {
	return collab.MergeResult{}, model.NotSupported("merge")
}

// Reset to a revision is not supported; Revert covers it with dirty changes.
func (e *Engine) Reset(ctx context.Context, itemID, versionID, revisionID model.ID) error {
	return model.NotSupported("reset")
}

// GetRevision is not supported; ListRevisions returns every revision.
func (e *Engine) GetRevision(ctx context.Context, itemID, versionID, revisionID model.ID) (model.Revision, error) {
	return model.Revision{}, model.NotSupported("get revision")
}

// Revert makes Private equal to revisionID. Local changes are dropped by a
// force sync first. The version is touched only when the revert leaves a
// dirty element for the next publish.
func (e *Engine) Revert(ctx context.Context, itemID, versionID, revisionID model.ID) ([]collab.ElementChange, error) {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}
	if err := e.requireRevision(ctx, ec.AtRevision(revisionID)); err != nil {
		return nil, err
	}
	if _, err := e.ForceSync(ctx, itemID, versionID); err != nil {
		return nil, fmt.Errorf("revert: %w", err)
	}

	changes, err := e.reverter.Revert(ctx, itemID, versionID, revisionID)
	if err != nil || len(changes) == 0 {
		return changes, err
	}
	states, err := e.privateElements.ListSyncStates(ctx, ec)
	if err != nil {
		return nil, fmt.Errorf("revert: %w", err)
	}
	if !slices.ContainsFunc(states, func(st model.SyncState) bool { return st.Dirty }) {
		return changes, nil
	}
	v, err := e.requirePrivateVersion(ctx, ec)
	if err != nil {
		return nil, err
	}
	return changes, e.touch(ctx, ec, v)
}

// ListRevisions returns the public history of the version, newest first.
func (e *Engine) ListRevisions(ctx context.Context, itemID, versionID model.ID) ([]model.Revision, error) {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}
	if err := validateContext(ec); err != nil {
		return nil, err
	}
	return e.publicVersions.ListRevisions(ctx, ec)
}

// GetItemVersionConflict lists the staged conflicts of the version. A
// conflict on the root element is reported as a version data conflict.
func (e *Engine) GetItemVersionConflict(ctx context.Context, itemID, versionID model.ID) (ItemVersionConflict, error) {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}
	if err := validateContext(ec); err != nil {
		return ItemVersionConflict{}, err
	}
	staged, err := e.stageElements.ListConflictedDescriptors(ctx, ec)
	if err != nil {
		return ItemVersionConflict{}, fmt.Errorf("version conflict: %w", err)
	}

	result := ItemVersionConflict{Elements: []ElementConflict{}}
	for _, s := range staged {
		conflict, err := e.conflict(ctx, ec, s, true)
		if err != nil {
			return ItemVersionConflict{}, err
		}
		if s.Entity.ID != model.RootID {
			result.Elements = append(result.Elements, conflict)
			continue
		}
		data := &VersionDataConflict{}
		if conflict.Remote != nil {
			remote := versionData(*conflict.Remote)
			data.Remote = &remote
		}
		if conflict.Local != nil {
			local := versionData(*conflict.Local)
			data.Local = &local
		}
		result.VersionData = data
	}
	return result, nil
}

// GetElementConflict returns the conflict of one element, or nil when the
// element is not conflicted.
func (e *Engine) GetElementConflict(ctx context.Context, ec model.ElementContext, id model.ID) (*ElementConflict, error) {
	if err := validateContext(ec); err != nil {
		return nil, err
	}
	staged, found, err := e.stageElements.GetConflicted(ctx, ec, id)
	if err != nil {
		return nil, fmt.Errorf("element conflict: %w", err)
	}
	if !found {
		return nil, nil
	}
	conflict, err := e.conflict(ctx, ec, staged, false)
	if err != nil {
		return nil, err
	}
	return &conflict, nil
}

// conflict builds both sides of a staged conflict. For CREATE only the
// remote side exists, for DELETE only the local side; an UPDATE may lack the
// local side when Private deleted the element.
func (e *Engine) conflict(ctx context.Context, ec model.ElementContext, staged model.StageEntity[model.Element], descriptors bool) (ElementConflict, error) {
	entity := staged.Entity
	if descriptors {
		entity = entity.Descriptor()
	}

	var conflict ElementConflict
	switch staged.Action {
	case model.ActionCreate:
		conflict.Remote = &entity
	case model.ActionUpdate:
		conflict.Remote = &entity
		get := e.privateElements.Get
		if descriptors {
			get = e.privateElements.GetDescriptor
		}
		local, found, err := get(ctx, ec, entity.ID)
		if err != nil {
			return ElementConflict{}, fmt.Errorf("element conflict %s: %w", entity.ID, err)
		}
		if found {
			conflict.Local = &local
		}
	case model.ActionDelete:
		conflict.Local = &entity
	}
	return conflict, nil
}

// ResolveElementConflict settles a conflict and commits whatever the
// resolution unblocked.
func (e *Engine) ResolveElementConflict(ctx context.Context, ec model.ElementContext, id model.ID, resolution model.Resolution) (collab.CommitResult, error) {
	if err := validateContext(ec); err != nil {
		return collab.CommitResult{}, err
	}
	if err := e.stageElements.ResolveConflict(ctx, ec, id, resolution); err != nil {
		return collab.CommitResult{}, err
	}
	return e.committer.Commit(ctx, ec.ItemID, ec.VersionID)
}
