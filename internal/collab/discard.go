package collab

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/treesync/internal/model"
)

// DiscardService stages whatever brings Private back to the public revision
// it last converged with.
type DiscardService struct {
	stores Stores
	logger *slog.Logger
}

// NewDiscardService creates a discard service. A nil logger means slog.Default().
func NewDiscardService(stores Stores, logger *slog.Logger) *DiscardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscardService{stores: stores, logger: logger}
}

// DiscardChanges stages, for every dirty private element, the content it had
// at the anchor revision: an UPDATE or CREATE when the anchor has it, else a
// DELETE. A version that was never published cannot be discarded.
func (s *DiscardService) DiscardChanges(ctx context.Context, itemID, versionID model.ID) (MergeResult, error) {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}

	versionState, found, err := s.stores.PrivateVersions.GetSyncState(ctx, ec)
	if err != nil {
		return MergeResult{}, fmt.Errorf("discard changes: %w", err)
	}
	if !found {
		return MergeResult{UpToDate: true}, nil
	}
	if versionState.PublishTime == nil {
		return MergeResult{}, model.InvalidOperation(model.CodeDiscardUnpublishedVersion,
			"item %s version %s was never published, its changes cannot be discarded", itemID, versionID)
	}

	anchor, err := findAnchor(ctx, s.stores.PublicVersions, ec, *versionState.PublishTime)
	if err != nil {
		return MergeResult{}, fmt.Errorf("discard changes: %w", err)
	}
	anchorEC := ec.AtRevision(anchor.RevisionID)

	states, err := s.stores.PrivateElements.ListSyncStates(ctx, ec)
	if err != nil {
		return MergeResult{}, fmt.Errorf("discard changes: %w", err)
	}

	staged := map[model.ID]model.StageEntity[model.Element]{}
	for _, st := range states {
		if !st.Dirty {
			continue
		}
		entry, err := s.restore(ctx, ec, anchorEC, anchor, st)
		if err != nil {
			return MergeResult{}, fmt.Errorf("discard changes: %w", err)
		}
		staged[st.ID] = entry
	}

	result, err := writeStaged(ctx, s.stores, ec, staged, s.logger)
	if err != nil {
		return MergeResult{}, fmt.Errorf("discard changes: %w", err)
	}
	if err := stageVersion(ctx, s.stores, ec, anchor.PublishTime, model.ActionUpdate); err != nil {
		return MergeResult{}, fmt.Errorf("discard changes: %w", err)
	}

	s.logger.Info("discarded changes",
		"item", itemID,
		"version", versionID,
		"revision", anchor.RevisionID,
		"staged", len(result.Changes))
	return result, nil
}

// restore builds the staged entry returning one dirty element to its anchor
// content.
func (s *DiscardService) restore(ctx context.Context, ec, anchorEC model.ElementContext, anchor model.SyncState, st model.SyncState) (model.StageEntity[model.Element], error) {
	local, localFound, err := s.stores.PrivateElements.Get(ctx, ec, st.ID)
	if err != nil {
		return model.StageEntity[model.Element]{}, err
	}

	if st.PublishTime == nil {
		if !localFound {
			return model.StageEntity[model.Element]{}, model.Internal(model.CodePrivateUnpublishedWithoutElem,
				"unpublished private state of element %s exists without the element", st.ID)
		}
		return model.StageEntity[model.Element]{Entity: local, Action: model.ActionDelete}, nil
	}

	pubState, published, err := s.stores.PublicElements.GetSyncState(ctx, anchorEC, st.ID)
	if err != nil {
		return model.StageEntity[model.Element]{}, err
	}
	if !published {
		if !localFound {
			local = model.NewElement(st.ID)
		}
		return model.StageEntity[model.Element]{
			Entity:      local,
			PublishTime: anchor.PublishTime,
			Action:      model.ActionDelete,
		}, nil
	}

	pub, found, err := s.stores.PublicElements.Get(ctx, anchorEC, st.ID)
	if err != nil {
		return model.StageEntity[model.Element]{}, err
	}
	if !found {
		return model.StageEntity[model.Element]{}, model.Internal(model.CodePublicSyncStateWithoutElement,
			"public state of element %s exists without the element at revision %s", st.ID, anchor.RevisionID)
	}
	action := model.ActionCreate
	if localFound {
		action = model.ActionUpdate
	}
	return model.StageEntity[model.Element]{
		Entity:      pub,
		PublishTime: pubState.PublishTime,
		Action:      action,
	}, nil
}
