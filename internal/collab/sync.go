package collab

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/treesync/internal/model"
)

// MergeResult describes the changes a sync or discard staged.
type MergeResult struct {
	Changes    []ElementChange `json:"changes"`
	Conflicted bool            `json:"conflicted"`
	UpToDate   bool            `json:"up_to_date,omitempty"`
}

// SyncService stages the public changes Private has not seen yet.
type SyncService struct {
	stores Stores
	logger *slog.Logger
}

// NewSyncService creates a sync service. A nil logger means slog.Default().
func NewSyncService(stores Stores, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{stores: stores, logger: logger}
}

// Sync compares the public head with the revision Private last converged
// with and stages every difference. Nothing in Private changes; the staged
// entries are applied by CommitService.
func (s *SyncService) Sync(ctx context.Context, itemID, versionID model.ID) (MergeResult, error) {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}

	head, hasHead, err := s.stores.PublicVersions.GetSyncState(ctx, ec)
	if err != nil {
		return MergeResult{}, fmt.Errorf("sync: %w", err)
	}
	if !hasHead {
		return MergeResult{UpToDate: true}, nil
	}

	privateState, privateFound, err := s.stores.PrivateVersions.GetSyncState(ctx, ec)
	if err != nil {
		return MergeResult{}, fmt.Errorf("sync: %w", err)
	}
	var privateTime *time.Time
	if privateFound {
		privateTime = privateState.PublishTime
	}
	if model.SameTime(privateTime, head.PublishTime) {
		return MergeResult{UpToDate: true}, nil
	}

	anchorIDs := map[model.ID]model.ID{}
	var anchorTime *time.Time
	if privateTime != nil {
		anchor, err := findAnchor(ctx, s.stores.PublicVersions, ec, *privateTime)
		if err != nil {
			return MergeResult{}, fmt.Errorf("sync: %w", err)
		}
		anchorTime = anchor.PublishTime
		if anchorIDs, err = s.stores.PublicElements.ListIDs(ctx, ec.AtRevision(anchor.RevisionID)); err != nil {
			return MergeResult{}, fmt.Errorf("sync: %w", err)
		}
	}

	staged := map[model.ID]model.StageEntity[model.Element]{}
	if err := s.stageChanged(ctx, ec, anchorTime, staged); err != nil {
		return MergeResult{}, fmt.Errorf("sync: %w", err)
	}
	if err := s.stageDeleted(ctx, ec, anchorIDs, staged); err != nil {
		return MergeResult{}, fmt.Errorf("sync: %w", err)
	}

	result, err := writeStaged(ctx, s.stores, ec, staged, s.logger)
	if err != nil {
		return MergeResult{}, fmt.Errorf("sync: %w", err)
	}

	action := model.ActionUpdate
	if !privateFound {
		action = model.ActionCreate
	}
	if err := stageVersion(ctx, s.stores, ec, head.PublishTime, action); err != nil {
		return MergeResult{}, fmt.Errorf("sync: %w", err)
	}

	s.logger.Info("synced",
		"item", itemID,
		"version", versionID,
		"revision", head.RevisionID,
		"staged", len(result.Changes),
		"conflicted", result.Conflicted)
	return result, nil
}

// stageChanged stages every head element written after anchorTime, or every
// head element when Private never converged with Public.
func (s *SyncService) stageChanged(ctx context.Context, ec model.ElementContext, anchorTime *time.Time, staged map[model.ID]model.StageEntity[model.Element]) error {
	states, err := s.stores.PublicElements.ListSyncStates(ctx, ec)
	if err != nil {
		return err
	}

	for _, st := range states {
		if anchorTime != nil && st.PublishTime != nil && !st.PublishTime.After(*anchorTime) {
			continue
		}
		pub, found, err := s.stores.PublicElements.Get(ctx, ec, st.ID)
		if err != nil {
			return err
		}
		if !found {
			return model.Internal(model.CodePublicSyncStateWithoutElement,
				"public state of element %s exists without the element", st.ID)
		}

		local, localFound, err := s.stores.PrivateElements.Get(ctx, ec, st.ID)
		if err != nil {
			return err
		}
		localState, stateFound, err := s.stores.PrivateElements.GetSyncState(ctx, ec, st.ID)
		if err != nil {
			return err
		}

		action := model.ActionCreate
		if localFound {
			action = model.ActionUpdate
		}
		staged[st.ID] = model.StageEntity[model.Element]{
			Entity:      pub,
			PublishTime: st.PublishTime,
			Action:      action,
			Conflicted:  stateFound && localState.Dirty && (!localFound || local.Hash != pub.Hash),
		}
	}
	return nil
}

// stageDeleted stages a DELETE for every element of the anchor revision the
// head no longer has. Elements Private never published are left alone.
func (s *SyncService) stageDeleted(ctx context.Context, ec model.ElementContext, anchorIDs map[model.ID]model.ID, staged map[model.ID]model.StageEntity[model.Element]) error {
	if len(anchorIDs) == 0 {
		return nil
	}
	headIDs, err := s.stores.PublicElements.ListIDs(ctx, ec)
	if err != nil {
		return err
	}

	var conflicted []model.ID
	for _, id := range sortedIDs(anchorIDs) {
		if _, ok := headIDs[id]; ok {
			continue
		}
		localState, stateFound, err := s.stores.PrivateElements.GetSyncState(ctx, ec, id)
		if err != nil {
			return err
		}
		if !stateFound {
			continue
		}
		local, localFound, err := s.stores.PrivateElements.Get(ctx, ec, id)
		if err != nil {
			return err
		}
		if !localFound {
			local = model.NewElement(id)
		}
		conflict := localFound && localState.Dirty
		if localFound && !conflict {
			// local work below a clean element must not be cascaded away
			if conflict, err = s.dirtyBelow(ctx, ec, id); err != nil {
				return err
			}
		}
		entry := model.StageEntity[model.Element]{
			Entity:      local,
			PublishTime: localState.PublishTime,
			Action:      model.ActionDelete,
			Conflicted:  conflict,
		}
		staged[id] = entry
		if entry.Conflicted {
			conflicted = append(conflicted, id)
		}
	}

	for _, id := range conflicted {
		if err := s.markDependents(ctx, ec, id, staged); err != nil {
			return err
		}
	}
	return nil
}

// dirtyBelow reports whether any private descendant of id is dirty. A
// descendant that was never published counts as dirty.
func (s *SyncService) dirtyBelow(ctx context.Context, ec model.ElementContext, id model.ID) (bool, error) {
	below, err := privateDescendants(ctx, s.stores.PrivateElements, ec, id)
	if err != nil {
		return false, err
	}
	for _, child := range below {
		st, found, err := s.stores.PrivateElements.GetSyncState(ctx, ec, child.ID)
		if err != nil {
			return false, err
		}
		if !found || st.Dirty || !st.IsPublished() {
			return true, nil
		}
	}
	return false, nil
}

// markDependents attaches every private descendant of a conflicted delete
// to its entry. Resolving the delete resolves them with it.
func (s *SyncService) markDependents(ctx context.Context, ec model.ElementContext, id model.ID, staged map[model.ID]model.StageEntity[model.Element]) error {
	below, err := privateDescendants(ctx, s.stores.PrivateElements, ec, id)
	if err != nil {
		return err
	}

	entry := staged[id]
	for _, child := range below {
		dependent, ok := staged[child.ID]
		if !ok {
			st, _, err := s.stores.PrivateElements.GetSyncState(ctx, ec, child.ID)
			if err != nil {
				return err
			}
			dependent = model.StageEntity[model.Element]{
				Entity:      child,
				PublishTime: st.PublishTime,
				Action:      model.ActionDelete,
			}
		}
		dependent.Conflicted = true
		staged[child.ID] = dependent
		entry.ConflictDependents = append(entry.ConflictDependents, child.ID)
	}
	slices.Sort(entry.ConflictDependents)
	staged[id] = entry
	return nil
}

// privateDescendants returns every element below id in Private, parents
// before children.
func privateDescendants(ctx context.Context, elements privateElementStore, ec model.ElementContext, id model.ID) ([]model.Element, error) {
	children, err := elements.ListSubs(ctx, ec, id)
	if err != nil {
		return nil, err
	}
	var all []model.Element
	for _, child := range children {
		below, err := privateDescendants(ctx, elements, ec, child.ID)
		if err != nil {
			return nil, err
		}
		all = append(all, child)
		all = append(all, below...)
	}
	return all, nil
}

// writeStaged stores the staged entries in id order.
func writeStaged(ctx context.Context, stores Stores, ec model.ElementContext, staged map[model.ID]model.StageEntity[model.Element], logger *slog.Logger) (MergeResult, error) {
	ids := make([]model.ID, 0, len(staged))
	for id := range staged {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var result MergeResult
	for _, id := range ids {
		entry := staged[id]
		if err := stores.StageElements.Create(ctx, ec, entry); err != nil {
			return MergeResult{}, fmt.Errorf("stage %s: %w", id, err)
		}
		logger.Debug("staged element",
			"item", ec.ItemID,
			"version", ec.VersionID,
			"element", id,
			"action", entry.Action,
			"conflicted", entry.Conflicted)
		result.Changes = append(result.Changes, ElementChange{ID: id, Action: entry.Action, Conflicted: entry.Conflicted})
		result.Conflicted = result.Conflicted || entry.Conflicted
	}
	return result, nil
}

// stageVersion stages the version with the publish time Private converges to.
func stageVersion(ctx context.Context, stores Stores, ec model.ElementContext, publishTime *time.Time, action model.Action) error {
	v, err := stagedVersion(ctx, stores.PublicVersions, ec)
	if err != nil {
		return err
	}
	return stores.StageVersions.Create(ctx, ec, model.StageEntity[model.Version]{
		Entity:      v,
		PublishTime: publishTime,
		Action:      action,
	})
}

func sortedIDs(m map[model.ID]model.ID) []model.ID {
	ids := make([]model.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
