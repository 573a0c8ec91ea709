package collab

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/treesync/internal/model"
)

// RevertService rewrites Private so that it matches an earlier public revision.
type RevertService struct {
	stores Stores
	logger *slog.Logger
}

// NewRevertService creates a revert service. A nil logger means slog.Default().
func NewRevertService(stores Stores, logger *slog.Logger) *RevertService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RevertService{stores: stores, logger: logger}
}

// Revert compares the element map of revisionID with the head map, where
// every dirty private element counts as changed, and writes the difference
// into Private. A written element whose content is the head's takes the
// head's public state and is clean; anything else is left dirty so it can
// be published as a new revision.
func (s *RevertService) Revert(ctx context.Context, itemID, versionID, revisionID model.ID) ([]ElementChange, error) {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}
	sourceEC := ec.AtRevision(revisionID)

	if _, found, err := s.stores.PublicVersions.GetSyncState(ctx, sourceEC); err != nil {
		return nil, fmt.Errorf("revert: %w", err)
	} else if !found {
		return nil, model.InvalidOperation(model.CodeRevisionNotFound,
			"revision %s of item %s version %s does not exist", revisionID, itemID, versionID)
	}

	source, err := s.stores.PublicElements.ListIDs(ctx, sourceEC)
	if err != nil {
		return nil, fmt.Errorf("revert: %w", err)
	}
	head, err := s.stores.PublicElements.ListIDs(ctx, ec)
	if err != nil {
		return nil, fmt.Errorf("revert: %w", err)
	}
	target, err := s.target(ctx, ec, head)
	if err != nil {
		return nil, fmt.Errorf("revert: %w", err)
	}

	ids := make([]model.ID, 0, len(source)+len(target))
	for id := range source {
		ids = append(ids, id)
	}
	for id := range target {
		if _, ok := source[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var changes []ElementChange
	for _, id := range ids {
		sourceRev, inSource := source[id]
		targetRev, inTarget := target[id]

		var action model.Action
		switch {
		case inSource && !inTarget:
			action = model.ActionCreate
		case inSource && sourceRev != targetRev:
			action = model.ActionUpdate
		case !inSource:
			action = model.ActionDelete
		default:
			continue
		}

		if err := s.apply(ctx, ec, sourceEC, id, action); err != nil {
			return nil, fmt.Errorf("revert %s %s: %w", action, id, err)
		}
		if _, inHead := head[id]; inHead && action != model.ActionDelete {
			if err := s.adoptHeadState(ctx, ec, sourceEC, id); err != nil {
				return nil, fmt.Errorf("revert %s %s: %w", action, id, err)
			}
		}
		changes = append(changes, ElementChange{ID: id, Action: action})
	}

	s.logger.Info("reverted",
		"item", itemID,
		"version", versionID,
		"revision", revisionID,
		"changes", len(changes))
	return changes, nil
}

// target returns a copy of the head element map with every dirty private
// element mapped to the zero id.
func (s *RevertService) target(ctx context.Context, ec model.ElementContext, head map[model.ID]model.ID) (map[model.ID]model.ID, error) {
	target := make(map[model.ID]model.ID, len(head))
	for id, rev := range head {
		target[id] = rev
	}
	states, err := s.stores.PrivateElements.ListSyncStates(ctx, ec)
	if err != nil {
		return nil, err
	}
	for _, st := range states {
		if st.Dirty {
			target[st.ID] = model.ZeroID
		}
	}
	return target, nil
}

func (s *RevertService) apply(ctx context.Context, ec, sourceEC model.ElementContext, id model.ID, action model.Action) error {
	local, localFound, err := s.stores.PrivateElements.Get(ctx, ec, id)
	if err != nil {
		return err
	}

	if action == model.ActionDelete {
		if !localFound {
			return nil
		}
		return s.stores.PrivateElements.Delete(ctx, ec, local)
	}

	pub, found, err := s.stores.PublicElements.Get(ctx, sourceEC, id)
	if err != nil {
		return err
	}
	if !found {
		return model.Internal(model.CodeRevertElementMissing,
			"element %s of revision %s does not exist", id, sourceEC.RevisionID)
	}
	if localFound {
		_, err = s.stores.PrivateElements.Update(ctx, ec, pub)
		return err
	}
	return s.stores.PrivateElements.Create(ctx, ec, pub)
}

// adoptHeadState gives id the sync state the head recorded for it when the
// reverted content is the head's content: clean, published at the time that
// content was written to Public.
func (s *RevertService) adoptHeadState(ctx context.Context, ec, sourceEC model.ElementContext, id model.ID) error {
	headEl, _, err := s.stores.PublicElements.Get(ctx, ec, id)
	if err != nil {
		return err
	}
	sourceEl, _, err := s.stores.PublicElements.Get(ctx, sourceEC, id)
	if err != nil {
		return err
	}
	if headEl.Hash != sourceEl.Hash {
		return nil
	}

	st, found, err := s.stores.PublicElements.GetSyncState(ctx, ec, id)
	if err != nil {
		return err
	}
	if !found || st.PublishTime == nil {
		return model.Internal(model.CodeSyncStateMissing,
			"element %s is in the head revision without a publish time", id)
	}
	return s.stores.PrivateElements.MarkAsPublished(ctx, ec, id, *st.PublishTime)
}
