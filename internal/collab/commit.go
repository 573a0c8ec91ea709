package collab

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/treesync/internal/model"
)

// CommitResult describes one commit of the staging area.
type CommitResult struct {
	Applied          []ElementChange `json:"applied"`
	Conflicted       int             `json:"conflicted"`
	VersionCommitted bool            `json:"version_committed"`
}

// CommitService applies staged entries to Private.
type CommitService struct {
	stores Stores
	logger *slog.Logger
}

// NewCommitService creates a commit service. A nil logger means slog.Default().
func NewCommitService(stores Stores, logger *slog.Logger) *CommitService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommitService{stores: stores, logger: logger}
}

// Commit applies every non-conflicted staged element in id order and removes
// it from Stage. Conflicted entries stay staged; while any remain, the staged
// version is kept too. Committing an empty stage is a no-op.
func (s *CommitService) Commit(ctx context.Context, itemID, versionID model.ID) (CommitResult, error) {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}

	ids, err := s.stores.StageElements.ListIDs(ctx, ec)
	if err != nil {
		return CommitResult{}, fmt.Errorf("commit staging: %w", err)
	}

	var result CommitResult
	for _, id := range ids {
		staged, found, err := s.stores.StageElements.Get(ctx, ec, id)
		if err != nil {
			return CommitResult{}, fmt.Errorf("commit staging: %w", err)
		}
		if !found {
			return CommitResult{}, model.Internal(model.CodeStagedElementMissing,
				"staged element %s is listed but missing", id)
		}
		if staged.Conflicted {
			result.Conflicted++
			continue
		}

		if err := s.commitElement(ctx, ec, staged); err != nil {
			return CommitResult{}, fmt.Errorf("commit staged %s %s: %w", staged.Action, id, err)
		}
		if err := s.stores.StageElements.Delete(ctx, ec, id); err != nil {
			return CommitResult{}, fmt.Errorf("commit staging: %w", err)
		}
		result.Applied = append(result.Applied, ElementChange{ID: id, Action: staged.Action})
	}

	if result.Conflicted == 0 {
		committed, err := s.commitVersion(ctx, ec)
		if err != nil {
			return CommitResult{}, fmt.Errorf("commit staging: %w", err)
		}
		result.VersionCommitted = committed
	}

	if len(result.Applied) > 0 || result.VersionCommitted {
		s.logger.Info("committed staging",
			"item", itemID,
			"version", versionID,
			"applied", len(result.Applied),
			"conflicted", result.Conflicted)
	}
	return result, nil
}

func (s *CommitService) commitElement(ctx context.Context, ec model.ElementContext, staged model.StageEntity[model.Element]) error {
	switch staged.Action {
	case model.ActionCreate:
		return s.stores.PrivateElements.CommitStagedCreate(ctx, ec, staged.Entity, staged.PublishTime)
	case model.ActionUpdate:
		return s.stores.PrivateElements.CommitStagedUpdate(ctx, ec, staged.Entity, staged.PublishTime)
	case model.ActionDelete:
		return s.stores.PrivateElements.CommitStagedDelete(ctx, ec, staged.Entity)
	case model.ActionIgnore:
		return s.stores.PrivateElements.CommitStagedIgnore(ctx, ec, staged.Entity.ID, staged.PublishTime)
	default:
		return model.InvalidOperation(model.CodeInvalidArgument, "unknown staged action %q", staged.Action)
	}
}

// commitVersion applies the staged version. It reports false when nothing
// was staged.
func (s *CommitService) commitVersion(ctx context.Context, ec model.ElementContext) (bool, error) {
	staged, found, err := s.stores.StageVersions.Get(ctx, ec)
	if err != nil || !found {
		return false, err
	}

	switch staged.Action {
	case model.ActionCreate:
		err = s.stores.PrivateVersions.CommitStagedCreate(ctx, ec, staged.Entity, staged.PublishTime)
	case model.ActionUpdate:
		var dirty bool
		dirty, err = s.anyDirty(ctx, ec)
		if err == nil {
			err = s.stores.PrivateVersions.CommitStagedUpdate(ctx, ec, staged.Entity, staged.PublishTime, dirty)
		}
	case model.ActionIgnore:
		err = s.stores.PrivateVersions.CommitStagedIgnore(ctx, ec, staged.Entity, staged.PublishTime)
	default:
		err = model.InvalidOperation(model.CodeInvalidArgument, "unknown staged version action %q", staged.Action)
	}
	if err != nil {
		return false, err
	}
	return true, s.stores.StageVersions.Delete(ctx, ec)
}

func (s *CommitService) anyDirty(ctx context.Context, ec model.ElementContext) (bool, error) {
	states, err := s.stores.PrivateElements.ListSyncStates(ctx, ec)
	if err != nil {
		return false, err
	}
	for _, st := range states {
		if st.Dirty {
			return true, nil
		}
	}
	return false, nil
}
