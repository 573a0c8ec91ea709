package space

import (
	"context"
	"fmt"

	"github.com/roach88/treesync/internal/model"
)

// StageElements holds the public changes waiting to be committed into the
// private space, with their conflict status.
type StageElements struct {
	tree
}

// NewStageElements creates the stage element store.
func NewStageElements(repos Repositories) *StageElements {
	return &StageElements{tree{space: model.SpaceStage, repos: repos}}
}

// ListIDs returns the staged ids in ascending order.
func (s *StageElements) ListIDs(ctx context.Context, ec model.ElementContext) ([]model.ID, error) {
	return s.repos.ElementStage.ListIDs(ctx, s.scope(ctx, ec))
}

// Get returns the staged entry of id.
func (s *StageElements) Get(ctx context.Context, ec model.ElementContext, id model.ID) (model.StageEntity[model.Element], bool, error) {
	return s.repos.ElementStage.Get(ctx, s.scope(ctx, ec), id)
}

// GetConflicted returns the staged entry of id only when it is conflicted.
func (s *StageElements) GetConflicted(ctx context.Context, ec model.ElementContext, id model.ID) (model.StageEntity[model.Element], bool, error) {
	staged, found, err := s.Get(ctx, ec, id)
	if err != nil || !found || !staged.Conflicted {
		return model.StageEntity[model.Element]{}, false, err
	}
	return staged, true, nil
}

// HasConflicts reports whether any staged element is conflicted.
func (s *StageElements) HasConflicts(ctx context.Context, ec model.ElementContext) (bool, error) {
	ids, err := s.repos.ElementStage.ListConflictedIDs(ctx, s.scope(ctx, ec))
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

// ListConflictedDescriptors returns every conflicted entry without data blobs.
func (s *StageElements) ListConflictedDescriptors(ctx context.Context, ec model.ElementContext) ([]model.StageEntity[model.Element], error) {
	scope := s.scope(ctx, ec)
	ids, err := s.repos.ElementStage.ListConflictedIDs(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make([]model.StageEntity[model.Element], 0, len(ids))
	for _, id := range ids {
		staged, found, err := s.repos.ElementStage.GetDescriptor(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, model.Internal(model.CodeStagedElementMissing,
				"conflicted element %s is listed but not staged", id)
		}
		out = append(out, staged)
	}
	return out, nil
}

// Create stages an entry, replacing an existing one for the same id.
func (s *StageElements) Create(ctx context.Context, ec model.ElementContext, staged model.StageEntity[model.Element]) error {
	if !staged.Action.Valid() {
		return model.InvalidOperation(model.CodeInvalidArgument, "unknown stage action %q", staged.Action)
	}
	return s.repos.ElementStage.Create(ctx, s.scope(ctx, ec), staged)
}

// Delete removes the staged entry of id.
func (s *StageElements) Delete(ctx context.Context, ec model.ElementContext, id model.ID) error {
	return s.repos.ElementStage.Delete(ctx, s.scope(ctx, ec), id)
}

// DeleteAll removes every staged element of the version.
func (s *StageElements) DeleteAll(ctx context.Context, ec model.ElementContext) error {
	return s.repos.ElementStage.DeleteAll(ctx, s.scope(ctx, ec))
}

// ResolveConflict settles a conflicted entry and its dependents.
//
// YOURS keeps the local content: the entries become non-conflicted IGNORE.
// THEIRS accepts the public change: the entries become non-conflicted and
// keep their action. Entries that are not conflicted are left alone.
func (s *StageElements) ResolveConflict(ctx context.Context, ec model.ElementContext, id model.ID, resolution model.Resolution) error {
	var action *model.Action
	switch resolution {
	case model.ResolutionYours:
		ignore := model.ActionIgnore
		action = &ignore
	case model.ResolutionTheirs:
	case model.ResolutionOther:
		return model.NotSupported("conflict resolution OTHER")
	default:
		return model.InvalidOperation(model.CodeInvalidArgument, "unknown resolution %q", resolution)
	}

	staged, found, err := s.GetConflicted(ctx, ec, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	scope := s.scope(ctx, ec)
	for _, target := range append([]model.ID{id}, staged.ConflictDependents...) {
		if err := s.repos.ElementStage.MarkAsNotConflicted(ctx, scope, target, action); err != nil {
			return fmt.Errorf("resolve %s: %w", id, err)
		}
	}
	return nil
}
