package space

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/treesync/internal/model"
)

// PrivateElements is the element store of the user's working copy.
type PrivateElements struct {
	tree
}

// NewPrivateElements creates the private element store.
func NewPrivateElements(repos Repositories) *PrivateElements {
	return &PrivateElements{tree{space: model.SpacePrivate, repos: repos}}
}

// ListIDs returns every private element id mapped to the zero revision.
func (s *PrivateElements) ListIDs(ctx context.Context, ec model.ElementContext) (map[model.ID]model.ID, error) {
	return s.repos.Elements.ListIDs(ctx, s.scope(ctx, ec))
}

// Get returns the private element id.
func (s *PrivateElements) Get(ctx context.Context, ec model.ElementContext, id model.ID) (model.Element, bool, error) {
	return s.repos.Elements.Get(ctx, s.scope(ctx, ec), id)
}

// GetDescriptor returns the private element id without its data blobs.
func (s *PrivateElements) GetDescriptor(ctx context.Context, ec model.ElementContext, id model.ID) (model.Element, bool, error) {
	return s.repos.Elements.GetDescriptor(ctx, s.scope(ctx, ec), id)
}

// ListSubs returns the children of parentID, or of the root when parentID is empty.
func (s *PrivateElements) ListSubs(ctx context.Context, ec model.ElementContext, parentID model.ID) ([]model.Element, error) {
	return s.subs(ctx, s.scope(ctx, ec), parentID)
}

// GetSyncState returns the synchronization state of id.
func (s *PrivateElements) GetSyncState(ctx context.Context, ec model.ElementContext, id model.ID) (model.SyncState, bool, error) {
	return s.repos.ElementStates.Get(ctx, s.scope(ctx, ec), id)
}

// ListSyncStates returns every private element state ordered by id.
func (s *PrivateElements) ListSyncStates(ctx context.Context, ec model.ElementContext) ([]model.SyncState, error) {
	return s.repos.ElementStates.List(ctx, s.scope(ctx, ec))
}

// Create stores a new element under its parent and marks it dirty and
// never published.
func (s *PrivateElements) Create(ctx context.Context, ec model.ElementContext, e model.Element) error {
	scope := s.scope(ctx, ec)
	hashed, err := withHash(e)
	if err != nil {
		return fmt.Errorf("create private element %s: %w", e.ID, err)
	}
	if err := s.write(ctx, scope, hashed, true); err != nil {
		return err
	}
	return s.repos.ElementStates.Create(ctx, scope, model.SyncState{ID: e.ID, Dirty: true})
}

// Update writes new content when the content hash changed and marks the
// element dirty. It reports whether anything was written.
func (s *PrivateElements) Update(ctx context.Context, ec model.ElementContext, e model.Element) (bool, error) {
	scope := s.scope(ctx, ec)
	hashed, err := withHash(e)
	if err != nil {
		return false, fmt.Errorf("update private element %s: %w", e.ID, err)
	}

	changed, err := s.isChanged(ctx, scope, hashed)
	if err != nil || !changed {
		return false, err
	}
	if err := s.write(ctx, scope, hashed, false); err != nil {
		return false, err
	}
	if err := s.repos.ElementStates.MarkAsDirty(ctx, scope, e.ID); err != nil {
		return false, err
	}
	return true, nil
}

// isChanged compares the stored hash with e.Hash. A missing stored hash
// counts as changed.
func (s *PrivateElements) isChanged(ctx context.Context, scope model.Scope, e model.Element) (bool, error) {
	stored, found, err := s.repos.Elements.GetHash(ctx, scope, e.ID)
	if err != nil {
		return false, fmt.Errorf("update private element %s: %w", e.ID, err)
	}
	return !found || stored == "" || stored != e.Hash, nil
}

// Delete removes e and its whole subtree, deepest first. Elements that were
// never published lose their state row; published ones keep it, marked
// dirty, so the deletion can be published.
func (s *PrivateElements) Delete(ctx context.Context, ec model.ElementContext, e model.Element) error {
	scope := s.scope(ctx, ec)
	stored, found, err := s.repos.Elements.GetDescriptor(ctx, scope, e.ID)
	if err != nil {
		return fmt.Errorf("delete private element %s: %w", e.ID, err)
	}
	if !found {
		return nil
	}
	return s.deleteTree(ctx, scope, stored, true)
}

func (s *PrivateElements) deleteTree(ctx context.Context, scope model.Scope, e model.Element, top bool) error {
	children, err := s.subs(ctx, scope, e.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := s.deleteTree(ctx, scope, child, false); err != nil {
			return err
		}
	}

	if !top {
		// the parent row goes away as well, no need to rewrite its sub set
		e.ParentID = ""
	}
	if err := s.repos.Elements.Delete(ctx, scope, e); err != nil {
		return err
	}

	st, found, err := s.repos.ElementStates.Get(ctx, scope, e.ID)
	if err != nil {
		return err
	}
	if !found || !st.IsPublished() {
		return s.repos.ElementStates.Delete(ctx, scope, e.ID)
	}
	return s.repos.ElementStates.MarkAsDirty(ctx, scope, e.ID)
}

// MarkAsPublished records that id was published at publishTime.
func (s *PrivateElements) MarkAsPublished(ctx context.Context, ec model.ElementContext, id model.ID, publishTime time.Time) error {
	return s.repos.ElementStates.Update(ctx, s.scope(ctx, ec),
		model.SyncState{ID: id, PublishTime: model.TimePtr(publishTime)})
}

// MarkDeletionAsPublished drops the state row of an element whose deletion
// was published.
func (s *PrivateElements) MarkDeletionAsPublished(ctx context.Context, ec model.ElementContext, id model.ID) error {
	return s.repos.ElementStates.Delete(ctx, s.scope(ctx, ec), id)
}

// CommitStagedCreate applies a staged creation: the element arrives clean
// with the staged publish time.
func (s *PrivateElements) CommitStagedCreate(ctx context.Context, ec model.ElementContext, e model.Element, publishTime *time.Time) error {
	scope := s.scope(ctx, ec)
	if err := s.write(ctx, scope, e, true); err != nil {
		return err
	}
	return s.repos.ElementStates.Update(ctx, scope, model.SyncState{ID: e.ID, PublishTime: publishTime})
}

// CommitStagedUpdate overwrites the private content with the staged one and
// marks the element clean. An element missing locally is created.
func (s *PrivateElements) CommitStagedUpdate(ctx context.Context, ec model.ElementContext, e model.Element, publishTime *time.Time) error {
	scope := s.scope(ctx, ec)
	_, found, err := s.repos.Elements.GetHash(ctx, scope, e.ID)
	if err != nil {
		return fmt.Errorf("commit staged update %s: %w", e.ID, err)
	}
	if err := s.write(ctx, scope, e, !found); err != nil {
		return err
	}
	return s.repos.ElementStates.Update(ctx, scope, model.SyncState{ID: e.ID, PublishTime: publishTime})
}

// CommitStagedDelete removes the element, its subtree and their state rows.
// Absent elements are a no-op apart from dropping the state row.
func (s *PrivateElements) CommitStagedDelete(ctx context.Context, ec model.ElementContext, e model.Element) error {
	scope := s.scope(ctx, ec)
	stored, found, err := s.repos.Elements.GetDescriptor(ctx, scope, e.ID)
	if err != nil {
		return fmt.Errorf("commit staged delete %s: %w", e.ID, err)
	}
	if !found {
		return s.repos.ElementStates.Delete(ctx, scope, e.ID)
	}

	below, err := s.descendants(ctx, scope, stored)
	if err != nil {
		return err
	}
	for i := len(below) - 1; i >= 0; i-- {
		if err := s.repos.Elements.Delete(ctx, scope, model.Element{ID: below[i]}); err != nil {
			return err
		}
		if err := s.repos.ElementStates.Delete(ctx, scope, below[i]); err != nil {
			return err
		}
	}
	if err := s.repos.Elements.Delete(ctx, scope, stored); err != nil {
		return err
	}
	return s.repos.ElementStates.Delete(ctx, scope, e.ID)
}

// CommitStagedIgnore keeps the local content but adopts the staged publish
// time, leaving the element dirty so the local version wins on next publish.
func (s *PrivateElements) CommitStagedIgnore(ctx context.Context, ec model.ElementContext, id model.ID, publishTime *time.Time) error {
	return s.repos.ElementStates.Update(ctx, s.scope(ctx, ec),
		model.SyncState{ID: id, PublishTime: publishTime, Dirty: true})
}

// CleanAll removes every private element and state of the version.
func (s *PrivateElements) CleanAll(ctx context.Context, ec model.ElementContext) error {
	scope := s.scope(ctx, ec)
	if err := s.repos.Elements.CleanAllRevisions(ctx, scope); err != nil {
		return err
	}
	return s.repos.ElementStates.DeleteAll(ctx, scope)
}

// write stores e either as a new row under its parent or as a payload
// update, and records its namespace.
func (s *PrivateElements) write(ctx context.Context, scope model.Scope, e model.Element, create bool) error {
	var err error
	if create {
		err = s.repos.Elements.Create(ctx, scope, e)
	} else {
		err = s.repos.Elements.Update(ctx, scope, e)
	}
	if err != nil {
		return err
	}
	if e.Namespace == "" {
		return nil
	}
	return s.repos.Elements.CreateNamespace(ctx, scope, e.ID, e.Namespace)
}
