package space

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/treesync/internal/model"
)

// PublicElements is the shared, revisioned element store. Every publish
// writes into a new revision; rows of older revisions are never modified.
//
// Reads with an empty ElementContext.RevisionID resolve the head revision.
type PublicElements struct {
	tree
}

// NewPublicElements creates the public element store.
func NewPublicElements(repos Repositories) *PublicElements {
	return &PublicElements{tree{space: model.SpacePublic, repos: repos}}
}

// resolve pins ec to a revision, using the head when unset. It reports false
// when nothing was published yet.
func (s *PublicElements) resolve(ctx context.Context, ec model.ElementContext) (model.Scope, bool, error) {
	scope := s.scope(ctx, ec)
	if !scope.RevisionID.IsEmpty() {
		return scope, true, nil
	}
	head, found, err := s.repos.VersionStates.Get(ctx, scope)
	if err != nil {
		return model.Scope{}, false, fmt.Errorf("resolve head revision: %w", err)
	}
	if !found {
		return model.Scope{}, false, nil
	}
	return scope.AtRevision(head.RevisionID), true, nil
}

// ListIDs returns the element map of the revision: every element id present
// mapped to the revision holding its content.
func (s *PublicElements) ListIDs(ctx context.Context, ec model.ElementContext) (map[model.ID]model.ID, error) {
	scope, found, err := s.resolve(ctx, ec)
	if err != nil || !found {
		return map[model.ID]model.ID{}, err
	}
	m, found, err := s.repos.Versions.GetVersionElements(ctx, scope)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[model.ID]model.ID{}, nil
	}
	return m, nil
}

// ListWrittenIDs returns the ids of the rows written in ec.RevisionID itself.
func (s *PublicElements) ListWrittenIDs(ctx context.Context, ec model.ElementContext) ([]model.ID, error) {
	m, err := s.repos.Elements.ListIDs(ctx, s.scope(ctx, ec))
	if err != nil {
		return nil, err
	}
	return sortedKeys(m), nil
}

// Get returns the element as it is at the revision.
func (s *PublicElements) Get(ctx context.Context, ec model.ElementContext, id model.ID) (model.Element, bool, error) {
	scope, found, err := s.resolve(ctx, ec)
	if err != nil || !found {
		return model.Element{}, false, err
	}
	return s.repos.Elements.Get(ctx, scope, id)
}

// GetDescriptor is Get without the data blobs.
func (s *PublicElements) GetDescriptor(ctx context.Context, ec model.ElementContext, id model.ID) (model.Element, bool, error) {
	scope, found, err := s.resolve(ctx, ec)
	if err != nil || !found {
		return model.Element{}, false, err
	}
	return s.repos.Elements.GetDescriptor(ctx, scope, id)
}

// ListSubs returns the children of parentID at the revision.
func (s *PublicElements) ListSubs(ctx context.Context, ec model.ElementContext, parentID model.ID) ([]model.Element, error) {
	scope, found, err := s.resolve(ctx, ec)
	if err != nil || !found {
		return nil, err
	}
	return s.subs(ctx, scope, parentID)
}

// GetSyncState returns the state of id at the revision: the state row of
// the revision that last wrote the element.
func (s *PublicElements) GetSyncState(ctx context.Context, ec model.ElementContext, id model.ID) (model.SyncState, bool, error) {
	m, err := s.ListIDs(ctx, ec)
	if err != nil {
		return model.SyncState{}, false, err
	}
	rev, ok := m[id]
	if !ok {
		return model.SyncState{}, false, nil
	}
	return s.repos.ElementStates.Get(ctx, s.scope(ctx, ec.AtRevision(rev)), id)
}

// ListSyncStates returns the state of every element present at the revision,
// ordered by id.
func (s *PublicElements) ListSyncStates(ctx context.Context, ec model.ElementContext) ([]model.SyncState, error) {
	m, err := s.ListIDs(ctx, ec)
	if err != nil {
		return nil, err
	}
	states := make([]model.SyncState, 0, len(m))
	for _, id := range sortedKeys(m) {
		scope := s.scope(ctx, ec.AtRevision(m[id]))
		st, found, err := s.repos.ElementStates.Get(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, model.Internal(model.CodeSyncStateMissing,
				"public element %s has no state at revision %s", id, m[id])
		}
		states = append(states, st)
	}
	return states, nil
}

// Create writes e into ec.RevisionID under its parent. The parent is first
// brought into the revision; e starts without sub-elements, its children
// attach themselves when they are created.
func (s *PublicElements) Create(ctx context.Context, ec model.ElementContext, e model.Element, publishTime time.Time) error {
	scope := s.scope(ctx, ec)
	if err := s.bringIntoRevision(ctx, scope, e.ParentID, publishTime); err != nil {
		return err
	}

	e.SubElementIDs = nil
	if err := s.write(ctx, scope, e, true); err != nil {
		return err
	}
	return s.stamp(ctx, scope, e.ID, publishTime)
}

// Update writes the content of e into ec.RevisionID. When the revision has
// no row yet, the parent link and sub-elements are taken from the latest
// earlier row.
func (s *PublicElements) Update(ctx context.Context, ec model.ElementContext, e model.Element, publishTime time.Time) error {
	scope := s.scope(ctx, ec)
	_, inRevision, err := s.repos.Elements.GetHash(ctx, scope, e.ID)
	if err != nil {
		return fmt.Errorf("update public element %s: %w", e.ID, err)
	}

	if inRevision {
		if err := s.write(ctx, scope, e, false); err != nil {
			return err
		}
	} else {
		prior, found, err := s.repos.Elements.GetDescriptor(ctx, scope.AtRevision(""), e.ID)
		if err != nil {
			return fmt.Errorf("update public element %s: %w", e.ID, err)
		}
		if !found {
			return model.Internal(model.CodeElementToUpdateMissing,
				"public element %s to update does not exist", e.ID)
		}
		e.ParentID = prior.ParentID
		e.SubElementIDs = prior.SubElementIDs
		if err := s.write(ctx, scope, e, true); err != nil {
			return err
		}
	}
	return s.stamp(ctx, scope, e.ID, publishTime)
}

// Delete removes e from ec.RevisionID. The parent is brought into the
// revision so its sub-element set can drop e.
func (s *PublicElements) Delete(ctx context.Context, ec model.ElementContext, e model.Element, publishTime time.Time) error {
	scope := s.scope(ctx, ec)
	if err := s.bringIntoRevision(ctx, scope, e.ParentID, publishTime); err != nil {
		return err
	}
	if err := s.repos.Elements.Delete(ctx, scope, e); err != nil {
		return err
	}
	return s.repos.ElementStates.Delete(ctx, scope, e.ID)
}

// CleanAll removes every public element row and state of the version, all
// revisions included.
func (s *PublicElements) CleanAll(ctx context.Context, ec model.ElementContext) error {
	scope := s.scope(ctx, ec)
	if err := s.repos.Elements.CleanAllRevisions(ctx, scope); err != nil {
		return err
	}
	return s.repos.ElementStates.DeleteAll(ctx, scope)
}

// bringIntoRevision copies the latest row of id into scope's revision when
// the revision has none yet, and stamps its state.
func (s *PublicElements) bringIntoRevision(ctx context.Context, scope model.Scope, id model.ID, publishTime time.Time) error {
	if id.IsEmpty() {
		return nil
	}
	_, inRevision, err := s.repos.Elements.GetHash(ctx, scope, id)
	if err != nil {
		return fmt.Errorf("bring %s into revision: %w", id, err)
	}
	if !inRevision {
		latest, found, err := s.repos.Elements.Get(ctx, scope.AtRevision(""), id)
		if err != nil {
			return fmt.Errorf("bring %s into revision: %w", id, err)
		}
		if !found {
			return nil
		}
		if err := s.repos.Elements.Create(ctx, scope, latest); err != nil {
			return err
		}
	}
	return s.stamp(ctx, scope, id, publishTime)
}

func (s *PublicElements) stamp(ctx context.Context, scope model.Scope, id model.ID, publishTime time.Time) error {
	return s.repos.ElementStates.Update(ctx, scope,
		model.SyncState{ID: id, PublishTime: model.TimePtr(publishTime)})
}

func (s *PublicElements) write(ctx context.Context, scope model.Scope, e model.Element, create bool) error {
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

func sortedKeys(m map[model.ID]model.ID) []model.ID {
	keys := make([]model.ID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
