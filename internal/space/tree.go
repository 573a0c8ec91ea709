package space

import (
	"context"
	"fmt"

	"github.com/roach88/treesync/internal/model"
)

// tree is the space-parameterized helper shared by every store: it resolves
// scopes and walks the element hierarchy of one space.
type tree struct {
	space model.Space
	repos Repositories
}

// scope resolves the repository scope of ec in this space for the session
// carried by ctx. Private and Stage rows always use the zero revision.
func (t tree) scope(ctx context.Context, ec model.ElementContext) model.Scope {
	s := model.Scope{
		Space:      model.SessionFrom(ctx).SpaceName(t.space),
		ItemID:     ec.ItemID,
		VersionID:  ec.VersionID,
		RevisionID: ec.RevisionID,
	}
	if t.space != model.SpacePublic {
		s.RevisionID = model.ZeroID
	}
	return s
}

// subs returns the children of parentID at scope. An empty parentID means
// the root element. A declared child without a row is an internal error.
func (t tree) subs(ctx context.Context, scope model.Scope, parentID model.ID) ([]model.Element, error) {
	if parentID.IsEmpty() {
		parentID = model.RootID
	}
	parent, found, err := t.repos.Elements.GetDescriptor(ctx, scope, parentID)
	if err != nil {
		return nil, fmt.Errorf("list sub-elements of %s: %w", parentID, err)
	}
	if !found {
		return nil, nil
	}

	children := make([]model.Element, 0, len(parent.SubElementIDs))
	for _, id := range parent.SubElementIDs {
		child, found, err := t.repos.Elements.Get(ctx, scope, id)
		if err != nil {
			return nil, fmt.Errorf("list sub-elements of %s: %w", parentID, err)
		}
		if !found {
			return nil, model.Internal(model.CodeSubElementMissing,
				"element %s lists sub-element %s which does not exist in %s", parentID, id, scope.Space)
		}
		children = append(children, child)
	}
	return children, nil
}

// descendants returns the ids of every element below e, depth first.
func (t tree) descendants(ctx context.Context, scope model.Scope, e model.Element) ([]model.ID, error) {
	var ids []model.ID
	for _, id := range e.SubElementIDs {
		child, found, err := t.repos.Elements.GetDescriptor(ctx, scope, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, model.Internal(model.CodeSubElementMissing,
				"element %s lists sub-element %s which does not exist in %s", e.ID, id, scope.Space)
		}
		below, err := t.descendants(ctx, scope, child)
		if err != nil {
			return nil, err
		}
		ids = append(ids, child.ID)
		ids = append(ids, below...)
	}
	return ids, nil
}

// withHash returns e with its content hash computed.
func withHash(e model.Element) (model.Element, error) {
	h, err := model.ElementHash(e)
	if err != nil {
		return model.Element{}, err
	}
	e.Hash = h
	return e, nil
}
