package engine

import (
	"context"
	"fmt"

	"github.com/roach88/treesync/internal/model"
)

// ListElements returns the private children of parentID; an empty parentID
// lists the top-level elements.
func (e *Engine) ListElements(ctx context.Context, ec model.ElementContext, parentID model.ID) ([]model.Element, error) {
	if err := validateContext(ec); err != nil {
		return nil, err
	}
	return e.privateElements.ListSubs(ctx, ec, parentID)
}

// GetElement returns the private element id.
func (e *Engine) GetElement(ctx context.Context, ec model.ElementContext, id model.ID) (model.Element, error) {
	if err := validateContext(ec); err != nil {
		return model.Element{}, err
	}
	el, found, err := e.privateElements.Get(ctx, ec, id)
	if err != nil {
		return model.Element{}, fmt.Errorf("get element: %w", err)
	}
	if !found {
		return model.Element{}, elementMissing(ec, id)
	}
	return el, nil
}

// CreateElement adds el under its parent, the version root when ParentID is
// empty. Sub-elements cannot be given; children attach by being created.
func (e *Engine) CreateElement(ctx context.Context, ec model.ElementContext, el model.Element) (model.Element, error) {
	v, err := e.requirePrivateVersion(ctx, ec)
	if err != nil {
		return model.Element{}, err
	}
	if el.ID.IsEmpty() {
		return model.Element{}, invalidArgument("element id is required")
	}
	if el.ID == model.RootID {
		return model.Element{}, invalidArgument("element id %s is reserved for the version data", el.ID)
	}
	if el.ParentID.IsEmpty() {
		el.ParentID = model.RootID
	}
	el.SubElementIDs = nil

	if _, found, err := e.privateElements.GetDescriptor(ctx, ec, el.ID); err != nil {
		return model.Element{}, fmt.Errorf("create element: %w", err)
	} else if found {
		return model.Element{}, invalidArgument("element %s already exists", el.ID)
	}
	if _, found, err := e.privateElements.GetDescriptor(ctx, ec, el.ParentID); err != nil {
		return model.Element{}, fmt.Errorf("create element: %w", err)
	} else if !found {
		return model.Element{}, elementMissing(ec, el.ParentID)
	}

	if err := e.privateElements.Create(ctx, ec, el); err != nil {
		return model.Element{}, fmt.Errorf("create element %s: %w", el.ID, err)
	}
	if err := e.touch(ctx, ec, v); err != nil {
		return model.Element{}, err
	}
	return e.GetElement(ctx, ec, el.ID)
}

// UpdateElement replaces the payload of an existing element. The parent link
// and sub-elements are not changed by an update. It reports whether the
// content changed.
func (e *Engine) UpdateElement(ctx context.Context, ec model.ElementContext, el model.Element) (bool, error) {
	v, err := e.requirePrivateVersion(ctx, ec)
	if err != nil {
		return false, err
	}
	stored, found, err := e.privateElements.GetDescriptor(ctx, ec, el.ID)
	if err != nil {
		return false, fmt.Errorf("update element: %w", err)
	}
	if !found {
		return false, elementMissing(ec, el.ID)
	}
	el.ParentID = stored.ParentID
	el.SubElementIDs = stored.SubElementIDs

	changed, err := e.privateElements.Update(ctx, ec, el)
	if err != nil {
		return false, fmt.Errorf("update element %s: %w", el.ID, err)
	}
	if !changed {
		return false, nil
	}
	return true, e.touch(ctx, ec, v)
}

// DeleteElement removes an element with its whole subtree.
func (e *Engine) DeleteElement(ctx context.Context, ec model.ElementContext, id model.ID) error {
	v, err := e.requirePrivateVersion(ctx, ec)
	if err != nil {
		return err
	}
	if id == model.RootID {
		return invalidArgument("the version data element cannot be deleted")
	}
	el, found, err := e.privateElements.GetDescriptor(ctx, ec, id)
	if err != nil {
		return fmt.Errorf("delete element: %w", err)
	}
	if !found {
		return elementMissing(ec, id)
	}

	if err := e.privateElements.Delete(ctx, ec, el); err != nil {
		return fmt.Errorf("delete element %s: %w", id, err)
	}
	return e.touch(ctx, ec, v)
}
