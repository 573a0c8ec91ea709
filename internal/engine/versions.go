package engine

import (
	"context"
	"fmt"

	"github.com/roach88/treesync/internal/model"
)

// ItemVersionData is the descriptive payload of a version. It is stored on
// the version's root element.
type ItemVersionData struct {
	Info      model.Info       `json:"info"`
	Relations []model.Relation `json:"relations,omitempty"`
}

func versionData(root model.Element) ItemVersionData {
	return ItemVersionData{Info: root.Info, Relations: root.Relations}
}

func (d ItemVersionData) apply(root model.Element) model.Element {
	root.Info = d.Info
	root.Relations = d.Relations
	return root
}

// ItemVersion is a version together with its data.
type ItemVersion struct {
	model.Version
	Data ItemVersionData `json:"data"`
}

// SyncStatus tells how a private version relates to the public head.
type SyncStatus string

const (
	StatusUpToDate  SyncStatus = "UP_TO_DATE"
	StatusOutOfSync SyncStatus = "OUT_OF_SYNC"
	StatusMerging   SyncStatus = "MERGING"
)

// ItemVersionStatus is the synchronization status of a private version.
type ItemVersionStatus struct {
	Status SyncStatus `json:"status"`
	Dirty  bool       `json:"dirty"`
}

// CreateItem is accepted for completeness; items exist implicitly through
// their versions.
func (e *Engine) CreateItem(ctx context.Context, itemID model.ID) error {
	if itemID.IsEmpty() {
		return invalidArgument("item id is required")
	}
	return nil
}

// DeleteItem removes every private version of the item and every public
// version with all of its revisions.
func (e *Engine) DeleteItem(ctx context.Context, itemID model.ID) error {
	if itemID.IsEmpty() {
		return invalidArgument("item id is required")
	}

	private, err := e.privateVersions.List(ctx, itemID)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", itemID, err)
	}
	for _, v := range private {
		if err := e.DeleteItemVersion(ctx, itemID, v.ID); err != nil {
			return err
		}
	}

	public, err := e.publicVersions.List(ctx, itemID)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", itemID, err)
	}
	for _, v := range public {
		ec := model.ElementContext{ItemID: itemID, VersionID: v.ID}
		if err := e.publicElements.CleanAll(ctx, ec); err != nil {
			return fmt.Errorf("delete item %s: %w", itemID, err)
		}
		if err := e.publicVersions.Delete(ctx, ec); err != nil {
			return fmt.Errorf("delete item %s: %w", itemID, err)
		}
	}

	e.logger.Info("deleted item",
		"item", itemID,
		"private_versions", len(private),
		"public_versions", len(public))
	return nil
}

// CreateItemVersion creates a private version holding data on its root
// element. With a base version, the base's private tree is copied first as
// new unpublished content, so the first publish carries the whole tree.
func (e *Engine) CreateItemVersion(ctx context.Context, itemID, baseVersionID, versionID model.ID, data ItemVersionData) (ItemVersion, error) {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}
	if err := validateContext(ec); err != nil {
		return ItemVersion{}, err
	}
	if baseVersionID == versionID {
		return ItemVersion{}, invalidArgument("version %s cannot be based on itself", versionID)
	}
	if _, found, err := e.privateVersions.Get(ctx, ec); err != nil {
		return ItemVersion{}, fmt.Errorf("create version: %w", err)
	} else if found {
		return ItemVersion{}, invalidArgument("item %s version %s already exists", itemID, versionID)
	}

	now := e.clock.Now()
	v := model.Version{ID: versionID, BaseID: baseVersionID, CreationTime: now, ModificationTime: now}

	if baseVersionID.IsEmpty() {
		root := data.apply(model.NewElement(model.RootID))
		if err := e.privateElements.Create(ctx, ec, root); err != nil {
			return ItemVersion{}, fmt.Errorf("create version data: %w", err)
		}
	} else {
		if err := e.copyElements(ctx, ec, model.ElementContext{ItemID: itemID, VersionID: baseVersionID}); err != nil {
			return ItemVersion{}, err
		}
		root, _, err := e.privateElements.Get(ctx, ec, model.RootID)
		if err != nil {
			return ItemVersion{}, fmt.Errorf("create version data: %w", err)
		}
		if _, err := e.privateElements.Update(ctx, ec, data.apply(root)); err != nil {
			return ItemVersion{}, fmt.Errorf("create version data: %w", err)
		}
	}

	if err := e.privateVersions.Create(ctx, ec, v); err != nil {
		return ItemVersion{}, fmt.Errorf("create version: %w", err)
	}

	e.logger.Info("created version", "item", itemID, "version", versionID, "base", baseVersionID)
	return ItemVersion{Version: v, Data: data}, nil
}

// copyElements copies the private tree of base into target, parents first.
func (e *Engine) copyElements(ctx context.Context, target, base model.ElementContext) error {
	if _, found, err := e.privateVersions.Get(ctx, base); err != nil {
		return fmt.Errorf("copy base version: %w", err)
	} else if !found {
		return model.InvalidOperation(model.CodeBaseVersionMissing,
			"base version %s of item %s does not exist", base.VersionID, base.ItemID)
	}

	root, found, err := e.privateElements.Get(ctx, base, model.RootID)
	if err != nil {
		return fmt.Errorf("copy base version: %w", err)
	}
	if !found {
		return model.Internal(model.CodeVersionDataMissing,
			"base version %s has no data element", base.VersionID)
	}

	queue := []model.Element{root}
	for len(queue) > 0 {
		el := queue[0]
		queue = queue[1:]
		if err := e.privateElements.Create(ctx, target, el); err != nil {
			return fmt.Errorf("copy element %s: %w", el.ID, err)
		}
		children, err := e.privateElements.ListSubs(ctx, base, el.ID)
		if err != nil {
			return fmt.Errorf("copy element %s: %w", el.ID, err)
		}
		queue = append(queue, children...)
	}
	return nil
}

// UpdateItemVersion replaces the version data. The modification time only
// moves when the data actually changed.
func (e *Engine) UpdateItemVersion(ctx context.Context, itemID, versionID model.ID, data ItemVersionData) error {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}
	v, err := e.requirePrivateVersion(ctx, ec)
	if err != nil {
		return err
	}
	root, err := e.privateRoot(ctx, ec)
	if err != nil {
		return err
	}

	changed, err := e.privateElements.Update(ctx, ec, data.apply(root))
	if err != nil {
		return fmt.Errorf("update version data: %w", err)
	}
	if !changed {
		return nil
	}
	return e.touch(ctx, ec, v)
}

// DeleteItemVersion removes the private version, its tree and anything staged
// for it. Public revisions are kept.
func (e *Engine) DeleteItemVersion(ctx context.Context, itemID, versionID model.ID) error {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}
	if err := validateContext(ec); err != nil {
		return err
	}

	if err := e.stageElements.DeleteAll(ctx, ec); err != nil {
		return fmt.Errorf("delete version %s: %w", versionID, err)
	}
	if err := e.stageVersions.Delete(ctx, ec); err != nil {
		return fmt.Errorf("delete version %s: %w", versionID, err)
	}
	if err := e.privateElements.CleanAll(ctx, ec); err != nil {
		return fmt.Errorf("delete version %s: %w", versionID, err)
	}
	if err := e.privateVersions.Delete(ctx, ec); err != nil {
		return fmt.Errorf("delete version %s: %w", versionID, err)
	}
	return nil
}

// ListItemVersions returns the private versions of an item ordered by id.
func (e *Engine) ListItemVersions(ctx context.Context, itemID model.ID) ([]model.Version, error) {
	if itemID.IsEmpty() {
		return nil, invalidArgument("item id is required")
	}
	return e.privateVersions.List(ctx, itemID)
}

// GetItemVersion returns the private version, or the public version as it
// was at revisionID when one is given.
func (e *Engine) GetItemVersion(ctx context.Context, itemID, versionID, revisionID model.ID) (ItemVersion, error) {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID, RevisionID: revisionID}
	if revisionID.IsEmpty() {
		v, err := e.requirePrivateVersion(ctx, ec)
		if err != nil {
			return ItemVersion{}, err
		}
		root, err := e.privateRoot(ctx, ec)
		if err != nil {
			return ItemVersion{}, err
		}
		return ItemVersion{Version: v, Data: versionData(root)}, nil
	}

	if err := e.requireRevision(ctx, ec); err != nil {
		return ItemVersion{}, err
	}
	v, found, err := e.publicVersions.Get(ctx, ec)
	if err != nil {
		return ItemVersion{}, fmt.Errorf("get version: %w", err)
	}
	if !found {
		return ItemVersion{}, revisionMissing(ec)
	}
	root, found, err := e.publicElements.GetDescriptor(ctx, ec, model.RootID)
	if err != nil {
		return ItemVersion{}, fmt.Errorf("get version data: %w", err)
	}
	if !found {
		return ItemVersion{}, model.Internal(model.CodeVersionDataMissing,
			"revision %s of version %s has no data element", revisionID, versionID)
	}
	return ItemVersion{Version: v, Data: versionData(root)}, nil
}

// GetItemVersionStatus reports whether the private version is being merged,
// is in sync with the public head, or is behind it.
func (e *Engine) GetItemVersionStatus(ctx context.Context, itemID, versionID model.ID) (ItemVersionStatus, error) {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}
	if err := validateContext(ec); err != nil {
		return ItemVersionStatus{}, err
	}

	if _, merging, err := e.stageVersions.Get(ctx, ec); err != nil {
		return ItemVersionStatus{}, fmt.Errorf("version status: %w", err)
	} else if merging {
		return ItemVersionStatus{Status: StatusMerging, Dirty: true}, nil
	}

	head, published, err := e.publicVersions.GetSyncState(ctx, ec)
	if err != nil {
		return ItemVersionStatus{}, fmt.Errorf("version status: %w", err)
	}
	local, found, err := e.privateVersions.GetSyncState(ctx, ec)
	if err != nil {
		return ItemVersionStatus{}, fmt.Errorf("version status: %w", err)
	}
	if !published {
		return ItemVersionStatus{Status: StatusUpToDate, Dirty: !found || local.Dirty}, nil
	}
	if !found {
		return ItemVersionStatus{Status: StatusOutOfSync}, nil
	}

	status := StatusOutOfSync
	if model.SameTime(local.PublishTime, head.PublishTime) {
		status = StatusUpToDate
	}
	return ItemVersionStatus{Status: status, Dirty: local.Dirty}, nil
}

// TagItemVersion accepts tags on the current version. Tagging a revision is
// not supported.
func (e *Engine) TagItemVersion(ctx context.Context, itemID, versionID, revisionID model.ID, tag string) error {
	if !revisionID.IsEmpty() {
		return model.NotSupported("tagging a revision")
	}
	if _, err := e.requirePrivateVersion(ctx, model.ElementContext{ItemID: itemID, VersionID: versionID}); err != nil {
		return err
	}
	if tag == "" {
		return invalidArgument("tag name is required")
	}
	e.logger.Debug("tag accepted", "item", itemID, "version", versionID, "tag", tag)
	return nil
}

func (e *Engine) privateRoot(ctx context.Context, ec model.ElementContext) (model.Element, error) {
	root, found, err := e.privateElements.Get(ctx, ec, model.RootID)
	if err != nil {
		return model.Element{}, fmt.Errorf("get version data: %w", err)
	}
	if !found {
		return model.Element{}, model.Internal(model.CodeVersionDataMissing,
			"version %s has no data element", ec.VersionID)
	}
	return root, nil
}

// requireRevision checks that ec.RevisionID is a revision of the version.
func (e *Engine) requireRevision(ctx context.Context, ec model.ElementContext) error {
	if err := validateContext(ec); err != nil {
		return err
	}
	_, found, err := e.publicVersions.GetSyncState(ctx, ec)
	if err != nil {
		return fmt.Errorf("get revision: %w", err)
	}
	if !found {
		return revisionMissing(ec)
	}
	return nil
}
