package collab

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/treesync/internal/model"
	"github.com/roach88/treesync/internal/space"
)

// Clock supplies publish times. Implementations must be strictly increasing.
type Clock interface {
	Now() time.Time
}

// RevisionIDGenerator generates ids for new public revisions.
type RevisionIDGenerator interface {
	Generate() string
}

// PublishResult describes one publish call. A call with nothing to publish
// returns a zero RevisionID and no changes.
type PublishResult struct {
	RevisionID  model.ID        `json:"revision_id,omitempty"`
	PublishTime time.Time       `json:"publish_time"`
	Changes     []ElementChange `json:"changes"`
}

// Published reports whether a revision was created.
func (r PublishResult) Published() bool { return !r.RevisionID.IsEmpty() }

// PublishService copies the private changes of a version into a new public
// revision.
type PublishService struct {
	stores Stores
	clock  Clock
	ids    RevisionIDGenerator
	logger *slog.Logger
}

// NewPublishService creates a publish service. A nil logger means slog.Default().
func NewPublishService(stores Stores, clock Clock, ids RevisionIDGenerator, logger *slog.Logger) *PublishService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishService{stores: stores, clock: clock, ids: ids, logger: logger}
}

type publishChange struct {
	action  model.Action
	element model.Element
}

// publishPlan is the classified set of dirty ids. Dropped ids were deleted
// before they ever reached Public; only their local state is left.
type publishPlan struct {
	creates []publishChange
	updates []publishChange
	deletes []publishChange
	dropped []model.ID
}

// Publish creates one public revision holding every dirty private element.
//
// Private must be in sync with the public head: publishing on top of a head
// Private never synced with is rejected. When neither elements nor the
// version are dirty nothing is written.
func (s *PublishService) Publish(ctx context.Context, itemID, versionID model.ID, message string) (PublishResult, error) {
	ec := model.ElementContext{ItemID: itemID, VersionID: versionID}

	privateState, found, err := s.stores.PrivateVersions.GetSyncState(ctx, ec)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish: %w", err)
	}
	if !found {
		return PublishResult{}, model.InvalidOperation(model.CodePublishNonexistentVersion,
			"item %s version %s does not exist", itemID, versionID)
	}

	head, hasHead, err := s.stores.PublicVersions.GetSyncState(ctx, ec)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish: %w", err)
	}
	if hasHead && !model.SameTime(privateState.PublishTime, head.PublishTime) {
		return PublishResult{}, model.InvalidOperation(model.CodePublishOutOfSyncVersion,
			"item %s version %s is out of sync with public revision %s, sync first", itemID, versionID, head.RevisionID)
	}

	states, err := s.stores.PrivateElements.ListSyncStates(ctx, ec)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish: %w", err)
	}
	var dirty []model.ID
	for _, st := range states {
		if st.Dirty {
			dirty = append(dirty, st.ID)
		}
	}
	if len(dirty) == 0 && !privateState.Dirty {
		s.logger.Debug("nothing to publish", "item", itemID, "version", versionID)
		return PublishResult{}, nil
	}

	plan, err := s.classify(ctx, ec, dirty)
	if err != nil {
		return PublishResult{}, fmt.Errorf("publish: %w", err)
	}

	publishTime := s.clock.Now()
	if hasHead && head.PublishTime != nil && !publishTime.After(*head.PublishTime) {
		publishTime = head.PublishTime.Add(time.Nanosecond)
	}
	revisionID := model.ID(s.ids.Generate())
	revEC := ec.AtRevision(revisionID)

	result := PublishResult{RevisionID: revisionID, PublishTime: publishTime}
	for _, c := range plan.creates {
		if err := s.stores.PublicElements.Create(ctx, revEC, c.element, publishTime); err != nil {
			return PublishResult{}, fmt.Errorf("publish create %s: %w", c.element.ID, err)
		}
		if err := s.stores.PrivateElements.MarkAsPublished(ctx, ec, c.element.ID, publishTime); err != nil {
			return PublishResult{}, fmt.Errorf("publish create %s: %w", c.element.ID, err)
		}
		result.Changes = append(result.Changes, ElementChange{ID: c.element.ID, Action: model.ActionCreate})
	}
	for _, c := range plan.updates {
		if err := s.stores.PublicElements.Update(ctx, revEC, c.element, publishTime); err != nil {
			return PublishResult{}, fmt.Errorf("publish update %s: %w", c.element.ID, err)
		}
		if err := s.stores.PrivateElements.MarkAsPublished(ctx, ec, c.element.ID, publishTime); err != nil {
			return PublishResult{}, fmt.Errorf("publish update %s: %w", c.element.ID, err)
		}
		result.Changes = append(result.Changes, ElementChange{ID: c.element.ID, Action: model.ActionUpdate})
	}
	deleted := make(map[model.ID]bool, len(plan.deletes))
	for _, c := range plan.deletes {
		if err := s.stores.PublicElements.Delete(ctx, revEC, c.element, publishTime); err != nil {
			return PublishResult{}, fmt.Errorf("publish delete %s: %w", c.element.ID, err)
		}
		if err := s.stores.PrivateElements.MarkDeletionAsPublished(ctx, ec, c.element.ID); err != nil {
			return PublishResult{}, fmt.Errorf("publish delete %s: %w", c.element.ID, err)
		}
		deleted[c.element.ID] = true
		result.Changes = append(result.Changes, ElementChange{ID: c.element.ID, Action: model.ActionDelete})
	}
	for _, id := range plan.dropped {
		if err := s.stores.PrivateElements.MarkDeletionAsPublished(ctx, ec, id); err != nil {
			return PublishResult{}, fmt.Errorf("publish drop %s: %w", id, err)
		}
	}

	if err := s.publishVersion(ctx, ec, revisionID, publishTime, message, hasHead, deleted); err != nil {
		return PublishResult{}, fmt.Errorf("publish: %w", err)
	}

	s.logger.Info("published",
		"item", itemID,
		"version", versionID,
		"revision", revisionID,
		"changes", len(result.Changes))
	return result, nil
}

// classify splits dirty ids into creates (parent first), updates, deletes
// (child first) and dropped ids. It does not write.
func (s *PublishService) classify(ctx context.Context, ec model.ElementContext, dirty []model.ID) (publishPlan, error) {
	var plan publishPlan
	for _, id := range dirty {
		e, found, err := s.stores.PrivateElements.Get(ctx, ec, id)
		if err != nil {
			return publishPlan{}, err
		}

		if found {
			_, published, err := s.stores.PublicElements.GetSyncState(ctx, ec, id)
			if err != nil {
				return publishPlan{}, err
			}
			if !published {
				plan.creates = append(plan.creates, publishChange{action: model.ActionCreate, element: e})
				continue
			}
			if _, exists, err := s.stores.PublicElements.Get(ctx, ec, id); err != nil {
				return publishPlan{}, err
			} else if !exists {
				return publishPlan{}, model.Internal(model.CodePublicSyncStateWithoutElement,
					"public state of element %s exists without the element", id)
			}
			plan.updates = append(plan.updates, publishChange{action: model.ActionUpdate, element: e})
			continue
		}

		pub, exists, err := s.stores.PublicElements.Get(ctx, ec, id)
		if err != nil {
			return publishPlan{}, err
		}
		if !exists {
			plan.dropped = append(plan.dropped, id)
			continue
		}
		plan.deletes = append(plan.deletes, publishChange{action: model.ActionDelete, element: pub})
	}

	plan.creates = parentsFirst(plan.creates)
	plan.deletes = parentsFirst(plan.deletes)
	slices.Reverse(plan.deletes)

	inBatch := make(map[model.ID]bool, len(plan.deletes))
	for _, c := range plan.deletes {
		inBatch[c.element.ID] = true
	}
	for i := range plan.deletes {
		if inBatch[plan.deletes[i].element.ParentID] {
			plan.deletes[i].element.ParentID = ""
		}
	}
	return plan, nil
}

// parentsFirst orders changes so that an element comes after its parent
// whenever both are in the batch. Ties keep id order.
func parentsFirst(changes []publishChange) []publishChange {
	pending := make(map[model.ID]publishChange, len(changes))
	for _, c := range changes {
		pending[c.element.ID] = c
	}

	ordered := make([]publishChange, 0, len(changes))
	for len(pending) > 0 {
		progressed := false
		for _, c := range changes {
			if _, ok := pending[c.element.ID]; !ok {
				continue
			}
			if _, parentPending := pending[c.element.ParentID]; parentPending {
				continue
			}
			ordered = append(ordered, c)
			delete(pending, c.element.ID)
			progressed = true
		}
		if !progressed {
			// cycle in parent links; fall back to id order for the rest
			for _, c := range changes {
				if _, ok := pending[c.element.ID]; ok {
					ordered = append(ordered, c)
					delete(pending, c.element.ID)
				}
			}
		}
	}
	return ordered
}

// publishVersion records the revision's element map and version state, then
// marks the private version published.
func (s *PublishService) publishVersion(ctx context.Context, ec model.ElementContext, revisionID model.ID,
	publishTime time.Time, message string, hasHead bool, deleted map[model.ID]bool) error {
	revEC := ec.AtRevision(revisionID)

	elements, err := s.stores.PublicElements.ListIDs(ctx, ec)
	if err != nil {
		return err
	}
	written, err := s.stores.PublicElements.ListWrittenIDs(ctx, revEC)
	if err != nil {
		return err
	}
	for _, id := range written {
		elements[id] = revisionID
	}
	for id := range deleted {
		delete(elements, id)
	}

	v, found, err := s.stores.PrivateVersions.Get(ctx, ec)
	if err != nil {
		return err
	}
	if !found {
		return model.Internal(model.CodeVersionMissing, "private version %s has a state but no row", ec.VersionID)
	}

	rev := space.PublishedRevision{
		PublishTime: publishTime,
		Message:     message,
		User:        model.SessionFrom(ctx).UserID,
		Elements:    elements,
	}
	if hasHead {
		err = s.stores.PublicVersions.Update(ctx, revEC, v, rev)
	} else {
		err = s.stores.PublicVersions.Create(ctx, revEC, v, rev)
	}
	if err != nil {
		return err
	}
	return s.stores.PrivateVersions.MarkAsPublished(ctx, ec, publishTime)
}
