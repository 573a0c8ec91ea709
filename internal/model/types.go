package model

import (
	"slices"
	"time"
)

// ID identifies items, versions, elements and revisions.
type ID string

// ZeroID is the revision id of every Private and Stage row.
// Revert also uses it as the "locally changed" marker for target revisions.
const ZeroID ID = "00000000000000000000000000000000"

// RootID is the id of a version's root element (the version data element).
// Top-level elements are created under it.
const RootID = ZeroID

// IsEmpty reports whether the id is unset.
func (id ID) IsEmpty() bool { return id == "" }

func (id ID) String() string { return string(id) }

// Space names one of the three storage spaces.
type Space string

const (
	SpacePrivate Space = "private"
	SpacePublic  Space = "public"
	SpaceStage   Space = "stage"
)

// Action is the pending operation carried by a staged entity.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionIgnore Action = "IGNORE"
)

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionIgnore:
		return true
	}
	return false
}

// Resolution selects how a conflicted staged element is resolved.
type Resolution string

const (
	ResolutionYours  Resolution = "YOURS"
	ResolutionTheirs Resolution = "THEIRS"
	ResolutionOther  Resolution = "OTHER"
)

// Info is the descriptive part of an element payload.
type Info struct {
	Name        string            `json:"name,omitempty" cbor:"1,keyasint,omitempty"`
	Description string            `json:"description,omitempty" cbor:"2,keyasint,omitempty"`
	Properties  map[string]string `json:"properties,omitempty" cbor:"3,keyasint,omitempty"`
}

// Relation links an element to another element.
type Relation struct {
	Type       string            `json:"type" cbor:"1,keyasint"`
	TargetID   ID                `json:"target_id" cbor:"2,keyasint"`
	Properties map[string]string `json:"properties,omitempty" cbor:"3,keyasint,omitempty"`
}

// Element is one node of a version's tree in one space.
type Element struct {
	ID                ID         `json:"id"`
	ParentID          ID         `json:"parent_id,omitempty"`
	Namespace         string     `json:"namespace,omitempty"`
	Info              Info       `json:"info"`
	Relations         []Relation `json:"relations,omitempty"`
	Data              []byte     `json:"data,omitempty"`
	VisualizationData []byte     `json:"visualization_data,omitempty"`
	SubElementIDs     []ID       `json:"sub_element_ids,omitempty"`
	Hash              string     `json:"hash"`
}

// NewElement returns a bare element carrying only its id.
// Used as a placeholder when only the identity is known.
func NewElement(id ID) Element {
	return Element{ID: id}
}

// Descriptor returns a copy of e without the data blobs.
func (e Element) Descriptor() Element {
	d := e
	d.Data = nil
	d.VisualizationData = nil
	return d
}

// AddSubElement adds id to the sub-element set, keeping it sorted.
func (e *Element) AddSubElement(id ID) {
	i, found := slices.BinarySearch(e.SubElementIDs, id)
	if found {
		return
	}
	e.SubElementIDs = slices.Insert(e.SubElementIDs, i, id)
}

// RemoveSubElement removes id from the sub-element set.
func (e *Element) RemoveSubElement(id ID) {
	i, found := slices.BinarySearch(e.SubElementIDs, id)
	if !found {
		return
	}
	e.SubElementIDs = slices.Delete(e.SubElementIDs, i, i+1)
}

// NormalizeSubElements sorts and de-duplicates the sub-element set.
func (e *Element) NormalizeSubElements() {
	slices.Sort(e.SubElementIDs)
	e.SubElementIDs = slices.Compact(e.SubElementIDs)
}

// Version is one evolving document instance within an item.
type Version struct {
	ID               ID        `json:"id"`
	BaseID           ID        `json:"base_id,omitempty"`
	CreationTime     time.Time `json:"creation_time"`
	ModificationTime time.Time `json:"modification_time"`
}

// SyncState records whether an element or version has local edits not yet
// reflected in public (Dirty) and when it was last published (PublishTime).
// Message and User are only carried by public version states (revisions).
type SyncState struct {
	ID          ID         `json:"id"`
	RevisionID  ID         `json:"revision_id"`
	PublishTime *time.Time `json:"publish_time,omitempty"`
	Dirty       bool       `json:"dirty"`
	Message     string     `json:"message,omitempty"`
	User        string     `json:"user,omitempty"`
}

// IsPublished reports whether the entity was ever published.
func (s SyncState) IsPublished() bool { return s.PublishTime != nil }

// StageEntity wraps an entity with a pending action and conflict status.
type StageEntity[T any] struct {
	Entity             T          `json:"entity"`
	PublishTime        *time.Time `json:"publish_time,omitempty"`
	Action             Action     `json:"action"`
	Conflicted         bool       `json:"conflicted"`
	ConflictDependents []ID       `json:"conflict_dependents,omitempty"`
}

// Revision is one immutable entry of a version's public history.
type Revision struct {
	ID      ID        `json:"revision_id"`
	Time    time.Time `json:"time"`
	Message string    `json:"message,omitempty"`
	User    string    `json:"user,omitempty"`
}

// ElementContext scopes element operations to a version and, in Public,
// to a revision. An empty RevisionID in Public means the latest revision.
type ElementContext struct {
	ItemID     ID
	VersionID  ID
	RevisionID ID
}

// AtRevision returns a copy of c scoped to revisionID.
func (c ElementContext) AtRevision(revisionID ID) ElementContext {
	c.RevisionID = revisionID
	return c
}

// TimePtr returns a pointer to a copy of t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// SameTime reports whether two optional publish times are equal.
func SameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Scope addresses one version tree inside one named storage space.
// RevisionID is ZeroID for Private and Stage rows.
type Scope struct {
	Space      string
	ItemID     ID
	VersionID  ID
	RevisionID ID
}

// AtRevision returns a copy of s scoped to revisionID.
func (s Scope) AtRevision(revisionID ID) Scope {
	s.RevisionID = revisionID
	return s
}
