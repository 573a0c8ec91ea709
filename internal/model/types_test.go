package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubElementSet(t *testing.T) {
	var e Element
	e.AddSubElement("b")
	e.AddSubElement("a")
	e.AddSubElement("b")
	assert.Equal(t, []ID{"a", "b"}, e.SubElementIDs)

	e.RemoveSubElement("a")
	e.RemoveSubElement("missing")
	assert.Equal(t, []ID{"b"}, e.SubElementIDs)

	e.SubElementIDs = []ID{"z", "a", "z"}
	e.NormalizeSubElements()
	assert.Equal(t, []ID{"a", "z"}, e.SubElementIDs)
}

func TestDescriptorDropsBlobs(t *testing.T) {
	e := Element{ID: "x", Info: Info{Name: "n"}, Data: []byte{1}, VisualizationData: []byte{2}}
	d := e.Descriptor()
	assert.Nil(t, d.Data)
	assert.Nil(t, d.VisualizationData)
	assert.Equal(t, "n", d.Info.Name)
	assert.NotNil(t, e.Data, "original untouched")
}

func TestActionValid(t *testing.T) {
	for _, a := range []Action{ActionCreate, ActionUpdate, ActionDelete, ActionIgnore} {
		assert.True(t, a.Valid(), a)
	}
	assert.False(t, Action("MERGE").Valid())
}

func TestSameTime(t *testing.T) {
	t1 := time.Unix(100, 0)
	assert.True(t, SameTime(nil, nil))
	assert.False(t, SameTime(TimePtr(t1), nil))
	assert.False(t, SameTime(nil, TimePtr(t1)))
	assert.True(t, SameTime(TimePtr(t1), TimePtr(t1.UTC())))
	assert.False(t, SameTime(TimePtr(t1), TimePtr(t1.Add(time.Nanosecond))))
}

func TestSessionSpaceName(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, DefaultUser, SessionFrom(ctx).UserID)

	s := SessionFrom(WithSession(ctx, Session{UserID: "alice"}))
	assert.Equal(t, "public", s.SpaceName(SpacePublic))
	assert.Equal(t, "private/alice", s.SpaceName(SpacePrivate))
	assert.Equal(t, "private/alice", s.SpaceName(SpaceStage))

	s = Session{TenantID: "acme", UserID: "bob"}
	assert.Equal(t, "acme:public", s.SpaceName(SpacePublic))
	assert.Equal(t, "acme:private/bob", s.SpaceName(SpacePrivate))
}

func TestErrorHelpers(t *testing.T) {
	err := fmt.Errorf("publish: %w", InvalidOperation(CodePublishOutOfSyncVersion, "version %s is out of sync", "v1"))

	assert.True(t, IsInvalidOperation(err))
	assert.False(t, IsInternal(err))
	assert.Equal(t, CodePublishOutOfSyncVersion, CodeOf(err))
	assert.Contains(t, err.Error(), "version v1 is out of sync")

	assert.True(t, IsNotSupported(NotSupported("merge")))
	assert.True(t, IsInternal(Internal(CodeSubElementMissing, "missing")))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))

	cause := errors.New("disk full")
	wrapped := &Error{Kind: KindInternal, Code: "X", Message: "write", Err: cause}
	assert.ErrorIs(t, wrapped, cause)
}
