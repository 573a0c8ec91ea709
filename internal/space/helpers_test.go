package space

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/treesync/internal/model"
	"github.com/roach88/treesync/internal/store"
)

type fixture struct {
	ctx            context.Context
	ec             model.ElementContext
	private        *PrivateElements
	public         *PublicElements
	stage          *StageElements
	privateVersion *PrivateVersions
	publicVersion  *PublicVersions
	stageVersion   *StageVersions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "space.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	repos := Repositories{
		Elements:      s.Elements(),
		ElementStates: s.ElementStates(),
		Versions:      s.Versions(),
		VersionStates: s.VersionStates(),
		ElementStage:  s.ElementStage(),
		VersionStage:  s.VersionStage(),
	}
	return &fixture{
		ctx:            model.WithSession(context.Background(), model.Session{UserID: "alice"}),
		ec:             model.ElementContext{ItemID: "item", VersionID: "v1"},
		private:        NewPrivateElements(repos),
		public:         NewPublicElements(repos),
		stage:          NewStageElements(repos),
		privateVersion: NewPrivateVersions(repos),
		publicVersion:  NewPublicVersions(repos),
		stageVersion:   NewStageVersions(repos),
	}
}

func element(id, parent model.ID, name string) model.Element {
	return model.Element{ID: id, ParentID: parent, Info: model.Info{Name: name}}
}

func at(sec int64) time.Time { return time.Unix(sec, 0).UTC() }
