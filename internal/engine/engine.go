package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/treesync/internal/collab"
	"github.com/roach88/treesync/internal/model"
	"github.com/roach88/treesync/internal/space"
	"github.com/roach88/treesync/internal/store"
)

// Engine is the collaboration facade over one store.
//
// Every call runs to completion on the caller's goroutine. Callers
// serialize calls per item version; the engine holds no locks across calls.
// The acting user is taken from the model.Session carried by ctx.
type Engine struct {
	store  *store.Store
	clock  Clock
	ids    RevisionIDGenerator
	logger *slog.Logger

	privateElements *space.PrivateElements
	publicElements  *space.PublicElements
	stageElements   *space.StageElements
	privateVersions *space.PrivateVersions
	publicVersions  *space.PublicVersions
	stageVersions   *space.StageVersions

	publisher *collab.PublishService
	syncer    *collab.SyncService
	committer *collab.CommitService
	discarder *collab.DiscardService
	reverter  *collab.RevertService
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock sets the clock stamping publish and modification times.
// Default: a WallClock.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithRevisionIDs sets the generator of public revision ids.
// Default: UUIDv7Generator.
func WithRevisionIDs(ids RevisionIDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = ids
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  s,
		clock:  NewWallClock(),
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	repos := space.Repositories{
		Elements:      s.Elements(),
		ElementStates: s.ElementStates(),
		Versions:      s.Versions(),
		VersionStates: s.VersionStates(),
		ElementStage:  s.ElementStage(),
		VersionStage:  s.VersionStage(),
	}
	e.privateElements = space.NewPrivateElements(repos)
	e.publicElements = space.NewPublicElements(repos)
	e.stageElements = space.NewStageElements(repos)
	e.privateVersions = space.NewPrivateVersions(repos)
	e.publicVersions = space.NewPublicVersions(repos)
	e.stageVersions = space.NewStageVersions(repos)

	stores := collab.NewStores(repos)
	e.publisher = collab.NewPublishService(stores, e.clock, e.ids, e.logger)
	e.syncer = collab.NewSyncService(stores, e.logger)
	e.committer = collab.NewCommitService(stores, e.logger)
	e.discarder = collab.NewDiscardService(stores, e.logger)
	e.reverter = collab.NewRevertService(stores, e.logger)
	return e
}

// Health describes the state of the storage behind the engine.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	HealthUp   = "UP"
	HealthDown = "DOWN"
)

// CheckHealth reports whether the schema is reachable and current. A down
// store is reported in the result, not as an error.
func (e *Engine) CheckHealth(ctx context.Context) Health {
	if err := e.publicVersions.CheckHealth(ctx); err != nil {
		e.logger.Warn("health check failed", "error", err)
		return Health{Status: HealthDown, Message: fmt.Sprintf("no schema available: %v", err)}
	}
	return Health{Status: HealthUp}
}

// requirePrivateVersion returns the private version of ec or VERSION_MISSING.
func (e *Engine) requirePrivateVersion(ctx context.Context, ec model.ElementContext) (model.Version, error) {
	if err := validateContext(ec); err != nil {
		return model.Version{}, err
	}
	v, found, err := e.privateVersions.Get(ctx, ec)
	if err != nil {
		return model.Version{}, fmt.Errorf("get version: %w", err)
	}
	if !found {
		return model.Version{}, versionMissing(ec)
	}
	return v, nil
}

// touch records a local change of the version: new modification time, dirty.
func (e *Engine) touch(ctx context.Context, ec model.ElementContext, v model.Version) error {
	v.ModificationTime = e.clock.Now()
	if err := e.privateVersions.Update(ctx, ec, v); err != nil {
		return fmt.Errorf("touch version %s: %w", v.ID, err)
	}
	return nil
}
