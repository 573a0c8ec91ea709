package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/config"
	"github.com/roach88/treesync/internal/engine"
	"github.com/roach88/treesync/internal/model"
	"github.com/roach88/treesync/internal/store"
)

// runtime bundles what a command needs to talk to the engine.
type runtime struct {
	ctx    context.Context
	engine *engine.Engine
	out    *OutputFormatter
	logger *slog.Logger
}

// action is the body of an engine-backed command. Its result is printed on
// success.
type action func(r *runtime) (any, error)

// run loads the configuration, opens the store, runs fn and reports the
// outcome. Engine errors exit with ExitFailure, setup errors with
// ExitCommandError.
func (o *RootOptions) run(cmd *cobra.Command, fn action) error {
	out := &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}

	cfg, err := config.Load(o.viper, o.ConfigFile)
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger, err := config.NewLogger(cfg.Log, out.GetErrWriter(), o.Verbose)
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to configure logging", err)
	}

	out.VerboseLog("opening database %s", cfg.Database.Path)
	st, err := store.OpenWithOptions(cfg.Database.Path, cfg.StoreOptions())
	if err != nil {
		_ = out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	engineOpts := []engine.EngineOption{engine.WithLogger(logger)}
	if o.Clock != nil {
		engineOpts = append(engineOpts, engine.WithClock(o.Clock))
	}
	if o.RevisionIDs != nil {
		engineOpts = append(engineOpts, engine.WithRevisionIDs(o.RevisionIDs))
	}

	r := &runtime{
		ctx:    model.WithSession(cmd.Context(), cfg.UserSession()),
		engine: engine.New(st, engineOpts...),
		out:    out,
		logger: logger,
	}

	result, err := fn(r)
	if err != nil {
		return report(out, err)
	}
	return out.Success(result)
}

// report prints err and converts it to an ExitError.
func report(out *OutputFormatter, err error) error {
	var details any
	if kind := model.KindOf(err); kind != "" {
		details = map[string]string{"kind": string(kind)}
	}

	code := model.CodeOf(err)
	if code == "" {
		code = ErrCodeGeneric
	}
	_ = out.Error(code, err.Error(), details)
	return WrapExitError(ExitFailure, "operation failed", err)
}
