package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/engine"
	"github.com/roach88/treesync/internal/model"
)

func versionCommand(opts *RootOptions, use, short string, fn func(r *runtime, itemID, versionID model.ID) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <item> <version>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				return fn(r, model.ID(args[0]), model.ID(args[1]))
			})
		},
	}
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(opts *RootOptions) *cobra.Command {
	var message string

	cmd := versionCommand(opts, "publish", "Publish the private changes as a new public revision",
		func(r *runtime, itemID, versionID model.ID) (any, error) {
			return r.engine.Publish(r.ctx, itemID, versionID, message)
		})
	cmd.Flags().StringVarP(&message, "message", "m", "", "revision message")
	return cmd
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return versionCommand(opts, "sync", "Merge newer public revisions into the private version",
		func(r *runtime, itemID, versionID model.ID) (any, error) {
			return r.engine.Sync(r.ctx, itemID, versionID)
		})
}

// NewForceSyncCommand creates the force-sync command.
func NewForceSyncCommand(opts *RootOptions) *cobra.Command {
	return versionCommand(opts, "force-sync", "Drop local changes and sync with the public head",
		func(r *runtime, itemID, versionID model.ID) (any, error) {
			return r.engine.ForceSync(r.ctx, itemID, versionID)
		})
}

// NewRevisionsCommand creates the revisions command.
func NewRevisionsCommand(opts *RootOptions) *cobra.Command {
	return versionCommand(opts, "revisions", "List the public revisions, newest first",
		func(r *runtime, itemID, versionID model.ID) (any, error) {
			return r.engine.ListRevisions(r.ctx, itemID, versionID)
		})
}

// NewConflictsCommand creates the conflicts command.
func NewConflictsCommand(opts *RootOptions) *cobra.Command {
	return versionCommand(opts, "conflicts", "List the unresolved conflicts of a version",
		func(r *runtime, itemID, versionID model.ID) (any, error) {
			return r.engine.GetItemVersionConflict(r.ctx, itemID, versionID)
		})
}

// NewRevertCommand creates the revert command.
func NewRevertCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <item> <version> <revision>",
		Short: "Make the private version equal to a public revision",
		Long: `Revert drops local changes, then rewrites the private version so it
matches the given revision. The result is left unpublished.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				return r.engine.Revert(r.ctx, model.ID(args[0]), model.ID(args[1]), model.ID(args[2]))
			})
		},
	}
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(opts *RootOptions) *cobra.Command {
	var resolution string

	cmd := &cobra.Command{
		Use:   "resolve <item> <version> <element>",
		Short: "Resolve a conflicted element and commit what it unblocked",
		Example: `  treesync resolve doc v1 chapter-1 --resolution yours
  treesync resolve doc v1 chapter-1 --resolution theirs`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := model.Resolution(strings.ToUpper(resolution))
			if res != model.ResolutionYours && res != model.ResolutionTheirs {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid resolution %q: must be yours or theirs", resolution))
			}
			return opts.run(cmd, func(r *runtime) (any, error) {
				return r.engine.ResolveElementConflict(r.ctx, elementContext(args), model.ID(args[2]), res)
			})
		},
	}
	cmd.Flags().StringVar(&resolution, "resolution", "", "yours or theirs")
	_ = cmd.MarkFlagRequired("resolution")
	return cmd
}

// NewHealthCommand creates the health command.
func NewHealthCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the database schema is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				h := r.engine.CheckHealth(r.ctx)
				if h.Status != engine.HealthUp {
					return nil, NewExitError(ExitFailure, h.Message)
				}
				return h, nil
			})
		},
	}
}
