package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/treesync/internal/config"
	"github.com/roach88/treesync/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "json" | "text"

	// Clock and RevisionIDs override the engine defaults (for testing).
	Clock       engine.Clock
	RevisionIDs engine.RevisionIDGenerator

	viper *viper.Viper
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the treesync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	opts.viper = config.New()

	cmd := &cobra.Command{
		Use:   "treesync",
		Short: "treesync - versioned element trees with private, public and stage spaces",
		Long: `treesync keeps a private working copy of every item version per user,
publishes it as immutable public revisions and merges other users'
revisions back through a staging area where conflicts are resolved.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "path to a YAML config file")
	flags.String("db", "", "path to SQLite database (default treesync.db)")
	flags.String("user", "", "acting user (default anonymous)")
	flags.String("tenant", "", "tenant scoping every space")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")

	_ = opts.viper.BindPFlag("database.path", flags.Lookup("db"))
	_ = opts.viper.BindPFlag("session.user", flags.Lookup("user"))
	_ = opts.viper.BindPFlag("session.tenant", flags.Lookup("tenant"))

	cmd.AddCommand(NewItemCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))
	cmd.AddCommand(NewElementCommand(opts))
	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewForceSyncCommand(opts))
	cmd.AddCommand(NewRevertCommand(opts))
	cmd.AddCommand(NewRevisionsCommand(opts))
	cmd.AddCommand(NewConflictsCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewHealthCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
