package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/harness"
)

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenario <file-or-dir>",
		Short: "Run collaboration scenarios against a fresh in-memory engine",
		Long: `Run one scenario file, or every *.yaml and *.yml file in a directory.
Each scenario runs in its own in-memory database with a deterministic
clock and sequential revision ids. Exits with 1 if any scenario fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, opts, args[0])
		},
	}
}

func runScenarios(cmd *cobra.Command, opts *RootOptions, path string) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	paths, err := harness.ScenarioPaths(path)
	if err != nil {
		_ = out.Error(ErrCodeArgument, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	out.VerboseLog("running %d scenarios", len(paths))

	suite, err := harness.RunAll(paths)
	if err != nil {
		_ = out.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "scenario run failed", err)
	}
	if err := out.Success(suite); err != nil {
		return err
	}
	if !suite.Pass() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", suite.Failed, suite.Total))
	}
	return nil
}
