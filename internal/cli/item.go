package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/engine"
	"github.com/roach88/treesync/internal/model"
)

// NewItemCommand creates the item command group.
func NewItemCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage items",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <item>",
		Short: "Delete an item with all of its versions and revisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				if err := r.engine.DeleteItem(r.ctx, model.ID(args[0])); err != nil {
					return nil, err
				}
				return map[string]string{"deleted": args[0]}, nil
			})
		},
	})
	return cmd
}

// versionDataFlags holds the flags describing version data.
type versionDataFlags struct {
	name        string
	description string
	properties  map[string]string
}

func (f *versionDataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "version name")
	cmd.Flags().StringVar(&f.description, "description", "", "version description")
	cmd.Flags().StringToStringVar(&f.properties, "prop", nil, "version property key=value (repeatable)")
}

func (f *versionDataFlags) data() engine.ItemVersionData {
	return engine.ItemVersionData{Info: model.Info{
		Name:        f.name,
		Description: f.description,
		Properties:  emptyToNil(f.properties),
	}}
}

// NewVersionCommand creates the version command group.
func NewVersionCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Manage item versions in the private space",
	}
	cmd.AddCommand(
		newVersionCreateCommand(opts),
		newVersionUpdateCommand(opts),
		newVersionDeleteCommand(opts),
		newVersionGetCommand(opts),
		newVersionStatusCommand(opts),
	)
	return cmd
}

func newVersionCreateCommand(opts *RootOptions) *cobra.Command {
	var flags versionDataFlags
	var base string

	cmd := &cobra.Command{
		Use:   "create <item> <version>",
		Short: "Create a private version, optionally copying a base version",
		Example: `  treesync version create doc v1 --name "first draft"
  treesync version create doc v2 --base v1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				return r.engine.CreateItemVersion(r.ctx,
					model.ID(args[0]), model.ID(base), model.ID(args[1]), flags.data())
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&base, "base", "", "version to copy the element tree from")
	return cmd
}

func newVersionUpdateCommand(opts *RootOptions) *cobra.Command {
	var flags versionDataFlags

	cmd := &cobra.Command{
		Use:   "update <item> <version>",
		Short: "Replace the version data",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				itemID, versionID := model.ID(args[0]), model.ID(args[1])
				if err := r.engine.UpdateItemVersion(r.ctx, itemID, versionID, flags.data()); err != nil {
					return nil, err
				}
				return r.engine.GetItemVersion(r.ctx, itemID, versionID, "")
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newVersionDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item> <version>",
		Short: "Delete a private version; its public revisions are kept",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				if err := r.engine.DeleteItemVersion(r.ctx, model.ID(args[0]), model.ID(args[1])); err != nil {
					return nil, err
				}
				return map[string]string{"deleted": args[1]}, nil
			})
		},
	}
}

func newVersionGetCommand(opts *RootOptions) *cobra.Command {
	var revision string

	cmd := &cobra.Command{
		Use:   "get <item> <version>",
		Short: "Show a private version, or a public revision of it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				return r.engine.GetItemVersion(r.ctx, model.ID(args[0]), model.ID(args[1]), model.ID(revision))
			})
		},
	}
	cmd.Flags().StringVar(&revision, "revision", "", "public revision to read")
	return cmd
}

func newVersionStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <item> <version>",
		Short: "Show whether the version is up to date, out of sync or merging",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				return r.engine.GetItemVersionStatus(r.ctx, model.ID(args[0]), model.ID(args[1]))
			})
		},
	}
}

func emptyToNil(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}
