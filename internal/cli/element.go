package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/treesync/internal/model"
)

// elementFlags holds the flags describing an element payload.
type elementFlags struct {
	parent      string
	namespace   string
	name        string
	description string
	properties  map[string]string
	data        string
}

func (f *elementFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.namespace, "namespace", "", "element namespace")
	cmd.Flags().StringVar(&f.name, "name", "", "element name")
	cmd.Flags().StringVar(&f.description, "description", "", "element description")
	cmd.Flags().StringToStringVar(&f.properties, "prop", nil, "element property key=value (repeatable)")
	cmd.Flags().StringVar(&f.data, "data", "", "element data")
}

// apply overwrites the fields of el whose flags were given.
func (f *elementFlags) apply(cmd *cobra.Command, el model.Element) model.Element {
	changed := cmd.Flags().Changed
	if changed("namespace") {
		el.Namespace = f.namespace
	}
	if changed("name") {
		el.Info.Name = f.name
	}
	if changed("description") {
		el.Info.Description = f.description
	}
	if changed("prop") {
		el.Info.Properties = emptyToNil(f.properties)
	}
	if changed("data") {
		el.Data = []byte(f.data)
	}
	return el
}

func elementContext(args []string) model.ElementContext {
	return model.ElementContext{ItemID: model.ID(args[0]), VersionID: model.ID(args[1])}
}

// NewElementCommand creates the element command group.
func NewElementCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "element",
		Short: "Manage the element tree of a private version",
	}
	cmd.AddCommand(
		newElementCreateCommand(opts),
		newElementGetCommand(opts),
		newElementListCommand(opts),
		newElementUpdateCommand(opts),
		newElementDeleteCommand(opts),
		newElementConflictCommand(opts),
	)
	return cmd
}

func newElementCreateCommand(opts *RootOptions) *cobra.Command {
	var flags elementFlags

	cmd := &cobra.Command{
		Use:     "create <item> <version> <element>",
		Short:   "Create an element under a parent (the version root by default)",
		Example: `  treesync element create doc v1 chapter-1 --name "Chapter 1" --data "..."`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				el := flags.apply(cmd, model.Element{ID: model.ID(args[2]), ParentID: model.ID(flags.parent)})
				return r.engine.CreateElement(r.ctx, elementContext(args), el)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&flags.parent, "parent", "", "parent element id")
	return cmd
}

func newElementGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <item> <version> <element>",
		Short: "Show a private element",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				return r.engine.GetElement(r.ctx, elementContext(args), model.ID(args[2]))
			})
		},
	}
}

func newElementListCommand(opts *RootOptions) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "list <item> <version>",
		Short: "List the children of an element (the top-level elements by default)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				return r.engine.ListElements(r.ctx, elementContext(args), model.ID(parent))
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent element id")
	return cmd
}

func newElementUpdateCommand(opts *RootOptions) *cobra.Command {
	var flags elementFlags

	cmd := &cobra.Command{
		Use:   "update <item> <version> <element>",
		Short: "Change the payload of an element; unset flags keep their value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				ec := elementContext(args)
				el, err := r.engine.GetElement(r.ctx, ec, model.ID(args[2]))
				if err != nil {
					return nil, err
				}
				changed, err := r.engine.UpdateElement(r.ctx, ec, flags.apply(cmd, el))
				if err != nil {
					return nil, err
				}
				return map[string]any{"id": args[2], "changed": changed}, nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newElementDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item> <version> <element>",
		Short: "Delete an element with its subtree",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				if err := r.engine.DeleteElement(r.ctx, elementContext(args), model.ID(args[2])); err != nil {
					return nil, err
				}
				return map[string]string{"deleted": args[2]}, nil
			})
		},
	}
}

func newElementConflictCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conflict <item> <version> <element>",
		Short: "Show both sides of a conflicted element",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(r *runtime) (any, error) {
				conflict, err := r.engine.GetElementConflict(r.ctx, elementContext(args), model.ID(args[2]))
				if err != nil {
					return nil, err
				}
				if conflict == nil {
					return "no conflict", nil
				}
				return conflict, nil
			})
		},
	}
}
