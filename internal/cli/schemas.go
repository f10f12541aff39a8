package cli

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewSchemasCommand creates the schemas command group.
func NewSchemasCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List and select input schemas",
	}
	cmd.AddCommand(newSchemasListCommand(rootOpts))
	cmd.AddCommand(newSchemasSelectCommand(rootOpts))
	return cmd
}

func newSchemasListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show deployed schemas",
		Long: `Show the schemas of the last deployment. Schemas selected for the
next deployment are marked with *.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := rootOpts.startEngine()
			if err != nil {
				return err
			}
			defer rt.close()

			deployed, err := rt.manager.Schemas()
			if err != nil {
				return err
			}
			selected, err := rt.manager.SelectedSchemas()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(deployed) == 0 {
				fmt.Fprintln(out, "No schemas deployed. Run 'hamster deploy'.")
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, s := range deployed {
				mark := " "
				if slices.Contains(selected, s.ID) {
					mark = "*"
				}
				fmt.Fprintf(w, "%s %s\t%s\n", mark, s.ID, s.Name)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if d, ok := lastDeploy(rt); ok {
				fmt.Fprintf(out, "\nLast deploy: %s\n", describeDeploy(d))
			}
			return nil
		},
	}
}

func newSchemasSelectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select <schema-id>...",
		Short: "Choose the schemas the next deployment builds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := rootOpts.startEngine()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.manager.SetSelectedSchemas(args); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected %d schema(s); run 'hamster deploy' to apply.\n", len(args))
			return nil
		},
	}
}
