package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hamster/internal/keyboard"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var lenient bool

	cmd := &cobra.Command{
		Use:   "validate <hamster.yaml>",
		Short: "Check a keyboard document",
		Long: `Parse a keyboard document and report the first problem with its line.

Unknown action verbs are errors unless --lenient is given, in which case
they are kept as opaque actions.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := keyboard.Load(args[0], keyboard.WithStrictActions(!lenient))
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %v\n", err)
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ %s\n", args[0])
			fmt.Fprintf(out, "  keyboard type:  %s\n", cfg.Keyboard.UseKeyboardType)
			fmt.Fprintf(out, "  custom layouts: %d\n", len(cfg.Keyboards))
			fmt.Fprintf(out, "  swipe keyboards: %d\n", len(cfg.Swipe.KeyboardSwipe))
			fmt.Fprintf(out, "  color schemes:  %d\n", len(cfg.Keyboard.ColorSchemas))
			return nil
		},
	}

	cmd.Flags().BoolVar(&lenient, "lenient", false, "accept unknown action verbs")
	return cmd
}
