package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hamster/internal/gesture"
	"hamster/internal/keyboard"
)

// NewSwipeCommand creates the swipe command.
func NewSwipeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		key      string
		from     string
		to       string
		layout   string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "swipe",
		Short: "Resolve a gesture on a key",
		Long: `Resolve one pointer gesture against the keyboard document and print
the action it produces.

Examples:
  hamster swipe --key 'character(a)' --from 0,0 --to 0,-40
  hamster swipe --key space --from 0,0 --to 0,0 --duration 800ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			primary, err := keyboard.ParseAction(key, false)
			if err != nil {
				return err
			}
			start, err := parsePoint(from)
			if err != nil {
				return err
			}
			end := start
			if to != "" {
				if end, err = parsePoint(to); err != nil {
					return err
				}
			}

			kcfg, err := rootOpts.keyboardConfig()
			if err != nil {
				return err
			}
			if layout == "" {
				layout = kcfg.ActiveLayoutName()
			}

			r := gesture.NewResolver(gesture.Static{Config: kcfg})
			o := r.Resolve(layout, primary, gesture.Gesture{Start: start, End: end, Elapsed: duration})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kind:      %s\n", o.Kind)
			if o.Direction != "" {
				fmt.Fprintf(out, "direction: %s\n", o.Direction)
			}
			if o.Ambiguous {
				fmt.Fprintln(out, "ambiguous: true")
			}
			if o.Fired() {
				fmt.Fprintf(out, "action:    %s\n", o.Action)
				fmt.Fprintf(out, "engine:    %t\n", o.ProcessByEngine)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "primary action of the key, e.g. character(a)")
	cmd.Flags().StringVar(&from, "from", "0,0", "pointer down position x,y")
	cmd.Flags().StringVar(&to, "to", "", "pointer up position x,y (default: from)")
	cmd.Flags().StringVar(&layout, "layout", "", "layout name (default: active layout)")
	cmd.Flags().DurationVar(&duration, "duration", 100*time.Millisecond, "time between down and up")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
