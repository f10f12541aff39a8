package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hamster/internal/keyboard"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [hamster.yaml]",
		Short: "Reload a keyboard document whenever it changes",
		Long: `Load a keyboard document and print a summary each time it is saved.
A document that fails to parse is reported and the previous one stays active.

Defaults to the keyboard path from the configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config.Keyboard.Path
			if len(args) == 1 {
				path = args[0]
			}

			loader := keyboard.NewLoader(path, keyboard.WithStrictActions(rootOpts.Config.Keyboard.Strict))
			loader.SetLogger(rootOpts.component("keyboard"))
			defer loader.Close()

			out := cmd.OutOrStdout()
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "loaded %s\n", summarize(cfg))

			loader.OnChange(func(cfg *keyboard.Configuration) {
				fmt.Fprintf(out, "reloaded %s\n", summarize(cfg))
			})
			if err := loader.Watch(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-loader.Errors():
					fmt.Fprintf(out, "✗ %v\n", err)
				}
			}
		},
	}
	return cmd
}

func summarize(cfg *keyboard.Configuration) string {
	return fmt.Sprintf("%s: %d layout(s), %d color scheme(s)",
		cfg.ActiveLayoutName(), len(cfg.Keyboards), len(cfg.Keyboard.ColorSchemas))
}
