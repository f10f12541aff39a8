package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hamster/internal/notify"
	"hamster/internal/store"
)

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		desktop bool
		history int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Rebuild the selected input schemas",
		Long: `Import the selected schemas and their dictionaries into the table engine.

Lifecycle events are printed as they arrive. With --notify they are also
posted to the desktop notification service.

Examples:
  hamster deploy
  hamster deploy --notify
  hamster deploy --history 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := rootOpts.startEngine()
			if err != nil {
				return err
			}
			defer rt.close()

			out := cmd.OutOrStdout()
			if history > 0 {
				return printHistory(cmd, rt, history)
			}

			var desk *notify.DesktopNotifier
			if desktop || rootOpts.Config.Notify.Desktop {
				desk, err = notify.NewDesktopNotifier(rootOpts.Config.Engine.DistributionName,
					time.Duration(rootOpts.Config.Notify.TimeoutMs)*time.Millisecond)
				if err != nil {
					rootOpts.component("notify").Warn("desktop notifications unavailable", "error", err)
				} else {
					desk.SetLogger(rootOpts.component("notify"))
					defer desk.Close()
				}
			}

			bridge := rt.manager.Bridge()
			for _, k := range []notify.Kind{notify.DeployStart, notify.DeploySuccess, notify.DeployFailure} {
				bridge.Handle(k, func(ev notify.Event) {
					fmt.Fprintf(out, "%s\n", ev.Kind)
					if desk != nil {
						desk.Handle(ev)
					}
				})
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			d, err := rt.manager.Deploy()
			if err != nil {
				return err
			}
			if err := d.Wait(ctx); err != nil {
				if last, ok := lastDeploy(rt); ok && !last.OK {
					fmt.Fprintf(out, "✗ %s\n", describeDeploy(last))
				}
				return err
			}

			schemas, err := rt.manager.Schemas()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ deployed %d schema(s) in %s\n", len(schemas), d.Duration().Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&desktop, "notify", false, "post deployment events to the desktop")
	cmd.Flags().IntVar(&history, "history", 0, "show the last N deployments instead of deploying")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up waiting after this long")
	return cmd
}

func printHistory(cmd *cobra.Command, rt *runtime, n int) error {
	db := rt.engine.Store()
	if db == nil {
		return fmt.Errorf("no dictionary store")
	}
	deploys, err := db.Deploys(n)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(deploys) == 0 {
		fmt.Fprintln(out, "No deployments recorded.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tRESULT\tSCHEMAS\tID")
	for _, d := range deploys {
		result := "ok"
		if !d.OK {
			result = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			formatTime(d.Started), d.Duration.Round(time.Millisecond), result, d.Schemas, truncate(d.ID, 8))
	}
	return w.Flush()
}

// lastDeploy returns the newest recorded deployment.
func lastDeploy(rt *runtime) (store.Deploy, bool) {
	db := rt.engine.Store()
	if db == nil {
		return store.Deploy{}, false
	}
	deploys, err := db.Deploys(1)
	if err != nil || len(deploys) == 0 {
		return store.Deploy{}, false
	}
	return deploys[0], true
}

func describeDeploy(d store.Deploy) string {
	if d.OK {
		return fmt.Sprintf("%s, %d schema(s)", formatTime(d.Started), d.Schemas)
	}
	return fmt.Sprintf("%s, failed: %s", formatTime(d.Started), d.Detail)
}
