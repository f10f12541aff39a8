package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hamster/internal/gesture"
	"hamster/internal/ime"
	"hamster/internal/keyboard"
)

// NewTypeCommand creates the type command.
func NewTypeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		page   int
		size   int
		choose int
	)

	cmd := &cobra.Command{
		Use:   "type <keys>",
		Short: "Type keys into the engine and show the candidates",
		Long: `Feed keys through the input controller and print the text, the
composition and one page of candidates.

Letters and digits are typed as characters, a space is the space key and
any action may be written in braces.

Examples:
  hamster type nihao
  hamster type nihao --page 2 --size 5
  hamster type 'nihao{space}'
  hamster type 'ni{shortCommand(#次选上屏)}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actions, err := parseKeys(args[0])
			if err != nil {
				return err
			}
			if err := validatePositiveInt(page, "page"); err != nil {
				return err
			}
			if size <= 0 {
				size = rootOpts.Config.Engine.PageSize
			}

			rt, err := rootOpts.startEngine()
			if err != nil {
				return err
			}
			defer rt.close()

			if err := ensureDeployed(cmd.Context(), rt); err != nil {
				return err
			}

			kcfg, err := rootOpts.keyboardConfig()
			if err != nil {
				return err
			}
			doc := ime.NewDocument("")
			ctrl := ime.NewController(rt.manager, gesture.Static{Config: kcfg}, doc,
				ime.WithLogger(rootOpts.component("ime")),
				ime.WithPageSize(size),
				ime.WithMaxCandidates(rootOpts.Config.Engine.MaxCandidates),
			)

			for _, a := range actions {
				if err := ctrl.Perform(a, true); err != nil {
					return fmt.Errorf("%s: %w", a, err)
				}
			}
			if page > 1 {
				if err := ctrl.ShowPage((page-1)*size + 1); err != nil {
					return err
				}
			}
			if choose > 0 {
				if err := ctrl.SelectSuggestion(choose - 1); err != nil {
					return err
				}
			}

			st := ctrl.State().Load()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "text:   %s\n", doc.String())
			fmt.Fprintf(out, "input:  %s\n", st.Input)
			fmt.Fprintf(out, "schema: %s\n", st.Schema.Name)
			if !st.Suggestions.Empty() {
				fmt.Fprint(out, formatPage(st.Suggestions))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "candidate page to show")
	cmd.Flags().IntVar(&size, "size", 0, "candidates per page (default from config)")
	cmd.Flags().IntVar(&choose, "select", 0, "commit the Nth candidate of the shown page")
	return cmd
}

// parseKeys splits keys into actions. "{verb(param)}" is any action in the
// keyboard grammar.
func parseKeys(keys string) ([]keyboard.Action, error) {
	var actions []keyboard.Action
	rest := keys
	for rest != "" {
		if body, ok := strings.CutPrefix(rest, "{"); ok {
			end := strings.IndexByte(body, '}')
			if end < 0 {
				return nil, fmt.Errorf("keys %q: unterminated {", keys)
			}
			a, err := keyboard.ParseAction(body[:end], false)
			if err != nil {
				return nil, err
			}
			actions = append(actions, a)
			rest = body[end+1:]
			continue
		}

		r := []rune(rest)[0]
		switch r {
		case ' ':
			actions = append(actions, keyboard.Space)
		case '\n':
			actions = append(actions, keyboard.Enter)
		default:
			actions = append(actions, keyboard.Character(string(r)))
		}
		rest = rest[len(string(r)):]
	}
	return actions, nil
}

// ensureDeployed deploys once when nothing has been deployed yet.
func ensureDeployed(ctx context.Context, rt *runtime) error {
	schemas, err := rt.manager.Schemas()
	if err != nil {
		return err
	}
	if len(schemas) > 0 {
		return nil
	}
	d, err := rt.manager.Deploy()
	if err != nil {
		return err
	}
	if err := d.Wait(ctx); err != nil {
		return err
	}
	return rt.manager.ResetSession()
}

// validatePositiveInt returns an error if n is not positive.
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}
