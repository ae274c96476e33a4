package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/studymesh/specialist"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		agentName string
		userID    string
		name      string
	)

	cmd := &cobra.Command{
		Use:   "run <message...>",
		Short: "Send one message to an agent and print its final answer",
		Example: `  studymesh run "Plan my week around the ML exam on Friday"
  studymesh run --agent deadline_parser "Google STEP internship, apply by 2026-11-15"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var profile map[string]any
			if name != "" {
				profile = map[string]any{"name": name}
			}

			app, err := flags.wireApp(cmd.Context(), profile)
			if err != nil {
				return err
			}
			defer app.Close()

			out, err := app.RunSync(cmd.Context(), agentName, userID, strings.Join(args, " "))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", specialist.Orchestrator, "agent to run")
	cmd.Flags().StringVar(&userID, "user", "default_user", "user id; sessions are kept per user")
	cmd.Flags().StringVar(&name, "name", "", "display name used in agent instructions")

	return cmd
}
