package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAgentsCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the agents of the configured catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := flags.wireApp(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer app.Close()

			agents := app.Agents()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(agents)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tSUB-AGENTS\tDESCRIPTION")
			for _, a := range agents {
				subs := strings.Join(a.SubAgents, ",")
				if subs == "" {
					subs = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Name, a.Type, subs, a.Description)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}
