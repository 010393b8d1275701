package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command
func NewStatusCmd(env *Env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := env.ready(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(view.State)
			}

			fmt.Fprintf(out, "API:           %s\n", env.Config.API.URL)
			fmt.Fprintf(out, "Token store:   %s\n", env.Config.TokenStore.Backend)
			fmt.Fprintf(out, "Phase:         %s\n", env.Session.Phase())
			fmt.Fprintf(out, "Authenticated: %t\n", view.IsAuthenticated)
			if view.User != nil {
				fmt.Fprintf(out, "User:          %s (%s)\n", view.User.Name, view.User.Role)
			}
			if view.Error != nil {
				fmt.Fprintf(out, "Last error:    %s\n", view.Error.Message)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}
