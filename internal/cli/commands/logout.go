package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Long:  "Removes the stored token. The server is not contacted; the token simply stops being sent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := env.ready(cmd.Context())
			if err != nil {
				return err
			}

			wasAuthenticated := view.IsAuthenticated
			view.Logout()

			if wasAuthenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
			}
			return nil
		},
	}
}
