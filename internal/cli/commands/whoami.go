package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/securewatch/securewatch/internal/rbac"
	"github.com/securewatch/securewatch/internal/session"
)

type whoamiOutput struct {
	*session.User
	Home         string            `json:"home"`
	Capabilities []rbac.Capability `json:"capabilities"`
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(env *Env) *cobra.Command {
	var asJSON, refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user and what they can do",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := env.ready(cmd.Context())
			if err != nil {
				return err
			}

			if refresh && view.IsAuthenticated {
				if err := view.GetCurrentUser(cmd.Context()); err != nil && !session.IsSessionExpired(err) && !errors.Is(err, session.ErrSuperseded) {
					return describeError("refresh", err)
				}
				view = env.Gate.View()
			}

			if !view.IsAuthenticated {
				return ErrNotAuthenticated
			}

			caps := rbac.Capabilities(view.User.Role)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(whoamiOutput{
					User:         view.User,
					Home:         rbac.HomeView(view.User.Role),
					Capabilities: caps,
				})
			}

			fmt.Fprintf(out, "User:  %s (%s)\n", view.User.Name, view.User.Email)
			fmt.Fprintf(out, "ID:    %s\n", view.User.ID)
			fmt.Fprintf(out, "Role:  %s\n", describeRole(view.User.Role))
			fmt.Fprintf(out, "Home:  %s\n", rbac.HomeView(view.User.Role))
			if len(caps) > 0 {
				names := make([]string, len(caps))
				for i, c := range caps {
					names[i] = string(c)
				}
				fmt.Fprintf(out, "Can:   %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-fetch the profile from the server first")

	return cmd
}

func describeRole(role rbac.Role) string {
	if role.IsValid() {
		return string(role)
	}
	return fmt.Sprintf("%s (unrecognized, no privileges)", role)
}
