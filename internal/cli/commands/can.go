package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/securewatch/securewatch/internal/rbac"
)

// ErrDenied is returned when the check fails, so the exit status reflects it
var ErrDenied = errors.New("permission denied")

// NewCanCmd creates the can command
func NewCanCmd(env *Env) *cobra.Command {
	var exact bool

	cmd := &cobra.Command{
		Use:   "can <capability|role>...",
		Short: "Check whether the logged in user holds a capability or role",
		Long: `Check whether the logged in user holds a capability or role.

A role argument passes when the user's role is at least that role. With
--exact, the user's role must be one of the listed roles instead.

Examples:
  securewatch can alerts:create
  securewatch can admin
  securewatch can --exact police admin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := env.ready(cmd.Context())
			if err != nil {
				return err
			}
			if !view.IsAuthenticated {
				return ErrNotAuthenticated
			}

			allowed, err := check(view.User.Role, args, exact)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !allowed {
				fmt.Fprintf(out, "denied: %s cannot %s\n", view.User.Role, strings.Join(args, " "))
				return ErrDenied
			}
			fmt.Fprintf(out, "allowed: %s can %s\n", view.User.Role, strings.Join(args, " "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&exact, "exact", false, "Require the role to be one of the listed roles")

	return cmd
}

// check evaluates every argument against role. All must pass.
func check(role rbac.Role, args []string, exact bool) (bool, error) {
	if exact {
		roles := make([]rbac.Role, 0, len(args))
		for _, a := range args {
			r, ok := rbac.ParseRole(a)
			if !ok {
				return false, fmt.Errorf("unknown role %q", a)
			}
			roles = append(roles, r)
		}
		return rbac.IsPermitted(role, rbac.AnyOf(roles...)), nil
	}

	for _, a := range args {
		if r, ok := rbac.ParseRole(a); ok {
			if !rbac.IsPermitted(role, rbac.AtLeast(r)) {
				return false, nil
			}
			continue
		}

		c := rbac.Capability(a)
		if !rbac.IsKnownCapability(c) {
			return false, fmt.Errorf("unknown capability or role %q", a)
		}
		if !rbac.Can(role, c) {
			return false, nil
		}
	}
	return true, nil
}
