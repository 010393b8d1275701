package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/securewatch/securewatch/internal/rbac"
	"github.com/securewatch/securewatch/internal/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd(env *Env) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the SecureWatch API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, env, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set SECUREWATCH_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set SECUREWATCH_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, env *Env, email, password string) error {
	// Check for environment variables (useful for CI/CD)
	email = firstNonEmpty(email, os.Getenv("SECUREWATCH_EMAIL"))
	password = firstNonEmpty(password, envPassword())

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or SECUREWATCH_EMAIL env var)")
	}

	if password == "" {
		if !env.Interactive {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or SECUREWATCH_PASSWORD env var)")
		}
		p, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		password = p
	}

	view, err := env.ready(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Logging in to %s...\n", env.Config.API.URL)

	if err := view.Login(cmd.Context(), session.Credentials{Email: email, Password: password}); err != nil {
		return describeError("login", err)
	}

	user := env.Gate.View().User
	if user == nil {
		// A logout from another consumer won the race.
		return ErrNotAuthenticated
	}
	fmt.Fprintln(out, "✓ Login successful!")
	fmt.Fprintf(out, "  User: %s (%s)\n", user.Name, user.Email)
	fmt.Fprintf(out, "  Role: %s\n", user.Role)
	fmt.Fprintf(out, "  Home: %s\n", rbac.HomeView(user.Role))

	return nil
}
