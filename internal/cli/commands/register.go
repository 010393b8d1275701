package commands

import (
	"errors"
	"fmt"
	"net/mail"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/securewatch/securewatch/internal/rbac"
	"github.com/securewatch/securewatch/internal/session"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(env *Env) *cobra.Command {
	var name, email, password, role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, env, name, email, password, role)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name (will prompt if not provided)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (will prompt if not provided)")
	cmd.Flags().StringVar(&password, "password", "", "Password, at least 8 characters (or set SECUREWATCH_PASSWORD)")
	cmd.Flags().StringVar(&role, "role", "", "Requested role; the server decides what is granted")

	return cmd
}

func runRegister(cmd *cobra.Command, env *Env, name, email, password, role string) error {
	var err error
	if name == "" && env.Interactive {
		if name, err = promptText("Name", requireNonEmpty); err != nil {
			return err
		}
	}
	if email == "" && env.Interactive {
		if email, err = promptText("Email", validateEmail); err != nil {
			return err
		}
	}
	password = firstNonEmpty(password, envPassword())
	if password == "" {
		if !env.Interactive {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or SECUREWATCH_PASSWORD env var)")
		}
		if password, err = readPassword("Password: "); err != nil {
			return err
		}
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if confirm != password {
			return errors.New("passwords do not match")
		}
	}

	view, err := env.ready(cmd.Context())
	if err != nil {
		return err
	}

	details := session.RegisterDetails{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     rbac.Role(role),
	}
	if err := view.Register(cmd.Context(), details); err != nil {
		return describeError("registration", err)
	}

	user := env.Gate.View().User
	if user == nil {
		// A logout from another consumer won the race.
		return ErrNotAuthenticated
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Account created!")
	fmt.Fprintf(out, "  User: %s (%s)\n", user.Name, user.Email)
	fmt.Fprintf(out, "  Role: %s\n", user.Role)

	return nil
}

func promptText(label string, validate promptui.ValidateFunc) (string, error) {
	prompt := promptui.Prompt{
		Label:    label,
		Validate: validate,
	}
	value, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("%s prompt cancelled: %w", label, err)
	}
	return value, nil
}

func requireNonEmpty(s string) error {
	if firstNonEmpty(s) == "" {
		return errors.New("value is required")
	}
	return nil
}

func validateEmail(s string) error {
	if _, err := mail.ParseAddress(s); err != nil {
		return errors.New("invalid email address")
	}
	return nil
}
