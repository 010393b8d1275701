package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/securewatch/securewatch/internal/config"
	"github.com/securewatch/securewatch/internal/credential"
	"github.com/securewatch/securewatch/internal/gate"
	"github.com/securewatch/securewatch/internal/session"
)

// ErrNotAuthenticated is returned by commands that need a session
var ErrNotAuthenticated = errors.New("not authenticated. Please run 'securewatch login' first")

// Env is the wired session core shared by every command. The root command
// fills it in before any command runs.
type Env struct {
	Config      *config.Config
	Store       *credential.Store
	Session     *session.Machine
	Gate        *gate.Gate
	Logger      zerolog.Logger
	Interactive bool
}

// ready waits for hydration and returns the live view
func (e *Env) ready(ctx context.Context) (gate.View, error) {
	if e == nil || e.Gate == nil {
		return gate.View{}, errors.New("session not initialized")
	}
	v, err := e.Gate.Wait(ctx)
	if err != nil {
		return v, fmt.Errorf("failed to restore session: %w", err)
	}
	return v, nil
}

// IsTerminal reports whether stdin is interactive
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readPassword prompts on the terminal without echo
func readPassword(label string) (string, error) {
	fmt.Print(label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

func envPassword() string {
	return os.Getenv("SECUREWATCH_PASSWORD")
}

// firstNonEmpty returns the first value that is not blank
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// describeError renders a session error for the terminal
func describeError(action string, err error) error {
	if errors.Is(err, &session.Error{Kind: session.NetworkFailure}) {
		return fmt.Errorf("%s failed: %w (is the API at the configured URL running?)", action, err)
	}
	return fmt.Errorf("%s failed: %w", action, err)
}
