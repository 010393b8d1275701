package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/securewatch/securewatch/internal/cli/commands"
	"github.com/securewatch/securewatch/internal/client"
	"github.com/securewatch/securewatch/internal/config"
	"github.com/securewatch/securewatch/internal/credential"
	"github.com/securewatch/securewatch/internal/dispatch"
	"github.com/securewatch/securewatch/internal/gate"
	"github.com/securewatch/securewatch/internal/logger"
	"github.com/securewatch/securewatch/internal/session"
)

var version = "dev" // Will be set during build

type rootFlags struct {
	apiURL     string
	tokenStore string
	logLevel   string
	logFormat  string
}

// NewRootCmd builds the command tree. When env is already wired (tests),
// configuration loading is skipped.
func NewRootCmd(env *commands.Env) *cobra.Command {
	var flags rootFlags

	rootCmd := &cobra.Command{
		Use:   "securewatch",
		Short: "SecureWatch - session and access control for the SecureWatch API",
		Long: `SecureWatch CLI - Sign in to the SecureWatch API and inspect what your
account is allowed to do.

The session token is kept in the OS keychain by default; see --token-store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || env.Gate != nil {
				return nil
			}
			return wire(env, flags)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.apiURL, "api-url", "", "API base URL (default from SECUREWATCH_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flags.tokenStore, "token-store", "", "Token store backend: keyring, file, redis, memory, none")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format: console or json")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "securewatch version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewLoginCmd(env))
	rootCmd.AddCommand(commands.NewRegisterCmd(env))
	rootCmd.AddCommand(commands.NewLogoutCmd(env))
	rootCmd.AddCommand(commands.NewWhoamiCmd(env))
	rootCmd.AddCommand(commands.NewStatusCmd(env))
	rootCmd.AddCommand(commands.NewCanCmd(env))
	rootCmd.AddCommand(commands.NewWatchCmd(env))

	return rootCmd
}

// wire loads configuration and assembles the session core into env
func wire(env *commands.Env, flags rootFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if flags.apiURL != "" {
		cfg.API.URL = flags.apiURL
	}
	if flags.tokenStore != "" {
		cfg.TokenStore.Backend = flags.tokenStore
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	store, err := credential.Open(cfg.TokenStore, cfg.API.URL, log)
	if err != nil {
		return err
	}

	api := client.New(cfg.API.URL, dispatch.New(store))
	machine := session.New(api, store, log)

	env.Config = cfg
	env.Store = store
	env.Session = machine
	env.Gate = gate.New(machine)
	env.Logger = log
	env.Interactive = commands.IsTerminal()

	return nil
}

// Execute runs the root command
func Execute(ctx context.Context, buildVersion string) error {
	if buildVersion != "" {
		version = buildVersion
	}

	env := &commands.Env{}
	defer closeEnv(env)

	if err := NewRootCmd(env).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// closeEnv releases the token store opened by wire, if any
func closeEnv(env *commands.Env) {
	if env.Store == nil {
		return
	}
	if err := env.Store.Close(); err != nil {
		env.Logger.Warn().Err(err).Msg("Failed to close token store")
	}
}
