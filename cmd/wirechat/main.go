package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/log"
)

var (
	flagConfig   string
	flagServer   string
	flagLogLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "wirechat",
		Short:         "Terminal client for the wirechat server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "server base URL override")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(loginCmd(), registerCmd(), logoutCmd(), usersCmd(), chatCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildApp resolves config (flags beat env beats file beats defaults) and
// wires the application.
func buildApp() (*app.App, *zerolog.Logger, error) {
	bootLogger := log.New("info")
	cfg, _, err := config.Load(bootLogger, flagConfig)
	if err != nil {
		return nil, nil, err
	}
	cfg.UpdateFrom(config.Config{ServerURL: flagServer, LogLevel: flagLogLevel})

	logger := log.New(cfg.LogLevel)
	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Log in and store the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd, "login", args[0], args[1])
		},
	}
}

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <username> <password>",
		Short: "Create an account and store the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd, "register", args[0], args[1])
		},
	}
}

func runAuth(cmd *cobra.Command, mode, username, password string) error {
	a, _, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sess, err := a.Authenticate(cmd.Context(), mode, username, password)
	if err != nil {
		return err
	}
	fmt.Printf("logged in as %s\n", sess.User.Username)
	return nil
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Drop the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Logout(cmd.Context())
		},
	}
}

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List known users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.Users(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Printf("%s\t%s\n", u.ID, u.Username)
			}
			return nil
		},
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Connect and chat interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, _, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := a.Session(ctx)
			if err != nil {
				return err
			}
			if sess == nil {
				return errors.New("not logged in; run 'wirechat login' first")
			}

			return runREPL(ctx, a, sess)
		},
	}
}
