// Package cli implements bffctl, the operator tool for minting and
// inspecting credentials and maintaining the session store.
package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"bff-service/internal/buildinfo"
	"bff-service/internal/logger"
)

// settings are read from the same variables the server uses, so bffctl
// works unchanged inside the service's environment. Flags override them.
type settings struct {
	Secret        string `env:"CREDENTIAL_SECRET"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"warn"`
}

// NewRootCommand builds the command tree. A nil environ reads the process
// environment.
func NewRootCommand(environ map[string]string) (*cobra.Command, error) {
	var s settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	var logFormat string

	root := &cobra.Command{
		Use:     "bffctl",
		Short:   fmt.Sprintf("BFF auth service tooling (version: %s, commit: %s)", buildinfo.Version, buildinfo.CommitHash),
		Version: buildinfo.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.InitWriter(cmd.ErrOrStderr(), s.LogLevel, logFormat)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&s.LogLevel, "log-level", s.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")

	root.AddCommand(
		newTokenCommand(&s),
		newSessionsCommand(&s),
	)
	return root, nil
}
