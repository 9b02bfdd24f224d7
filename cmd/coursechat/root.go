// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package main

import (
	"errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/learnit-dev/coursechat/internal/config"
	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// NewRootCmd creates the root coursechat command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coursechat",
		Short:         "CourseChat course recommendation chat orchestrator",
		Long:          "CourseChat sits between the learning platform's chat widget and LLM providers, grounding course recommendations in the live course catalog.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags, mapped to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newStartCmd(),
		newStatusCmd(),
		newVersionCmd(),
		newChatCmd(),
		newDoctorCmd(),
		newSecretCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return ccerr.Errorf(ccerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// Auto-discover coursechat.yaml from standard locations.
		// SetConfigType is intentionally omitted: when set, Viper also tries
		// the bare config name without extension, which collides with the
		// ./coursechat binary in the project root.
		v.SetConfigName("coursechat")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/coursechat")
		v.AddConfigPath("/etc/coursechat")
		// No config file is fine, defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return ccerr.Errorf(ccerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// No config found anywhere; bootstrap a default.
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return ccerr.Errorf(ccerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return ccerr.Errorf(ccerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}
