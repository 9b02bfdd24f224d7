// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/learnit-dev/coursechat/internal/config"
	"github.com/learnit-dev/coursechat/internal/secrets"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the coursechat orchestrator",
		Long:  "Load configuration, wire all subsystems, and start the HTTP server.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()

	setupLogging(v.GetBool("verbose"))
	config.WarnInsecurePermissions(v.ConfigFileUsed())

	// keyring:// API keys resolve before the config is validated and used.
	secrets.ResolveViperSecrets(v, secrets.NewKeyringStore())

	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := WireOrchestrator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wiring orchestrator: %w", err)
	}
	defer func() {
		if err := orch.Close(); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("starting coursechat",
		"listen", cfg.Networking.Listen,
		"model", cfg.Models.Default,
		"catalog", cfg.Catalog.BaseURL,
	)
	return orch.Start(ctx)
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
