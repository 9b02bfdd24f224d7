// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show orchestrator status",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "", "orchestrator address (defaults to networking.listen)")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = viper.GetString("networking.listen")
	}

	var health struct {
		Status           string `json:"status"`
		Model            string `json:"model"`
		CourseAPIBaseURL string `json:"course_api_base_url"`
		Store            string `json:"store"`
	}
	if err := newGatewayClient(addr).getJSON("/health", &health); err != nil {
		if ccerr.HasCode(err, ccerr.CodeCLIGatewayNotRunning) {
			_, werr := fmt.Fprintf(cmd.OutOrStdout(), "not running at %s (run 'coursechat start')\n", addr)
			return werr
		}
		return err
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "%-12s %s at %s\n", "Status:", health.Status, addr)
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "Model:", health.Model)
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "Catalog:", health.CourseAPIBaseURL)
	_, _ = fmt.Fprintf(w, "%-12s %s\n", "Store:", health.Store)
	return nil
}
