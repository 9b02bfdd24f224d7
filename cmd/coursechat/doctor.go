// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package main

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check binary health, orchestrator and course catalog reachability, configuration, and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", "", "orchestrator address to check (defaults to networking.listen)")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()

	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = viper.GetString("networking.listen")
	}
	catalogURL := viper.GetString("catalog.base_url")

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Orchestrator", func() string { return checkOrchestrator(addr) }},
		{"Catalog", func() string { return checkCatalog(catalogURL) }},
		{"Config", checkConfig},
		{"Providers", checkProviders},
		{"Disk Space", checkDiskSpace},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

func checkBinary() string {
	return fmt.Sprintf("coursechat %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkOrchestrator(addr string) string {
	var body struct {
		Status string `json:"status"`
		Model  string `json:"model"`
	}
	if err := newGatewayClient(addr).getJSON("/health", &body); err != nil {
		if ccerr.HasCode(err, ccerr.CodeCLIGatewayNotRunning) {
			return fmt.Sprintf("not running at %s (run 'coursechat start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s (model %s)", body.Status, addr, body.Model)
}

func checkCatalog(baseURL string) string {
	if baseURL == "" {
		return "catalog.base_url not configured"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/api/categories")
	if err != nil {
		return fmt.Sprintf("unreachable: %s", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("%s returned status %d", baseURL, resp.StatusCode)
	}
	return fmt.Sprintf("reachable at %s", baseURL)
}

func checkConfig() string {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

func checkProviders() string {
	providers := viper.GetStringMap("providers")
	if len(providers) == 0 {
		return "none configured (set providers.*.api_key)"
	}

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return fmt.Sprintf("%d configured: %s", len(names), strings.Join(names, ", "))
}

func checkDiskSpace() string {
	path, err := os.UserHomeDir()
	if err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
