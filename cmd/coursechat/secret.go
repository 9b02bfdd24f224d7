// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/learnit-dev/coursechat/internal/secrets"
	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// serviceName is the keyring service name under which coursechat stores
// secrets. Config files reference them as keyring://coursechat/<name>.
const serviceName = "coursechat"

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long:  "Store, list, and delete provider API keys kept under the coursechat service in the operating system keyring.",
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret, reading its value from stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretSet,
	}
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored secret names",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	// Read from stdin rather than argv so the value stays out of shell
	// history and process listings.
	reader := bufio.NewReader(cmd.InOrStdin())
	value, err := reader.ReadString('\n')
	if err != nil && value == "" {
		return ccerr.Errorf(ccerr.CodeSecretStoreFailure, "reading secret value: %w", err)
	}
	value = strings.TrimRight(value, "\r\n")
	if value == "" {
		return ccerr.New(ccerr.CodeSecretInvalidInput, "secret value must not be empty")
	}

	if err := secretStoreFactory().Store(serviceName, name, value); err != nil {
		return ccerr.Wrapf(err, ccerr.CodeSecretStoreFailure, "storing secret %q", name)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s (reference it as keyring://%s/%s)\n", name, serviceName, name)
	return nil
}

func runSecretList(cmd *cobra.Command, _ []string) error {
	keys, err := secretStoreFactory().List(serviceName)
	if err != nil {
		return ccerr.Wrapf(err, ccerr.CodeSecretStoreFailure, "listing secrets")
	}

	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
		return nil
	}

	for _, k := range keys {
		_, _ = fmt.Fprintln(out, k)
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := secretStoreFactory().Delete(serviceName, name); err != nil {
		if ccerr.HasCode(err, ccerr.CodeSecretNotFound) {
			return ccerr.Errorf(ccerr.CodeSecretNotFound, "secret %q not found", name)
		}
		return ccerr.Wrapf(err, ccerr.CodeSecretStoreFailure, "deleting secret %q", name)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}
