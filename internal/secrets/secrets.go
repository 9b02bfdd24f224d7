// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

// Package secrets stores provider API keys in the OS keyring and resolves
// keyring:// URIs found in configuration values.
package secrets

// Store provides secure secret storage operations.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// Absent keys carry the secret.store.not_found code.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}
