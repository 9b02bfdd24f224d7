// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/zalando/go-keyring"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// keysIndexSuffix is appended to the service name to form the key under
// which a JSON index of stored key names is kept. go-keyring cannot
// enumerate keys natively, so List reads this index instead.
const keysIndexSuffix = "::keys-index"

// KeyringStore implements Store using the OS keyring via zalando/go-keyring:
// Keychain on macOS, secret-service on Linux, Credential Manager on Windows.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := validateRef(service, key); err != nil {
		return err
	}

	if err := keyring.Set(service, key, value); err != nil {
		return ccerr.Wrapf(err, ccerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.addToIndex(service, key)
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := validateRef(service, key); err != nil {
		return "", err
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ccerr.Errorf(ccerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", ccerr.Wrapf(err, ccerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := validateRef(service, key); err != nil {
		return err
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ccerr.Errorf(ccerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return ccerr.Wrapf(err, ccerr.CodeSecretStoreFailure, "deleting secret %s/%s", service, key)
	}
	return s.removeFromIndex(service, key)
}

func (s *KeyringStore) List(service string) ([]string, error) {
	return s.loadIndex(service)
}

func validateRef(service, key string) error {
	if service == "" {
		return ccerr.New(ccerr.CodeSecretInvalidInput, "secret service must not be empty")
	}
	if key == "" {
		return ccerr.New(ccerr.CodeSecretInvalidInput, "secret key must not be empty")
	}
	return nil
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, service+keysIndexSuffix)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, ccerr.Wrapf(err, ccerr.CodeSecretStoreFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, ccerr.Wrapf(err, ccerr.CodeSecretStoreFailure, "decoding key index for service %s", service)
	}
	return keys, nil
}

func (s *KeyringStore) saveIndex(service string, keys []string) error {
	indexKey := service + keysIndexSuffix

	if len(keys) == 0 {
		if delErr := keyring.Delete(service, indexKey); delErr != nil {
			slog.Debug("failed to clean up empty key index", "service", service, "error", delErr)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return ccerr.Wrapf(err, ccerr.CodeSecretStoreFailure, "encoding key index for service %s", service)
	}
	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return ccerr.Wrapf(err, ccerr.CodeSecretStoreFailure, "saving key index for service %s", service)
	}
	return nil
}

func (s *KeyringStore) addToIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	return s.saveIndex(service, append(keys, key))
}

func (s *KeyringStore) removeFromIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}

	filtered := keys[:0]
	for _, k := range keys {
		if k != key {
			filtered = append(filtered, k)
		}
	}
	return s.saveIndex(service, filtered)
}
