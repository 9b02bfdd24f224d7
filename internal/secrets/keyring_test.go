// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package secrets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/learnit-dev/coursechat/internal/secrets"
	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

func init() {
	// Mock keyring so tests never touch the real OS keyring.
	keyring.MockInit()
}

func TestKeyringStoreAndRetrieve(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-store-retrieve"

	require.NoError(t, ks.Store(svc, "openai-api-key", "sk-secret-123"))

	val, err := ks.Retrieve(svc, "openai-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-123", val)
}

func TestKeyringRetrieveMissing(t *testing.T) {
	ks := secrets.NewKeyringStore()

	_, err := ks.Retrieve("test-missing", "nope")
	require.Error(t, err)
	assert.True(t, ccerr.HasCode(err, ccerr.CodeSecretNotFound))
}

func TestKeyringDelete(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-delete"

	require.NoError(t, ks.Store(svc, "k", "v"))
	require.NoError(t, ks.Delete(svc, "k"))

	_, err := ks.Retrieve(svc, "k")
	assert.True(t, ccerr.HasCode(err, ccerr.CodeSecretNotFound))

	err = ks.Delete(svc, "k")
	assert.True(t, ccerr.HasCode(err, ccerr.CodeSecretNotFound))
}

func TestKeyringListTracksIndex(t *testing.T) {
	ks := secrets.NewKeyringStore()
	svc := "test-list"

	keys, err := ks.List(svc)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, ks.Store(svc, "a", "1"))
	require.NoError(t, ks.Store(svc, "b", "2"))
	require.NoError(t, ks.Store(svc, "a", "1-again"))

	keys, err = ks.List(svc)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	require.NoError(t, ks.Delete(svc, "a"))
	keys, err = ks.List(svc)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestKeyringValidatesInput(t *testing.T) {
	ks := secrets.NewKeyringStore()

	assert.Error(t, ks.Store("", "k", "v"))
	assert.Error(t, ks.Store("svc", "", "v"))
	_, err := ks.Retrieve("", "k")
	assert.True(t, ccerr.HasCode(err, ccerr.CodeSecretInvalidInput))
}
