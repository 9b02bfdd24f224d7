// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnit-dev/coursechat/internal/secrets"
	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// testConfigPath writes a minimal valid config so commands don't pick up or
// bootstrap a real one.
func testConfigPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coursechat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("networking:\n  listen: \"127.0.0.1:8090\"\n"), 0o600))
	return path
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"--config", testConfigPath(t)}, args...))

	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "coursechat dev")
}

// mockSecretStore is an in-memory secrets.Store.
type mockSecretStore struct {
	values map[string]string
}

func newMockSecretStore() *mockSecretStore {
	return &mockSecretStore{values: map[string]string{}}
}

func (m *mockSecretStore) Store(service, key, value string) error {
	m.values[service+"/"+key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(service, key string) (string, error) {
	v, ok := m.values[service+"/"+key]
	if !ok {
		return "", ccerr.Errorf(ccerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	return v, nil
}

func (m *mockSecretStore) Delete(service, key string) error {
	if _, ok := m.values[service+"/"+key]; !ok {
		return ccerr.Errorf(ccerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	delete(m.values, service+"/"+key)
	return nil
}

func (m *mockSecretStore) List(service string) ([]string, error) {
	var keys []string
	for k := range m.values {
		if name, ok := strings.CutPrefix(k, service+"/"); ok {
			keys = append(keys, name)
		}
	}
	return keys, nil
}

func withMockSecretStore(t *testing.T) *mockSecretStore {
	t.Helper()
	mock := newMockSecretStore()
	orig := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return mock }
	t.Cleanup(func() { secretStoreFactory = orig })
	return mock
}

func TestSecretSetListDelete(t *testing.T) {
	mock := withMockSecretStore(t)

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader("sk-test-value\n"))
	root.SetArgs([]string{"--config", testConfigPath(t), "secret", "set", "openai-api-key"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "keyring://coursechat/openai-api-key")
	assert.Equal(t, "sk-test-value", mock.values["coursechat/openai-api-key"])

	out, err := execute(t, "secret", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "openai-api-key")

	out, err = execute(t, "secret", "delete", "openai-api-key")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted secret: openai-api-key")

	_, err = execute(t, "secret", "delete", "openai-api-key")
	require.Error(t, err)
	assert.True(t, ccerr.HasCode(err, ccerr.CodeSecretNotFound))
}

func TestSecretListEmpty(t *testing.T) {
	withMockSecretStore(t)

	out, err := execute(t, "secret", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No secrets stored.")
}

func TestSecretSetRejectsEmptyValue(t *testing.T) {
	withMockSecretStore(t)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader("\n"))
	root.SetArgs([]string{"--config", testConfigPath(t), "secret", "set", "k"})
	err := root.Execute()
	require.Error(t, err)
	assert.True(t, ccerr.HasCode(err, ccerr.CodeSecretInvalidInput))
}

func TestStatusNotRunning(t *testing.T) {
	out, err := execute(t, "status", "--address", "127.0.0.1:1")
	require.NoError(t, err)
	assert.Contains(t, out, "not running")
}

func TestStatusRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":              "ok",
			"model":               "openai/gpt-4.1-mini",
			"course_api_base_url": "http://localhost:8080",
			"store":               "memory",
		})
	}))
	t.Cleanup(srv.Close)

	addr := strings.TrimPrefix(srv.URL, "http://")
	out, err := execute(t, "status", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "ok at "+addr)
	assert.Contains(t, out, "openai/gpt-4.1-mini")
}

func TestChatOneShot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "인기 강의 추천해줘", req.Message)
		assert.NotEmpty(t, req.SessionID)

		_ = json.NewEncoder(w).Encode(chatResponse{
			SessionID: req.SessionID,
			Reply:     "추천 강의를 찾았어요.",
		})
	}))
	t.Cleanup(srv.Close)

	addr := strings.TrimPrefix(srv.URL, "http://")
	out, err := execute(t, "chat", "--address", addr, "인기 강의 추천해줘")
	require.NoError(t, err)
	assert.Contains(t, out, "추천 강의를 찾았어요.")
}

func TestChatOneShotGatewayDown(t *testing.T) {
	_, err := execute(t, "chat", "--address", "127.0.0.1:1", "hello")
	require.Error(t, err)
	assert.True(t, ccerr.HasCode(err, ccerr.CodeCLIGatewayNotRunning))
}

func TestDoctorRuns(t *testing.T) {
	out, err := execute(t, "doctor", "--address", "127.0.0.1:1")
	require.NoError(t, err)

	for _, label := range []string{"Binary:", "Platform:", "Orchestrator:", "Catalog:", "Config:", "Disk Space:"} {
		assert.Contains(t, out, label)
	}
	assert.Contains(t, out, "not running")
}
