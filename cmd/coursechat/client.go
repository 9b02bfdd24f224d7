// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LearnIT Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	ccerr "github.com/learnit-dev/coursechat/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by gateway
// commands. Overridden in tests via httptest. Chat turns can run several
// planning rounds, hence the generous timeout.
var defaultHTTPClient = &http.Client{
	Timeout: 2 * time.Minute,
}

// gatewayClient provides HTTP access to a running coursechat orchestrator.
type gatewayClient struct {
	baseURL string
	http    *http.Client
}

// newGatewayClient creates a client targeting the given host:port address.
func newGatewayClient(addr string) *gatewayClient {
	return &gatewayClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *gatewayClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return ccerr.Errorf(ccerr.CodeCLIGatewayNotRunning,
				"orchestrator is not running at %s", c.baseURL)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeResponse(resp, dest)
}

// postJSON performs a POST request with a JSON body and decodes the JSON
// response into dest.
func (c *gatewayClient) postJSON(path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		if isDialError(err) {
			return ccerr.Errorf(ccerr.CodeCLIGatewayNotRunning,
				"orchestrator is not running at %s", c.baseURL)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeResponse(resp, dest)
}

func decodeResponse(resp *http.Response, dest any) error {
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("orchestrator returned status %d: %s", resp.StatusCode, string(body))
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return ccerr.Errorf(ccerr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
