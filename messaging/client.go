// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseSize bounds how much of a response body is read. A room
// state dump for a large scene is the biggest thing fetched.
const maxResponseSize = 64 << 20

const clientAPI = "/_matrix/client/v3"

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// HomeserverURL is the base URL, e.g. "http://localhost:6167".
	HomeserverURL string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is an unauthenticated Matrix client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates config and returns a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, errors.New("messaging: HomeserverURL is required")
	}
	parsed, err := url.Parse(config.HomeserverURL)
	if err != nil {
		return nil, fmt.Errorf("messaging: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("messaging: HomeserverURL %q must be http or https", config.HomeserverURL)
	}
	client := &Client{
		baseURL:    strings.TrimRight(config.HomeserverURL, "/"),
		httpClient: config.HTTPClient,
		logger:     config.Logger,
	}
	if client.httpClient == nil {
		client.httpClient = http.DefaultClient
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	return client, nil
}

// CloseIdleConnections drops pooled connections so the next request
// dials fresh. Used after a failed long-poll.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// Login authenticates with a password and returns a Session.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	switch {
	case username == "":
		return nil, errors.New("messaging: username is required")
	case password == "":
		return nil, errors.New("messaging: password is required")
	}
	var auth AuthResponse
	err := c.call(ctx, call{
		method: http.MethodPost,
		path:   "/login",
		body: LoginRequest{
			Type:     "m.login.password",
			User:     username,
			Password: password,
		},
	}, &auth)
	if err != nil {
		return nil, fmt.Errorf("messaging: login as %q: %w", username, err)
	}
	c.logger.Info("matrix login", "user_id", auth.UserID, "device_id", auth.DeviceID)
	return &Session{client: c, accessToken: auth.AccessToken, userID: auth.UserID}, nil
}

// SessionFromToken wraps an existing access token. The token is not
// validated until the first call; use [Session.WhoAmI] to check it.
func (c *Client) SessionFromToken(userID, accessToken string) (*Session, error) {
	if accessToken == "" {
		return nil, errors.New("messaging: access token is required")
	}
	return &Session{client: c, accessToken: accessToken, userID: userID}, nil
}

// call describes one client-server API request. path is relative to
// /_matrix/client/v3 and must already be escaped.
type call struct {
	method string
	path   string
	token  string
	query  url.Values
	body   any
}

// call performs the request and decodes a 2xx body into result when
// result is non-nil. Errors carrying a Matrix errcode are returned as
// *MatrixError.
func (c *Client) call(ctx context.Context, request call, result any) error {
	target := c.baseURL + clientAPI + request.path
	if len(request.query) > 0 {
		target += "?" + request.query.Encode()
	}

	var payload io.Reader
	if request.body != nil {
		encoded, err := json.Marshal(request.body)
		if err != nil {
			return fmt.Errorf("encoding %s body: %w", request.path, err)
		}
		payload = bytes.NewReader(encoded)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, request.method, target, payload)
	if err != nil {
		return err
	}
	if payload != nil {
		httpRequest.Header.Set("Content-Type", "application/json")
	}
	if request.token != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+request.token)
	}

	response, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	data, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", request.path, err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		matrixErr := &MatrixError{StatusCode: response.StatusCode}
		if json.Unmarshal(data, matrixErr) != nil || matrixErr.Code == "" {
			return fmt.Errorf("%s %s: HTTP %d: %s", request.method, request.path, response.StatusCode, bytes.TrimSpace(data))
		}
		return matrixErr
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decoding %s response: %w", request.path, err)
	}
	return nil
}
