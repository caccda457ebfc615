// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:6167/"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client.baseURL != "http://localhost:6167" {
			t.Errorf("baseURL = %q, want trailing slash stripped", client.baseURL)
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		if _, err := NewClient(ClientConfig{}); err == nil {
			t.Fatal("expected error for empty URL")
		}
	})

	t.Run("invalid URL", func(t *testing.T) {
		if _, err := NewClient(ClientConfig{HomeserverURL: "://invalid"}); err == nil {
			t.Fatal("expected error for invalid URL")
		}
	})

	t.Run("non-HTTP scheme", func(t *testing.T) {
		if _, err := NewClient(ClientConfig{HomeserverURL: "ftp://example.org"}); err == nil {
			t.Fatal("expected error for ftp scheme")
		}
	})
}

func TestLogin(t *testing.T) {
	t.Run("successful login", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/_matrix/client/v3/login" {
				t.Errorf("unexpected path: %s", request.URL.Path)
				writer.WriteHeader(http.StatusNotFound)
				return
			}
			var body LoginRequest
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Errorf("failed to decode request body: %v", err)
			}
			if body.Type != "m.login.password" || body.User != "bob" || body.Password != "secret" {
				t.Errorf("unexpected login body: %+v", body)
			}
			writeJSON(writer, AuthResponse{
				UserID:      "@bob:test.local",
				AccessToken: "syt_bob_token",
				DeviceID:    "DEVICE2",
			})
		}))
		defer server.Close()

		client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		session, err := client.Login(context.Background(), "bob", "secret")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if session.UserID() != "@bob:test.local" {
			t.Errorf("unexpected user ID: %s", session.UserID())
		}
		if session.accessToken != "syt_bob_token" {
			t.Errorf("unexpected access token: %s", session.accessToken)
		}
	})

	t.Run("invalid credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusForbidden)
			json.NewEncoder(writer).Encode(MatrixError{Code: ErrCodeForbidden, Message: "Invalid password"})
		}))
		defer server.Close()

		client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		_, err = client.Login(context.Background(), "bob", "wrong")
		if !IsMatrixError(err, ErrCodeForbidden) {
			t.Errorf("expected M_FORBIDDEN error, got: %v", err)
		}
	})

	t.Run("validation errors", func(t *testing.T) {
		client, _ := NewClient(ClientConfig{HomeserverURL: "http://localhost:1"})
		if _, err := client.Login(context.Background(), "", "password"); err == nil {
			t.Fatal("expected error for empty username")
		}
		if _, err := client.Login(context.Background(), "alice", ""); err == nil {
			t.Fatal("expected error for empty password")
		}
	})
}

func TestNonMatrixErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
		writer.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client, _ := NewClient(ClientConfig{HomeserverURL: server.URL})
	session, _ := client.SessionFromToken("@a:local", "token")
	_, err := session.WhoAmI(context.Background())
	if err == nil {
		t.Fatal("expected error for 502")
	}
	if IsMatrixError(err, ErrCodeForbidden) {
		t.Errorf("plain-text error body parsed as MatrixError: %v", err)
	}
}

func TestMatrixError(t *testing.T) {
	err := &MatrixError{Code: ErrCodeNotFound, Message: "not found", StatusCode: 404}
	if err.Error() != "matrix: M_NOT_FOUND (404): not found" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
	if !IsMatrixError(err, ErrCodeNotFound) {
		t.Error("IsMatrixError should match M_NOT_FOUND")
	}
	if IsMatrixError(err, ErrCodeForbidden) {
		t.Error("IsMatrixError should not match M_FORBIDDEN")
	}
	if IsMatrixError(context.Canceled, ErrCodeNotFound) {
		t.Error("IsMatrixError should return false for non-matrix errors")
	}
}

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(value)
}
