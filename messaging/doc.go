// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is a small Matrix client-server API client, enough
// to keep a scene in a Matrix room's state.
//
// [Client] holds the homeserver URL and HTTP transport and can log in.
// [Session] adds an access token and exposes the calls a scene store
// needs: joining a room, reading and writing state events, and
// long-polling /sync.
//
// All API errors are returned as [*MatrixError] carrying the Matrix
// error code and HTTP status; [IsMatrixError] tests for a code.
// Request URLs are built by string concatenation with each path
// segment escaped, so room ids and state keys containing reserved
// characters survive intact.
package messaging
