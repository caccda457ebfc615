// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scene models the local, renderer-owned side of a
// synchronized scene.
//
// The synchronization engine never draws anything. It consumes a
// Renderer: a live set of entities, an observer subscription that
// reports Added, Modified, and Removed events, and a handful of
// mutation methods. Any drawing surface can be adapted to the Renderer
// interface; Memory is a complete in-process implementation used by
// the headless CLI peer and by tests.
//
// Entities are addressed two ways. Handle is assigned by the renderer
// when an entity is added and identifies it for the lifetime of that
// renderer. ID is the synchronization identity shared by every peer;
// it may be empty for a moment after a local creation and is always
// empty for transient elements such as grid lines.
package scene
