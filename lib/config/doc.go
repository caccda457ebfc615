// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML configuration of a scenesync peer.
//
// Configuration comes from a single file named by the SCENESYNC_CONFIG
// environment variable ([Load]) or a --config flag ([LoadFile]). There
// is no discovery and no fallback search.
//
// The file may carry development, staging, and production sections
// whose non-zero fields override the base values when
// [Config].Environment matches. After overrides, ${VAR} and
// ${VAR:-default} references in store paths, URLs, and credentials are
// expanded; ${SCENESYNC_ROOM} expands to store.room. No other
// environment variable overrides a config value.
//
// This package depends on no other scenesync packages.
package config
