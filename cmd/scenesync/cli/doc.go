// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree behind the scenesync binary: a
// [Command] type dispatching on the first positional argument, pflag
// flag sets, help rendering, typo suggestions, and the logger and exit
// code conventions shared by every subcommand.
package cli
