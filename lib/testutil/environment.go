// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// ExternalService returns the value of variable, or skips the test
// when it is unset. Tests against real Redis or Postgres servers use
// it to stay opt-in:
//
//	address := testutil.ExternalService(t, "SCENESYNC_TEST_REDIS")
func ExternalService(t testing.TB, variable string) string {
	t.Helper()
	value := os.Getenv(variable)
	if value == "" {
		t.Skipf("%s not set", variable)
	}
	return value
}

// DatabasePath returns a path for a new SQLite database inside the
// test's temporary directory.
func DatabasePath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), UniqueID("scene")+".db")
}
