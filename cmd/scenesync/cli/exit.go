// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError requests a non-zero exit without printing an error line.
// The command has already written its own output, as `scenesync demo`
// does when the peers fail to converge.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode is checked by main to tell a handled exit from an error.
func (e *ExitError) ExitCode() int {
	return e.Code
}
