// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package invariant implements the one fatal error path in the core:
// a panic for conditions that should be structurally impossible to
// violate. Every other error kind is a typed sentinel that propagates
// normally.
package invariant

import "fmt"

// Check panics if cond is false. It must only guard conditions whose
// violation indicates a bug that would compromise safety — never used
// for anything reachable by untrusted network input.
func Check(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("grandpa: internal invariant violated: "+format, args...))
	}
}
