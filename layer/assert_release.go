// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !xrdebug

package layer

// debugAssertions turns invariant violations into panics. Build with the
// xrdebug tag to enable.
const debugAssertions = false
