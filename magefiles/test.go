//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const coverFile = "coverage.out"

// Test groups test targets.
type Test mg.Namespace

// All runs every package's tests with the race detector.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// Short runs every package's tests without the race detector.
func (Test) Short() error {
	return sh.RunV(binGo, "test", "-short", "./...")
}

// Cover runs the tests and prints per-function coverage.
func (Test) Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile="+coverFile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+coverFile)
}
