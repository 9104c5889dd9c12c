//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for tabula using Mage.
//
// Usage:
//
//	mage build          Compile the tabula binary to bin/
//	mage test:all       Run all tests
//	mage test:short     Run tests without the race detector
//	mage test:cover     Run tests and write coverage.out
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install tabula to GOPATH/bin
//	mage stats          Print Go LOC as a JSON record
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "tabula"
	binaryDir  = "bin"
	cmdDir     = "./cmd/tabula"
	versionVar = "github.com/mesh-intelligence/tabula/internal/cli.Version"
)

// ldflags stamps the binary with TABULA_VERSION when it is set.
func ldflags() string {
	v := os.Getenv("TABULA_VERSION")
	if v == "" {
		return ""
	}
	return "-X " + versionVar + "=" + v
}

// Build compiles the tabula binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags(),
		"-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	for _, p := range []string{binaryDir, coverFile} {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
