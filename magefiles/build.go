// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

// Package main provides build targets for crudforms using Mage.
//
// Usage:
//
//	mage build           Compile the crudforms binary to bin/
//	mage test:all        Run all tests (--run, --pkg narrow the selection)
//	mage test:race       Run all tests with the race detector
//	mage test:cover      Run all tests and write coverage.out
//	mage lint            Run golangci-lint over the crudforms packages
//	mage vet             Run go vet over the crudforms packages
//	mage clean           Remove build artifacts
//	mage install         Install crudforms to GOPATH/bin
//	mage stats           Print Go LOC and documentation word counts
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "crudforms"
	binaryDir  = "bin"
	cmdDir     = "./cmd/crudforms"
)

// Build compiles the crudforms binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts and the local demo database.
func Clean() error {
	for _, dir := range []string{binaryDir, ".crudforms-db"} {
		if err := os.RemoveAll(dir); err != nil {
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
