// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import "github.com/magefile/mage/sh"

const binLint = "golangci-lint"

// lintPaths are the crudforms packages. The magefiles are checked by mage
// itself when it compiles them.
var lintPaths = []string{"./cmd/...", "./internal/...", "./pkg/...", "./web/..."}

// Lint runs golangci-lint over the crudforms packages.
func Lint() error {
	return sh.RunV(binLint, append([]string{"run"}, lintPaths...)...)
}

// Vet runs go vet over the crudforms packages.
func Vet() error {
	return sh.RunV(binGo, append([]string{"vet"}, lintPaths...)...)
}
