// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import (
	"flag"
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Test groups test targets (all, race, cover).
type Test mg.Namespace

const coverFile = "coverage.out"

// testArgs builds the go test arguments from the target flags.
//
// Flags:
//
//	--run <regexp>   only run tests matching the pattern
//	--pkg <pattern>  package pattern (default ./...)
func testArgs(extra ...string) []string {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	run := fs.String("run", "", "only run tests matching the pattern")
	pkg := fs.String("pkg", "./...", "package pattern")
	parseTargetFlags(fs)

	args := append([]string{"test", "-v"}, extra...)
	if *run != "" {
		args = append(args, "-run", *run)
	}
	return append(args, *pkg)
}

// All runs all tests.
func (Test) All() error {
	return sh.RunV(binGo, testArgs()...)
}

// Race runs all tests with the race detector.
func (Test) Race() error {
	return sh.RunV(binGo, testArgs("-race")...)
}

// Cover runs all tests and prints per-function coverage.
func (Test) Cover() error {
	if err := sh.RunV(binGo, testArgs("-coverprofile="+coverFile)...); err != nil {
		return err
	}
	out, err := sh.Output(binGo, "tool", "cover", "-func="+coverFile)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
