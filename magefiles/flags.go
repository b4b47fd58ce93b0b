// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
)

// targetArgs holds the arguments after the target name, as in
// "mage test:all --run TestBinder --pkg ./pkg/crud/...". Mage only passes
// positional parameters, so init moves these out of os.Args before mage
// parses it, and targets read them with a flag.FlagSet.
var targetArgs []string

func init() {
	targetArgs, os.Args = splitTargetArgs(os.Args)
}

// splitTargetArgs splits args after the target, the first argument past
// the binary that is not a mage flag. A "--" ends the search.
func splitTargetArgs(args []string) (rest, mageArgs []string) {
	for i := 1; i < len(args); i++ {
		if args[i] == "--" {
			break
		}
		if strings.HasPrefix(args[i], "-") {
			continue
		}
		return args[i+1:], args[:i+1]
	}
	return nil, args
}

// parseTargetFlags parses targetArgs into fs. --help prints the flags and
// exits cleanly; any other parse error exits with 1.
func parseTargetFlags(fs *flag.FlagSet) {
	err := fs.Parse(targetArgs)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "%s: %v\n", fs.Name(), err)
		os.Exit(1)
	}
}
