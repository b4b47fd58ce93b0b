// Package cli implements the crudforms command-line interface: init writes
// the configuration and creates the demo tables, serve runs the demo
// application over HTTP.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the exit code a failure maps to.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(format string, args ...any) error {
	return &exitError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

func sysError(format string, args ...any) error {
	return &exitError{code: exitSysError, err: fmt.Errorf(format, args...)}
}

// exitCode maps err to a process exit code. Errors not classified are
// user errors, which covers cobra's flag and argument errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// rootFlags holds the global flags.
type rootFlags struct {
	configDir string
	dataDir   string
	verbose   bool
}

// NewRootCmd creates the crudforms command with its subcommands.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "crudforms",
		Short: "Generated CRUD forms for database-mapped record types",
		Long: "crudforms renders create, update and delete forms for record types\n" +
			"and stores their submissions in SQLite, PostgreSQL or MySQL.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: $CRUDFORMS_CONFIG_DIR, then the platform config dir)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: ./.crudforms-db)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(flags))
	root.AddCommand(newServeCmd(flags))
	return root
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}
