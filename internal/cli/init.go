package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudforms/internal/demo"
	"github.com/mesh-intelligence/crudforms/pkg/crud"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the configuration and create the demo tables",
		Long: "Create the configuration directory and config.yaml if missing, then\n" +
			"connect to the configured database and create the demo tables.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, flags)
		},
	}
}

func runInit(cmd *cobra.Command, flags *rootFlags) error {
	s, err := loadSettings(flags)
	if err != nil {
		return err
	}

	wrote, err := writeConfigIfMissing(s)
	if err != nil {
		return sysError("writing config: %w", err)
	}

	h := crud.NewHandle()
	if err := h.Initialize(cmd.Context(), s.Store); err != nil {
		return sysError("connecting to %s: %w", s.Store.Backend, err)
	}
	defer h.Close()
	if err := demo.Setup(cmd.Context(), h); err != nil {
		return sysError("creating tables: %w", err)
	}

	out := cmd.OutOrStdout()
	if wrote {
		color.New(color.FgCyan).Fprintf(out, "Wrote %s/config.yaml\n", s.ConfigDir)
	}
	color.New(color.FgGreen).Fprintf(out, "crudforms initialized (%s)\n", s.Store.Backend)
	return nil
}
