package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudforms/pkg/crud"
)

const modulePath = "github.com/mesh-intelligence/crudforms"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the crudforms version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "crudforms v%s\nmodule: %s\n", crud.Version, modulePath)
			return nil
		},
	}
}
