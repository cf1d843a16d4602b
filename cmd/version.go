package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/energia/resourcecatalog/internal/build"
)

// NewVersionCommand returns the command to get the catalog version
func NewVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Return the catalog version",
		Long:  "Return the catalog version.",
		RunE:  version,
		Args:  cobra.NoArgs,
	}

	return cmd
}

// print out the built version
func version(_ *cobra.Command, _ []string) error {
	log.Printf("catalog Version %s Date %s commit id %s ", build.Version, build.Date, build.Commit)
	return nil
}
