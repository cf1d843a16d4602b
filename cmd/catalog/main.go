package main

import (
	"os"

	"github.com/energia/resourcecatalog/cmd"
	"github.com/energia/resourcecatalog/cmd/export"
	"github.com/energia/resourcecatalog/cmd/generate"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	migrateCmd := cmd.NewMigrateCommand()
	rootCmd.AddCommand(migrateCmd)

	generateCmd := generate.NewGenerateCommand()
	rootCmd.AddCommand(generateCmd)

	exportCmd := export.NewExportCommand()
	rootCmd.AddCommand(exportCmd)

	versionCmd := cmd.NewVersionCommand()
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
