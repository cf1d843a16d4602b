// Package cmd contains all the commands included in the binary file.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand enables all children commands to read flags from CLI flags, environment variables prefixed with CATALOG, or config.yaml (in that order).
func NewRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("CATALOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	configPaths := []string{"/etc/catalog", "$HOME/.catalog", "."}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	return &cobra.Command{
		Use:   "catalog",
		Short: "Seed and export the energy resource catalog",
		Long: `Seed and export the energy resource catalog.

The catalog stores metering points and connection points together with their address and typed attributes.
It can bulk generate synthetic records up to a target total and stream the whole catalog to a downstream queue in chunks.`,
		SilenceUsage: true,
	}
}
