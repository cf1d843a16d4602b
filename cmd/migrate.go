package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/energia/resourcecatalog/cmd/exec_common"
	"github.com/energia/resourcecatalog/cmd/util"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage/migrate"
)

const (
	versionFlag          = "version"
	timeoutFlag          = "timeout"
	verboseMigrationFlag = "verbose"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database schema migrations needed for the catalog",
		Long:  `The migrate command is used to migrate the database schema needed for the catalog.`,
		RunE:  runMigration,
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, args []string) {
			flags := cmd.Flags()

			exec_common.BindDatastoreFlags(flags)
			util.MustBindPFlag(versionFlag, flags.Lookup(versionFlag))
			util.MustBindPFlag(timeoutFlag, flags.Lookup(timeoutFlag))
			util.MustBindPFlag(verboseMigrationFlag, flags.Lookup(verboseMigrationFlag))
		},
	}

	flags := cmd.Flags()

	exec_common.DefineDatastoreFlags(flags)
	flags.Uint(versionFlag, 0, "the version to migrate to (if omitted the latest schema will be used)")
	flags.Duration(timeoutFlag, 1*time.Minute, "a timeout after which the migration process will terminate")
	flags.Bool(verboseMigrationFlag, false, "enable verbose migration logs (default false)")

	// NOTE: if you add a new flag here, add the binding in PreRun

	return cmd
}

func runMigration(cmd *cobra.Command, _ []string) error {
	cfg, err := exec_common.ReadConfig()
	if err != nil {
		return err
	}

	if cfg.Datastore.Engine == "" {
		return errors.New("missing datastore engine type")
	}

	timeout := viper.GetDuration(timeoutFlag)
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	return migrate.RunMigrations(ctx, migrate.MigrationConfig{
		Engine:        cfg.Datastore.Engine,
		URI:           cfg.Datastore.URI,
		Username:      cfg.Datastore.Username,
		Password:      cfg.Datastore.Password,
		TargetVersion: viper.GetUint(versionFlag),
		Timeout:       timeout,
		Verbose:       viper.GetBool(verboseMigrationFlag),
		Logger:        logger.MustNewLogger("text", "info", "ISO8601"),
	})
}
