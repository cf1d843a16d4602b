package generate

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/energia/resourcecatalog/cmd"
	"github.com/energia/resourcecatalog/cmd/exec_common"
	"github.com/energia/resourcecatalog/cmd/util"
	"github.com/energia/resourcecatalog/internal/config"
	"github.com/energia/resourcecatalog/internal/mocks"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
	"github.com/energia/resourcecatalog/pkg/storage/memory"
)

func executeGenerate(t *testing.T, generateCmd *cobra.Command, args ...string) error {
	t.Helper()
	t.Cleanup(viper.Reset)

	rootCmd := cmd.NewRootCommand()
	rootCmd.AddCommand(generateCmd)
	rootCmd.SetArgs(append([]string{"generate"}, args...))
	return rootCmd.Execute()
}

func TestGenerateCommandConfigIsMerged(t *testing.T) {
	util.PrepareTempConfigFile(t, `generate:
    batchSize: 250
    strategy: prepared
`)

	t.Setenv("CATALOG_GENERATE_TARGET_TOTAL", "4200")

	generateCmd := NewGenerateCommand()
	generateCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := exec_common.ReadConfig()
		require.NoError(t, err)
		require.Equal(t, int64(4200), cfg.Generate.TargetTotal)
		require.Equal(t, 250, cfg.Generate.BatchSize)
		require.Equal(t, "prepared", cfg.Generate.Strategy)
		require.Equal(t, int64(10_000), cfg.Generate.ProgressInterval)
		require.Equal(t, "memory", cfg.Datastore.Engine)
		return nil
	}
	require.NoError(t, executeGenerate(t, generateCmd, "--progress-interval", "10000"))
}

func TestGenerateCommandSQLite(t *testing.T) {
	util.PrepareTempConfigDir(t)
	ds, uri := util.MustBootstrapSQLiteDatastore(t)

	args := []string{
		"--datastore-engine", "sqlite",
		"--datastore-uri", uri,
		"--target-total", "2500",
		"--batch-size", "1000",
		"--log-level", "none",
	}

	require.NoError(t, executeGenerate(t, NewGenerateCommand(), args...))

	count, err := ds.CountRecords(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2500), count)

	t.Run("second_run_is_a_noop", func(t *testing.T) {
		require.NoError(t, executeGenerate(t, NewGenerateCommand(), args...))

		count, err := ds.CountRecords(context.Background())
		require.NoError(t, err)
		require.Equal(t, int64(2500), count)
	})
}

func TestGenerateCommandRejectsInvalidConfig(t *testing.T) {
	util.PrepareTempConfigDir(t)

	err := executeGenerate(t, NewGenerateCommand(), "--strategy", "bulk-copy", "--log-level", "none")
	require.ErrorContains(t, err, "config 'generate.strategy' must be one of")
}

func TestRun(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Generate.TargetTotal = 25
		cfg.Generate.BatchSize = 10

		ds := memory.New()
		rt := &exec_common.Runtime{Config: cfg, Logger: logger.NewNoopLogger(), Datastore: ds}

		res, err := Run(context.Background(), rt)
		require.NoError(t, err)
		require.Equal(t, int64(25), res.Generated)
		require.Equal(t, 3, res.Batches)

		count, err := ds.CountRecords(context.Background())
		require.NoError(t, err)
		require.Equal(t, int64(25), count)
	})

	t.Run("datastore_not_ready", func(t *testing.T) {
		mockController := gomock.NewController(t)
		defer mockController.Finish()

		ds := mocks.NewMockDatastore(mockController)
		ds.EXPECT().IsReady(gomock.Any()).Return(storage.ReadinessStatus{
			Message: "datastore requires migrations",
		}, nil)

		rt := &exec_common.Runtime{Config: config.DefaultConfig(), Logger: logger.NewNoopLogger(), Datastore: ds}

		_, err := Run(context.Background(), rt)
		require.ErrorContains(t, err, "datastore is not ready: datastore requires migrations")
	})
}
