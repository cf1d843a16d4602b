package util

import (
	"context"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestMustBindPFlag(t *testing.T) {
	t.Cleanup(viper.Reset)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("batch-size", 1000, "")
	MustBindPFlag("generate.batchSize", flags.Lookup("batch-size"))

	require.Equal(t, 1000, viper.GetInt("generate.batchSize"))

	require.NoError(t, flags.Parse([]string{"--batch-size", "250"}))
	require.Equal(t, 250, viper.GetInt("generate.batchSize"))

	require.Panics(t, func() {
		MustBindPFlag("generate.strategy", nil)
	})
}

func TestMustBindEnv(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Setenv("CATALOG_EXPORT_CHUNKSIZE", "500")
	MustBindEnv("export.chunkSize", "CATALOG_EXPORT_CHUNK_SIZE", "CATALOG_EXPORT_CHUNKSIZE")
	require.Equal(t, 500, viper.GetInt("export.chunkSize"))

	require.Panics(t, func() {
		MustBindEnv()
	})
}

func TestMustBootstrapSQLiteDatastore(t *testing.T) {
	ds, uri := MustBootstrapSQLiteDatastore(t)
	require.Contains(t, uri, "catalog.db")

	status, err := ds.IsReady(context.Background())
	require.NoError(t, err)
	require.True(t, status.IsReady)

	count, err := ds.CountRecords(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}
