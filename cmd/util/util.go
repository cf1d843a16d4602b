// Package util provides common utilities for spf13/cobra CLI utilities
// that can be used for various commands within this project.
package util

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/energia/resourcecatalog/pkg/storage"
	"github.com/energia/resourcecatalog/pkg/storage/migrate"
	"github.com/energia/resourcecatalog/pkg/storage/sqlcommon"
	"github.com/energia/resourcecatalog/pkg/storage/sqlite"
)

// MustBindPFlag attempts to bind a specific key to a pflag (as used by cobra) and panics
// if the binding fails with a non-nil error.
func MustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func MustBindEnv(input ...string) {
	if err := viper.BindEnv(input...); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}

// MustBootstrapSQLiteDatastore migrates a fresh SQLite database in a temporary directory and
// returns its URI together with an open datastore on it.
func MustBootstrapSQLiteDatastore(t testing.TB) (storage.Datastore, string) {
	t.Helper()

	uri := "file:" + filepath.Join(t.TempDir(), "catalog.db")

	err := migrate.RunMigrations(context.Background(), migrate.MigrationConfig{
		Engine:  "sqlite",
		URI:     uri,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	ds, err := sqlite.New(uri, sqlcommon.NewConfig())
	require.NoError(t, err)
	t.Cleanup(ds.Close)

	return ds, uri
}

func PrepareTempConfigDir(t *testing.T) string {
	_, err := os.Stat("/etc/catalog/config.yaml")
	require.ErrorIs(t, err, os.ErrNotExist, "Config file at /etc/catalog/config.yaml would disturb test result.")

	homedir := t.TempDir()
	t.Setenv("HOME", homedir)

	confdir := filepath.Join(homedir, ".catalog")
	require.NoError(t, os.Mkdir(confdir, 0750))

	return confdir
}

func PrepareTempConfigFile(t *testing.T, config string) {
	confdir := PrepareTempConfigDir(t)
	confFile, err := os.Create(filepath.Join(confdir, "config.yaml"))
	require.NoError(t, err)
	_, err = confFile.WriteString(config)
	require.NoError(t, err)
	require.NoError(t, confFile.Close())
}
