package exec_common

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/energia/resourcecatalog/internal/config"
	"github.com/energia/resourcecatalog/pkg/events"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage/memory"
	"github.com/energia/resourcecatalog/pkg/storage/sqlite"
)

func TestNewDatastoreEngine(t *testing.T) {
	for _, engine := range []string{"memory", "postgres", "mysql", "sqlite"} {
		got, err := NewDatastoreEngine(engine)
		require.NoError(t, err)
		require.Equal(t, engine, got.String())
	}

	_, err := NewDatastoreEngine("cassandra")
	require.ErrorContains(t, err, "invalid datastore engine")
}

func TestVerifyDatastoreEngine(t *testing.T) {
	require.NoError(t, VerifyDatastoreEngine("postgres://localhost:5432/catalog", Postgres))
	require.NoError(t, VerifyDatastoreEngine("file:catalog.db", SQLite))
	require.NoError(t, VerifyDatastoreEngine("root:secret@tcp(localhost:3306)/catalog", MySQL))
	require.NoError(t, VerifyDatastoreEngine("", Memory))

	require.ErrorContains(t, VerifyDatastoreEngine("postgresql://localhost:5432/catalog", MySQL), "must be (postgres)")
	require.ErrorContains(t, VerifyDatastoreEngine("file:catalog.db", Postgres), "must be (sqlite)")
}

func TestNewDatastore(t *testing.T) {
	tests := []struct {
		name       string
		datastore  config.DatastoreConfig
		wantDSType any
		wantErr    string
	}{
		{
			name:       "memory",
			datastore:  config.DatastoreConfig{Engine: "memory"},
			wantDSType: &memory.MemoryBackend{},
		},
		{
			name:       "sqlite",
			datastore:  config.DatastoreConfig{Engine: "sqlite", URI: "file:" + t.TempDir() + "/catalog.db"},
			wantDSType: &sqlite.Datastore{},
		},
		{
			name:      "sqlite_bad_uri",
			datastore: config.DatastoreConfig{Engine: "sqlite", URI: "uri?is;bad=true"},
			wantErr:   "invalid semicolon separator in query",
		},
		{
			name:      "mysql_bad_uri",
			datastore: config.DatastoreConfig{Engine: "mysql", Username: "root", Password: "password", URI: "uri?is;bad=true"},
			wantErr:   "missing the slash separating the database name",
		},
		{
			name:      "engine_uri_mismatch",
			datastore: config.DatastoreConfig{Engine: "mysql", URI: "postgres://localhost:5432/catalog"},
			wantErr:   "must be (postgres)",
		},
		{
			name:      "unsupported_engine",
			datastore: config.DatastoreConfig{Engine: "unsupported"},
			wantErr:   "invalid datastore engine",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Datastore = test.datastore

			ds, err := NewDatastore(cfg, logger.NewNoopLogger())
			if test.wantErr != "" {
				require.ErrorContains(t, err, test.wantErr)
				require.Nil(t, ds)
				return
			}

			require.NoError(t, err)
			t.Cleanup(ds.Close)
			require.IsType(t, test.wantDSType, ds)
		})
	}
}

func TestNewEventSink(t *testing.T) {
	cfg := config.DefaultConfig()

	sink, closer, err := NewEventSink(context.Background(), cfg, logger.NewNoopLogger())
	require.NoError(t, err)
	require.IsType(t, &events.LogSink{}, sink)
	require.NoError(t, closer())

	cfg.Sink.Engine = "kafka"
	_, _, err = NewEventSink(context.Background(), cfg, logger.NewNoopLogger())
	require.ErrorContains(t, err, "sink engine 'kafka' is unsupported")
}

func TestNewRuntime(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		rt, err := NewRuntime(context.Background(), config.DefaultConfig())
		require.NoError(t, err)
		require.IsType(t, &memory.MemoryBackend{}, rt.Datastore)
		require.IsType(t, &events.LogSink{}, rt.Sink)
		require.NoError(t, rt.Close())
	})

	t.Run("invalid_config", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Export.ChunkSize = 0

		_, err := NewRuntime(context.Background(), cfg)
		require.ErrorContains(t, err, "config 'export.chunkSize' must be positive")
	})

	t.Run("closes_datastore_when_sink_fails", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Datastore = config.DatastoreConfig{Engine: "sqlite", URI: "file:" + t.TempDir() + "/catalog.db"}
		cfg.Sink.Engine = config.SinkRedis
		cfg.Sink.Redis.Addr = "127.0.0.1:1"

		_, err := NewRuntime(context.Background(), cfg)
		require.ErrorContains(t, err, "ping redis")
	})
}
