// Package config contains all knobs and defaults used to configure the catalog
// generation and export commands.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"
)

const (
	DefaultTargetTotal      = 500_000
	DefaultBatchSize        = 1000
	DefaultProgressInterval = 10_000

	DefaultChunkSize = 20_000
	DefaultFetchSize = 20_000

	StrategyBatchSave = "batch-save"
	StrategyPrepared  = "prepared"

	SinkLog   = "log"
	SinkRedis = "redis"
)

type DatastoreMetricsConfig struct {
	// Enabled enables export of the Datastore metrics.
	Enabled bool
}

// DatastoreConfig defines configurations for datastore specific settings.
type DatastoreConfig struct {
	// Engine is the datastore engine to use (e.g. 'memory', 'postgres', 'mysql', 'sqlite')
	Engine   string
	URI      string
	Username string
	Password string

	// MaxOpenConns is the maximum number of open connections to the database.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections to the datastore in the idle connection
	// pool.
	MaxIdleConns int

	// ConnMaxIdleTime is the maximum amount of time a connection to the datastore may be idle.
	ConnMaxIdleTime time.Duration

	// ConnMaxLifetime is the maximum amount of time a connection to the datastore may be reused.
	ConnMaxLifetime time.Duration

	// Metrics is configuration for the Datastore metrics.
	Metrics DatastoreMetricsConfig
}

// LogConfig defines configurations for log specific settings. For production we
// recommend using the 'json' log format.
type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string

	// Format of the timestamp in the log output (e.g. 'Unix'(default) or 'ISO8601')
	TimestampFormat string
}

type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string
}

type OTLPTraceConfig struct {
	Endpoint string
	TLS      OTLPTraceTLSConfig
}

type OTLPTraceTLSConfig struct {
	Enabled bool
}

// MetricConfig defines configurations for serving the prometheus metrics of a run.
type MetricConfig struct {
	Enabled bool
	Addr    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Tag names the rmq connection.
	Tag string
}

// SinkConfig selects where change notifications and export chunks are sent.
type SinkConfig struct {
	// Engine is either 'log' or 'redis'.
	Engine string
	Redis  RedisConfig
}

type GenerateConfig struct {
	TargetTotal      int64
	BatchSize        int
	ProgressInterval int64
	// Strategy is either 'batch-save' or 'prepared'.
	Strategy string
}

type ExportConfig struct {
	// ChunkSize is the number of records published per downstream message.
	ChunkSize int
	// FetchSize is the number of records read from the datastore per round trip.
	FetchSize      int
	MaxConcurrency int
	// FailFast cancels outstanding chunks after the first publish failure.
	FailFast bool
	// Output, when set, writes the catalog as a JSON array to this path instead of publishing
	// it. "-" is standard output.
	Output string
}

type Config struct {
	Datastore DatastoreConfig
	Log       LogConfig
	Trace     TraceConfig
	Metrics   MetricConfig
	Sink      SinkConfig
	Generate  GenerateConfig
	Export    ExportConfig
}

func (cfg *Config) Verify() error {
	if !slices.Contains([]string{"memory", "postgres", "mysql", "sqlite"}, cfg.Datastore.Engine) {
		return fmt.Errorf("config 'datastore.engine' must be one of ['memory', 'postgres', 'mysql', 'sqlite']")
	}

	if cfg.Datastore.Engine != "memory" && cfg.Datastore.URI == "" {
		return fmt.Errorf("config 'datastore.uri' is required for engine '%s'", cfg.Datastore.Engine)
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	if !slices.Contains([]string{"none", "debug", "info", "warn", "error", "panic", "fatal"}, cfg.Log.Level) {
		return fmt.Errorf(
			"config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		)
	}

	if cfg.Log.TimestampFormat != "Unix" && cfg.Log.TimestampFormat != "ISO8601" {
		return fmt.Errorf("config 'log.TimestampFormat' must be one of ['Unix', 'ISO8601']")
	}

	if cfg.Trace.Enabled && (cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1) {
		return errors.New("config 'trace.sampleRatio' must be between 0 and 1")
	}

	switch cfg.Sink.Engine {
	case SinkLog:
	case SinkRedis:
		if cfg.Sink.Redis.Addr == "" {
			return errors.New("config 'sink.redis.addr' must be set when 'sink.engine' is 'redis'")
		}
	default:
		return fmt.Errorf("config 'sink.engine' must be one of ['%s', '%s']", SinkLog, SinkRedis)
	}

	if cfg.Generate.TargetTotal < 0 {
		return errors.New("config 'generate.targetTotal' must be non-negative")
	}
	if cfg.Generate.BatchSize <= 0 {
		return errors.New("config 'generate.batchSize' must be positive")
	}
	if cfg.Generate.ProgressInterval <= 0 {
		return errors.New("config 'generate.progressInterval' must be positive")
	}
	if cfg.Generate.Strategy != StrategyBatchSave && cfg.Generate.Strategy != StrategyPrepared {
		return fmt.Errorf("config 'generate.strategy' must be one of ['%s', '%s']", StrategyBatchSave, StrategyPrepared)
	}

	if cfg.Export.ChunkSize <= 0 {
		return errors.New("config 'export.chunkSize' must be positive")
	}
	if cfg.Export.FetchSize <= 0 {
		return errors.New("config 'export.fetchSize' must be positive")
	}
	if cfg.Export.MaxConcurrency <= 0 {
		return errors.New("config 'export.maxConcurrency' must be positive")
	}

	return nil
}

// DefaultConfig is the catalog default configuration.
func DefaultConfig() *Config {
	return &Config{
		Datastore: DatastoreConfig{
			Engine:       "memory",
			MaxIdleConns: 10,
			MaxOpenConns: 30,
		},
		Log: LogConfig{
			Format:          "text",
			Level:           "info",
			TimestampFormat: "Unix",
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
				TLS: OTLPTraceTLSConfig{
					Enabled: false,
				},
			},
			SampleRatio: 0.2,
			ServiceName: "resourcecatalog",
		},
		Metrics: MetricConfig{
			Enabled: false,
			Addr:    "0.0.0.0:2112",
		},
		Sink: SinkConfig{
			Engine: SinkLog,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Tag:  "resourcecatalog",
			},
		},
		Generate: GenerateConfig{
			TargetTotal:      DefaultTargetTotal,
			BatchSize:        DefaultBatchSize,
			ProgressInterval: DefaultProgressInterval,
			Strategy:         StrategyBatchSave,
		},
		Export: ExportConfig{
			ChunkSize:      DefaultChunkSize,
			FetchSize:      DefaultFetchSize,
			MaxConcurrency: runtime.GOMAXPROCS(0),
			FailFast:       false,
		},
	}
}
