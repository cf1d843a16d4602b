// Package exec_common holds the configuration, flag and runtime wiring shared by the
// commands that work against a datastore.
package exec_common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/energia/resourcecatalog/cmd/util"
	"github.com/energia/resourcecatalog/internal/config"
	"github.com/energia/resourcecatalog/pkg/events"
	"github.com/energia/resourcecatalog/pkg/events/redisqueue"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
	"github.com/energia/resourcecatalog/pkg/storage/memory"
	"github.com/energia/resourcecatalog/pkg/storage/mysql"
	"github.com/energia/resourcecatalog/pkg/storage/postgres"
	"github.com/energia/resourcecatalog/pkg/storage/sqlcommon"
	"github.com/energia/resourcecatalog/pkg/storage/sqlite"
	"github.com/energia/resourcecatalog/pkg/telemetry"
)

// DatastoreEngine type to define different engine types
type DatastoreEngine string

// Types of Datastore Engines
const (
	Memory   DatastoreEngine = "memory"
	Postgres DatastoreEngine = "postgres"
	MySQL    DatastoreEngine = "mysql"
	SQLite   DatastoreEngine = "sqlite"
)

func (e DatastoreEngine) String() string {
	return string(e)
}

func NewDatastoreEngine(engine string) (DatastoreEngine, error) {
	for _, engineType := range []DatastoreEngine{Memory, Postgres, MySQL, SQLite} {
		if engineType.String() == engine {
			return engineType, nil
		}
	}
	return "", fmt.Errorf("invalid datastore engine '(%s)'", engine)
}

// VerifyDatastoreEngine rejects a URI whose scheme names a different engine than the configured one.
func VerifyDatastoreEngine(uri string, engine DatastoreEngine) error {
	scheme, _, found := strings.Cut(uri, ":")
	if !found {
		return nil
	}
	switch scheme {
	case "postgresql", "postgres":
		if engine != Postgres {
			return fmt.Errorf("config 'datastore.engine' must be (%s)", Postgres)
		}
	case "file":
		if engine != SQLite {
			return fmt.Errorf("config 'datastore.engine' must be (%s)", SQLite)
		}
	}
	return nil
}

// binding ties a cobra flag to the viper key it populates and the environment variables
// that may also set it.
type binding struct {
	flag string
	key  string
	envs []string
}

var datastoreBindings = []binding{
	{"datastore-engine", "datastore.engine", []string{"CATALOG_DATASTORE_ENGINE"}},
	{"datastore-uri", "datastore.uri", []string{"CATALOG_DATASTORE_URI"}},
	{"datastore-username", "datastore.username", []string{"CATALOG_DATASTORE_USERNAME"}},
	{"datastore-password", "datastore.password", []string{"CATALOG_DATASTORE_PASSWORD"}},
}

var connectionBindings = []binding{
	{"datastore-max-open-conns", "datastore.maxOpenConns", []string{"CATALOG_DATASTORE_MAX_OPEN_CONNS", "CATALOG_DATASTORE_MAXOPENCONNS"}},
	{"datastore-max-idle-conns", "datastore.maxIdleConns", []string{"CATALOG_DATASTORE_MAX_IDLE_CONNS", "CATALOG_DATASTORE_MAXIDLECONNS"}},
	{"datastore-conn-max-idle-time", "datastore.connMaxIdleTime", []string{"CATALOG_DATASTORE_CONN_MAX_IDLE_TIME", "CATALOG_DATASTORE_CONNMAXIDLETIME"}},
	{"datastore-conn-max-lifetime", "datastore.connMaxLifetime", []string{"CATALOG_DATASTORE_CONN_MAX_LIFETIME", "CATALOG_DATASTORE_CONNMAXLIFETIME"}},
	{"datastore-metrics-enabled", "datastore.metrics.enabled", []string{"CATALOG_DATASTORE_METRICS_ENABLED"}},
}

var runtimeBindings = []binding{
	{"log-format", "log.format", []string{"CATALOG_LOG_FORMAT"}},
	{"log-level", "log.level", []string{"CATALOG_LOG_LEVEL"}},
	{"log-timestamp-format", "log.timestampFormat", []string{"CATALOG_LOG_TIMESTAMP_FORMAT", "CATALOG_LOG_TIMESTAMPFORMAT"}},
	{"trace-enabled", "trace.enabled", []string{"CATALOG_TRACE_ENABLED"}},
	{"trace-otlp-endpoint", "trace.otlp.endpoint", []string{"CATALOG_TRACE_OTLP_ENDPOINT"}},
	{"trace-otlp-tls-enabled", "trace.otlp.tls.enabled", []string{"CATALOG_TRACE_OTLP_TLS_ENABLED"}},
	{"trace-sample-ratio", "trace.sampleRatio", []string{"CATALOG_TRACE_SAMPLE_RATIO", "CATALOG_TRACE_SAMPLERATIO"}},
	{"trace-service-name", "trace.serviceName", []string{"CATALOG_TRACE_SERVICE_NAME", "CATALOG_TRACE_SERVICENAME"}},
	{"metrics-enabled", "metrics.enabled", []string{"CATALOG_METRICS_ENABLED"}},
	{"metrics-addr", "metrics.addr", []string{"CATALOG_METRICS_ADDR"}},
	{"sink-engine", "sink.engine", []string{"CATALOG_SINK_ENGINE"}},
	{"sink-redis-addr", "sink.redis.addr", []string{"CATALOG_SINK_REDIS_ADDR"}},
	{"sink-redis-password", "sink.redis.password", []string{"CATALOG_SINK_REDIS_PASSWORD"}},
	{"sink-redis-db", "sink.redis.db", []string{"CATALOG_SINK_REDIS_DB"}},
	{"sink-redis-tag", "sink.redis.tag", []string{"CATALOG_SINK_REDIS_TAG"}},
}

// DefineDatastoreFlags registers the flags selecting and authenticating against a datastore.
func DefineDatastoreFlags(flags *pflag.FlagSet) {
	defaultConfig := config.DefaultConfig()

	flags.String("datastore-engine", defaultConfig.Datastore.Engine, "the datastore engine that will be used for persistence ('memory', 'postgres', 'mysql' or 'sqlite')")
	flags.String("datastore-uri", defaultConfig.Datastore.URI, "the connection uri to use to connect to the datastore (for any engine other than 'memory')")
	flags.String("datastore-username", "", "the connection username to use to connect to the datastore (overwrites any username provided in the connection uri)")
	flags.String("datastore-password", "", "the connection password to use to connect to the datastore (overwrites any password provided in the connection uri)")
}

// DefineRuntimeFlags registers the connection pool, logging, tracing, metrics and sink flags.
func DefineRuntimeFlags(flags *pflag.FlagSet) {
	defaultConfig := config.DefaultConfig()

	flags.Int("datastore-max-open-conns", defaultConfig.Datastore.MaxOpenConns, "the maximum number of open connections to the datastore")
	flags.Int("datastore-max-idle-conns", defaultConfig.Datastore.MaxIdleConns, "the maximum number of connections to the datastore in the idle connection pool")
	flags.Duration("datastore-conn-max-idle-time", defaultConfig.Datastore.ConnMaxIdleTime, "the maximum amount of time a connection to the datastore may be idle")
	flags.Duration("datastore-conn-max-lifetime", defaultConfig.Datastore.ConnMaxLifetime, "the maximum amount of time a connection to the datastore may be reused")
	flags.Bool("datastore-metrics-enabled", defaultConfig.Datastore.Metrics.Enabled, "enable/disable sql metrics")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in ('text' or 'json')")
	flags.String("log-level", defaultConfig.Log.Level, "the log level to use ('none', 'debug', 'info', 'warn', 'error', 'panic' or 'fatal')")
	flags.String("log-timestamp-format", defaultConfig.Log.TimestampFormat, "the timestamp format to use for log messages ('Unix' or 'ISO8601')")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")
	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	flags.Bool("trace-otlp-tls-enabled", defaultConfig.Trace.OTLP.TLS.Enabled, "use TLS connection for trace collector")
	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none.")
	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces.")

	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "enable/disable prometheus metrics on the '/metrics' endpoint")
	flags.String("metrics-addr", defaultConfig.Metrics.Addr, "the host:port address to serve the prometheus metrics server on")

	flags.String("sink-engine", defaultConfig.Sink.Engine, "where resource events and export chunks are sent ('log' or 'redis')")
	flags.String("sink-redis-addr", defaultConfig.Sink.Redis.Addr, "the host:port address of the redis server backing the queues")
	flags.String("sink-redis-password", defaultConfig.Sink.Redis.Password, "the redis password")
	flags.Int("sink-redis-db", defaultConfig.Sink.Redis.DB, "the redis database number")
	flags.String("sink-redis-tag", defaultConfig.Sink.Redis.Tag, "the name of the queue connection")
}

func bind(flags *pflag.FlagSet, bindings []binding) {
	for _, b := range bindings {
		util.MustBindPFlag(b.key, flags.Lookup(b.flag))
		util.MustBindEnv(append([]string{b.key}, b.envs...)...)
	}
}

// BindDatastoreFlags binds the flags registered by DefineDatastoreFlags. Call it from PreRun so
// that the command being executed owns the shared keys.
func BindDatastoreFlags(flags *pflag.FlagSet) {
	bind(flags, datastoreBindings)
}

// BindRuntimeFlags binds the flags registered by DefineRuntimeFlags.
func BindRuntimeFlags(flags *pflag.FlagSet) {
	bind(flags, connectionBindings)
	bind(flags, runtimeBindings)
}

// ReadConfig returns the catalog configuration built from the defaults, the config file,
// the environment and the bound flags.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load catalog config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog config: %w", err)
	}

	return cfg, nil
}

// NewDatastore opens the datastore selected by the config.
func NewDatastore(cfg *config.Config, l logger.Logger) (storage.Datastore, error) {
	engine, err := NewDatastoreEngine(cfg.Datastore.Engine)
	if err != nil {
		return nil, err
	}
	if err := VerifyDatastoreEngine(cfg.Datastore.URI, engine); err != nil {
		return nil, err
	}

	datastoreOptions := []sqlcommon.DatastoreOption{
		sqlcommon.WithUsername(cfg.Datastore.Username),
		sqlcommon.WithPassword(cfg.Datastore.Password),
		sqlcommon.WithLogger(l),
		sqlcommon.WithMaxOpenConns(cfg.Datastore.MaxOpenConns),
		sqlcommon.WithMaxIdleConns(cfg.Datastore.MaxIdleConns),
		sqlcommon.WithConnMaxIdleTime(cfg.Datastore.ConnMaxIdleTime),
		sqlcommon.WithConnMaxLifetime(cfg.Datastore.ConnMaxLifetime),
	}

	if cfg.Datastore.Metrics.Enabled {
		datastoreOptions = append(datastoreOptions, sqlcommon.WithMetrics())
	}

	dsCfg := sqlcommon.NewConfig(datastoreOptions...)

	var datastore storage.Datastore
	switch engine {
	case Memory:
		datastore = memory.New()
	case MySQL:
		datastore, err = mysql.New(cfg.Datastore.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize mysql datastore: %w", err)
		}
	case Postgres:
		datastore, err = postgres.New(cfg.Datastore.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres datastore: %w", err)
		}
	case SQLite:
		datastore, err = sqlite.New(cfg.Datastore.URI, dsCfg)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite datastore: %w", err)
		}
	}

	l.Info(fmt.Sprintf("using '%v' storage engine", engine))

	return datastore, nil
}

// NewEventSink returns the sink selected by the config and the function releasing its connection.
func NewEventSink(ctx context.Context, cfg *config.Config, l logger.Logger) (events.EventSink, func() error, error) {
	switch cfg.Sink.Engine {
	case config.SinkLog:
		return events.NewLogSink(l), func() error { return nil }, nil
	case config.SinkRedis:
		client, conn, err := redisqueue.Connect(ctx, cfg.Sink.Redis.Tag, &redis.Options{
			Addr:     cfg.Sink.Redis.Addr,
			Password: cfg.Sink.Redis.Password,
			DB:       cfg.Sink.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}

		closer := func() error {
			<-conn.StopAllConsuming()
			return client.Close()
		}

		sink, err := redisqueue.NewSink(conn, redisqueue.WithLogger(l))
		if err != nil {
			return nil, nil, errors.Join(err, closer())
		}

		l.Info("publishing to redis queues", zap.String("addr", cfg.Sink.Redis.Addr))
		return sink, closer, nil
	default:
		return nil, nil, fmt.Errorf("sink engine '%s' is unsupported", cfg.Sink.Engine)
	}
}

// telemetryConfig returns the function that must be called to shut down tracing.
func telemetryConfig(cfg *config.Config, l logger.Logger) func() error {
	if cfg.Trace.Enabled {
		l.Info(fmt.Sprintf("🕵 tracing enabled: sampling ratio is %v and sending traces to '%s', tls: %t", cfg.Trace.SampleRatio, cfg.Trace.OTLP.Endpoint, cfg.Trace.OTLP.TLS.Enabled))

		options := []telemetry.TracerOption{
			telemetry.WithOTLPEndpoint(cfg.Trace.OTLP.Endpoint),
			telemetry.WithServiceName(cfg.Trace.ServiceName),
			telemetry.WithSamplingRatio(cfg.Trace.SampleRatio),
		}

		if !cfg.Trace.OTLP.TLS.Enabled {
			options = append(options, telemetry.WithOTLPInsecure())
		}

		tp := telemetry.MustNewTracerProvider(options...)
		return func() error {
			// the batch span processor can take up to 5 seconds to flush
			ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
			defer cancel()
			return errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx))
		}
	}
	otel.SetTracerProvider(noop.NewTracerProvider())
	return func() error {
		return nil
	}
}

func startMetricsServer(cfg *config.Config, l logger.Logger) func() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

	go func() {
		l.Info(fmt.Sprintf("📈 starting prometheus metrics server on '%s'", cfg.Metrics.Addr))
		if err := metricsServer.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				l.Error("failed to start prometheus metrics server", zap.Error(err))
			}
		}
		l.Info("metrics server shut down.")
	}()

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(ctx)
	}
}

// Runtime is everything a datastore command needs while it runs.
type Runtime struct {
	Config    *config.Config
	Logger    logger.Logger
	Datastore storage.Datastore
	Sink      events.EventSink

	closers []func() error
}

// NewRuntime verifies the config and opens the logger, tracing, metrics server, datastore and
// sink it describes. Whatever was opened before a failure is released again.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}

	l, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level, cfg.Log.TimestampFormat)
	if err != nil {
		return nil, err
	}

	r := &Runtime{Config: cfg, Logger: l}
	r.closers = append(r.closers, telemetryConfig(cfg, l))

	if cfg.Metrics.Enabled {
		r.closers = append(r.closers, startMetricsServer(cfg, l))
	}

	datastore, err := NewDatastore(cfg, l)
	if err != nil {
		return nil, errors.Join(err, r.Close())
	}
	r.Datastore = datastore
	r.closers = append(r.closers, func() error {
		datastore.Close()
		return nil
	})

	sink, closeSink, err := NewEventSink(ctx, cfg, l)
	if err != nil {
		return nil, errors.Join(err, r.Close())
	}
	r.Sink = sink
	r.closers = append(r.closers, closeSink)

	return r, nil
}

// Close releases the runtime resources in reverse order of acquisition.
func (r *Runtime) Close() error {
	var errs []error
	for _, closer := range slices.Backward(r.closers) {
		errs = append(errs, closer())
	}
	r.closers = nil
	return errors.Join(errs...)
}
