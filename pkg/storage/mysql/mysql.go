package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
	"github.com/energia/resourcecatalog/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("resourcecatalog/pkg/storage/mysql")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "mysql."+name)
}

// Datastore provides a MySQL based implementation of [storage.Datastore].
type Datastore struct {
	stbl             sq.StatementBuilderType
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
	versionReady     bool
}

// Ensures that Datastore implements the Datastore interface.
var _ storage.Datastore = (*Datastore)(nil)

// PrepareDSN applies the credential overrides to the dsn and enables time parsing,
// which the record timestamps require.
func PrepareDSN(uri, username, password string) (string, error) {
	dsnCfg, err := mysql.ParseDSN(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse mysql connection dsn: %w", err)
	}

	if username != "" {
		dsnCfg.User = username
	}
	if password != "" {
		dsnCfg.Passwd = password
	}
	dsnCfg.ParseTime = true

	return dsnCfg.FormatDSN(), nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := PrepareDSN(uri, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize mysql connection: %w", err)
	}

	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime != 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 1 * time.Minute
	attempt := 1
	err = backoff.Retry(func() error {
		err := db.PingContext(context.Background())
		if err != nil {
			cfg.Logger.Info("waiting for mysql", zap.Int("attempt", attempt))
			attempt++
			return err
		}
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("initialize mysql connection: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, "resourcecatalog")
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)
	return &Datastore{
		stbl:             stbl,
		db:               db,
		dbInfo:           sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "mysql"),
		logger:           cfg.Logger,
		dbStatsCollector: collector,
	}, nil
}

// Close see [storage.Datastore].Close.
func (s *Datastore) Close() {
	if s.dbStatsCollector != nil {
		prometheus.Unregister(s.dbStatsCollector)
	}
	s.db.Close()
}

// ReadRecord see [storage.RecordReader].ReadRecord.
func (s *Datastore) ReadRecord(ctx context.Context, id string) (*storage.Record, error) {
	ctx, span := startTrace(ctx, "ReadRecord")
	defer span.End()

	return sqlcommon.ReadRecord(ctx, s.dbInfo, id)
}

// RecordExists see [storage.RecordReader].RecordExists.
func (s *Datastore) RecordExists(ctx context.Context, id string) (bool, error) {
	ctx, span := startTrace(ctx, "RecordExists")
	defer span.End()

	return sqlcommon.RecordExists(ctx, s.dbInfo, id)
}

// ReadPage see [storage.RecordReader].ReadPage.
func (s *Datastore) ReadPage(ctx context.Context, filter storage.ReadPageFilter, opts storage.PaginationOptions) ([]*storage.Record, string, error) {
	ctx, span := startTrace(ctx, "ReadPage")
	defer span.End()

	return sqlcommon.ReadPage(ctx, s.dbInfo, filter, opts)
}

// ReadAll see [storage.RecordReader].ReadAll.
func (s *Datastore) ReadAll(ctx context.Context, opts storage.ReadAllOptions) (storage.RecordIterator, error) {
	_, span := startTrace(ctx, "ReadAll")
	defer span.End()

	return sqlcommon.NewSQLRecordIterator(s.dbInfo, opts.FetchSize), nil
}

// CountRecords see [storage.RecordReader].CountRecords.
func (s *Datastore) CountRecords(ctx context.Context) (int64, error) {
	ctx, span := startTrace(ctx, "CountRecords")
	defer span.End()

	return sqlcommon.CountRecords(ctx, s.dbInfo)
}

// CreateRecord see [storage.RecordWriter].CreateRecord.
func (s *Datastore) CreateRecord(ctx context.Context, record *storage.Record) (*storage.Record, error) {
	ctx, span := startTrace(ctx, "CreateRecord")
	defer span.End()

	return sqlcommon.CreateRecord(ctx, s.dbInfo, record, time.Now().UTC())
}

// UpdateRecord see [storage.RecordWriter].UpdateRecord.
func (s *Datastore) UpdateRecord(ctx context.Context, record *storage.Record, expectedVersion int64) (*storage.Record, error) {
	ctx, span := startTrace(ctx, "UpdateRecord")
	defer span.End()

	return sqlcommon.UpdateRecord(ctx, s.dbInfo, record, expectedVersion, time.Now().UTC())
}

// DeleteRecord see [storage.RecordWriter].DeleteRecord.
func (s *Datastore) DeleteRecord(ctx context.Context, id string) error {
	ctx, span := startTrace(ctx, "DeleteRecord")
	defer span.End()

	return sqlcommon.DeleteRecord(ctx, s.dbInfo, id)
}

// WriteBatch see [storage.RecordWriter].WriteBatch.
func (s *Datastore) WriteBatch(ctx context.Context, records []*storage.Record) error {
	ctx, span := startTrace(ctx, "WriteBatch")
	defer span.End()

	return sqlcommon.WriteBatch(ctx, s.dbInfo, records, time.Now().UTC())
}

// WriteBatchPrepared see [storage.PreparedBatchWriter].WriteBatchPrepared.
func (s *Datastore) WriteBatchPrepared(ctx context.Context, records []*storage.Record) error {
	ctx, span := startTrace(ctx, "WriteBatchPrepared")
	defer span.End()

	return sqlcommon.WriteBatchPrepared(ctx, s.dbInfo, records, time.Now().UTC())
}

// IsReady see [sqlcommon.IsReady].
func (s *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	status, err := sqlcommon.IsReady(ctx, s.versionReady, s.db)
	if err != nil {
		return status, err
	}
	s.versionReady = status.IsReady
	return status, nil
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return storage.ErrCollision
	}

	return fmt.Errorf("sql error: %w", err)
}
