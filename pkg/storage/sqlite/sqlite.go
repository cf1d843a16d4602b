package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
	"github.com/energia/resourcecatalog/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("resourcecatalog/pkg/storage/sqlite")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sqlite."+name)
}

// Datastore provides a SQLite based implementation of [storage.Datastore].
type Datastore struct {
	stbl             sq.StatementBuilderType
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
	versionReady     bool
}

// Ensures that SQLite implements the Datastore interface.
var _ storage.Datastore = (*Datastore)(nil)

// Prepare a raw DSN from config for use with SQLite, specifying defaults for journal mode and busy timeout.
func PrepareDSN(uri string) (string, error) {
	query := url.Values{}
	var err error

	if i := strings.Index(uri, "?"); i != -1 {
		query, err = url.ParseQuery(uri[i+1:])
		if err != nil {
			return uri, fmt.Errorf("error parsing dsn: %w", err)
		}

		uri = uri[:i]
	}

	foundJournalMode := false
	foundBusyTimeout := false
	for _, val := range query["_pragma"] {
		if strings.HasPrefix(val, "journal_mode") {
			foundJournalMode = true
		} else if strings.HasPrefix(val, "busy_timeout") {
			foundBusyTimeout = true
		}
	}

	if !foundJournalMode {
		query.Add("_pragma", "journal_mode(WAL)")
	}
	if !foundBusyTimeout {
		query.Add("_pragma", "busy_timeout(100)")
	}

	// Set transaction mode to immediate if not specified
	if !query.Has("_txlock") {
		query.Set("_txlock", "immediate")
	}

	uri += "?" + query.Encode()

	return uri, nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := PrepareDSN(uri)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite connection: %w", err)
	}

	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, "resourcecatalog")
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)
	dbInfo := sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "sqlite")

	return &Datastore{
		stbl:             stbl,
		db:               db,
		dbInfo:           dbInfo,
		logger:           cfg.Logger,
		dbStatsCollector: collector,
		versionReady:     false,
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

	var created *storage.Record
	err := busyRetry(func() error {
		var err error
		created, err = sqlcommon.CreateRecord(ctx, s.dbInfo, record, time.Now().UTC())
		return err
	})
	return created, err
}

// UpdateRecord see [storage.RecordWriter].UpdateRecord.
func (s *Datastore) UpdateRecord(ctx context.Context, record *storage.Record, expectedVersion int64) (*storage.Record, error) {
	ctx, span := startTrace(ctx, "UpdateRecord")
	defer span.End()

	var updated *storage.Record
	err := busyRetry(func() error {
		var err error
		updated, err = sqlcommon.UpdateRecord(ctx, s.dbInfo, record, expectedVersion, time.Now().UTC())
		return err
	})
	return updated, err
}

// DeleteRecord see [storage.RecordWriter].DeleteRecord.
func (s *Datastore) DeleteRecord(ctx context.Context, id string) error {
	ctx, span := startTrace(ctx, "DeleteRecord")
	defer span.End()

	return busyRetry(func() error {
		return sqlcommon.DeleteRecord(ctx, s.dbInfo, id)
	})
}

// WriteBatch see [storage.RecordWriter].WriteBatch.
func (s *Datastore) WriteBatch(ctx context.Context, records []*storage.Record) error {
	ctx, span := startTrace(ctx, "WriteBatch")
	defer span.End()

	return busyRetry(func() error {
		return sqlcommon.WriteBatch(ctx, s.dbInfo, records, time.Now().UTC())
	})
}

// WriteBatchPrepared see [storage.PreparedBatchWriter].WriteBatchPrepared.
func (s *Datastore) WriteBatchPrepared(ctx context.Context, records []*storage.Record) error {
	ctx, span := startTrace(ctx, "WriteBatchPrepared")
	defer span.End()

	return busyRetry(func() error {
		return sqlcommon.WriteBatchPrepared(ctx, s.dbInfo, records, time.Now().UTC())
	})
}

// IsReady see [sqlcommon.IsReady].
func (s *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	versionReady, err := sqlcommon.IsReady(ctx, s.versionReady, s.db)
	if err != nil {
		return versionReady, err
	}
	s.versionReady = versionReady.IsReady
	return versionReady, nil
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code()&0xFF == sqlite3.SQLITE_CONSTRAINT {
			return fmt.Errorf("%w: %s", storage.ErrCollision, sqliteErr.Error())
		}
	}

	return fmt.Errorf("sql error: %w", err)
}

// SQLite will return an SQLITE_BUSY error when the database is locked rather than waiting for the lock.
// This function retries the operation up to maxRetries times before returning the error.
func busyRetry(fn func() error) error {
	const maxRetries = 10
	for retries := 0; ; retries++ {
		err := fn()
		if err == nil {
			return nil
		}

		if isBusyError(err) {
			if retries < maxRetries {
				continue
			}

			return fmt.Errorf("sqlite busy error after %d retries: %w", maxRetries, err)
		}

		return err
	}
}

var busyErrors = map[int]struct{}{
	sqlite3.SQLITE_BUSY_RECOVERY:      {},
	sqlite3.SQLITE_BUSY_SNAPSHOT:      {},
	sqlite3.SQLITE_BUSY_TIMEOUT:       {},
	sqlite3.SQLITE_BUSY:               {},
	sqlite3.SQLITE_LOCKED_SHAREDCACHE: {},
	sqlite3.SQLITE_LOCKED:             {},
}

func isBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	_, ok := busyErrors[sqliteErr.Code()]
	return ok
}
