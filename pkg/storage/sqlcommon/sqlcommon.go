package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/energia/resourcecatalog/internal/build"
	"github.com/energia/resourcecatalog/pkg/logger"
	"github.com/energia/resourcecatalog/pkg/storage"
)

var tracer = otel.Tracer("pkg/storage/sqlcommon")

// maxStatementParams is SQLite's default SQLITE_MAX_VARIABLE_NUMBER, the lowest bind parameter
// limit of the supported engines. Multi-row inserts are split to stay under it.
const maxStatementParams = 32766

// Config defines the configuration parameters
// for setting up and managing a sql connection.
type Config struct {
	Username string
	Password string
	Logger   logger.Logger

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	ExportMetrics bool
}

// DatastoreOption defines a function type
// used for configuring a Config object.
type DatastoreOption func(*Config)

// WithUsername returns a DatastoreOption that sets the username in the Config.
func WithUsername(username string) DatastoreOption {
	return func(config *Config) {
		config.Username = username
	}
}

// WithPassword returns a DatastoreOption that sets the password in the Config.
func WithPassword(password string) DatastoreOption {
	return func(config *Config) {
		config.Password = password
	}
}

// WithLogger returns a DatastoreOption that sets the Logger in the Config.
func WithLogger(l logger.Logger) DatastoreOption {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithMaxOpenConns returns a DatastoreOption that sets the
// maximum number of open connections in the Config.
func WithMaxOpenConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxOpenConns = c
	}
}

// WithMaxIdleConns returns a DatastoreOption that sets the
// maximum number of idle connections in the Config.
func WithMaxIdleConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxIdleConns = c
	}
}

// WithConnMaxIdleTime returns a DatastoreOption that sets
// the maximum idle time for a connection in the Config.
func WithConnMaxIdleTime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxIdleTime = d
	}
}

// WithConnMaxLifetime returns a DatastoreOption that sets
// the maximum lifetime for a connection in the Config.
func WithConnMaxLifetime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxLifetime = d
	}
}

// WithMetrics returns a DatastoreOption that
// enables the export of metrics in the Config.
func WithMetrics() DatastoreOption {
	return func(cfg *Config) {
		cfg.ExportMetrics = true
	}
}

// NewConfig creates a new Config instance with default values
// and applies any provided DatastoreOption modifications.
func NewConfig(opts ...DatastoreOption) *Config {
	cfg := &Config{}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	return cfg
}

var recordColumns = []string{
	"id",
	"kind",
	"country_code",
	"street_address",
	"city",
	"postal_code",
	"address_country_code",
	"version",
	"created_at",
	"updated_at",
}

var attributeColumns = []string{"record_id", "code", "kind", "value", "position"}

// RecordColumns returns the columns of the record table in scan order.
func RecordColumns() []string {
	return recordColumns
}

// DBInfo encapsulates DB information for use in common method.
type DBInfo struct {
	db             *sql.DB
	stbl           sq.StatementBuilderType
	HandleSQLError errorHandlerFn
}

type errorHandlerFn func(error, ...interface{}) error

// NewDBInfo constructs a [DBInfo] object.
func NewDBInfo(db *sql.DB, stbl sq.StatementBuilderType, errorHandler errorHandlerFn, dialect string) *DBInfo {
	if err := goose.SetDialect(dialect); err != nil {
		panic("failed to set database dialect: " + err.Error())
	}

	return &DBInfo{
		db:             db,
		stbl:           stbl,
		HandleSQLError: errorHandler,
	}
}

func recordValues(r *storage.Record) []any {
	return []any{
		r.ID,
		string(r.Kind),
		r.CountryCode,
		r.Address.StreetAddress,
		r.Address.City,
		r.Address.PostalCode,
		r.Address.CountryCode,
		r.Version,
		r.CreatedAt,
		r.UpdatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*storage.Record, error) {
	var r storage.Record
	var kind string
	err := row.Scan(
		&r.ID,
		&kind,
		&r.CountryCode,
		&r.Address.StreetAddress,
		&r.Address.City,
		&r.Address.PostalCode,
		&r.Address.CountryCode,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Kind = storage.RecordKind(kind)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

// prepareForInsert assigns the id and timestamps of a record that has not been persisted yet.
func prepareForInsert(r *storage.Record, now time.Time) error {
	if err := storage.ValidateAttributes(r.Attributes); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	return nil
}

// prepareBatch returns prepared copies of records. The caller's values are left untouched.
func prepareBatch(records []*storage.Record, now time.Time) ([]*storage.Record, error) {
	prepared := make([]*storage.Record, 0, len(records))
	for _, r := range records {
		c := r.Clone()
		if err := prepareForInsert(c, now); err != nil {
			return nil, err
		}
		prepared = append(prepared, c)
	}
	return prepared, nil
}

// attachAttributes reads the attributes selected by where and attaches them to the matching records.
func attachAttributes(ctx context.Context, dbInfo *DBInfo, records []*storage.Record, where sq.Sqlizer) error {
	if len(records) == 0 {
		return nil
	}

	byID := make(map[string]*storage.Record, len(records))
	for _, r := range records {
		r.Attributes = []storage.Attribute{}
		byID[r.ID] = r
	}

	rows, err := dbInfo.stbl.
		Select("record_id", "code", "kind", "value").
		From("attribute").
		Where(where).
		OrderBy("record_id", "position").
		QueryContext(ctx)
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID, kind string
		var a storage.Attribute
		if err := rows.Scan(&recordID, &a.Code, &kind, &a.Value); err != nil {
			return dbInfo.HandleSQLError(err)
		}
		a.Kind = storage.AttributeKind(kind)
		if r, ok := byID[recordID]; ok {
			r.Attributes = append(r.Attributes, a)
		}
	}

	if err := rows.Err(); err != nil {
		return dbInfo.HandleSQLError(err)
	}
	return nil
}

func queryRecords(ctx context.Context, dbInfo *DBInfo, sb sq.SelectBuilder) ([]*storage.Record, error) {
	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	var records []*storage.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	return records, nil
}

// ReadRecord returns the record with the given id and its attributes.
func ReadRecord(ctx context.Context, dbInfo *DBInfo, id string) (*storage.Record, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ReadRecord")
	defer span.End()

	row := dbInfo.stbl.
		Select(recordColumns...).
		From("record").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.RecordNotFoundError(id)
		}
		return nil, dbInfo.HandleSQLError(err)
	}

	records := []*storage.Record{record}
	if err := attachAttributes(ctx, dbInfo, records, sq.Eq{"record_id": id}); err != nil {
		return nil, err
	}
	return record, nil
}

// RecordExists reports whether the record table holds the given id.
func RecordExists(ctx context.Context, dbInfo *DBInfo, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.RecordExists")
	defer span.End()

	var found int
	err := dbInfo.stbl.
		Select("1").
		From("record").
		Where(sq.Eq{"id": id}).
		QueryRowContext(ctx).
		Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, dbInfo.HandleSQLError(err)
	}
	return true, nil
}

// ReadPage returns a page of records ordered by id and the continuation token for the next page.
func ReadPage(ctx context.Context, dbInfo *DBInfo, filter storage.ReadPageFilter, opts storage.PaginationOptions) ([]*storage.Record, string, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.ReadPage")
	defer span.End()

	if opts.PageSize <= 0 {
		opts.PageSize = storage.DefaultPageSize
	}

	sb := dbInfo.stbl.
		Select(recordColumns...).
		From("record").
		OrderBy("id").
		Limit(uint64(opts.PageSize + 1))

	if filter.CountryCode != "" {
		sb = sb.Where(sq.Eq{"country_code": filter.CountryCode})
	}
	if filter.Kind != "" {
		sb = sb.Where(sq.Eq{"kind": string(filter.Kind)})
	}
	if opts.From != "" {
		token, err := storage.DecodeContToken(opts.From)
		if err != nil {
			return nil, "", err
		}
		sb = sb.Where(sq.Gt{"id": token.LastID})
	}

	records, err := queryRecords(ctx, dbInfo, sb)
	if err != nil {
		return nil, "", err
	}

	var contToken string
	if len(records) > opts.PageSize {
		records = records[:opts.PageSize]
		contToken = storage.NewContToken(records[len(records)-1].ID).Serialize()
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if err := attachAttributes(ctx, dbInfo, records, sq.Eq{"record_id": ids}); err != nil {
		return nil, "", err
	}

	return records, contToken, nil
}

// CountRecords returns the number of rows in the record table.
func CountRecords(ctx context.Context, dbInfo *DBInfo) (int64, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.CountRecords")
	defer span.End()

	var count int64
	err := dbInfo.stbl.
		Select("COUNT(*)").
		From("record").
		QueryRowContext(ctx).
		Scan(&count)
	if err != nil {
		return 0, dbInfo.HandleSQLError(err)
	}
	return count, nil
}

func insertAttributes(ctx context.Context, dbInfo *DBInfo, txn *sql.Tx, records []*storage.Record) error {
	var rows [][]any
	for _, r := range records {
		for i, a := range r.Attributes {
			rows = append(rows, []any{r.ID, a.Code, string(a.Kind), a.Value, i})
		}
	}
	return insertRows(ctx, dbInfo, txn, "attribute", attributeColumns, rows)
}

// insertRows writes rows with as few multi-row INSERT statements as maxStatementParams allows.
func insertRows(ctx context.Context, dbInfo *DBInfo, txn *sql.Tx, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	for chunk := range slices.Chunk(rows, maxStatementParams/len(columns)) {
		ib := dbInfo.stbl.Insert(table).Columns(columns...)
		for _, row := range chunk {
			ib = ib.Values(row...)
		}
		if _, err := ib.RunWith(txn).ExecContext(ctx); err != nil {
			return dbInfo.HandleSQLError(err)
		}
	}
	return nil
}

// CreateRecord inserts a single record and its attributes in one transaction.
func CreateRecord(ctx context.Context, dbInfo *DBInfo, record *storage.Record, now time.Time) (*storage.Record, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.CreateRecord")
	defer span.End()

	r := record.Clone()
	r.Version = 0
	if err := prepareForInsert(r, now); err != nil {
		return nil, err
	}

	txn, err := dbInfo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer func() {
		_ = txn.Rollback()
	}()

	_, err = dbInfo.stbl.
		Insert("record").
		Columns(recordColumns...).
		Values(recordValues(r)...).
		RunWith(txn).
		ExecContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	if err := insertAttributes(ctx, dbInfo, txn, []*storage.Record{r}); err != nil {
		return nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	if r.Attributes == nil {
		r.Attributes = []storage.Attribute{}
	}
	return r, nil
}

// UpdateRecord replaces the mutable fields and the attributes of a record if its stored version
// still equals expectedVersion. The version check and the increment happen in one statement.
func UpdateRecord(ctx context.Context, dbInfo *DBInfo, record *storage.Record, expectedVersion int64, now time.Time) (*storage.Record, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.UpdateRecord", trace.WithAttributes(
		attribute.String("record_id", record.ID),
		attribute.Int64("expected_version", expectedVersion),
	))
	defer span.End()

	if err := storage.ValidateAttributes(record.Attributes); err != nil {
		return nil, err
	}

	txn, err := dbInfo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer func() {
		_ = txn.Rollback()
	}()

	res, err := dbInfo.stbl.
		Update("record").
		Set("kind", string(record.Kind)).
		Set("country_code", record.CountryCode).
		Set("street_address", record.Address.StreetAddress).
		Set("city", record.Address.City).
		Set("postal_code", record.Address.PostalCode).
		Set("address_country_code", record.Address.CountryCode).
		Set("version", sq.Expr("version + 1")).
		Set("updated_at", now).
		Where(sq.Eq{"id": record.ID, "version": expectedVersion}).
		RunWith(txn).
		ExecContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	if rowsAffected == 0 {
		var actual int64
		err := dbInfo.stbl.
			Select("version").
			From("record").
			Where(sq.Eq{"id": record.ID}).
			RunWith(txn).
			QueryRowContext(ctx).
			Scan(&actual)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, storage.RecordNotFoundError(record.ID)
			}
			return nil, dbInfo.HandleSQLError(err)
		}
		return nil, storage.VersionConflictError(record.ID, expectedVersion, actual)
	}

	_, err = dbInfo.stbl.
		Delete("attribute").
		Where(sq.Eq{"record_id": record.ID}).
		RunWith(txn).
		ExecContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	if err := insertAttributes(ctx, dbInfo, txn, []*storage.Record{record}); err != nil {
		return nil, err
	}

	updated, err := scanRecord(dbInfo.stbl.
		Select(recordColumns...).
		From("record").
		Where(sq.Eq{"id": record.ID}).
		RunWith(txn).
		QueryRowContext(ctx))
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	if err := txn.Commit(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	updated.Attributes = make([]storage.Attribute, len(record.Attributes))
	copy(updated.Attributes, record.Attributes)
	return updated, nil
}

// DeleteRecord removes a record and its attributes.
func DeleteRecord(ctx context.Context, dbInfo *DBInfo, id string) error {
	ctx, span := tracer.Start(ctx, "sqlcommon.DeleteRecord")
	defer span.End()

	txn, err := dbInfo.db.BeginTx(ctx, nil)
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}
	defer func() {
		_ = txn.Rollback()
	}()

	_, err = dbInfo.stbl.
		Delete("attribute").
		Where(sq.Eq{"record_id": id}).
		RunWith(txn).
		ExecContext(ctx)
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}

	res, err := dbInfo.stbl.
		Delete("record").
		Where(sq.Eq{"id": id}).
		RunWith(txn).
		ExecContext(ctx)
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}
	if rowsAffected == 0 {
		return storage.RecordNotFoundError(id)
	}

	if err := txn.Commit(); err != nil {
		return dbInfo.HandleSQLError(err)
	}
	return nil
}

// WriteBatch inserts the records with multi-row statements inside a single transaction.
func WriteBatch(ctx context.Context, dbInfo *DBInfo, records []*storage.Record, now time.Time) error {
	ctx, span := tracer.Start(ctx, "sqlcommon.WriteBatch", trace.WithAttributes(
		attribute.Int("batch_size", len(records)),
	))
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	records, err := prepareBatch(records, now)
	if err != nil {
		return err
	}

	txn, err := dbInfo.db.BeginTx(ctx, nil)
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}
	defer func() {
		_ = txn.Rollback()
	}()

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, recordValues(r))
	}
	if err := insertRows(ctx, dbInfo, txn, "record", recordColumns, rows); err != nil {
		return err
	}

	if err := insertAttributes(ctx, dbInfo, txn, records); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return dbInfo.HandleSQLError(err)
	}
	return nil
}

// WriteBatchPrepared inserts the records one row at a time through prepared statements
// inside a single transaction that is rolled back on the first failure.
func WriteBatchPrepared(ctx context.Context, dbInfo *DBInfo, records []*storage.Record, now time.Time) error {
	ctx, span := tracer.Start(ctx, "sqlcommon.WriteBatchPrepared", trace.WithAttributes(
		attribute.Int("batch_size", len(records)),
	))
	defer span.End()

	if len(records) == 0 {
		return nil
	}

	records, err := prepareBatch(records, now)
	if err != nil {
		return err
	}

	recordStmt, _, err := dbInfo.stbl.
		Insert("record").
		Columns(recordColumns...).
		Values(make([]any, len(recordColumns))...).
		ToSql()
	if err != nil {
		return err
	}
	attributeStmt, _, err := dbInfo.stbl.
		Insert("attribute").
		Columns(attributeColumns...).
		Values(make([]any, len(attributeColumns))...).
		ToSql()
	if err != nil {
		return err
	}

	txn, err := dbInfo.db.BeginTx(ctx, nil)
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}
	defer func() {
		_ = txn.Rollback()
	}()

	insertRecord, err := txn.PrepareContext(ctx, recordStmt)
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}
	defer insertRecord.Close()

	insertAttribute, err := txn.PrepareContext(ctx, attributeStmt)
	if err != nil {
		return dbInfo.HandleSQLError(err)
	}
	defer insertAttribute.Close()

	for _, r := range records {
		if _, err := insertRecord.ExecContext(ctx, recordValues(r)...); err != nil {
			return dbInfo.HandleSQLError(err)
		}
		for i, a := range r.Attributes {
			if _, err := insertAttribute.ExecContext(ctx, r.ID, a.Code, string(a.Kind), a.Value, i); err != nil {
				return dbInfo.HandleSQLError(err)
			}
		}
	}

	if err := txn.Commit(); err != nil {
		return dbInfo.HandleSQLError(err)
	}
	return nil
}

// IsReady returns true if connection to datastore is successful AND
// (the datastore has the latest migration applied OR skipVersionCheck).
func IsReady(ctx context.Context, skipVersionCheck bool, db *sql.DB) (storage.ReadinessStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// do ping first to ensure we have better error message
	// if error is due to connection issue.
	if pingErr := db.PingContext(ctx); pingErr != nil {
		return storage.ReadinessStatus{}, pingErr
	}

	if skipVersionCheck {
		return storage.ReadinessStatus{
			IsReady: true,
		}, nil
	}

	revision, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return storage.ReadinessStatus{}, err
	}

	if revision < build.MinimumSupportedDatastoreSchemaRevision {
		return storage.ReadinessStatus{
			Message: "datastore requires migrations: at revision '" +
				strconv.FormatInt(revision, 10) +
				"', but requires '" +
				strconv.FormatInt(build.MinimumSupportedDatastoreSchemaRevision, 10) +
				"'. Run 'catalog migrate'.",
			IsReady: false,
		}, nil
	}
	return storage.ReadinessStatus{
		IsReady: true,
	}, nil
}
