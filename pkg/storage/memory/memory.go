package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/energia/resourcecatalog/pkg/storage"
)

var tracer = otel.Tracer("resourcecatalog/pkg/storage/memory")

// StorageOption defines a function type used for configuring a [MemoryBackend] instance.
type StorageOption func(dataStore *MemoryBackend)

// WithClock replaces the time source used to stamp created and updated records.
func WithClock(now func() time.Time) StorageOption {
	return func(ds *MemoryBackend) {
		ds.now = now
	}
}

// MemoryBackend provides an ephemeral memory-backed implementation of [storage.Datastore].
// These instances may be safely shared by multiple go-routines.
type MemoryBackend struct {
	// map: record id => record
	records map[string]*storage.Record // GUARDED_BY(mu).
	mu      sync.RWMutex

	now func() time.Time
}

// Ensures that [MemoryBackend] implements the [storage.Datastore] interface.
var _ storage.Datastore = (*MemoryBackend)(nil)

// New creates a new [MemoryBackend] given the options.
func New(opts ...StorageOption) *MemoryBackend {
	ds := &MemoryBackend{
		records: make(map[string]*storage.Record),
		now:     func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(ds)
	}

	return ds
}

// Close does not do anything for [MemoryBackend].
func (s *MemoryBackend) Close() {}

// ReadRecord see [storage.RecordReader].ReadRecord.
func (s *MemoryBackend) ReadRecord(ctx context.Context, id string) (*storage.Record, error) {
	_, span := tracer.Start(ctx, "memory.ReadRecord")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, storage.RecordNotFoundError(id)
	}
	return r.Clone(), nil
}

// RecordExists see [storage.RecordReader].RecordExists.
func (s *MemoryBackend) RecordExists(ctx context.Context, id string) (bool, error) {
	_, span := tracer.Start(ctx, "memory.RecordExists")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[id]
	return ok, nil
}

// sortedIDs returns the ids of the stored records in ascending order. Callers must hold mu.
func (s *MemoryBackend) sortedIDs() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func matches(r *storage.Record, filter storage.ReadPageFilter) bool {
	if filter.CountryCode != "" && r.CountryCode != filter.CountryCode {
		return false
	}
	if filter.Kind != "" && r.Kind != filter.Kind {
		return false
	}
	return true
}

// ReadPage see [storage.RecordReader].ReadPage.
func (s *MemoryBackend) ReadPage(ctx context.Context, filter storage.ReadPageFilter, opts storage.PaginationOptions) ([]*storage.Record, string, error) {
	_, span := tracer.Start(ctx, "memory.ReadPage")
	defer span.End()

	if opts.PageSize <= 0 {
		opts.PageSize = storage.DefaultPageSize
	}

	var from string
	if opts.From != "" {
		token, err := storage.DecodeContToken(opts.From)
		if err != nil {
			return nil, "", err
		}
		from = token.LastID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var page []*storage.Record
	for _, id := range s.sortedIDs() {
		if from != "" && id <= from {
			continue
		}
		r := s.records[id]
		if !matches(r, filter) {
			continue
		}
		if len(page) == opts.PageSize {
			return page, storage.NewContToken(page[len(page)-1].ID).Serialize(), nil
		}
		page = append(page, r.Clone())
	}

	return page, "", nil
}

// ReadAll see [storage.RecordReader].ReadAll. The set of ids is captured when the iterator is
// created; records are cloned lazily one page at a time.
func (s *MemoryBackend) ReadAll(ctx context.Context, opts storage.ReadAllOptions) (storage.RecordIterator, error) {
	_, span := tracer.Start(ctx, "memory.ReadAll")
	defer span.End()

	fetchSize := opts.FetchSize
	if fetchSize <= 0 {
		fetchSize = storage.DefaultStreamFetchSize
	}

	s.mu.RLock()
	ids := s.sortedIDs()
	s.mu.RUnlock()

	return &recordIterator{backend: s, ids: ids, fetchSize: fetchSize}, nil
}

// CountRecords see [storage.RecordReader].CountRecords.
func (s *MemoryBackend) CountRecords(ctx context.Context) (int64, error) {
	_, span := tracer.Start(ctx, "memory.CountRecords")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.records)), nil
}

// CreateRecord see [storage.RecordWriter].CreateRecord.
func (s *MemoryBackend) CreateRecord(ctx context.Context, record *storage.Record) (*storage.Record, error) {
	_, span := tracer.Start(ctx, "memory.CreateRecord")
	defer span.End()

	r := record.Clone()
	r.Version = 0
	if r.Attributes == nil {
		r.Attributes = []storage.Attribute{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insert([]*storage.Record{r}); err != nil {
		return nil, err
	}
	return r.Clone(), nil
}

// UpdateRecord see [storage.RecordWriter].UpdateRecord.
func (s *MemoryBackend) UpdateRecord(ctx context.Context, record *storage.Record, expectedVersion int64) (*storage.Record, error) {
	_, span := tracer.Start(ctx, "memory.UpdateRecord", trace.WithAttributes(
		attribute.String("record_id", record.ID),
		attribute.Int64("expected_version", expectedVersion),
	))
	defer span.End()

	if err := storage.ValidateAttributes(record.Attributes); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[record.ID]
	if !ok {
		return nil, storage.RecordNotFoundError(record.ID)
	}
	if current.Version != expectedVersion {
		return nil, storage.VersionConflictError(record.ID, expectedVersion, current.Version)
	}

	updated := record.Clone()
	if updated.Attributes == nil {
		updated.Attributes = []storage.Attribute{}
	}
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = s.now()
	updated.Version = current.Version + 1
	s.records[record.ID] = updated

	return updated.Clone(), nil
}

// DeleteRecord see [storage.RecordWriter].DeleteRecord.
func (s *MemoryBackend) DeleteRecord(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "memory.DeleteRecord")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return storage.RecordNotFoundError(id)
	}
	delete(s.records, id)
	return nil
}

// WriteBatch see [storage.RecordWriter].WriteBatch.
func (s *MemoryBackend) WriteBatch(ctx context.Context, records []*storage.Record) error {
	_, span := tracer.Start(ctx, "memory.WriteBatch", trace.WithAttributes(
		attribute.Int("batch_size", len(records)),
	))
	defer span.End()

	return s.writeBatch(ctx, records)
}

// WriteBatchPrepared see [storage.PreparedBatchWriter].WriteBatchPrepared.
func (s *MemoryBackend) WriteBatchPrepared(ctx context.Context, records []*storage.Record) error {
	_, span := tracer.Start(ctx, "memory.WriteBatchPrepared", trace.WithAttributes(
		attribute.Int("batch_size", len(records)),
	))
	defer span.End()

	return s.writeBatch(ctx, records)
}

func (s *MemoryBackend) writeBatch(ctx context.Context, records []*storage.Record) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	clones := make([]*storage.Record, 0, len(records))
	for _, r := range records {
		clones = append(clones, r.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insert(clones)
}

// insert validates every record before storing any of them. Callers must hold mu.
func (s *MemoryBackend) insert(records []*storage.Record) error {
	now := s.now()
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if err := storage.ValidateAttributes(r.Attributes); err != nil {
			return err
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if _, ok := s.records[r.ID]; ok {
			return storage.ErrCollision
		}
		if _, ok := seen[r.ID]; ok {
			return storage.ErrCollision
		}
		seen[r.ID] = struct{}{}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = r.CreatedAt
		}
	}

	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

// IsReady see [storage.Datastore].IsReady.
func (s *MemoryBackend) IsReady(context.Context) (storage.ReadinessStatus, error) {
	return storage.ReadinessStatus{IsReady: true}, nil
}

type recordIterator struct {
	backend   *MemoryBackend
	fetchSize int

	ids []string         // GUARDED_BY(mu)
	buf []*storage.Record // GUARDED_BY(mu)
	mu  sync.Mutex
}

var _ storage.RecordIterator = (*recordIterator)(nil)

func (it *recordIterator) fill() {
	it.backend.mu.RLock()
	defer it.backend.mu.RUnlock()

	for len(it.buf) < it.fetchSize && len(it.ids) > 0 {
		id := it.ids[0]
		it.ids = it.ids[1:]
		// records deleted after the snapshot are skipped
		if r, ok := it.backend.records[id]; ok {
			it.buf = append(it.buf, r.Clone())
		}
	}
}

// Next see [storage.Iterator].Next.
func (it *recordIterator) Next(ctx context.Context) (*storage.Record, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	if len(it.buf) == 0 {
		it.fill()
	}
	if len(it.buf) == 0 {
		return nil, storage.ErrIteratorDone
	}

	next := it.buf[0]
	it.buf[0] = nil
	it.buf = it.buf[1:]
	return next, nil
}

// Stop see [storage.Iterator].Stop.
func (it *recordIterator) Stop() {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.ids = nil
	it.buf = nil
}
