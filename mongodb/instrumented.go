package mongodb

import (
	"context"
	"time"
)

// OperationRecorder receives the outcome of every store operation.
type OperationRecorder interface {
	Operation(name string, err error, elapsed time.Duration)
}

// WithMetrics wraps a Store so that every operation reports its name,
// outcome and duration to the recorder.
func WithMetrics(store Store, recorder OperationRecorder) Store {
	return &instrumentedStore{next: store, recorder: recorder}
}

type instrumentedStore struct {
	next     Store
	recorder OperationRecorder
}

var _ Store = (*instrumentedStore)(nil)

func (s *instrumentedStore) record(name string, start time.Time, err error) {
	s.recorder.Operation(name, err, time.Since(start))
}

func (s *instrumentedStore) Insert(ctx context.Context, doc Document) (Document, error) {
	start := time.Now()
	out, err := s.next.Insert(ctx, doc)
	s.record("insert", start, err)
	return out, err
}

func (s *instrumentedStore) Get(ctx context.Context, id string) (Document, error) {
	start := time.Now()
	out, err := s.next.Get(ctx, id)
	s.record("get", start, err)
	return out, err
}

func (s *instrumentedStore) Update(ctx context.Context, id string, fields Document) (Document, error) {
	start := time.Now()
	out, err := s.next.Update(ctx, id, fields)
	s.record("update", start, err)
	return out, err
}

func (s *instrumentedStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, id)
	s.record("delete", start, err)
	return err
}

func (s *instrumentedStore) List(ctx context.Context, limit, skip int64) ([]Document, error) {
	start := time.Now()
	out, err := s.next.List(ctx, limit, skip)
	s.record("list", start, err)
	return out, err
}

func (s *instrumentedStore) Search(ctx context.Context, query SearchQuery) (*Page, error) {
	start := time.Now()
	out, err := s.next.Search(ctx, query)
	s.record("search", start, err)
	return out, err
}

func (s *instrumentedStore) BulkInsert(ctx context.Context, docs []Document) (*BulkResult, error) {
	start := time.Now()
	out, err := s.next.BulkInsert(ctx, docs)
	s.record("bulk_insert", start, err)
	return out, err
}

func (s *instrumentedStore) BulkUpdate(ctx context.Context, updates []BulkUpdate) (*BulkResult, error) {
	start := time.Now()
	out, err := s.next.BulkUpdate(ctx, updates)
	s.record("bulk_update", start, err)
	return out, err
}

func (s *instrumentedStore) BulkDelete(ctx context.Context, filters []Document) (*BulkResult, error) {
	start := time.Now()
	out, err := s.next.BulkDelete(ctx, filters)
	s.record("bulk_delete", start, err)
	return out, err
}

func (s *instrumentedStore) Distinct(ctx context.Context, field string, filter Document) ([]interface{}, error) {
	start := time.Now()
	out, err := s.next.Distinct(ctx, field, filter)
	s.record("distinct", start, err)
	return out, err
}

func (s *instrumentedStore) Count(ctx context.Context, filter Document) (int64, error) {
	start := time.Now()
	out, err := s.next.Count(ctx, filter)
	s.record("count", start, err)
	return out, err
}

func (s *instrumentedStore) Aggregate(ctx context.Context, pipeline []Document) ([]Document, error) {
	start := time.Now()
	out, err := s.next.Aggregate(ctx, pipeline)
	s.record("aggregate", start, err)
	return out, err
}

func (s *instrumentedStore) Duplicates(ctx context.Context, fields []string) ([]Document, error) {
	start := time.Now()
	out, err := s.next.Duplicates(ctx, fields)
	s.record("duplicates", start, err)
	return out, err
}

func (s *instrumentedStore) Sample(ctx context.Context, size int64) ([]Document, error) {
	start := time.Now()
	out, err := s.next.Sample(ctx, size)
	s.record("sample", start, err)
	return out, err
}

func (s *instrumentedStore) Statistics(ctx context.Context) (*Statistics, error) {
	start := time.Now()
	out, err := s.next.Statistics(ctx)
	s.record("statistics", start, err)
	return out, err
}

func (s *instrumentedStore) SchemaInfo(ctx context.Context, sampleSize int64) (*Schema, error) {
	start := time.Now()
	out, err := s.next.SchemaInfo(ctx, sampleSize)
	s.record("schema_info", start, err)
	return out, err
}

func (s *instrumentedStore) Info(ctx context.Context) (Document, error) {
	start := time.Now()
	out, err := s.next.Info(ctx)
	s.record("info", start, err)
	return out, err
}

func (s *instrumentedStore) ValidateIntegrity(ctx context.Context) (*IntegrityReport, error) {
	start := time.Now()
	out, err := s.next.ValidateIntegrity(ctx)
	s.record("validate_integrity", start, err)
	return out, err
}

func (s *instrumentedStore) CreateIndex(ctx context.Context, spec IndexSpec) error {
	start := time.Now()
	err := s.next.CreateIndex(ctx, spec)
	s.record("create_index", start, err)
	return err
}

func (s *instrumentedStore) DropIndex(ctx context.Context, name string) error {
	start := time.Now()
	err := s.next.DropIndex(ctx, name)
	s.record("drop_index", start, err)
	return err
}

func (s *instrumentedStore) Indexes(ctx context.Context) ([]IndexInfo, error) {
	start := time.Now()
	out, err := s.next.Indexes(ctx)
	s.record("indexes", start, err)
	return out, err
}

func (s *instrumentedStore) CleanupBefore(ctx context.Context, dateField string, cutoff time.Time) (int64, error) {
	start := time.Now()
	out, err := s.next.CleanupBefore(ctx, dateField, cutoff)
	s.record("cleanup_before", start, err)
	return out, err
}
