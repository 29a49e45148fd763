// mongodb/mock.go
package mongodb

import (
	"context"
	"time"
)

// MockStore is a drop-in Store for tests. Set the function fields
// (GetFn, InsertFn, ...) to simulate the behavior you need; unset
// fields return zero values, with lookups falling back to ErrNotFound.
type MockStore struct {
	InsertFn            func(ctx context.Context, doc Document) (Document, error)
	GetFn               func(ctx context.Context, id string) (Document, error)
	UpdateFn            func(ctx context.Context, id string, fields Document) (Document, error)
	DeleteFn            func(ctx context.Context, id string) error
	ListFn              func(ctx context.Context, limit, skip int64) ([]Document, error)
	SearchFn            func(ctx context.Context, query SearchQuery) (*Page, error)
	BulkInsertFn        func(ctx context.Context, docs []Document) (*BulkResult, error)
	BulkUpdateFn        func(ctx context.Context, updates []BulkUpdate) (*BulkResult, error)
	BulkDeleteFn        func(ctx context.Context, filters []Document) (*BulkResult, error)
	DistinctFn          func(ctx context.Context, field string, filter Document) ([]interface{}, error)
	CountFn             func(ctx context.Context, filter Document) (int64, error)
	AggregateFn         func(ctx context.Context, pipeline []Document) ([]Document, error)
	DuplicatesFn        func(ctx context.Context, fields []string) ([]Document, error)
	SampleFn            func(ctx context.Context, size int64) ([]Document, error)
	StatisticsFn        func(ctx context.Context) (*Statistics, error)
	SchemaInfoFn        func(ctx context.Context, sampleSize int64) (*Schema, error)
	InfoFn              func(ctx context.Context) (Document, error)
	ValidateIntegrityFn func(ctx context.Context) (*IntegrityReport, error)
	CreateIndexFn       func(ctx context.Context, spec IndexSpec) error
	DropIndexFn         func(ctx context.Context, name string) error
	IndexesFn           func(ctx context.Context) ([]IndexInfo, error)
	CleanupBeforeFn     func(ctx context.Context, dateField string, cutoff time.Time) (int64, error)
}

var _ Store = (*MockStore)(nil)

func (m *MockStore) Insert(ctx context.Context, doc Document) (Document, error) {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, doc)
	}
	return doc, nil
}

func (m *MockStore) Get(ctx context.Context, id string) (Document, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	return nil, ErrNotFound
}

func (m *MockStore) Update(ctx context.Context, id string, fields Document) (Document, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, fields)
	}
	return nil, ErrNotFound
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return ErrNotFound
}

func (m *MockStore) List(ctx context.Context, limit, skip int64) ([]Document, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, limit, skip)
	}
	return nil, nil
}

func (m *MockStore) Search(ctx context.Context, query SearchQuery) (*Page, error) {
	if m.SearchFn != nil {
		return m.SearchFn(ctx, query)
	}
	query.Normalize()
	return &Page{Data: []Document{}, Page: query.Page, Limit: query.Limit}, nil
}

func (m *MockStore) BulkInsert(ctx context.Context, docs []Document) (*BulkResult, error) {
	if m.BulkInsertFn != nil {
		return m.BulkInsertFn(ctx, docs)
	}
	return &BulkResult{SuccessCount: int64(len(docs))}, nil
}

func (m *MockStore) BulkUpdate(ctx context.Context, updates []BulkUpdate) (*BulkResult, error) {
	if m.BulkUpdateFn != nil {
		return m.BulkUpdateFn(ctx, updates)
	}
	return &BulkResult{}, nil
}

func (m *MockStore) BulkDelete(ctx context.Context, filters []Document) (*BulkResult, error) {
	if m.BulkDeleteFn != nil {
		return m.BulkDeleteFn(ctx, filters)
	}
	return &BulkResult{}, nil
}

func (m *MockStore) Distinct(ctx context.Context, field string, filter Document) ([]interface{}, error) {
	if m.DistinctFn != nil {
		return m.DistinctFn(ctx, field, filter)
	}
	return nil, nil
}

func (m *MockStore) Count(ctx context.Context, filter Document) (int64, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, filter)
	}
	return 0, nil
}

func (m *MockStore) Aggregate(ctx context.Context, pipeline []Document) ([]Document, error) {
	if m.AggregateFn != nil {
		return m.AggregateFn(ctx, pipeline)
	}
	return nil, nil
}

func (m *MockStore) Duplicates(ctx context.Context, fields []string) ([]Document, error) {
	if m.DuplicatesFn != nil {
		return m.DuplicatesFn(ctx, fields)
	}
	return nil, nil
}

func (m *MockStore) Sample(ctx context.Context, size int64) ([]Document, error) {
	if m.SampleFn != nil {
		return m.SampleFn(ctx, size)
	}
	return nil, nil
}

func (m *MockStore) Statistics(ctx context.Context) (*Statistics, error) {
	if m.StatisticsFn != nil {
		return m.StatisticsFn(ctx)
	}
	return &Statistics{}, nil
}

func (m *MockStore) SchemaInfo(ctx context.Context, sampleSize int64) (*Schema, error) {
	if m.SchemaInfoFn != nil {
		return m.SchemaInfoFn(ctx, sampleSize)
	}
	return &Schema{}, nil
}

func (m *MockStore) Info(ctx context.Context) (Document, error) {
	if m.InfoFn != nil {
		return m.InfoFn(ctx)
	}
	return Document{}, nil
}

func (m *MockStore) ValidateIntegrity(ctx context.Context) (*IntegrityReport, error) {
	if m.ValidateIntegrityFn != nil {
		return m.ValidateIntegrityFn(ctx)
	}
	return &IntegrityReport{}, nil
}

func (m *MockStore) CreateIndex(ctx context.Context, spec IndexSpec) error {
	if m.CreateIndexFn != nil {
		return m.CreateIndexFn(ctx, spec)
	}
	return nil
}

func (m *MockStore) DropIndex(ctx context.Context, name string) error {
	if m.DropIndexFn != nil {
		return m.DropIndexFn(ctx, name)
	}
	return nil
}

func (m *MockStore) Indexes(ctx context.Context) ([]IndexInfo, error) {
	if m.IndexesFn != nil {
		return m.IndexesFn(ctx)
	}
	return nil, nil
}

func (m *MockStore) CleanupBefore(ctx context.Context, dateField string, cutoff time.Time) (int64, error) {
	if m.CleanupBeforeFn != nil {
		return m.CleanupBeforeFn(ctx, dateField, cutoff)
	}
	return 0, nil
}
