// mongodb/types.go
package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is the schemaless record exchanged with the store. It is the
// driver's bson.M, so JSON bodies decode straight into it.
type Document = bson.M

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("mongodb: document not found")
	// ErrDuplicate is returned when an insert collides with a unique index.
	ErrDuplicate = errors.New("mongodb: duplicate document")
	// ErrInvalidID is returned when an id is not a valid ObjectId hex string.
	ErrInvalidID = errors.New("mongodb: invalid document id")
	// ErrNotConnected is returned when an operation runs before Connect.
	ErrNotConnected = errors.New("mongodb: client not connected")
)

// Filter operators accepted by the query builder.
const (
	OpEqual        = "eq"
	OpNotEqual     = "ne"
	OpGreater      = "gt"
	OpGreaterEqual = "gte"
	OpLess         = "lt"
	OpLessEqual    = "lte"
	OpContains     = "contains"
	OpStartsWith   = "starts"
	OpEndsWith     = "ends"
	OpIn           = "in"
	OpNotIn        = "nin"
	OpRegex        = "regex"
	OpExists       = "exists"
	OpSize         = "size"
	OpAll          = "all"
	OpType         = "type"
	OpElemMatch    = "elem_match"
)

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Timestamp fields maintained by the store on every write.
const (
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Filter is a single search condition.
type Filter struct {
	Field         string      `json:"field" validate:"required"`
	Operator      string      `json:"operator" validate:"required"`
	Value         interface{} `json:"value"`
	CaseSensitive bool        `json:"case_sensitive"`
}

// OrGroup combines filters into a single $or condition.
type OrGroup struct {
	Conditions []Filter `json:"conditions" validate:"min=1,dive"`
}

// Sort is a single sort condition.
type Sort struct {
	Field string `json:"field" validate:"required"`
	Order string `json:"order" validate:"omitempty,oneof=asc desc"`
}

// SearchQuery describes a paginated search.
type SearchQuery struct {
	Text         string    `json:"text,omitempty"`
	Fields       []string  `json:"fields,omitempty"`
	Filters      []Filter  `json:"filters,omitempty" validate:"dive"`
	Or           []OrGroup `json:"or,omitempty" validate:"dive"`
	Sort         []Sort    `json:"sort,omitempty" validate:"dive"`
	Page         int64     `json:"page" validate:"omitempty,gte=1"`
	Limit        int64     `json:"limit" validate:"omitempty,gte=1,lte=100"`
	IncludeCount bool      `json:"include_count"`
}

// Pagination bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize applies pagination defaults. Page and limit zero values mean
// "first page, default size".
func (q *SearchQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
}

// Page is a paginated search result.
type Page struct {
	Data    []Document `json:"data"`
	Total   *int64     `json:"total,omitempty"`
	Page    int64      `json:"page"`
	Limit   int64      `json:"limit"`
	Pages   *int64     `json:"pages,omitempty"`
	HasNext bool       `json:"has_next"`
	HasPrev bool       `json:"has_prev"`
}

// BulkUpdate pairs a filter with the fields to $set.
type BulkUpdate struct {
	Filter Document `json:"filter" validate:"required"`
	Update Document `json:"update" validate:"required"`
}

// BulkResult reports the outcome of a bulk operation.
type BulkResult struct {
	SuccessCount  int64    `json:"success_count"`
	ErrorCount    int64    `json:"error_count"`
	Errors        []string `json:"errors,omitempty"`
	InsertedIDs   []string `json:"inserted_ids,omitempty"`
	ModifiedCount int64    `json:"modified_count"`
	DeletedCount  int64    `json:"deleted_count"`
}

// Statistics summarizes a collection.
type Statistics struct {
	TotalDocuments      int64      `json:"total_documents"`
	CollectionSizeBytes int64      `json:"collection_size_bytes"`
	AverageDocumentSize float64    `json:"average_document_size"`
	IndexCount          int        `json:"index_count"`
	LastUpdated         *time.Time `json:"last_updated,omitempty"`
}

// FieldInfo describes one inferred field of the collection schema.
type FieldInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Required   bool   `json:"required"`
	Searchable bool   `json:"searchable"`
	Sortable   bool   `json:"sortable"`
}

// Schema is the result of sample-based schema inference.
type Schema struct {
	Collection  string      `json:"collection"`
	Fields      []FieldInfo `json:"fields"`
	SampledDocs int         `json:"sampled_docs"`
}

// IndexSpec describes an index to create. Field values are 1 (ascending)
// or -1 (descending).
type IndexSpec struct {
	Name   string         `json:"name" validate:"required"`
	Fields map[string]int `json:"fields" validate:"required,min=1"`
	Unique bool           `json:"unique"`
	Sparse bool           `json:"sparse"`
}

// IndexInfo describes an existing index.
type IndexInfo struct {
	Name   string   `json:"name"`
	Keys   Document `json:"keys"`
	Unique bool     `json:"unique"`
	Sparse bool     `json:"sparse"`
}

// IntegrityReport is the outcome of a data integrity scan.
type IntegrityReport struct {
	TotalDocuments   int64    `json:"total_documents"`
	ValidDocuments   int64    `json:"valid_documents"`
	InvalidDocuments int64    `json:"invalid_documents"`
	Errors           []string `json:"errors"`
	Warnings         []string `json:"warnings"`
}

// Health reports connectivity state.
type Health struct {
	Status               string    `json:"status"` // healthy, degraded, unhealthy
	DatabaseConnected    bool      `json:"database_connected"`
	CollectionAccessible bool      `json:"collection_accessible"`
	ResponseTimeMS       float64   `json:"response_time_ms"`
	LastCheck            time.Time `json:"last_check"`
}

// Store is the document data-access contract. All implementations must be
// safe for concurrent use.
type Store interface {
	Insert(ctx context.Context, doc Document) (Document, error)
	Get(ctx context.Context, id string) (Document, error)
	Update(ctx context.Context, id string, fields Document) (Document, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, skip int64) ([]Document, error)
	Search(ctx context.Context, query SearchQuery) (*Page, error)

	BulkInsert(ctx context.Context, docs []Document) (*BulkResult, error)
	BulkUpdate(ctx context.Context, updates []BulkUpdate) (*BulkResult, error)
	BulkDelete(ctx context.Context, filters []Document) (*BulkResult, error)

	Distinct(ctx context.Context, field string, filter Document) ([]interface{}, error)
	Count(ctx context.Context, filter Document) (int64, error)
	Aggregate(ctx context.Context, pipeline []Document) ([]Document, error)
	Duplicates(ctx context.Context, fields []string) ([]Document, error)
	Sample(ctx context.Context, size int64) ([]Document, error)

	Statistics(ctx context.Context) (*Statistics, error)
	SchemaInfo(ctx context.Context, sampleSize int64) (*Schema, error)
	Info(ctx context.Context) (Document, error)
	ValidateIntegrity(ctx context.Context) (*IntegrityReport, error)

	CreateIndex(ctx context.Context, spec IndexSpec) error
	DropIndex(ctx context.Context, name string) error
	Indexes(ctx context.Context) ([]IndexInfo, error)

	CleanupBefore(ctx context.Context, dateField string, cutoff time.Time) (int64, error)
}
