package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedOp struct {
	name string
	err  error
}

type captureRecorder struct {
	ops []recordedOp
}

func (c *captureRecorder) Operation(name string, err error, elapsed time.Duration) {
	c.ops = append(c.ops, recordedOp{name: name, err: err})
}

func TestWithMetrics_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	mock := &MockStore{
		InsertFn: func(ctx context.Context, doc Document) (Document, error) {
			return doc, nil
		},
		CountFn: func(ctx context.Context, filter Document) (int64, error) {
			return 0, boom
		},
	}
	rec := &captureRecorder{}
	store := WithMetrics(mock, rec)

	_, err := store.Insert(ctx, Document{"name": "widget"})
	require.NoError(t, err)

	_, err = store.Count(ctx, nil)
	require.Error(t, err)

	require.Len(t, rec.ops, 2)
	assert.Equal(t, "insert", rec.ops[0].name)
	assert.NoError(t, rec.ops[0].err)
	assert.Equal(t, "count", rec.ops[1].name)
	assert.ErrorIs(t, rec.ops[1].err, boom)
}

func TestWithMetrics_PassesResultsThrough(t *testing.T) {
	ctx := context.Background()
	mock := &MockStore{
		GetFn: func(ctx context.Context, id string) (Document, error) {
			return Document{"_id": id}, nil
		},
	}
	rec := &captureRecorder{}
	store := WithMetrics(mock, rec)

	doc, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", doc["_id"])
	require.Len(t, rec.ops, 1)
	assert.Equal(t, "get", rec.ops[0].name)
}
