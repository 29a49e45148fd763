package backup

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raywall/docstore-toolkit/mongodb"
)

func waitForJob(t *testing.T, m *Manager, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Status(id)
		require.NoError(t, err)
		if job.Status != StatusRunning {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("backup job did not finish")
	return nil
}

func TestStartAndStatus(t *testing.T) {
	docs := []mongodb.Document{{"_id": "1", "name": "a"}, {"_id": "2", "name": "b"}}
	store := &mongodb.MockStore{
		ListFn: func(ctx context.Context, limit, skip int64) ([]mongodb.Document, error) {
			if skip > 0 {
				return nil, nil
			}
			return docs, nil
		},
	}

	m := NewManager(store, t.TempDir(), zerolog.Nop())
	job, err := m.Start(context.Background(), "items")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "items", job.Collection)

	done := waitForJob(t, m, job.ID)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, int64(2), done.Documents)
	require.NotNil(t, done.FinishedAt)

	raw, err := os.ReadFile(done.File)
	require.NoError(t, err)

	var back map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "items", back["collection"])
	assert.Equal(t, float64(2), back["count"])
	assert.NotEmpty(t, back["timestamp"])
	data, ok := back["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 2)
}

func TestStart_StoreFailureMarksJobFailed(t *testing.T) {
	store := &mongodb.MockStore{
		ListFn: func(ctx context.Context, limit, skip int64) ([]mongodb.Document, error) {
			return nil, errors.New("connection lost")
		},
	}

	m := NewManager(store, t.TempDir(), zerolog.Nop())
	job, err := m.Start(context.Background(), "items")
	require.NoError(t, err)

	done := waitForJob(t, m, job.ID)
	assert.Equal(t, StatusFailed, done.Status)
	assert.Contains(t, done.Error, "connection lost")
}

func TestStatus_UnknownJob(t *testing.T) {
	m := NewManager(&mongodb.MockStore{}, t.TempDir(), zerolog.Nop())
	_, err := m.Status("missing")
	assert.True(t, errors.Is(err, ErrJobNotFound))
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "dump.json")
	payload := mongodb.Document{
		"collection": "items",
		"timestamp":  time.Now().UTC(),
		"count":      2,
		"data":       []mongodb.Document{{"_id": "old1", "name": "a"}, {"_id": "old2", "name": "b"}},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, raw, 0o644))

	var inserted []mongodb.Document
	var cleared bool
	store := &mongodb.MockStore{
		BulkInsertFn: func(ctx context.Context, docs []mongodb.Document) (*mongodb.BulkResult, error) {
			inserted = docs
			return &mongodb.BulkResult{SuccessCount: int64(len(docs))}, nil
		},
		BulkDeleteFn: func(ctx context.Context, filters []mongodb.Document) (*mongodb.BulkResult, error) {
			cleared = true
			return &mongodb.BulkResult{}, nil
		},
	}

	m := NewManager(store, dir, zerolog.Nop())
	result, err := m.Restore(context.Background(), file, true)
	require.NoError(t, err)

	assert.True(t, cleared)
	assert.Equal(t, int64(2), result.TotalRows)
	assert.Equal(t, int64(2), result.Restored)
	require.Len(t, inserted, 2)
	// stale ids are dropped so the restore allocates fresh ones
	_, hasID := inserted[0]["_id"]
	assert.False(t, hasID)
}

func TestRestore_RejectsFileWithoutData(t *testing.T) {
	dir := t.TempDir()

	bare := filepath.Join(dir, "bare.json")
	require.NoError(t, os.WriteFile(bare, []byte(`[{"name":"a"}]`), 0o644))
	m := NewManager(&mongodb.MockStore{}, dir, zerolog.Nop())
	_, err := m.Restore(context.Background(), bare, false)
	assert.Error(t, err)

	noData := filepath.Join(dir, "nodata.json")
	require.NoError(t, os.WriteFile(noData, []byte(`{"collection":"items","count":0}`), 0o644))
	_, err = m.Restore(context.Background(), noData, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data field")
}

func TestDumpRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	var inserted []mongodb.Document
	store := &mongodb.MockStore{
		ListFn: func(ctx context.Context, limit, skip int64) ([]mongodb.Document, error) {
			if skip > 0 {
				return nil, nil
			}
			return []mongodb.Document{{"_id": "1", "name": "a"}}, nil
		},
		BulkInsertFn: func(ctx context.Context, docs []mongodb.Document) (*mongodb.BulkResult, error) {
			inserted = docs
			return &mongodb.BulkResult{SuccessCount: int64(len(docs))}, nil
		},
	}

	m := NewManager(store, dir, zerolog.Nop())
	job, err := m.Start(context.Background(), "items")
	require.NoError(t, err)
	done := waitForJob(t, m, job.ID)
	require.Equal(t, StatusCompleted, done.Status)

	result, err := m.Restore(context.Background(), done.File, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Restored)
	require.Len(t, inserted, 1)
	assert.Equal(t, "a", inserted[0]["name"])
}

func TestRestore_MissingFile(t *testing.T) {
	m := NewManager(&mongodb.MockStore{}, t.TempDir(), zerolog.Nop())
	_, err := m.Restore(context.Background(), "/does/not/exist.json", false)
	assert.Error(t, err)
}

func TestJobsListsSnapshots(t *testing.T) {
	store := &mongodb.MockStore{
		ListFn: func(ctx context.Context, limit, skip int64) ([]mongodb.Document, error) {
			return nil, nil
		},
	}
	m := NewManager(store, t.TempDir(), zerolog.Nop())

	job, err := m.Start(context.Background(), "items")
	require.NoError(t, err)
	waitForJob(t, m, job.ID)

	jobs := m.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}
