// Package backup dumps collections to JSON files on disk and restores
// them. Dumps run in the background; callers poll job status by ID.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/raywall/docstore-toolkit/mongodb"
)

// Job states.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrJobNotFound is returned when a job ID is unknown.
var ErrJobNotFound = fmt.Errorf("backup: job not found")

const exportBatchSize = 1000

// Job tracks one background backup.
type Job struct {
	ID         string     `json:"id"`
	Collection string     `json:"collection"`
	File       string     `json:"file"`
	Status     string     `json:"status"`
	Documents  int64      `json:"documents"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// snapshot is the on-disk backup file format.
type snapshot struct {
	Collection string             `json:"collection"`
	Timestamp  time.Time          `json:"timestamp"`
	Count      int64              `json:"count"`
	Data       []mongodb.Document `json:"data"`
}

// RestoreResult reports the outcome of a restore.
type RestoreResult struct {
	File         string `json:"file"`
	TotalRows    int64  `json:"total_rows"`
	Restored     int64  `json:"restored"`
	Failed       int64  `json:"failed"`
	ReplacedData bool   `json:"replaced_data"`
}

// Manager runs backups of the active collection to a directory.
type Manager struct {
	store mongodb.Store
	dir   string
	log   zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewManager(store mongodb.Store, dir string, log zerolog.Logger) *Manager {
	return &Manager{
		store: store,
		dir:   dir,
		log:   log.With().Str("component", "backup").Logger(),
		jobs:  map[string]*Job{},
	}
}

// Start launches a background dump of the collection and returns the
// job immediately. The context controls the dump itself, so pass one
// detached from the HTTP request.
func (m *Manager) Start(ctx context.Context, collection string) (*Job, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create directory: %w", err)
	}

	id := uuid.NewString()
	job := &Job{
		ID:         id,
		Collection: collection,
		File: filepath.Join(m.dir, fmt.Sprintf("backup_%s_%s_%s.json",
			collection, time.Now().UTC().Format("20060102_150405"), id[:8])),
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	go m.run(ctx, job)
	return job, nil
}

// Status returns a snapshot of a job.
func (m *Manager) Status(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// Jobs lists all known jobs, newest first.
func (m *Manager) Jobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		out = append(out, &snapshot)
	}
	return out
}

func (m *Manager) run(ctx context.Context, job *Job) {
	count, err := m.dump(ctx, job.File, job.Collection)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	job.FinishedAt = &now
	job.Documents = count
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		m.log.Error().Err(err).Str("job", job.ID).Msg("backup failed")
		return
	}
	job.Status = StatusCompleted
	m.log.Info().
		Str("job", job.ID).
		Str("file", job.File).
		Int64("documents", count).
		Msg("backup completed")
}

func (m *Manager) dump(ctx context.Context, path, collection string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("backup: create file: %w", err)
	}
	defer f.Close()

	var all []mongodb.Document
	var skip int64
	for {
		batch, err := m.store.List(ctx, exportBatchSize, skip)
		if err != nil {
			return 0, err
		}
		all = append(all, batch...)
		if int64(len(batch)) < exportBatchSize {
			break
		}
		skip += exportBatchSize
	}

	if all == nil {
		all = []mongodb.Document{}
	}
	snap := snapshot{
		Collection: collection,
		Timestamp:  time.Now().UTC(),
		Count:      int64(len(all)),
		Data:       all,
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return 0, fmt.Errorf("backup: write file: %w", err)
	}
	return snap.Count, nil
}

// Restore loads a backup file into the collection. With replace set the
// collection is emptied first. Restored documents get fresh ids.
func (m *Manager) Restore(ctx context.Context, path string, replace bool) (*RestoreResult, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backup: read file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("backup: parse file: %w", err)
	}
	if snap.Data == nil {
		return nil, fmt.Errorf("backup: file %s has no data field", path)
	}
	docs := snap.Data

	result := &RestoreResult{
		File:         path,
		TotalRows:    int64(len(docs)),
		ReplacedData: replace,
	}

	if replace {
		if _, err := m.store.BulkDelete(ctx, []mongodb.Document{{}}); err != nil {
			return nil, fmt.Errorf("backup: clear collection: %w", err)
		}
	}

	for i := range docs {
		delete(docs[i], "_id")
	}

	if len(docs) > 0 {
		bulk, err := m.store.BulkInsert(ctx, docs)
		if err != nil {
			return nil, err
		}
		result.Restored = bulk.SuccessCount
		result.Failed = bulk.ErrorCount
	}

	m.log.Info().
		Str("file", path).
		Int64("restored", result.Restored).
		Bool("replaced", replace).
		Msg("restore completed")
	return result, nil
}
