package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/raywall/docstore-toolkit/mongodb"
)

// Execution modes. Pipeline runs server-side aggregation; local fetches
// the matching documents once and computes in-process.
const (
	ModePipeline = "pipeline"
	ModeLocal    = "local"
)

// localFetchLimit caps how many documents a local analysis pulls.
const localFetchLimit = 10000

// Request names an analysis to run with its parameters.
type Request struct {
	Name   string           `json:"name" validate:"required"`
	Mode   string           `json:"mode,omitempty" validate:"omitempty,oneof=pipeline local"`
	Params mongodb.Document `json:"params,omitempty"`
}

// Runner executes requested analyses against the store. One failing
// analysis never aborts the rest; its error is reported in its result.
type Runner struct {
	store    mongodb.Store
	registry *Registry
	log      zerolog.Logger
}

func NewRunner(store mongodb.Store, registry *Registry, log zerolog.Logger) *Runner {
	return &Runner{
		store:    store,
		registry: registry,
		log:      log.With().Str("component", "analysis").Logger(),
	}
}

// Available lists the analyses this runner can execute.
func (r *Runner) Available() []string {
	return r.registry.Names()
}

// Run resolves each request, builds its pipeline over the shared base
// filter and executes it, recording the elapsed time per analysis.
// Local-mode analyses share a single fetch of the matching documents.
func (r *Runner) Run(ctx context.Context, requests []Request, filters []mongodb.Filter) map[string]Result {
	match := mongodb.Document(mongodb.BuildFilter(filters))
	results := make(map[string]Result, len(requests))

	var raw []mongodb.Document
	var rawErr error
	var fetched bool

	for _, req := range requests {
		if req.Mode != ModeLocal {
			results[req.Name] = r.runPipeline(ctx, req, match)
			continue
		}

		if !fetched {
			raw, rawErr = r.fetch(ctx, match)
			fetched = true
		}
		if rawErr != nil {
			results[req.Name] = Result{Error: rawErr.Error()}
			continue
		}
		results[req.Name] = r.runLocal(req, raw)
	}
	return results
}

func (r *Runner) fetch(ctx context.Context, match mongodb.Document) ([]mongodb.Document, error) {
	pipeline := matchStage(match)
	pipeline = append(pipeline, mongodb.Document{"$limit": localFetchLimit})
	return r.store.Aggregate(ctx, pipeline)
}

func (r *Runner) runPipeline(ctx context.Context, req Request, match mongodb.Document) Result {
	start := time.Now()

	service, err := r.registry.Get(req.Name)
	if err != nil {
		return Result{Error: err.Error(), DurationMS: time.Since(start).Milliseconds()}
	}

	pipeline, err := service.Pipeline(match, req.Params)
	if err != nil {
		return Result{Error: err.Error(), DurationMS: time.Since(start).Milliseconds()}
	}

	docs, err := r.store.Aggregate(ctx, pipeline)
	if err != nil {
		r.log.Error().Err(err).Str("analysis", req.Name).Msg("analysis failed")
		return Result{Error: err.Error(), DurationMS: time.Since(start).Milliseconds()}
	}

	elapsed := time.Since(start)
	r.log.Info().
		Str("analysis", req.Name).
		Int("results", len(docs)).
		Dur("elapsed", elapsed).
		Msg("analysis completed")

	return Result{Data: docs, DurationMS: elapsed.Milliseconds()}
}

func (r *Runner) runLocal(req Request, raw []mongodb.Document) Result {
	start := time.Now()

	service, err := r.registry.Get(req.Name)
	if err != nil {
		return Result{Error: err.Error(), DurationMS: time.Since(start).Milliseconds()}
	}

	local, ok := service.(LocalService)
	if !ok {
		err := fmt.Errorf("analysis: %q does not support local execution", req.Name)
		return Result{Error: err.Error(), DurationMS: time.Since(start).Milliseconds()}
	}

	data, err := local.Compute(raw, req.Params)
	if err != nil {
		r.log.Error().Err(err).Str("analysis", req.Name).Msg("analysis failed")
		return Result{Error: err.Error(), DurationMS: time.Since(start).Milliseconds()}
	}

	elapsed := time.Since(start)
	r.log.Info().
		Str("analysis", req.Name).
		Str("mode", ModeLocal).
		Dur("elapsed", elapsed).
		Msg("analysis completed")

	return Result{Data: data, DurationMS: elapsed.Milliseconds()}
}
