// Package analysis runs named server-side analyses over the document
// store. Each service contributes an aggregation pipeline; the runner
// executes the requested set and isolates per-analysis failures.
package analysis

import (
	"fmt"
	"sort"

	"github.com/raywall/docstore-toolkit/mongodb"
)

// Service builds the aggregation pipeline for one named analysis.
type Service interface {
	Name() string
	Pipeline(match mongodb.Document, params mongodb.Document) ([]mongodb.Document, error)
}

// Result is the outcome of one analysis. Either Data or Error is set.
type Result struct {
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

// ErrUnknownAnalysis is returned for names no service claims.
var ErrUnknownAnalysis = fmt.Errorf("analysis: unknown analysis")

// Registry holds the available analysis services.
type Registry struct {
	services map[string]Service
}

// NewRegistry returns a registry with the built-in services.
func NewRegistry() *Registry {
	r := &Registry{services: map[string]Service{}}
	r.Register(&salesByRegion{})
	r.Register(&userActivitySummary{})
	r.Register(&grouping{})
	return r
}

func (r *Registry) Register(s Service) {
	r.services[s.Name()] = s
}

func (r *Registry) Get(name string) (Service, error) {
	s, ok := r.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAnalysis, name)
	}
	return s, nil
}

// Names lists the registered analyses in stable order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.services))
	for name := range r.services {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// matchStage prepends a $match when the base filter is non-empty.
func matchStage(match mongodb.Document) []mongodb.Document {
	if len(match) == 0 {
		return nil
	}
	return []mongodb.Document{{"$match": match}}
}
