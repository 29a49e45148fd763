package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/raywall/docstore-toolkit/mongodb"
	"github.com/raywall/docstore-toolkit/pkg/analysis"
	"github.com/raywall/docstore-toolkit/pkg/cache"
	"github.com/raywall/docstore-toolkit/pkg/export"
)

// Request size caps.
const (
	maxBulkCreate     = 1000
	maxBulkUpdate     = 1000
	maxBulkDelete     = 100
	maxPipelineStages = 20
	maxExportDocs     = 10000
	maxUploadBytes    = 32 << 20
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mongodb.Document{
		"service":    "docstore-toolkit",
		"collection": s.admin.CollectionName(),
		"docs":       "/api/v1",
	})
}

// --- items ---

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var doc mongodb.Document
	if err := decodeBody(r, &doc); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(doc) == 0 {
		writeBadRequest(w, "document must not be empty")
		return
	}

	created, err := s.store.Insert(r.Context(), doc)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReads(r.Context())
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var fields mongodb.Document
	if err := decodeBody(r, &fields); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(fields) == 0 {
		writeBadRequest(w, "no fields to update")
		return
	}
	delete(fields, "_id")

	updated, err := s.store.Update(r.Context(), mux.Vars(r)["id"], fields)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReads(r.Context())
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReads(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	limit := queryInt64(r, "limit", 100)
	skip := queryInt64(r, "skip", 0)
	if limit < 1 || limit > 1000 {
		writeBadRequest(w, "limit must be between 1 and 1000")
		return
	}

	docs, err := s.store.List(r.Context(), limit, skip)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mongodb.Document{"data": docs, "limit": limit, "skip": skip})
}

func (s *Server) handleSortedItems(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("sort_by")
	if field == "" {
		field = mongodb.FieldCreatedAt
	}
	order := mongodb.SortDesc
	if r.URL.Query().Get("order") == "asc" {
		order = mongodb.SortAsc
	}

	query := mongodb.SearchQuery{
		Sort:  []mongodb.Sort{{Field: field, Order: order}},
		Page:  queryInt64(r, "page", 1),
		Limit: queryInt64(r, "limit", 10),
	}

	page, err := s.store.Search(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// --- search ---

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query mongodb.SearchQuery
	if err := decodeBody(r, &query); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&query); err != nil {
		writeError(w, err)
		return
	}

	page, err := s.store.Search(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleQuickSearch(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("q")
	if text == "" {
		writeBadRequest(w, "query parameter q is required")
		return
	}

	query := mongodb.SearchQuery{
		Text:         text,
		Fields:       queryList(r, "fields"),
		Page:         queryInt64(r, "page", 1),
		Limit:        queryInt64(r, "limit", 10),
		IncludeCount: r.URL.Query().Get("include_count") == "true",
	}

	page, err := s.store.Search(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleFieldSearch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	query := mongodb.SearchQuery{
		Filters: []mongodb.Filter{
			{Field: vars["field"], Operator: mongodb.OpEqual, Value: vars["value"]},
		},
		Page:  queryInt64(r, "page", 1),
		Limit: queryInt64(r, "limit", 10),
	}

	page, err := s.store.Search(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleDateRangeSearch(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		field = mongodb.FieldCreatedAt
	}

	var filters []mongodb.Filter
	if raw := r.URL.Query().Get("start"); raw != "" {
		start, err := parseDate(raw)
		if err != nil {
			writeBadRequest(w, "start must be an RFC3339 or YYYY-MM-DD date")
			return
		}
		filters = append(filters, mongodb.Filter{Field: field, Operator: mongodb.OpGreaterEqual, Value: start})
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		end, err := parseDate(raw)
		if err != nil {
			writeBadRequest(w, "end must be an RFC3339 or YYYY-MM-DD date")
			return
		}
		filters = append(filters, mongodb.Filter{Field: field, Operator: mongodb.OpLessEqual, Value: end})
	}
	if len(filters) == 0 {
		writeBadRequest(w, "at least one of start or end is required")
		return
	}

	query := mongodb.SearchQuery{
		Filters: filters,
		Page:    queryInt64(r, "page", 1),
		Limit:   queryInt64(r, "limit", 10),
	}

	page, err := s.store.Search(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// --- bulk ---

func (s *Server) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var docs []mongodb.Document
	if err := decodeBody(r, &docs); err != nil {
		writeBadRequest(w, "invalid JSON body, expected an array of documents")
		return
	}
	if len(docs) == 0 {
		writeBadRequest(w, "no documents provided")
		return
	}
	if len(docs) > maxBulkCreate {
		writeTooLarge(w, fmt.Sprintf("at most %d documents per request", maxBulkCreate))
		return
	}

	result, err := s.store.BulkInsert(r.Context(), docs)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReads(r.Context())
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var updates []mongodb.BulkUpdate
	if err := decodeBody(r, &updates); err != nil {
		writeBadRequest(w, "invalid JSON body, expected an array of {filter, update}")
		return
	}
	if len(updates) == 0 {
		writeBadRequest(w, "no updates provided")
		return
	}
	if len(updates) > maxBulkUpdate {
		writeTooLarge(w, fmt.Sprintf("at most %d updates per request", maxBulkUpdate))
		return
	}

	result, err := s.store.BulkUpdate(r.Context(), updates)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReads(r.Context())
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var filters []mongodb.Document
	if err := decodeBody(r, &filters); err != nil {
		writeBadRequest(w, "invalid JSON body, expected an array of filters")
		return
	}
	if len(filters) == 0 {
		writeBadRequest(w, "no filters provided")
		return
	}
	if len(filters) > maxBulkDelete {
		writeTooLarge(w, fmt.Sprintf("at most %d filters per request", maxBulkDelete))
		return
	}
	for _, f := range filters {
		if len(f) == 0 {
			writeBadRequest(w, "empty filters are not allowed in bulk delete")
			return
		}
	}

	result, err := s.store.BulkDelete(r.Context(), filters)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReads(r.Context())
	writeJSON(w, http.StatusOK, result)
}

// --- inspection ---

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	key := cache.Key("statistics", s.admin.CollectionName())

	var cached mongodb.Statistics
	if s.cache.Get(r.Context(), key, &cached) {
		writeJSON(w, http.StatusOK, &cached)
		return
	}

	stats, err := s.store.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if s.recorder != nil {
		s.recorder.DocumentCount(s.admin.CollectionName(), stats.TotalDocuments)
	}
	s.cache.Set(r.Context(), key, stats)
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	sampleSize := queryInt64(r, "sample_size", 100)

	key := cache.Key("schema", mongodb.Document{
		"collection": s.admin.CollectionName(),
		"sample":     sampleSize,
	})

	var cached mongodb.Schema
	if s.cache.Get(r.Context(), key, &cached) {
		writeJSON(w, http.StatusOK, &cached)
		return
	}

	schema, err := s.store.SchemaInfo(r.Context(), sampleSize)
	if err != nil {
		writeError(w, err)
		return
	}
	s.cache.Set(r.Context(), key, schema)
	writeJSON(w, http.StatusOK, schema)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Info(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	size := queryInt64(r, "size", 10)
	if size < 1 || size > 100 {
		writeBadRequest(w, "size must be between 1 and 100")
		return
	}

	docs, err := s.store.Sample(r.Context(), size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mongodb.Document{"data": docs, "size": len(docs)})
}

// --- indexes ---

func (s *Server) handleListIndexes(w http.ResponseWriter, r *http.Request) {
	indexes, err := s.store.Indexes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mongodb.Document{"indexes": indexes})
}

func (s *Server) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var spec mongodb.IndexSpec
	if err := decodeBody(r, &spec); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&spec); err != nil {
		writeError(w, err)
		return
	}

	if err := s.store.CreateIndex(r.Context(), spec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mongodb.Document{"name": spec.Name})
}

func (s *Server) handleDropIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DropIndex(r.Context(), mux.Vars(r)["name"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- export / import ---

type exportRequest struct {
	Format string               `json:"format" validate:"required,oneof=json csv xlsx"`
	Query  *mongodb.SearchQuery `json:"query,omitempty"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, err)
		return
	}

	var docs []mongodb.Document
	var err error
	if req.Query != nil {
		var page *mongodb.Page
		page, err = s.store.Search(r.Context(), *req.Query)
		if page != nil {
			docs = page.Data
		}
	} else {
		docs, err = s.store.List(r.Context(), maxExportDocs, 0)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	contentType, err := export.ContentType(req.Format)
	if err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("export_%s.%s", time.Now().UTC().Format("20060102_150405"), req.Format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := export.Write(w, docs, req.Format); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("export failed mid-stream")
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeBadRequest(w, "expected a multipart upload with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "missing file field")
		return
	}
	defer file.Close()

	format, err := export.FormatForFilename(header.Filename)
	if err != nil {
		writeError(w, err)
		return
	}

	docs, err := export.Parse(file, format)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if len(docs) == 0 {
		writeBadRequest(w, "upload contains no documents")
		return
	}

	replace := r.FormValue("replace") == "true"
	start := time.Now()
	if replace {
		if _, err := s.store.BulkDelete(r.Context(), []mongodb.Document{{}}); err != nil {
			writeError(w, err)
			return
		}
	}

	result, err := s.store.BulkInsert(r.Context(), docs)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReads(r.Context())

	writeJSON(w, http.StatusOK, mongodb.Document{
		"total_rows":       len(docs),
		"imported":         result.SuccessCount,
		"failed":           result.ErrorCount,
		"errors":           result.Errors,
		"replaced_data":    replace,
		"duration_seconds": time.Since(start).Seconds(),
	})
}

// --- queries ---

func (s *Server) handleDistinct(w http.ResponseWriter, r *http.Request) {
	field := mux.Vars(r)["field"]

	values, err := s.store.Distinct(r.Context(), field, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mongodb.Document{"field": field, "values": values, "count": len(values)})
}

type countRequest struct {
	Filters []mongodb.Filter `json:"filters,omitempty" validate:"dive"`
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	// an empty body counts the whole collection
	var req countRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	filter := mongodb.Document(mongodb.BuildFilter(req.Filters))
	key := cache.Key("count", mongodb.Document{
		"collection": s.admin.CollectionName(),
		"filter":     filter,
	})

	var cached int64
	if s.cache.Get(r.Context(), key, &cached) {
		writeJSON(w, http.StatusOK, mongodb.Document{"count": cached})
		return
	}

	count, err := s.store.Count(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	s.cache.Set(r.Context(), key, count)
	writeJSON(w, http.StatusOK, mongodb.Document{"count": count})
}

type duplicatesRequest struct {
	Fields []string `json:"fields" validate:"required,min=1"`
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	var req duplicatesRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, err)
		return
	}

	groups, err := s.store.Duplicates(r.Context(), req.Fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mongodb.Document{"fields": req.Fields, "groups": groups, "count": len(groups)})
}

type aggregateRequest struct {
	Pipeline []mongodb.Document `json:"pipeline" validate:"required,min=1"`
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Pipeline) > maxPipelineStages {
		writeTooLarge(w, fmt.Sprintf("at most %d pipeline stages", maxPipelineStages))
		return
	}

	docs, err := s.store.Aggregate(r.Context(), req.Pipeline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mongodb.Document{"data": docs, "count": len(docs)})
}

type analyzeRequest struct {
	Filters  []mongodb.Filter   `json:"filters,omitempty" validate:"dive"`
	Analyses []analysis.Request `json:"analyses" validate:"required,min=1,dive"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, err)
		return
	}

	results := s.runner.Run(r.Context(), req.Analyses, req.Filters)
	writeJSON(w, http.StatusOK, mongodb.Document{
		"results":   results,
		"available": s.runner.Available(),
	})
}

// --- collections ---

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.admin.ListCollections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mongodb.Document{
		"collections": names,
		"active":      s.admin.CollectionName(),
	})
}

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.admin.CreateCollection(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mongodb.Document{"name": name})
}

func (s *Server) handleDropCollection(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == s.admin.CollectionName() {
		writeBadRequest(w, "cannot drop the active collection")
		return
	}
	if err := s.admin.DropCollection(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSwitchCollection(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.admin.Use(name); err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReads(r.Context())
	writeJSON(w, http.StatusOK, mongodb.Document{"active": name})
}

// --- maintenance ---

type cleanupRequest struct {
	DateField string `json:"date_field,omitempty"`
	Days      int    `json:"days" validate:"required,gte=1"`
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, err)
		return
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -req.Days)
	deleted, err := s.store.CleanupBefore(r.Context(), req.DateField, cutoff)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReads(r.Context())
	writeJSON(w, http.StatusOK, mongodb.Document{"deleted": deleted, "cutoff": cutoff})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.ValidateIntegrity(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- backup / restore ---

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	// detached context: the dump outlives the request
	job, err := s.backups.Start(context.Background(), s.admin.CollectionName())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleBackupStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.backups.Status(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorPayload{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type restoreRequest struct {
	File    string `json:"file" validate:"required"`
	Replace bool   `json:"replace"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.backups.Restore(r.Context(), req.File, req.Replace)
	if err != nil {
		writeError(w, err)
		return
	}
	s.invalidateReads(r.Context())
	writeJSON(w, http.StatusOK, result)
}

// --- health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.admin.Health(r.Context())
	status := http.StatusOK
	if health.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// invalidateReads drops cached counts, statistics and schema after any
// write, so reads never serve stale aggregates.
func (s *Server) invalidateReads(ctx context.Context) {
	s.cache.Invalidate(ctx, "count", "statistics", "schema")
}

func queryInt64(r *http.Request, name string, fallback int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func queryList(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
