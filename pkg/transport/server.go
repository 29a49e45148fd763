package transport

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/raywall/docstore-toolkit/mongodb"
	"github.com/raywall/docstore-toolkit/pkg/analysis"
	"github.com/raywall/docstore-toolkit/pkg/backup"
	"github.com/raywall/docstore-toolkit/pkg/cache"
	"github.com/raywall/docstore-toolkit/pkg/config"
	"github.com/raywall/docstore-toolkit/pkg/metrics"
)

// Admin is the slice of the database client the handlers need for
// collection management and health probes.
type Admin interface {
	Health(ctx context.Context) *mongodb.Health
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, name string) error
	DropCollection(ctx context.Context, name string) error
	Use(collection string) error
	CollectionName() string
}

// Server wires the HTTP surface over the store and its supporting
// services.
type Server struct {
	store    mongodb.Store
	admin    Admin
	runner   *analysis.Runner
	backups  *backup.Manager
	cache    *cache.Cache
	recorder *metrics.Recorder
	validate *validator.Validate
	log      zerolog.Logger
	router   *mux.Router
	http     *http.Server
}

// Options carries the server dependencies.
type Options struct {
	Config   *config.Config
	Store    mongodb.Store
	Admin    Admin
	Runner   *analysis.Runner
	Backups  *backup.Manager
	Cache    *cache.Cache
	Recorder *metrics.Recorder
	Logger   zerolog.Logger
}

// NewServer builds the router with all middleware applied.
func NewServer(opts Options) *Server {
	s := &Server{
		store:    opts.Store,
		admin:    opts.Admin,
		runner:   opts.Runner,
		backups:  opts.Backups,
		cache:    opts.Cache,
		recorder: opts.Recorder,
		validate: validator.New(),
		log:      opts.Logger.With().Str("component", "http").Logger(),
		router:   mux.NewRouter(),
	}
	s.routes()

	var handler http.Handler = s.router
	handler = APIKeyMiddleware(opts.Config.Server.APIKey, opts.Config.Server.EnableAuth)(handler)
	handler = CORSMiddleware(opts.Config.Server.CORSOrigins)(handler)
	handler = ObservabilityMiddleware(opts.Logger, opts.Recorder)(handler)

	s.http = &http.Server{
		Addr:         opts.Config.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  opts.Config.Server.ReadTimeout,
		WriteTimeout: opts.Config.Server.WriteTimeout,
	}
	return s
}

// Handler exposes the fully wrapped handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start blocks serving HTTP until Shutdown or failure.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/items", s.handleCreateItem).Methods(http.MethodPost)
	api.HandleFunc("/items", s.handleListItems).Methods(http.MethodGet)
	api.HandleFunc("/items/sorted", s.handleSortedItems).Methods(http.MethodGet)
	api.HandleFunc("/items/{id}", s.handleGetItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{id}", s.handleUpdateItem).Methods(http.MethodPut)
	api.HandleFunc("/items/{id}", s.handleDeleteItem).Methods(http.MethodDelete)

	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	api.HandleFunc("/search/quick", s.handleQuickSearch).Methods(http.MethodGet)
	api.HandleFunc("/search/field/{field}/{value}", s.handleFieldSearch).Methods(http.MethodGet)
	api.HandleFunc("/search/date-range", s.handleDateRangeSearch).Methods(http.MethodGet)

	api.HandleFunc("/bulk/create", s.handleBulkCreate).Methods(http.MethodPost)
	api.HandleFunc("/bulk/update", s.handleBulkUpdate).Methods(http.MethodPost)
	api.HandleFunc("/bulk/delete", s.handleBulkDelete).Methods(http.MethodPost)

	api.HandleFunc("/statistics", s.handleStatistics).Methods(http.MethodGet)
	api.HandleFunc("/schema", s.handleSchema).Methods(http.MethodGet)
	api.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	api.HandleFunc("/sample", s.handleSample).Methods(http.MethodGet)

	api.HandleFunc("/indexes", s.handleListIndexes).Methods(http.MethodGet)
	api.HandleFunc("/indexes", s.handleCreateIndex).Methods(http.MethodPost)
	api.HandleFunc("/indexes/{name}", s.handleDropIndex).Methods(http.MethodDelete)

	api.HandleFunc("/export", s.handleExport).Methods(http.MethodPost)
	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)

	api.HandleFunc("/distinct/{field}", s.handleDistinct).Methods(http.MethodGet)
	api.HandleFunc("/count", s.handleCount).Methods(http.MethodPost)
	api.HandleFunc("/duplicates", s.handleDuplicates).Methods(http.MethodPost)
	api.HandleFunc("/aggregate", s.handleAggregate).Methods(http.MethodPost)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)

	api.HandleFunc("/collections", s.handleListCollections).Methods(http.MethodGet)
	api.HandleFunc("/collections/{name}", s.handleCreateCollection).Methods(http.MethodPost)
	api.HandleFunc("/collections/{name}", s.handleDropCollection).Methods(http.MethodDelete)
	api.HandleFunc("/collections/switch/{name}", s.handleSwitchCollection).Methods(http.MethodPut)

	api.HandleFunc("/maintenance/cleanup", s.handleCleanup).Methods(http.MethodPost)
	api.HandleFunc("/maintenance/validate", s.handleValidate).Methods(http.MethodPost)

	api.HandleFunc("/backup", s.handleBackup).Methods(http.MethodPost)
	api.HandleFunc("/backup/{id}", s.handleBackupStatus).Methods(http.MethodGet)
	api.HandleFunc("/restore", s.handleRestore).Methods(http.MethodPost)

	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}
