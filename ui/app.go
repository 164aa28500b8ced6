package ui

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"vqtlbrowser/app"
	"vqtlbrowser/internal/metrics"
)

//go:embed templates/*.html static/*
var embeddedFiles embed.FS

// App serves one snapshot. The snapshot never changes after NewApp, so
// handlers share it without locking.
type App struct {
	router    *chi.Mux
	snapshot  *app.Snapshot
	templates *templateSet
	notes     template.HTML
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	config    Config
}

// Config holds UI application configuration
type Config struct {
	Addr  string
	Debug bool
	// TemplateDir, when set in debug mode, is re-read on every page request.
	TemplateDir string
	NotesPath   string
}

// NewApp creates the UI application for snap. m and gatherer may be nil,
// in which case /metrics is not served.
func NewApp(snap *app.Snapshot, config Config, m *metrics.Metrics, gatherer prometheus.Gatherer) (*App, error) {
	templates, err := newTemplateSet(config.TemplateDir, config.Debug)
	if err != nil {
		return nil, err
	}

	a := &App{
		router:    chi.NewRouter(),
		snapshot:  snap,
		templates: templates,
		metrics:   m,
		gatherer:  gatherer,
		config:    config,
	}

	if config.NotesPath != "" {
		notes, err := RenderNotes(config.NotesPath)
		if err != nil {
			log.Warnf("[Server] notes panel disabled: %v", err)
		} else {
			a.notes = notes
		}
	}

	a.setupMiddleware()
	a.setupRoutes()
	return a, nil
}

// Handler returns the root handler, for tests and embedding
func (a *App) Handler() http.Handler {
	return a.router
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	if a.config.Debug {
		a.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  log.StandardLogger(),
			NoColor: true,
		}))
	}
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
	if a.metrics != nil {
		a.router.Use(a.countRequests)
	}
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/healthz", a.handleHealth)

	a.router.Get("/api/snapshot", a.handleSnapshot)
	a.router.Get("/api/associations", a.handleAssociations)
	a.router.Get("/api/display", a.handleDisplay)
	a.router.Get("/api/figures/{id}", a.handleFigure)
	a.router.Get("/figures/{id}.png", a.handleFigurePNG)
	a.router.Get("/export.xlsx", a.handleExport)

	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		log.Errorf("[Server] static files unavailable: %v", err)
	} else {
		a.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	if a.gatherer != nil {
		a.router.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}
	if a.config.Debug {
		a.router.Mount("/debug", middleware.Profiler())
	}
}

// countRequests records every response by route pattern
func (a *App) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		a.metrics.ObserveRequest(route, status)
	})
}

// Start serves until the listener fails
func (a *App) Start() error {
	srv := &http.Server{
		Addr:              a.config.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Infof("[Server] vQTL browser for %s listening on http://%s", a.snapshot.Gene, a.config.Addr)
	return srv.ListenAndServe()
}
