// Package api implements C9: the Status/Stop/Resume control surface plus
// the session-ingest, read, and SSE endpoints of spec §6. Grounded in the
// teacher's pkg/api/{server,handlers}.go gin.Engine + route-group pattern.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sessionwave/orchestrator/internal/events"
	"github.com/sessionwave/orchestrator/internal/metrics"
	"github.com/sessionwave/orchestrator/internal/storedb"
	"github.com/sessionwave/orchestrator/internal/store"
	"github.com/sessionwave/orchestrator/internal/versionstore"
	"github.com/sessionwave/orchestrator/internal/wave"
)

// Server is the HTTP API surface, wiring every route in spec §6 to its
// backing repository or component.
type Server struct {
	router *gin.Engine
	http   *http.Server

	db         *storedb.Client
	sessions   *store.SessionRepo
	patients   *store.PatientRepo
	logs       *store.ProcessingLogRepo
	events     *store.EventRepo
	versions   *versionstore.Store
	pool       *wave.WorkerPool
	sse        *events.SSEHandler
	publisher  *events.Publisher
	log        *slog.Logger
	shutdownTO time.Duration
}

// New builds the Server and registers every route. Mirrors the teacher's
// NewServer(cfg, dbClient, ...) constructor-then-setupRoutes shape.
func New(
	db *storedb.Client,
	sessions *store.SessionRepo,
	patients *store.PatientRepo,
	logs *store.ProcessingLogRepo,
	eventRepo *store.EventRepo,
	versions *versionstore.Store,
	pool *wave.WorkerPool,
	sseHandler *events.SSEHandler,
	publisher *events.Publisher,
	shutdownTimeout time.Duration,
	log *slog.Logger,
) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	s := &Server{
		router:     router,
		db:         db,
		sessions:   sessions,
		patients:   patients,
		logs:       logs,
		events:     eventRepo,
		versions:   versions,
		pool:       pool,
		sse:        sseHandler,
		publisher:  publisher,
		log:        log,
		shutdownTO: shutdownTimeout,
	}
	s.setupRoutes()
	return s
}

// requestLogger mirrors the teacher's slog-based gin middleware
// (pkg/api/middleware.go), replacing gin's default text access log.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration_ms", time.Since(start).Milliseconds())
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/healthz", s.healthHandler)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	s.router.POST("/ingest/session", s.ingestSessionHandler)
	s.router.GET("/sessions/:id", s.getSessionHandler)

	s.router.GET("/patients/:id/sessions", s.listPatientSessionsHandler)
	s.router.GET("/patients/:id/journey", s.getJourneyHandler)
	s.router.GET("/patients/:id/bridge", s.getBridgeHandler)
	s.router.GET("/patients/:id/status", s.statusHandler)
	s.router.POST("/patients/:id/stop", s.stopHandler)
	s.router.POST("/patients/:id/resume", s.resumeHandler)

	s.router.GET("/sse/events/:patient_id", s.sseHandler)
}

// Start listens on addr (blocking), mirroring the teacher's Server.Start.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.router}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
