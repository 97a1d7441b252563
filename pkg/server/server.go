// Package server implements the Server Facade: the HTTP surface that
// accepts submissions, reports status, and relays cancel/delete
// requests, backed by the Store and driving the Executor Engine.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twizmwazin/pap/pkg/common/metrics"
	"github.com/twizmwazin/pap/pkg/engine"
	"github.com/twizmwazin/pap/pkg/registry"
	"github.com/twizmwazin/pap/pkg/store"
	"go.uber.org/zap"
)

// structValidator checks a submitted Config's binding tags directly.
// gin already runs ShouldBindJSON's own validator pass over the
// request body, but validate() also needs to reject configs that
// arrive already decoded (e.g. a future non-HTTP submission path), so
// the same struct tags are re-checked here rather than trusted as a
// side effect of the HTTP layer.
var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding") // reuse the same `binding:"..."` tags gin's own validator reads
	return v
}

// Server is the orchestrator's HTTP facade. It owns no state of its
// own beyond the handle map used to track in-flight pipeline runs;
// all durable state lives in the Store.
type Server struct {
	db       store.Store
	registry *registry.Registry
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu      sync.Mutex
	running map[uint32]context.CancelFunc

	httpServer *http.Server
}

// New constructs a Server and registers its routes on a fresh gin
// engine. addr is the address to listen on when Run is called.
func New(db store.Store, reg *registry.Registry, m *metrics.Collector, logger *zap.Logger, addr string) *Server {
	s := &Server{
		db:       db,
		registry: reg,
		metrics:  m,
		logger:   logger.With(zap.String("component", "server")),
		running:  make(map[uint32]context.CancelFunc),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.HTTPMetricsMiddleware(m))
	s.registerRoutes(router)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
	return s
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/pipelines", s.submitPipeline)
		v1.GET("/pipelines/:id", s.getPipeline)
		v1.GET("/pipelines", s.listPipelines)
		v1.POST("/pipelines/:id/_cancel", s.cancelPipeline)
		v1.DELETE("/pipelines/:id", s.deletePipeline)

		v1.GET("/jobs/:id", s.getJob)
		v1.GET("/jobs", s.listJobs)
		v1.POST("/jobs/:id/_cancel", s.cancelJob)

		v1.GET("/steps/:id/log", s.getStepLog)

		v1.GET("/objects/:namespace/:key", s.getObject)
		v1.PUT("/objects/:namespace/:key", s.putObject)
	}
}

// Run starts serving HTTP and blocks until the context is cancelled,
// then gracefully shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

// launch spawns the Executor Engine for an already validated and
// inserted pipeline in its own goroutine. The run's cancel func is
// tracked in the running map so that deleting the pipeline can cancel
// the engine's context even if the engine is between Store calls.
func (s *Server) launch(pipelineID uint32) {
	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[pipelineID] = cancel
	s.mu.Unlock()

	s.metrics.PipelinesSubmitted.WithLabelValues().Inc()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.running, pipelineID)
			s.mu.Unlock()
			cancel()
		}()
		engine.Run(runCtx, s.db, s.registry, s.metrics, s.logger, pipelineID)
	}()
}

// validate checks that every step's call is registered, per the
// invariant that a submission must be rejected outright (no rows
// written) rather than fail partway through execution.
func (s *Server) validate(cfg store.Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		return store.Configurationf("%v", err)
	}
	for _, job := range cfg.Jobs {
		for _, step := range job.Steps {
			if !s.registry.Has(step.Call) {
				return store.Configurationf("job %q step %q: unregistered executor %q", job.Name, step.Name, step.Call)
			}
		}
	}
	return nil
}

// writeError maps a domain error to its HTTP status and emits a JSON
// error envelope.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch store.KindOf(err) {
	case store.KindNotFound:
		status = http.StatusNotFound
	case store.KindConfiguration:
		status = http.StatusBadRequest
	case store.KindDatabase, store.KindInternal:
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
