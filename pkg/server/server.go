package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/menta2k/plant-doctor/pkg/report"
	"github.com/menta2k/plant-doctor/pkg/types"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Analyzer is the pipeline the handlers drive
type Analyzer interface {
	Analyze(ctx context.Context, data []byte) (*types.Report, error)
	ClassifierModel() string
	LLMModel() string
}

// Options configures the HTTP server
type Options struct {
	Addr            string
	MaxUploadBytes  int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowOrigins    []string
	Version         string
}

// Server serves the web form and the JSON API
type Server struct {
	opts     Options
	analyzer Analyzer
	renderer *report.Renderer
	logger   *zap.Logger
	engine   *gin.Engine
}

// New builds the router. It does not start listening; see Run.
func New(analyzer Analyzer, opts Options, logger *zap.Logger) (*Server, error) {
	if analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if len(opts.AllowOrigins) == 0 {
		opts.AllowOrigins = []string{"*"}
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		opts:     opts,
		analyzer: analyzer,
		renderer: report.NewRenderer(),
		logger:   logger,
	}
	s.engine = s.setupRouter(tmpl)
	return s, nil
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRouter(tmpl *template.Template) *gin.Engine {
	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(
		requestID(),
		recovery(s.logger),
		accessLog(s.logger),
		limitBodySize(s.opts.MaxUploadBytes),
		cors.New(cors.Config{
			AllowOrigins:  s.opts.AllowOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
			ExposeHeaders: []string{requestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	router.GET("/", s.handleIndex)
	router.POST("/analyze", s.handleAnalyzeForm)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.POST("/diagnose", s.handleDiagnose)
	api.GET("/info", s.handleInfo)

	return router
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}
