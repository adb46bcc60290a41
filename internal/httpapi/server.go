package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/batch"
	"horse.fit/polyglot/internal/dataimport"
	"horse.fit/polyglot/internal/globaltime"
)

const defaultMaxUploadBytes = 32 << 20

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	AllowedOrigins  []string
}

type pinger interface {
	Ping(ctx context.Context) error
}

type jobService interface {
	Start(ctx context.Context, req batch.SubmitRequest) (batch.Job, error)
	Get(ctx context.Context, jobID int64) (batch.Job, error)
	ListChunks(ctx context.Context, jobID int64) ([]batch.ChunkExecution, error)
	Cancel(jobID int64) error
}

type importService interface {
	AddFiles(ctx context.Context, projectID, authorID int64, files []dataimport.UploadedFile) (dataimport.ImportView, error)
	Find(ctx context.Context, projectID, authorID int64) (*dataimport.ImportView, error)
	DeleteImport(ctx context.Context, importID int64) error
	Import(ctx context.Context, importID int64, mode dataimport.ForceMode) (dataimport.ImportResult, error)
	SetAllResolved(ctx context.Context, importID int64) (int64, error)
	FindLanguage(ctx context.Context, importLanguageID int64) (dataimport.LanguageView, error)
	FindTranslations(ctx context.Context, importLanguageID int64) ([]dataimport.TranslationView, error)
	SelectExistingLanguage(ctx context.Context, importLanguageID, existingLanguageID int64) (dataimport.LanguageView, error)
	ResetExistingLanguage(ctx context.Context, importLanguageID int64) (dataimport.LanguageView, error)
	DeleteLanguage(ctx context.Context, importLanguageID int64) error
	GetTranslation(ctx context.Context, translationID int64) (dataimport.TranslationView, error)
	ResolveTranslation(ctx context.Context, translationID int64, override bool) (dataimport.TranslationView, error)
}

type Server struct {
	health  pinger
	jobs    jobService
	imports importService
	logger  zerolog.Logger
	opts    Options
}

func NewServer(health pinger, jobs jobService, imports importService, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &Server{
		health:  health,
		jobs:    jobs,
		imports: imports,
		logger:  logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			MaxUploadBytes:  maxUpload,
			AllowedOrigins:  origins,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.jobs == nil || s.imports == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.newEcho()
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("polyglot api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("polyglot api server stopped")
	return nil
}

// newEcho builds the router without the request logger so tests can drive it
// directly.
func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", headerUserID},
		MaxAge:       3600,
	}))
	e.Use(middleware.BodyLimit(strconv.FormatInt(s.opts.MaxUploadBytes, 10)))

	e.GET("/healthz", s.handleHealth)

	project := e.Group("/api/v1/projects/:projectID", s.requireUser())

	project.POST("/batch-jobs/:type", s.handleSubmitJob)
	project.GET("/batch-jobs/:jobID", s.handleGetJob)
	project.PUT("/batch-jobs/:jobID/cancel", s.handleCancelJob)

	project.POST("/import", s.handleAddFiles)
	project.GET("/import", s.handleGetImport)
	project.DELETE("/import", s.handleDeleteImport)
	project.PUT("/import/apply", s.handleApplyImport)
	project.PUT("/import/resolve-all", s.handleResolveAll)
	project.GET("/import/languages/:languageID/translations", s.handleLanguageTranslations)
	project.PUT("/import/languages/:languageID/select-existing/:existingID", s.handleSelectExisting)
	project.PUT("/import/languages/:languageID/reset-existing", s.handleResetExisting)
	project.DELETE("/import/languages/:languageID", s.handleDeleteLanguage)
	project.PUT("/import/translations/:translationID/resolve/:mode", s.handleResolveTranslation)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	}

	if status >= 500 {
		s.logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("unhandled request error")
		_ = internalError(c, message)
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Error().Err(err).Msg("health check failed")
			return internalError(c, "Database unavailable")
		}
	}
	return success(c, map[string]any{
		"service": "polyglot",
		"status":  "ok",
		"time":    globaltime.UTC(),
	})
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Param(name))
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return value, nil
}
