package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/oncoscope/backend/internal/api"
	"github.com/oncoscope/backend/internal/config"
	"github.com/oncoscope/backend/internal/logging"
	"github.com/oncoscope/backend/internal/models"
	"github.com/oncoscope/backend/internal/predict"
	"github.com/oncoscope/backend/internal/query"
	"github.com/oncoscope/backend/internal/storage"
	"github.com/oncoscope/backend/internal/workflow"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	defaultPath := os.Getenv("ONCO_CONFIG")
	if defaultPath == "" {
		defaultPath = "./oncoscope.config.xml"
	}
	configPath := flag.String("config", defaultPath, "path to the XML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.Advanced.LogLevel, cfg.Advanced.LogFormat)

	if err := run(cfg, *configPath); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.AppConfig, configPath string) error {
	catalog := models.DefaultCatalog()
	if cfg.Catalog.ClassesFile != "" {
		loaded, err := models.LoadCatalog(cfg.Catalog.ClassesFile)
		if err != nil {
			return fmt.Errorf("load class catalog: %w", err)
		}
		catalog = loaded
	}

	engine, err := query.NewEngine(cfg.Query.Locale)
	if err != nil {
		return fmt.Errorf("query engine: %w", err)
	}

	maxUpload, err := cfg.MaxUploadBytes()
	if err != nil {
		return err
	}
	store := storage.NewMemoryStore(maxUpload)

	client := predict.NewClient(predict.Options{
		BaseURL:      cfg.Predictor.BaseURL,
		PredictPath:  cfg.Predictor.PredictPath,
		TemplatePath: cfg.Predictor.TemplatePath,
		Timeout:      cfg.PredictTimeout(),
	})

	var metricsHandler http.Handler
	var metrics *workflow.Metrics
	if cfg.Advanced.EnableMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = workflow.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	manager := workflow.NewManager(client, workflow.Options{
		FeedbackDelay: cfg.UploadFeedbackDelay(),
		Timeout:       cfg.PredictTimeout(),
		Catalog:       catalog,
		Engine:        engine,
		Store:         store,
		Metrics:       metrics,
	}, cfg.Workflows.MaxWorkflows)
	defer manager.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background workflow cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := manager.CleanupIdle(cfg.IdleTimeout()); n > 0 {
					log.Info().Int("removed", n).Msg("idle workflows cleaned up")
				}
			}
		}
	}()

	e := newEcho(cfg)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Workflows:   manager,
		Store:       store,
		Templates:   client,
		Metrics:     metricsHandler,
		PreviewRows: cfg.Workflows.PreviewRows,
		SheetName:   cfg.Export.SheetName,
		Version:     Version,
	}))

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("config", configPath).
		Str("listen", "http://"+cfg.GetServerAddr()).
		Str("predictor", cfg.Predictor.BaseURL).
		Msg("OncoScope workflow host starting")

	errCh := make(chan error, 1)
	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newEcho(cfg *config.AppConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = api.ErrorHandler

	if cfg.Advanced.EnableRequestLogging {
		e.Use(api.RequestLogger())
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasSuffix(c.Request().URL.Path, "/stream") ||
				c.Request().Header.Get("Accept") == "text/event-stream"
		},
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			ExposeHeaders: []string{echo.HeaderContentDisposition},
		}))
	}

	return e
}
