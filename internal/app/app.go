// Package app wires configuration, logging, metrics and storage into the
// pipeline, the verifier and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"framecheck/internal/catalog"
	"framecheck/internal/config"
	"framecheck/internal/logger"
	"framecheck/internal/metrics"
	"framecheck/internal/models"
	"framecheck/internal/repository/sqlite"
	"framecheck/internal/routes"
	"framecheck/internal/services/ai"
	"framecheck/internal/services/pipeline"
	"framecheck/internal/services/storage"
	"framecheck/internal/services/verify"
	"framecheck/internal/services/websocket"

	"github.com/prometheus/client_golang/prometheus"
)

type App struct {
	config   *config.Config
	logger   *logger.Logger
	catalog  *catalog.Catalog
	metrics  *metrics.Metrics
	hub      *websocket.HubService
	verifier *verify.Verifier

	db      *sqlite.DB
	reports *sqlite.ReportRepository
}

// NewApp builds the shared services. The database is opened on first use.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	cat := catalog.Plates()
	if cfg.ClassFile != "" {
		loaded, err := catalog.LoadFile(cfg.ClassFile)
		if err != nil {
			return nil, err
		}
		cat = loaded
		log.Info("Loaded %d classes from %s", cat.Len(), cfg.ClassFile)
	}

	m, err := metrics.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}

	verifier := verify.NewVerifier(cat, verify.Options{
		Extension: cfg.RecordExtension,
		Workers:   cfg.VerifyWorkers,
		Strict:    cfg.StrictRecords,
	}, m, log)

	return &App{
		config:   cfg,
		logger:   log,
		catalog:  cat,
		metrics:  m,
		hub:      websocket.NewHubService(log),
		verifier: verifier,
	}, nil
}

func (a *App) Catalog() *catalog.Catalog {
	return a.catalog
}

func (a *App) Verifier() *verify.Verifier {
	return a.verifier
}

// Reports opens the report database if needed.
func (a *App) Reports() (*sqlite.ReportRepository, error) {
	if a.reports != nil {
		return a.reports, nil
	}
	db, err := sqlite.New(a.config.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.reports = sqlite.NewReportRepository(db)
	return a.reports, nil
}

// Process runs the frame pipeline over a video file.
func (a *App) Process(ctx context.Context, videoPath string) (pipeline.Stats, error) {
	detector, err := ai.New(a.config, a.logger)
	if err != nil {
		return pipeline.Stats{}, err
	}
	defer detector.Close()

	store := storage.NewArtifactStore(a.config.OutputDirectory, a.config.RecordExtension, a.config.SaveRaw)
	p := pipeline.New(detector, a.catalog, store, pipeline.Options{
		Rotate:          a.config.Rotate,
		Width:           a.config.FrameWidth,
		Height:          a.config.FrameHeight,
		ContinueOnError: a.config.ContinueOnDetErr,
	}, a.metrics, a.hub, a.logger)

	return p.Run(ctx, videoPath)
}

// Verify checks a record directory and stores the run when save is set.
func (a *App) Verify(ctx context.Context, dir string, expected map[string]int, save bool) (*models.BatchReport, error) {
	report, err := a.verifier.Verify(ctx, dir, expected)
	if err != nil {
		return nil, err
	}
	if !save {
		return report, nil
	}

	repo, err := a.Reports()
	if err != nil {
		return nil, err
	}
	if _, err := repo.Save(report); err != nil {
		return nil, err
	}
	a.logger.Info("Stored verification run %s", report.RunID)
	return report, nil
}

// Serve runs the preview hub and the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	repo, err := a.Reports()
	if err != nil {
		return err
	}

	go a.hub.Run(ctx)

	router := routes.SetupRoutes(&routes.Services{
		Hub:      a.hub,
		Reports:  repo,
		Verifier: a.verifier,
		Metrics:  a.metrics,
	}, a.config, a.logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Listening on http://localhost:%d", a.config.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.Info("Shutting down server")
		return server.Shutdown(shutdownCtx)
	}
}

// Close releases the database.
func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
