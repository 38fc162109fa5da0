package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/imsantiagopoli/pilly/internal/assistant"
	"github.com/imsantiagopoli/pilly/internal/audit"
	"github.com/imsantiagopoli/pilly/internal/blob"
	"github.com/imsantiagopoli/pilly/internal/config"
	"github.com/imsantiagopoli/pilly/internal/handler"
	"github.com/imsantiagopoli/pilly/internal/metrics"
	"github.com/imsantiagopoli/pilly/internal/pdf"
	"github.com/imsantiagopoli/pilly/internal/repository"
	"github.com/imsantiagopoli/pilly/internal/service"
	"github.com/imsantiagopoli/pilly/internal/worker"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "pilly",
		Short:        "Medication schedule and adherence tracker",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional config file (yaml, json or toml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(closeOutCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(validateConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func closeOutCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "closeout",
		Short: "Mark every unrecorded dose of an elapsed day as missed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			st, err := openStores(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.close()

			tracker, err := newTracker(cfg, st, nil, logger)
			if err != nil {
				return err
			}

			day := tracker.Today().AddDays(-1)
			if date != "" {
				if day, err = model.ParseDate(date); err != nil {
					return err
				}
			}
			missed, err := tracker.CloseOutDay(ctx, day)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d doses marked missed\n", day, missed)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to close out (YYYY-MM-DD), defaults to yesterday")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate requires the postgres storage driver, got %q", cfg.Storage.Driver)
			}

			pool, err := pgxpool.New(cmd.Context(), cfg.Storage.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			if err := repository.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the configuration, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok (storage=%s, assistant=%s, environment=%s)\n",
				cfg.Storage.Driver, cfg.Assistant.Provider, cfg.Server.Environment)
			return nil
		},
	}
}

func runServer(cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
	)

	ctx := context.Background()
	m := metrics.New()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	tracker, err := newTracker(cfg, st, m, logger)
	if err != nil {
		return err
	}

	if cfg.Schedule.SeedDemoData {
		added, err := tracker.SeedDemo(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed demo medications: %w", err)
		}
		if added > 0 {
			logger.Info("Seeded demo medications", zap.Int("count", added))
		}
	}

	storage, err := newReportStorage(cfg, logger)
	if err != nil {
		return err
	}
	reportService := service.NewReportService(tracker, storage, pdf.NewPDFGenerator(logger), logger)

	provider, err := assistant.NewProvider(ctx, cfg.Assistant.Provider, assistant.Credentials{
		GeminiAPIKey:     cfg.Assistant.GeminiAPIKey,
		GeminiModel:      cfg.Assistant.GeminiModel,
		OpenAIEndpoint:   cfg.Assistant.OpenAI.Endpoint,
		OpenAIAPIKey:     cfg.Assistant.OpenAI.APIKey,
		OpenAIDeployment: cfg.Assistant.OpenAI.Deployment,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize assistant provider: %w", err)
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}
	chat := assistant.New(provider, assistant.Config{
		Timeout:          cfg.Assistant.Timeout,
		RatePerMinute:    cfg.Assistant.RatePerMinute,
		Burst:            cfg.Assistant.Burst,
		FailureThreshold: cfg.Assistant.FailureThreshold,
		OpenTimeout:      cfg.Assistant.OpenTimeout,
	}, logger, assistant.WithRecorder(m))

	var closeOut *worker.CloseOut
	if cfg.Worker.CloseOutEnabled {
		loc, _ := cfg.Schedule.Location()
		closeOut, err = worker.NewCloseOut(tracker, cfg.Worker.CloseOutCron, loc, m, logger)
		if err != nil {
			return err
		}
		closeOut.Start()
	}

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &handler.Server{
		HealthHandler:     handler.NewHealthHandler(cfg.Storage.Driver, st.pinger, chat.Configured(), logger),
		MedicationHandler: handler.NewMedicationHandler(tracker, logger),
		DoseHandler:       handler.NewDoseHandler(tracker, logger),
		ReportHandler:     handler.NewReportHandler(reportService, logger),
		AssistantHandler:  handler.NewAssistantHandler(chat, logger),
	}
	r := handler.NewRouter(server, handler.RouterOptions{
		AllowOrigins:   cfg.Server.AllowOrigins,
		Observer:       m,
		MetricsHandler: m.Handler(),
	}, logger)

	// Start server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error("Failed to start server", zap.Error(err))
		return err
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if closeOut != nil {
		if err := closeOut.Stop(shutdownCtx); err != nil {
			logger.Warn("Close-out job still running at shutdown", zap.Error(err))
		}
	}

	logger.Info("Server exited")
	return nil
}

// newLogger builds the zap logger: production settings in production,
// development settings elsewhere, with level and encoding from config
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.Server.Environment == "production" {
		zc = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = cfg.Logging.Format

	return zc.Build()
}

// stores holds the backing stores selected by the storage driver
type stores struct {
	meds    service.MedicationStore
	doseLog service.DoseLog
	auditor service.Auditor
	pinger  handler.Pinger
	close   func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := repository.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("Successfully connected to database")

		return &stores{
			meds:    repository.NewMedicationRepository(pool, logger),
			doseLog: repository.NewDoseLogRepository(pool, logger),
			auditor: audit.NewLogger(pool, logger),
			pinger:  pool,
			close:   pool.Close,
		}, nil

	case config.DriverBadger:
		db, err := repository.OpenBadger(cfg.Storage.BadgerPath)
		if err != nil {
			return nil, err
		}
		logger.Info("Opened badger store", zap.String("path", cfg.Storage.BadgerPath))

		return &stores{
			meds:    repository.NewBadgerMedicationStore(db, logger),
			doseLog: repository.NewBadgerDoseLog(db, logger),
			pinger:  badgerPinger(db),
			close: func() {
				if err := db.Close(); err != nil {
					logger.Error("Failed to close badger store", zap.Error(err))
				}
			},
		}, nil

	default:
		logger.Warn("Using in-memory storage, data is lost on restart")
		return &stores{
			meds:    repository.NewMemoryMedicationStore(),
			doseLog: repository.NewMemoryDoseLog(),
			close:   func() {},
		}, nil
	}
}

func badgerPinger(db *badger.DB) handler.PingFunc {
	return func(context.Context) error {
		if db.IsClosed() {
			return errors.New("badger store is closed")
		}
		return nil
	}
}

func newTracker(cfg *config.Config, st *stores, m *metrics.Metrics, logger *zap.Logger) (*service.Tracker, error) {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithLocation(loc),
		service.WithPolicy(service.Policy{
			GraceWindow:            cfg.Schedule.GraceWindow,
			LateCountsTowardStreak: cfg.Schedule.LateCountsTowardStreak,
		}),
		service.WithColorPicker(service.NewColorPicker(cfg.Schedule.ColorPolicy)),
	}
	if st.auditor != nil {
		opts = append(opts, service.WithAuditor(st.auditor))
	}
	if m != nil {
		opts = append(opts, service.WithMetrics(m))
	}

	return service.NewTracker(st.meds, st.doseLog, logger, opts...), nil
}

func newReportStorage(cfg *config.Config, logger *zap.Logger) (blob.Storage, error) {
	if cfg.Reports.AccountName == "" {
		logger.Warn("Azure storage account not set, reports are kept in memory")
		return blob.NewMemoryStorage(logger), nil
	}
	storage, err := blob.NewAzureStorage(cfg.Reports.AccountName, cfg.Reports.AccountKey, cfg.Reports.Container, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize report blob storage: %w", err)
	}
	return storage, nil
}
