package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"jobscout/internal/checkpoint"
	"jobscout/internal/config"
	"jobscout/internal/extractor"
	"jobscout/internal/mailbox"
	"jobscout/internal/metrics"
	"jobscout/internal/models"
	"jobscout/internal/processor"
	"jobscout/internal/repository"
	"jobscout/internal/scheduler"
	"jobscout/internal/server"
	"jobscout/internal/sink"
)

// Exit codes distinguish failure classes for operators: configuration
// problems are caught before any connection is attempted.
const (
	exitOK         = 0
	exitConfig     = 2
	exitConnection = 3
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting jobscout")

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Errorf("Failed to load configuration: %v", err)
		os.Exit(exitConfig)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Errorf("Configuration validation failed: %v", err)
		os.Exit(exitConfig)
	}

	m := metrics.NewMetrics()

	var repo *repository.Repository
	if cfg.Database.Enabled() {
		db, err := initDatabase(cfg.Database)
		if err != nil {
			logrus.Errorf("Failed to initialize audit database: %v", err)
			os.Exit(exitConnection)
		}
		repo = repository.New(db)
		logrus.Info("Extraction audit log enabled")
	}

	mb, err := mailbox.New(&cfg.Mailbox)
	if err != nil {
		logrus.Errorf("Failed to create mailbox: %v", err)
		os.Exit(exitConfig)
	}
	if err := mb.Connect(); err != nil {
		logrus.Errorf("Mailbox connection failed: %v", err)
		os.Exit(exitConnection)
	}
	logrus.Infof("Connected to mailbox via %s", cfg.Mailbox.Backend)

	checkpoints := checkpoint.New(cfg.Output.CheckpointFile)
	results := sink.NewCSVSink(cfg.Output.ResultsFile)
	client := extractor.NewClient(&cfg.Extractor, &cfg.Filter, m)
	proc := processor.New(cfg, mb, client, checkpoints, results, repo, m)

	if cfg.Scheduler.IntervalMinutes > 0 {
		os.Exit(runWatch(cfg, proc, mb, repo))
	}
	os.Exit(runOnce(cfg, proc, mb, repo))
}

// runOnce executes a single batch run and exits
func runOnce(cfg *config.Config, proc *processor.Processor, mb mailbox.Mailbox, repo *repository.Repository) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := maybeStartServer(cfg, nil, repo)
	defer shutdownServer(srv)

	err := proc.Run(ctx)

	if closeErr := mb.Close(); closeErr != nil {
		logrus.Warnf("Mailbox close failed: %v", closeErr)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			logrus.Info("Run interrupted; completed work is checkpointed")
			return exitOK
		}
		logrus.Errorf("Batch run failed: %v", err)
		return exitConnection
	}
	return exitOK
}

// runWatch runs the batch on a fixed interval until interrupted
func runWatch(cfg *config.Config, proc *processor.Processor, mb mailbox.Mailbox, repo *repository.Repository) int {
	sched := scheduler.NewScheduler(&cfg.Scheduler, proc.Run)

	srv := maybeStartServer(cfg, sched, repo)
	defer shutdownServer(srv)

	if err := sched.Start(); err != nil {
		logrus.Errorf("Failed to start scheduler: %v", err)
		return exitConnection
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")
	if err := sched.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := mb.Close(); err != nil {
		logrus.Warnf("Mailbox close failed: %v", err)
	}

	logrus.Info("Stopped gracefully")
	return exitOK
}

// maybeStartServer starts the status HTTP server when a port is configured
func maybeStartServer(cfg *config.Config, status server.StatusProvider, repo *repository.Repository) *http.Server {
	if cfg.Server.Port == "" {
		return nil
	}

	srv := server.New(&cfg.Server, status, repo)
	go func() {
		logrus.Infof("Starting status server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("Status server error: %v", err)
		}
	}()
	return srv
}

func shutdownServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Status server shutdown error: %v", err)
	}
}

// initDatabase connects to the audit database and runs migrations
func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dbLogger := gormlogger.New(
		logrus.StandardLogger(),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{
		Logger: dbLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.ExtractionLog{}); err != nil {
		return nil, err
	}

	return db, nil
}
