package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"status-probe-engine/pkg/config"
	"status-probe-engine/pkg/probes"
	"status-probe-engine/pkg/registry"
	"status-probe-engine/pkg/repositories"
	"status-probe-engine/pkg/scheduler"
	"status-probe-engine/pkg/settings"
	"status-probe-engine/pkg/transition"
	"status-probe-engine/pkg/types"
	"status-probe-engine/pkg/uptime"
)

// Options contains command-line configuration options for the probe engine.
type Options struct {
	ConfigPath     string
	Port           string
	DatabaseDSN    string
	CORSOrigin     string
	HMACSecretFile string
}

// NewOptions parses command-line flags and returns a new Options instance.
func NewOptions() *Options {
	opts := &Options{}

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to config file (defaults apply when omitted)")
	flag.StringVar(&opts.Port, "port", "8080", "Port to listen on")
	flag.StringVar(&opts.DatabaseDSN, "dsn", "", "PostgreSQL DSN connection string")
	flag.StringVar(&opts.CORSOrigin, "cors-origin", "*", "Allowed CORS origin (use '*' for all origins)")
	flag.StringVar(&opts.HMACSecretFile, "hmac-secret-file", "", "File containing HMAC secret")
	flag.Parse()

	return opts
}

// Validate checks that all required options are provided and valid.
func (o *Options) Validate() error {
	if o.ConfigPath != "" {
		if _, err := os.Stat(o.ConfigPath); os.IsNotExist(err) {
			return errors.New("config file does not exist: " + o.ConfigPath)
		}
	}

	if o.Port == "" {
		return errors.New("port cannot be empty")
	}

	if o.DatabaseDSN == "" {
		return errors.New("database DSN is required (use --dsn flag or DATABASE_DSN)")
	}

	if o.HMACSecretFile == "" {
		return errors.New("hmac secret file is required (use --hmac-secret-file flag)")
	}
	if _, err := os.Stat(o.HMACSecretFile); os.IsNotExist(err) {
		return errors.New("hmac secret file does not exist: " + o.HMACSecretFile)
	}

	return nil
}

func setupLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

func loadConfig(log *logrus.Logger, configPath string) *config.Manager {
	if configPath == "" {
		log.Info("No config file given, using built-in defaults")
		return config.NewStatic(types.DefaultEngineConfig(), log)
	}

	log.Infof("Loading config from %s", configPath)
	manager, err := config.NewManager(configPath, log)
	if err != nil {
		log.WithFields(logrus.Fields{
			"config_path": configPath,
			"error":       err,
		}).Fatal("Failed to load config file")
	}
	return manager
}

func connectDatabase(log *logrus.Logger, dsn string) *gorm.DB {
	log.Info("Connecting to PostgreSQL database")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.WithField("error", err).Fatal("Failed to connect to database")
	}
	return db
}

func getHMACSecret(path string) []byte {
	secret, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	// Trim any trailing newlines/whitespace from the secret
	return []byte(strings.TrimSpace(string(secret)))
}

func main() {
	// Local development keeps DSN and friends in a .env file.
	_ = godotenv.Load()

	log := setupLogger()
	opts := NewOptions()
	if opts.DatabaseDSN == "" {
		opts.DatabaseDSN = os.Getenv("DATABASE_DSN")
	}

	if err := opts.Validate(); err != nil {
		log.WithField("error", err).Fatal("Invalid command-line options")
	}

	configManager := loadConfig(log, opts.ConfigPath)
	defer configManager.Close()
	cfg := configManager.Get()

	db := connectDatabase(log, opts.DatabaseDSN)
	hmacSecret := getHMACSecret(opts.HMACSecretFile)

	entityRepo := repositories.NewGORMEntityRepository(db)
	incidentRepo := repositories.NewGORMIncidentRepository(db)
	maintenanceRepo := repositories.NewGORMMaintenanceRepository(db)
	uptimeRepo := repositories.NewGORMUptimeRepository(db)
	settingsRepo := repositories.NewGORMSettingsRepository(db)

	settingsStore := settings.NewStore(settingsRepo, configManager, log)
	checkRegistry := registry.New(entityRepo, log)
	engine := transition.NewEngine(entityRepo, incidentRepo, log)

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	schedulerMetrics := scheduler.NewMetrics(metricsRegistry)

	grace := time.Duration(cfg.ProbeGraceSeconds) * time.Second
	sched := scheduler.New(checkRegistry, engine, settingsStore, probes.New, grace, schedulerMetrics, log)

	aggregator := uptime.NewAggregator(entityRepo, incidentRepo, maintenanceRepo, uptimeRepo, cfg.Location(), cfg.DegradedUptimeWeight, log)
	dailyJob := uptime.NewDailyJob(aggregator, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := configManager.Watch(ctx); err != nil {
		log.WithField("error", err).Error("Failed to watch config file, continuing without hot reload")
	}
	configManager.OnReload(func(*types.EngineConfig) {
		log.Info("Config reloaded; scheduler fallbacks apply from the next tick, probe grace, timezone, and degraded weight changes require a restart")
	})

	go sched.Run(ctx)
	go dailyJob.Run(ctx)

	apiHandlers := NewHandlers(log, entityRepo, settingsStore, sched, aggregator)
	server := NewServer(apiHandlers, metricsRegistry, log, opts.CORSOrigin, hmacSecret)

	addr := ":" + opts.Port
	// Run server in a goroutine
	go func() {
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.WithFields(logrus.Fields{
				"address": addr,
				"error":   err,
			}).Fatal("Server failed to start")
		}
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.WithField("error", err).Error("Graceful shutdown failed")
	}
}
