package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mwhitford/reddit-profiler/api"
	"github.com/mwhitford/reddit-profiler/db"
	"github.com/mwhitford/reddit-profiler/pipeline"
	"github.com/mwhitford/reddit-profiler/utils"
)

func main() {
	envPath := flag.String("env", ".env", "Path to .env file")
	logLevel := flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	flag.Parse()

	log := setupLogger(*logLevel)
	log.Info("Starting Reddit Profiler")

	config, err := utils.LoadConfig(*envPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"cache_path":  config.Cache.Path,
		"server_port": config.Server.Port,
		"timezone":    config.Analysis.DefaultTimezone,
	}).Info("Configuration loaded")

	cache, err := db.NewCache(config.Cache.Path, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open lookup cache")
	}
	defer cache.Close()

	lookup := api.NewRedditAPI(
		config.Lookup.UserAgent,
		config.Lookup.MaxRequestsPerMinute,
		log,
	)
	search := api.NewArchiveSearchAPI(config.Lookup.UserAgent, log)

	server := newServer(config, cache, pipeline.New(cache, lookup, search, log), log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go server.start(ctx)

	waitForShutdown(cancel, log)
}

// setupLogger sets up the logger with the specified log level
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// waitForShutdown waits for a shutdown signal
func waitForShutdown(cancel context.CancelFunc, log *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutdown signal received")

	cancel()

	time.Sleep(1 * time.Second)
	log.Info("Reddit Profiler stopped")
}
