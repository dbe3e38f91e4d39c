package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"bus-ticketing/internal/config"
	"bus-ticketing/internal/kafka"
	"bus-ticketing/internal/logger"
	"bus-ticketing/internal/tracking"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger("tracking-service")
	defer log.Close()

	// --- PostgreSQL ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("failed to connect to Postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	tracking.Migrate(bunDB)

	// --- Kafka ---
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topics.TripStatus}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("topic bootstrap failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka, log)
		defer producer.Close()
	}

	store := &tracking.DB{Bun: bunDB}
	evaluator := tracking.NewEvaluator(store, producer, log,
		cfg.Tracking.SleepThreshold, cfg.Tracking.OfflineThreshold)
	runner := tracking.NewRunner(evaluator, cfg.Tracking.Interval, log)

	runCtx, cancel := context.WithCancel(context.Background())
	go runner.Start(runCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("TRACKING", "shutdown signal received, stopping evaluator")

	cancel()
	runner.Stop()
	log.Info("TRACKING", "tracking service exited gracefully")
}
