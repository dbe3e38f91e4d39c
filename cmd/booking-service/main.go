package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"bus-ticketing/internal/booking"
	"bus-ticketing/internal/booking/api"
	bookingdb "bus-ticketing/internal/booking/db"
	"bus-ticketing/internal/booking/qr"
	"bus-ticketing/internal/config"
	"bus-ticketing/internal/kafka"
	"bus-ticketing/internal/logger"
	"bus-ticketing/internal/payment"
	"bus-ticketing/internal/promo"
	"bus-ticketing/internal/seatlock"
	"bus-ticketing/internal/sse"
	tripdb "bus-ticketing/internal/trip/db"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger("booking-service")
	defer log.Close()

	ctx := context.Background()

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

	tripdb.Migrate(bunDB)
	bookingdb.Migrate(bunDB)

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("failed to connect to Redis: %v", err))
	}

	// --- Kafka ---
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		topics := []string{
			cfg.Kafka.Topics.SeatsLocked,
			cfg.Kafka.Topics.SeatsUnlocked,
			cfg.Kafka.Topics.SeatsBooked,
			cfg.Kafka.Topics.BookingConfirmed,
			cfg.Kafka.Topics.BookingCancelled,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("topic bootstrap failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka, log)
		defer producer.Close()
	}

	// --- Wiring ---
	trips := &tripdb.DB{Bun: bunDB}
	bookings := &bookingdb.DB{Bun: bunDB}
	hub := sse.NewSeatMapHub()

	lockStore := seatlock.NewRedisStore(redisClient, cfg.Locks.SeatLockTTL)
	locks := seatlock.NewManager(lockStore, trips, producer, hub, log)

	gateway := payment.NewClient(cfg.Payment, http.DefaultClient)
	promoValidator := promo.NewHTTPValidator(cfg.Fare.PromoURL, http.DefaultClient, log)
	qrGen := qr.NewGenerator(cfg.Booking.QRSecret)

	service := booking.NewService(bookings, trips, locks, producer,
		promoValidator, gateway, qrGen, cfg.Fare, cfg.Booking, cfg.Payment.Currency, log)

	sweeper := booking.NewSweeper(service, cfg.Booking.SweepInterval, cfg.Booking.PendingPaymentWindow, log)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go sweeper.Start(sweepCtx)

	handler := api.NewHandler(service, locks, hub, log)

	// --- Router ---
	r := chi.NewRouter()
	handler.Routes(r)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "booking service running on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "shutdown signal received, cleaning up")

	stopSweeper()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("SERVER", fmt.Sprintf("server forced to shutdown: %v", err))
	}
	log.Info("SERVER", "server exited gracefully")
}
