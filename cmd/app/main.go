package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pankajsagvekar/flight-booking-simulator/config"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/bootstrap"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/cache"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/kafka"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/logger"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/repository"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/service/booking"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/service/flights"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Dir, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		zlog.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	flightRepo := repository.NewFlightRepository(pool)
	seatRepo := repository.NewSeatRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	flightService := flights.NewFlightService(flightRepo, seatRepo, redisCache)
	bookingService := booking.NewBookingService(
		bookingRepo,
		flightRepo,
		seatRepo,
		redisCache,
		producer,
		newOutcomeDecider(cfg.Payment),
		zlog,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.DefaultHoldMinutes)*time.Minute,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	if err := bootstrap.Run(ctx, cfg, zlog, flightService, bookingService); err != nil {
		zlog.Fatal("server error", zap.Error(err))
	}
}

func newOutcomeDecider(cfg config.PaymentConfig) booking.OutcomeDecider {
	if cfg.Mode == "random" {
		return booking.NewRandomOutcome(cfg.SuccessRate, time.Now().UnixNano())
	}
	return booking.AlwaysSucceed{}
}
