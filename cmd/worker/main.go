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
	"github.com/pankajsagvekar/flight-booking-simulator/internal/cache"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/email"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/kafka"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/logger"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/repository"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/service/booking"
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
	bookingService := booking.NewBookingService(
		bookingRepo,
		flightRepo,
		seatRepo,
		redisCache,
		producer,
		booking.AlwaysSucceed{},
		zlog,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.DefaultHoldMinutes)*time.Minute,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, zlog)
	defer consumer.Close()

	emailSender := email.NewSender(zlog)

	go func() {
		if err := consumer.Consume(ctx, emailSender.Send); err != nil {
			zlog.Info("consumer stopped", zap.Error(err))
		}
	}()

	sweepEvery := time.Duration(cfg.Worker.ExpirationSweepSeconds) * time.Second
	if sweepEvery <= 0 {
		sweepEvery = 30 * time.Second
	}
	expireTicker := time.NewTicker(sweepEvery)
	defer expireTicker.Stop()

	zlog.Info("expiry worker started", zap.Duration("sweep_interval", sweepEvery))

	for {
		select {
		case <-expireTicker.C:
			expired, err := bookingService.ExpireHeldBookings(ctx)
			if err != nil {
				zlog.Error("expire bookings", zap.Error(err))
				continue
			}
			if len(expired) > 0 {
				zlog.Info("expired bookings", zap.Int("count", len(expired)))
			}
		case <-ctx.Done():
			zlog.Info("shutting down")
			return
		}
	}
}
