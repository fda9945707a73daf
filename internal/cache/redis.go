package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pankajsagvekar/flight-booking-simulator/config"
	"github.com/pankajsagvekar/flight-booking-simulator/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL: flightsTTL,
	}
}

func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	data, err := c.client.Get(ctx, flightsKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var flights []domain.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, flightsKey(), payload, c.flightsTTL).Err()
}

func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	return c.client.Del(ctx, flightsKey()).Err()
}

// AcquireSeatLocks takes a short-lived SetNX lock per requested seat. If any
// seat is already locked, the locks taken so far are released and false is
// returned. The lock only narrows the race window before the store's atomic
// reserve; correctness does not depend on it.
func (c *RedisCache) AcquireSeatLocks(ctx context.Context, flightID int64, seatNumbers []string, ttl time.Duration) (bool, error) {
	acquired := make([]string, 0, len(seatNumbers))
	for _, seat := range seatNumbers {
		ok, err := c.client.SetNX(ctx, seatLockKey(flightID, seat), "locked", ttl).Result()
		if err != nil || !ok {
			_ = c.ReleaseSeatLocks(ctx, flightID, acquired)
			return false, err
		}
		acquired = append(acquired, seat)
	}
	return true, nil
}

func (c *RedisCache) ReleaseSeatLocks(ctx context.Context, flightID int64, seatNumbers []string) error {
	for _, seat := range seatNumbers {
		if err := c.client.Del(ctx, seatLockKey(flightID, seat)).Err(); err != nil {
			return err
		}
	}
	return nil
}

func flightsKey() string {
	return "cache:flights"
}

func seatLockKey(flightID int64, seat string) string {
	return fmt.Sprintf("lock:flight:%d:seat:%s", flightID, seat)
}
