package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prohmpiriya/flight-rush/internal/repository"
	"github.com/prohmpiriya/flight-rush/pkg/logger"
	redispkg "github.com/prohmpiriya/flight-rush/pkg/redis"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FlightCache mirrors flight availability into Redis for read surfaces. The
// mirror is never authoritative: allocators admit bookings through the
// version-gated updates in Postgres only.
type FlightCache interface {
	// Refresh re-reads the flight's availability from Postgres and rewrites
	// the mirror. Concurrent refreshes of the same flight share one fill.
	Refresh(ctx context.Context, flightID int64) error

	// AvailabilityBatch returns mirrored counts for the given flights.
	// Flights without a mirror entry are omitted; a Redis failure returns an
	// empty map so callers degrade to their own data.
	AvailabilityBatch(ctx context.Context, flightIDs []int64) map[int64]int
}

// RedisFlightCache implements FlightCache over the shared Redis client
type RedisFlightCache struct {
	redis      *redispkg.Client
	flightRepo repository.FlightRepository
	ttl        time.Duration
	sfGroup    singleflight.Group
	log        *logger.Logger
}

// NewRedisFlightCache creates a new RedisFlightCache
func NewRedisFlightCache(redis *redispkg.Client, flightRepo repository.FlightRepository, ttl time.Duration) *RedisFlightCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisFlightCache{
		redis:      redis,
		flightRepo: flightRepo,
		ttl:        ttl,
		log:        logger.Get(),
	}
}

func availabilityKey(flightID int64) string {
	return fmt.Sprintf("flight:avail:%d", flightID)
}

// Refresh re-reads the flight's availability and rewrites the mirror using
// the single-flight pattern. A burst of bookings on one flight collapses to
// a single Postgres read and Redis write.
func (c *RedisFlightCache) Refresh(ctx context.Context, flightID int64) error {
	key := availabilityKey(flightID)

	_, err, _ := c.sfGroup.Do(key, func() (interface{}, error) {
		return nil, c.doRefresh(ctx, flightID, key)
	})

	return err
}

func (c *RedisFlightCache) doRefresh(ctx context.Context, flightID int64, key string) error {
	flight, err := c.flightRepo.GetByID(ctx, flightID)
	if err != nil {
		// Drop a stale mirror entry for a flight that no longer exists
		c.redis.Del(ctx, key)
		return fmt.Errorf("failed to refresh availability for flight %d: %w", flightID, err)
	}

	if err := c.redis.Set(ctx, key, flight.AvailableTickets, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write availability mirror for flight %d: %w", flightID, err)
	}

	return nil
}

// AvailabilityBatch reads mirrored counts with one MGET. Missing or
// unparsable entries are omitted; callers keep their own values for those.
func (c *RedisFlightCache) AvailabilityBatch(ctx context.Context, flightIDs []int64) map[int64]int {
	counts := make(map[int64]int, len(flightIDs))
	if len(flightIDs) == 0 {
		return counts
	}

	keys := make([]string, len(flightIDs))
	for i, id := range flightIDs {
		keys[i] = availabilityKey(id)
	}

	values, err := c.redis.Client().MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn("availability mirror read failed, serving database values",
			zap.Error(err),
		)
		return counts
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		count, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		counts[flightIDs[i]] = count
	}

	return counts
}

var _ FlightCache = (*RedisFlightCache)(nil)
