package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/flight-rush/internal/repository"
	"github.com/prohmpiriya/flight-rush/internal/service"
	"github.com/prohmpiriya/flight-rush/pkg/logger"
	"go.uber.org/zap"
)

// AvailabilityWorkerConfig contains configuration for the availability worker
type AvailabilityWorkerConfig struct {
	// RefreshInterval is the interval between mirror refresh sweeps
	RefreshInterval time.Duration
	// BatchSize is the number of upcoming flights refreshed per sweep
	BatchSize int
}

// DefaultAvailabilityWorkerConfig returns default configuration
func DefaultAvailabilityWorkerConfig() *AvailabilityWorkerConfig {
	return &AvailabilityWorkerConfig{
		RefreshInterval: 30 * time.Second,
		BatchSize:       500,
	}
}

// AvailabilityWorker keeps the Redis availability mirror warm for upcoming
// flights. Allocators refresh the mirror after each quota movement; this
// sweep repopulates entries that fell out via TTL on quiet flights.
type AvailabilityWorker struct {
	flightRepo repository.FlightRepository
	cache      service.FlightCache
	config     *AvailabilityWorkerConfig
	log        *logger.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool

	// Stats
	totalRefreshed   int64
	lastSweepTime    time.Time
	lastRefreshCount int
}

// NewAvailabilityWorker creates a new availability worker
func NewAvailabilityWorker(
	flightRepo repository.FlightRepository,
	cache service.FlightCache,
	config *AvailabilityWorkerConfig,
) *AvailabilityWorker {
	if config == nil {
		config = DefaultAvailabilityWorkerConfig()
	}

	return &AvailabilityWorker{
		flightRepo: flightRepo,
		cache:      cache,
		config:     config,
		log:        logger.Get(),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the availability worker
func (w *AvailabilityWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("availability worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting availability worker",
		zap.Duration("refresh_interval", w.config.RefreshInterval),
		zap.Int("batch_size", w.config.BatchSize),
	)

	w.wg.Add(1)
	go w.sweep(ctx)

	return nil
}

// Stop stops the availability worker
func (w *AvailabilityWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping availability worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Availability worker stopped")
}

// sweep periodically refreshes mirrors for upcoming flights
func (w *AvailabilityWorker) sweep(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.RefreshInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.refreshUpcoming(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.refreshUpcoming(ctx)
		}
	}
}

// refreshUpcoming refreshes the mirror for one batch of upcoming flights
func (w *AvailabilityWorker) refreshUpcoming(ctx context.Context) {
	w.mu.Lock()
	w.lastSweepTime = time.Now()
	w.mu.Unlock()

	ids, err := w.flightRepo.ListUpcomingIDs(ctx, w.config.BatchSize)
	if err != nil {
		w.log.Error("Failed to list upcoming flights", zap.Error(err))
		return
	}

	if len(ids) == 0 {
		return
	}

	refreshed := 0
	for _, id := range ids {
		if err := w.cache.Refresh(ctx, id); err != nil {
			w.log.Warn("Failed to refresh availability mirror",
				zap.Int64("flight_id", id),
				zap.Error(err),
			)
			continue
		}
		refreshed++
	}

	w.mu.Lock()
	w.totalRefreshed += int64(refreshed)
	w.lastRefreshCount = refreshed
	w.mu.Unlock()

	w.log.Debug("Availability sweep complete",
		zap.Int("flights", len(ids)),
		zap.Int("refreshed", refreshed),
	)
}

// GetStats returns worker statistics
func (w *AvailabilityWorker) GetStats() *AvailabilityWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &AvailabilityWorkerStats{
		IsRunning:        w.running,
		TotalRefreshed:   w.totalRefreshed,
		LastSweepTime:    w.lastSweepTime,
		LastRefreshCount: w.lastRefreshCount,
	}
}

// AvailabilityWorkerStats contains worker statistics
type AvailabilityWorkerStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalRefreshed   int64     `json:"total_refreshed"`
	LastSweepTime    time.Time `json:"last_sweep_time"`
	LastRefreshCount int       `json:"last_refresh_count"`
}
