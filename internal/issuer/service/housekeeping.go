package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/tokentrust/internal/issuer/store"
)

// HousekeepingService sweeps expired refresh token entries out of stores
// that keep them past their TTL (sqlite, memory). Redis expires its own.
type HousekeepingService struct {
	Sweeper  store.Sweeper
	Logger   *slog.Logger
	Interval time.Duration

	// SweepTimeout bounds a single DeleteExpired call.
	SweepTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHousekeepingService defaults a non-positive interval to one hour.
func NewHousekeepingService(sweeper store.Sweeper, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HousekeepingService{
		Sweeper:      sweeper,
		Logger:       logger,
		Interval:     interval,
		SweepTimeout: 30 * time.Second,
	}
}

// Start sweeps once, then every Interval until Stop.
func (s *HousekeepingService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop cancels the loop and waits for a running sweep to return.
func (s *HousekeepingService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.Logger.Info("housekeeping stopped")
}

// Run blocks until ctx is done.
func (s *HousekeepingService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes expired entries once and reports how many went.
func (s *HousekeepingService) Sweep(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, s.SweepTimeout)
	defer cancel()

	n, err := s.Sweeper.DeleteExpired(ctx)
	if err != nil {
		s.Logger.Error("sweep expired refresh tokens", "err", err)
		return 0
	}
	if n > 0 {
		s.Logger.Debug("swept expired refresh tokens", "deleted", n)
	}
	return n
}
