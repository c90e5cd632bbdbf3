/*
scheduler.go - Automated closing of stale shifts

PURPOSE:
  A shift left active past midnight can never be found as today's active
  shift again, so nothing could be recorded against it and its resumen
  would never be written. The scheduler periodically closes such shifts
  as the system user, without cuadre.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Closing is idempotent: a closed shift is no longer "active before today"

CONFIGURATION:
  - CheckInterval: How often to check (AUTOCLOSE_INTERVAL_MINUTES)
  - Enabled: Whether scheduler is active (AUTOCLOSE_ENABLED)

USAGE:
  scheduler := NewAutoCloseScheduler(jornadas)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - jornada/service.go: CloseStale
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// StaleCloser closes shifts left active on past dates.
type StaleCloser interface {
	CloseStale(ctx context.Context) (int, error)
}

// AutoCloseScheduler periodically closes stale shifts.
type AutoCloseScheduler struct {
	Closer        StaleCloser
	CheckInterval time.Duration
	Enabled       bool
	// Timeout bounds a single run.
	Timeout time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAutoCloseScheduler creates a new scheduler.
func NewAutoCloseScheduler(closer StaleCloser) *AutoCloseScheduler {
	return &AutoCloseScheduler{
		Closer:        closer,
		CheckInterval: 30 * time.Minute,
		Enabled:       true,
		Timeout:       time.Minute,
	}
}

// Start begins the scheduler.
func (s *AutoCloseScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		log.Info().Str("component", "scheduler").Msg("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	log.Info().Str("component", "scheduler").Dur("interval", s.CheckInterval).Msg("started")
}

// Stop stops the scheduler and waits for a running check to finish.
func (s *AutoCloseScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		log.Info().Str("component", "scheduler").Msg("stopped")
	}
}

func (s *AutoCloseScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow()

	for {
		select {
		case <-s.ticker.C:
			s.RunNow()
		case <-s.stop:
			return
		}
	}
}

// RunNow performs one check and returns how many shifts were closed.
func (s *AutoCloseScheduler) RunNow() int {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	closed, err := s.Closer.CloseStale(ctx)
	if err != nil {
		log.Error().Err(err).Str("component", "scheduler").Msg("close stale shifts")
		return 0
	}
	if closed > 0 {
		log.Info().Str("component", "scheduler").Int("closed", closed).Msg("closed stale shifts")
	}
	return closed
}
