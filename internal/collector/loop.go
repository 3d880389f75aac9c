// Package collector runs the periodic fetch, compute and publish cycle.
package collector

import (
	"context"
	"sync/atomic"
	"time"

	"pulseboard/internal/alert"
	"pulseboard/internal/board"
	"pulseboard/internal/growth"
	"pulseboard/internal/score"
	"pulseboard/internal/tracker"
	"pulseboard/internal/tracker/store"
	"pulseboard/pkg/logger"
	"pulseboard/pkg/metrics"
)

// Fetcher retrieves a fresh snapshot for one account. The collector treats
// any error as a per-account failure and carries the previous entry
// forward.
type Fetcher interface {
	Fetch(ctx context.Context, username string) (tracker.AccountSnapshot, error)
}

// MarketProvider optionally attaches exchange data to an account. A nil
// provider or a provider error leaves the market field empty; market data
// never fails a tick.
type MarketProvider interface {
	Market(ctx context.Context, username string) (*tracker.MarketData, error)
}

// State is the loop's current phase, exposed for observability.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateComputing  State = "computing"
	StatePublishing State = "publishing"
)

// Config holds the loop's tuneables.
type Config struct {
	Accounts     []string
	TickInterval time.Duration
	FetchTimeout time.Duration
	Workers      int
	RetentionAge time.Duration
}

// Loop is the collector control loop. Run is the single writer of the
// publisher; everything else only reads.
type Loop struct {
	cfg       Config
	fetcher   Fetcher
	market    MarketProvider
	store     store.Store
	calc      *growth.Calculator
	scorer    *score.Engine
	alerts    *alert.Generator
	publisher *board.Publisher
	clock     Clock
	logger    *logger.Logger

	state atomic.Value // State
	ticks atomic.Uint64
}

// NewLoop wires a collector loop. market may be nil.
func NewLoop(
	cfg Config,
	fetcher Fetcher,
	market MarketProvider,
	s store.Store,
	calc *growth.Calculator,
	scorer *score.Engine,
	alerts *alert.Generator,
	publisher *board.Publisher,
	clock Clock,
	log *logger.Logger,
) *Loop {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	l := &Loop{
		cfg:       cfg,
		fetcher:   fetcher,
		market:    market,
		store:     s,
		calc:      calc,
		scorer:    scorer,
		alerts:    alerts,
		publisher: publisher,
		clock:     clock,
		logger:    log.WithField("module", "collector"),
	}
	l.state.Store(StateIdle)
	return l
}

// State returns the loop's current phase.
func (l *Loop) State() State {
	return l.state.Load().(State)
}

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Run executes ticks until ctx is cancelled. The first tick fires
// immediately; an in-flight tick always drains before Run returns, so a
// published snapshot is never half-written.
func (l *Loop) Run(ctx context.Context) {
	l.logger.WithFields(map[string]interface{}{
		"accounts": len(l.cfg.Accounts),
		"interval": l.cfg.TickInterval.String(),
		"workers":  l.cfg.Workers,
	}).Info("Collector loop started")

	l.runTick(ctx)

	ticker := l.clock.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Collector loop stopped")
			return
		case <-ticker.C():
			l.runTick(ctx)
		}
	}
}

// runTick executes one full cycle. Tick-level failures are logged and
// absorbed; the loop always reaches the next tick.
func (l *Loop) runTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := l.clock.Now()
	err := l.Tick(ctx, start)
	l.state.Store(StateIdle)

	n := l.ticks.Add(1)
	elapsed := l.clock.Now().Sub(start)
	metrics.RecordTick(elapsed.Seconds())

	if err != nil {
		l.logger.WithError(err).WithFields(map[string]interface{}{
			"tick":     n,
			"duration": elapsed.String(),
		}).Error("Tick failed")
		return
	}

	l.logger.WithFields(map[string]interface{}{
		"tick":     n,
		"duration": elapsed.String(),
	}).Info("Tick completed")
}
