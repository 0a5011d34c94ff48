package scheduler

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/predictware/roundkeeper/internal/config"
	"github.com/predictware/roundkeeper/internal/interfaces"
	"github.com/predictware/roundkeeper/internal/lib"
	"github.com/predictware/roundkeeper/internal/repositories/contracts"
	"go.uber.org/atomic"
)

var ErrSubmission = errors.New("executeRound submission failed")

// EndpointSelector resolves and caches one healthy endpoint per network.
type EndpointSelector interface {
	Select(ctx context.Context, network string) (string, error)
	Invalidate(network string)
}

// FeeEstimator resolves the gas price for a market. It never fails; oracle
// problems resolve to the static fallback internally.
type FeeEstimator interface {
	GasPrice(ctx context.Context, market config.Market) string
}

// RoundContract is the round-lifecycle surface of one prediction contract.
type RoundContract interface {
	CurrentEpoch(ctx context.Context) (*big.Int, error)
	Timestamps(ctx context.Context, epoch *big.Int) (contracts.RoundTimestamps, error)
	BlockTime(ctx context.Context) (time.Time, error)
	ExecuteRound(ctx context.Context, gasPriceWei string) (string, error)
	Endpoint() string
}

// HandleRegistry memoizes contract handles per market.
type HandleRegistry interface {
	Handle(ctx context.Context, market config.Market) (RoundContract, error)
	Drop(marketTitle string)
}

// Timing groups the watcher's knobs, all sourced from config defaults.
type Timing struct {
	LockMargin    time.Duration
	ReadTimeout   time.Duration
	SubmitTimeout time.Duration
	BackoffMin    time.Duration
	BackoffMax    time.Duration
}

// Watcher drives one market's round lifecycle:
//
//	checking endpoint -> waiting for lock -> executing
//	  -> success: sleep the round interval, execute again
//	  -> failure: backoff, re-enter the full check cycle
//
// It runs until its context is cancelled. Any cycle error is absorbed here
// with exponential backoff so one bad endpoint or reverted transaction can
// never terminate the market's loop.
type Watcher struct {
	// config
	market config.Market
	timing Timing

	// state
	backoff *backoff
	state   atomic.Pointer[Snapshot]

	// deps
	selector EndpointSelector
	registry HandleRegistry
	fees     FeeEstimator
	log      interfaces.ILogger

	// overridable in tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewWatcher(market config.Market, selector EndpointSelector, registry HandleRegistry, fees FeeEstimator, timing Timing, log interfaces.ILogger) *Watcher {
	return &Watcher{
		market:   market,
		timing:   timing,
		backoff:  newBackoff(timing.BackoffMin, timing.BackoffMax),
		selector: selector,
		registry: registry,
		fees:     fees,
		log:      log,
		now:      time.Now,
		sleep:    lib.Sleep,
	}
}

// ID makes Watcher storable in a lib.Collection keyed by market title.
func (w *Watcher) ID() string {
	return w.market.Title
}

// State returns the last published snapshot.
func (w *Watcher) State() Snapshot {
	s := w.state.Load()
	if s == nil {
		return Snapshot{Market: w.market.Title, Network: w.market.Network}
	}
	return *s
}

func (w *Watcher) Run(ctx context.Context) error {
	w.log.Infof("watching market %s on network %s, round interval %s", w.market.Title, w.market.Network, w.market.Interval())

	for {
		err := w.cycle(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := w.backoff.Next()
		w.publish(func(s *Snapshot) {
			s.LastError = err.Error()
			s.Failures = w.backoff.Attempt()
		})
		w.log.Warnf("check cycle failed (attempt %d), retrying in %s: %s", w.backoff.Attempt(), delay, err)

		// a failed cycle distrusts both the endpoint and the handle pinned
		// to it, the next cycle re-selects and re-binds
		w.selector.Invalidate(w.market.Network)
		w.registry.Drop(w.market.Title)

		if err := w.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// cycle performs one full pass: resolve endpoint, read round state, wait out
// the lock deadline, then hand over to the execute loop.
func (w *Watcher) cycle(ctx context.Context) error {
	w.publish(func(s *Snapshot) {
		s.Phase = PhaseCheckingEndpoint
		s.Endpoint = ""
	})

	endpoint, err := w.selector.Select(ctx, w.market.Network)
	if err != nil {
		return err
	}

	handle, err := w.registry.Handle(ctx, w.market)
	if err != nil {
		return err
	}

	w.log.Debugf("round check started via %s", endpoint)

	epoch, err := w.currentEpoch(ctx, handle)
	if err != nil {
		return err
	}

	timestamps, err := w.roundTimestamps(ctx, handle, epoch)
	if err != nil {
		return err
	}

	now := w.chainNow(ctx, handle)

	wait := timestamps.LockTime().Sub(now)
	if wait > 0 {
		wait += w.timing.LockMargin
		w.publish(func(s *Snapshot) {
			s.Phase = PhaseWaitingForLock
			s.Epoch = epoch.String()
			s.Endpoint = endpoint
			s.NextExecution = w.now().Add(wait)
		})
		w.log.Infof("round %s locks in %s, sleeping", epoch, wait)
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	} else {
		w.log.Infof("round %s is past its lock deadline, executing now", epoch)
	}

	return w.executeRounds(ctx, handle, endpoint)
}

// executeRounds submits executeRound and, on success, re-arms itself after
// the market's fixed interval. Any submission failure returns control to the
// full check cycle.
func (w *Watcher) executeRounds(ctx context.Context, handle RoundContract, endpoint string) error {
	for {
		w.publish(func(s *Snapshot) {
			s.Phase = PhaseExecuting
			s.Endpoint = endpoint
		})

		gasPrice := w.fees.GasPrice(ctx, w.market)
		w.log.Infof("calling executeRound, gas price %s wei", gasPrice)

		submitCtx, cancel := context.WithTimeout(ctx, w.timing.SubmitTimeout)
		txHash, err := handle.ExecuteRound(submitCtx, gasPrice)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lib.WrapError(ErrSubmission, err)
		}

		w.backoff.Reset()
		interval := w.market.Interval()
		w.publish(func(s *Snapshot) {
			s.Phase = PhaseWaitingForLock
			s.LastTxHash = txHash
			s.LastError = ""
			s.Failures = 0
			s.NextExecution = w.now().Add(interval)
		})
		w.log.Infof("transaction hash: %s", txHash)
		w.log.Infof("next execution in %s", interval)

		if err := w.sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func (w *Watcher) currentEpoch(ctx context.Context, handle RoundContract) (*big.Int, error) {
	readCtx, cancel := context.WithTimeout(ctx, w.timing.ReadTimeout)
	defer cancel()
	return handle.CurrentEpoch(readCtx)
}

func (w *Watcher) roundTimestamps(ctx context.Context, handle RoundContract, epoch *big.Int) (contracts.RoundTimestamps, error) {
	readCtx, cancel := context.WithTimeout(ctx, w.timing.ReadTimeout)
	defer cancel()
	return handle.Timestamps(readCtx, epoch)
}

// chainNow prefers the latest block timestamp as "now" and falls back to the
// local clock when the endpoint returns no block.
func (w *Watcher) chainNow(ctx context.Context, handle RoundContract) time.Time {
	readCtx, cancel := context.WithTimeout(ctx, w.timing.ReadTimeout)
	defer cancel()

	t, err := handle.BlockTime(readCtx)
	if err != nil {
		w.log.Debugf("no latest block, using local clock: %s", err)
		return w.now()
	}
	return t
}

func (w *Watcher) publish(mutate func(s *Snapshot)) {
	next := Snapshot{Market: w.market.Title, Network: w.market.Network}
	if prev := w.state.Load(); prev != nil {
		next = *prev
	}
	mutate(&next)
	next.UpdatedAt = w.now()
	w.state.Store(&next)
}
