package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/predictware/roundkeeper/internal/config"
	"github.com/predictware/roundkeeper/internal/interfaces"
	"github.com/predictware/roundkeeper/internal/lib"
)

// WatcherFactory builds the watcher for one market. Kept as a factory so the
// scheduler stays wiring-free and testable with fakes.
type WatcherFactory func(market config.Market) *Watcher

// Scheduler starts one watcher task per configured market with a staggered
// delay between starts, then supervises them until the context is cancelled.
// Watchers absorb their own failures; a task exiting with an error is a bug
// and stops the scheduler so the supervisor restarts the process.
type Scheduler struct {
	// config
	markets []config.Market
	stagger time.Duration

	// state
	watchers *lib.Collection[*Watcher]
	tasks    []*lib.Task

	// deps
	factory WatcherFactory
	log     interfaces.ILogger
}

func NewScheduler(markets []config.Market, factory WatcherFactory, stagger time.Duration, log interfaces.ILogger) *Scheduler {
	return &Scheduler{
		markets:  markets,
		stagger:  stagger,
		watchers: lib.NewCollection[*Watcher](),
		factory:  factory,
		log:      log,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	exited := make(chan *lib.Task, len(s.markets))

	for i, market := range s.markets {
		// stagger starts so all markets do not hit a shared endpoint at once
		if i > 0 {
			if err := lib.Sleep(ctx, s.stagger); err != nil {
				return err
			}
		}

		watcher := s.factory(market)
		s.watchers.Store(watcher)

		task := lib.NewTask(watcher, market.Title)
		task.Start(ctx)
		s.tasks = append(s.tasks, task)

		go func(t *lib.Task) {
			<-t.Done()
			exited <- t
		}(task)

		s.log.Infof("started watcher for market %s", market.Title)
	}

	select {
	case <-ctx.Done():
		s.stopAll()
		return ctx.Err()
	case t := <-exited:
		err := t.Err()
		s.stopAll()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("market %s watcher exited: %w", t.Name(), err)
		}
		return err
	}
}

func (s *Scheduler) stopAll() {
	for _, t := range s.tasks {
		<-t.Stop()
	}
}

// Snapshots returns the current state of every market watcher, ordered by
// the configured market order.
func (s *Scheduler) Snapshots() []Snapshot {
	snapshots := make([]Snapshot, 0, len(s.markets))
	for _, market := range s.markets {
		if w, ok := s.watchers.Load(market.Title); ok {
			snapshots = append(snapshots, w.State())
		}
	}
	return snapshots
}

// Snapshot returns the state of one market watcher by title.
func (s *Scheduler) Snapshot(marketTitle string) (Snapshot, bool) {
	w, ok := s.watchers.Load(marketTitle)
	if !ok {
		return Snapshot{}, false
	}
	return w.State(), true
}
