package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/predictware/roundkeeper/internal/config"
	"github.com/predictware/roundkeeper/internal/handlers/httphandlers"
	"github.com/predictware/roundkeeper/internal/lib"
	"github.com/predictware/roundkeeper/internal/repositories/contracts"
	"github.com/predictware/roundkeeper/internal/repositories/gas"
	"github.com/predictware/roundkeeper/internal/repositories/rpc"
	"github.com/predictware/roundkeeper/internal/scheduler"
)

func main() {
	var cfg config.Config
	err := config.LoadConfig(&cfg, &os.Args)
	if err != nil {
		panic(err)
	}
	cfg.SetDefaults()

	log, err := lib.NewLogger(cfg.Log.LevelApp, cfg.Log.Color, cfg.Log.IsProd, cfg.Log.JSON, logFilePath(&cfg, "app.log"))
	if err != nil {
		panic(err)
	}

	schedulerLog, err := lib.NewLogger(cfg.Log.LevelScheduler, cfg.Log.Color, cfg.Log.IsProd, cfg.Log.JSON, logFilePath(&cfg, "scheduler.log"))
	if err != nil {
		panic(err)
	}

	rpcLog, err := lib.NewLogger(cfg.Log.LevelRPC, cfg.Log.Color, cfg.Log.IsProd, cfg.Log.JSON, logFilePath(&cfg, "rpc.log"))
	if err != nil {
		panic(err)
	}

	defer func() {
		_ = log.Sync()
	}()

	markets, err := config.LoadMarkets(cfg.Markets.ConfigPath)
	if err != nil {
		log.Errorf("invalid markets config: %s", err)
		os.Exit(1)
	}

	if _, err := lib.PrivKeyStringToAddr(cfg.Wallet.PrivateKey); err != nil {
		log.Errorf("invalid wallet private key: %s", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-shutdownChan
		log.Warnf("Received signal: %s", s)
		cancel()

		s = <-shutdownChan
		log.Warnf("Received signal: %s. Forcing exit...", s)
		os.Exit(1)
	}()

	selector := rpc.NewSelector(markets.Networks, cfg.Blockchain.ProbeTimeout, rpc.NewProber(), rpcLog)
	estimator := gas.NewEstimator(markets.Networks, cfg.Gas.OracleTimeout, log.Named("GAS"))
	registry := contracts.NewRegistry(cfg.Wallet.PrivateKey, selector, nil, log.Named("CONTRACT"))

	timing := scheduler.Timing{
		LockMargin:    cfg.Scheduler.LockMargin,
		ReadTimeout:   cfg.Blockchain.ReadTimeout,
		SubmitTimeout: cfg.Blockchain.SubmitTimeout,
		BackoffMin:    cfg.Scheduler.BackoffMin,
		BackoffMax:    cfg.Scheduler.BackoffMax,
	}

	watcherFactory := func(market config.Market) *scheduler.Watcher {
		return scheduler.NewWatcher(
			market,
			selector,
			registryAdapter{registry},
			estimator,
			timing,
			schedulerLog.Named(market.Title),
		)
	}

	sched := scheduler.NewScheduler(markets.Markets, watcherFactory, cfg.Scheduler.StartStagger, schedulerLog)

	runCtx := ctx
	if cfg.Restart.Enabled {
		// exit cleanly on a fixed interval, the process supervisor
		// cold-starts us
		var restartCancel context.CancelFunc
		runCtx, restartCancel = context.WithTimeout(ctx, cfg.Restart.Interval)
		defer restartCancel()
		log.Infof("scheduled restart enabled, process exits after %s", cfg.Restart.Interval)
	}

	go func() {
		r := httphandlers.NewHTTPHandler(sched, &cfg, markets, log.Named("HTTP"))
		log.Infof("http server is listening: %s", cfg.Web.Address)

		err := r.Run(cfg.Web.Address)
		if err != nil {
			panic(err)
		}
	}()

	err = sched.Run(runCtx)
	if errors.Is(err, context.DeadlineExceeded) && cfg.Restart.Enabled {
		log.Infof("scheduled restart, exiting cleanly")
		return
	}
	log.Infof("app exited due to %s", err)
}

// registryAdapter narrows *contracts.Registry to the scheduler's
// HandleRegistry interface.
type registryAdapter struct {
	*contracts.Registry
}

func (r registryAdapter) Handle(ctx context.Context, market config.Market) (scheduler.RoundContract, error) {
	return r.Registry.Handle(ctx, market)
}

func logFilePath(cfg *config.Config, name string) string {
	if cfg.Log.FolderPath == "" {
		return ""
	}
	return cfg.Log.FolderPath + "/" + name
}
