package config

import (
	"strings"
	"time"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "0.1.0"

// Validation tags described here: https://pkg.go.dev/github.com/go-playground/validator/v10
type Config struct {
	Blockchain struct {
		ProbeTimeout  time.Duration `env:"RPC_PROBE_TIMEOUT"  flag:"rpc-probe-timeout"  validate:"omitempty,duration" desc:"timeout for a single endpoint liveness probe"`
		ReadTimeout   time.Duration `env:"RPC_READ_TIMEOUT"   flag:"rpc-read-timeout"   validate:"omitempty,duration" desc:"timeout for chain read calls (epoch, timestamps, block)"`
		SubmitTimeout time.Duration `env:"RPC_SUBMIT_TIMEOUT" flag:"rpc-submit-timeout" validate:"omitempty,duration" desc:"timeout for executeRound submission including the mining wait"`
	}
	Environment string `env:"ENVIRONMENT" flag:"environment"`
	Gas         struct {
		OracleTimeout time.Duration `env:"GAS_ORACLE_TIMEOUT" flag:"gas-oracle-timeout" validate:"omitempty,duration" desc:"timeout for the gas oracle HTTP request"`
	}
	Log struct {
		Color          bool   `env:"LOG_COLOR"           flag:"log-color"`
		FolderPath     string `env:"LOG_FOLDER_PATH"     flag:"log-folder-path"     validate:"omitempty,dirpath" desc:"enables file logging and sets the folder path"`
		IsProd         bool   `env:"LOG_IS_PROD"         flag:"log-is-prod"         validate:""                  desc:"affects the format of the log output"`
		JSON           bool   `env:"LOG_JSON"            flag:"log-json"`
		LevelApp       string `env:"LOG_LEVEL_APP"       flag:"log-level-app"       validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelScheduler string `env:"LOG_LEVEL_SCHEDULER" flag:"log-level-scheduler" validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
		LevelRPC       string `env:"LOG_LEVEL_RPC"       flag:"log-level-rpc"       validate:"omitempty,oneof=debug info warn error dpanic panic fatal"`
	}
	Markets struct {
		ConfigPath string `env:"MARKETS_CONFIG_PATH" flag:"markets-config" validate:"required,file" desc:"path to the TOML file listing markets and network settings"`
	}
	Restart struct {
		Enabled  bool          `env:"RESTART_ENABLED"  flag:"restart-enabled"  desc:"exit cleanly after restart-interval so the supervisor cold-starts the process"`
		Interval time.Duration `env:"RESTART_INTERVAL" flag:"restart-interval" validate:"omitempty,duration"`
	}
	Scheduler struct {
		StartStagger time.Duration `env:"SCHEDULER_START_STAGGER" flag:"scheduler-start-stagger" validate:"omitempty,duration" desc:"delay between starting consecutive market watchers"`
		LockMargin   time.Duration `env:"SCHEDULER_LOCK_MARGIN"   flag:"scheduler-lock-margin"   validate:"omitempty,duration" desc:"margin added to the lock deadline wait to absorb block-time jitter"`
		BackoffMin   time.Duration `env:"SCHEDULER_BACKOFF_MIN"   flag:"scheduler-backoff-min"   validate:"omitempty,duration" desc:"initial retry delay after a failed check or submission"`
		BackoffMax   time.Duration `env:"SCHEDULER_BACKOFF_MAX"   flag:"scheduler-backoff-max"   validate:"omitempty,duration" desc:"retry delay ceiling"`
	}
	Wallet struct {
		PrivateKey string `env:"WALLET_PRIVATE_KEY" flag:"wallet-private-key" validate:"required" desc:"hex private key of the operator account"`
	}
	Web struct {
		Address string `env:"WEB_ADDRESS" flag:"web-address" validate:"omitempty,hostname_port" desc:"http server address host:port"`
	}
}

func (cfg *Config) SetDefaults() {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Blockchain
	if cfg.Blockchain.ProbeTimeout == 0 {
		cfg.Blockchain.ProbeTimeout = 2 * time.Second
	}
	if cfg.Blockchain.ReadTimeout == 0 {
		cfg.Blockchain.ReadTimeout = 15 * time.Second
	}
	if cfg.Blockchain.SubmitTimeout == 0 {
		cfg.Blockchain.SubmitTimeout = 2 * time.Minute
	}

	// Gas
	if cfg.Gas.OracleTimeout == 0 {
		cfg.Gas.OracleTimeout = 10 * time.Second
	}

	// Log
	if cfg.Log.LevelApp == "" {
		cfg.Log.LevelApp = "debug"
	}
	if cfg.Log.LevelScheduler == "" {
		cfg.Log.LevelScheduler = "info"
	}
	if cfg.Log.LevelRPC == "" {
		cfg.Log.LevelRPC = "info"
	}

	// Restart
	if cfg.Restart.Interval == 0 {
		cfg.Restart.Interval = 10 * time.Minute
	}

	// Scheduler
	if cfg.Scheduler.StartStagger == 0 {
		cfg.Scheduler.StartStagger = 1 * time.Second
	}
	if cfg.Scheduler.LockMargin == 0 {
		cfg.Scheduler.LockMargin = 100 * time.Millisecond
	}
	if cfg.Scheduler.BackoffMin == 0 {
		cfg.Scheduler.BackoffMin = 1 * time.Second
	}
	if cfg.Scheduler.BackoffMax == 0 {
		cfg.Scheduler.BackoffMax = 2 * time.Minute
	}

	// Wallet

	// normalizes private key
	cfg.Wallet.PrivateKey = strings.TrimPrefix(cfg.Wallet.PrivateKey, "0x")

	// Web
	if cfg.Web.Address == "" {
		cfg.Web.Address = "0.0.0.0:8080"
	}
}

// GetSanitized returns a copy of the config with sensitive data removed
// explicitly adding each field here to avoid accidentally leaking sensitive data
func (cfg *Config) GetSanitized() interface{} {
	publicCfg := Config{}

	publicCfg.Blockchain.ProbeTimeout = cfg.Blockchain.ProbeTimeout
	publicCfg.Blockchain.ReadTimeout = cfg.Blockchain.ReadTimeout
	publicCfg.Blockchain.SubmitTimeout = cfg.Blockchain.SubmitTimeout

	publicCfg.Environment = cfg.Environment

	publicCfg.Gas.OracleTimeout = cfg.Gas.OracleTimeout

	publicCfg.Log.Color = cfg.Log.Color
	publicCfg.Log.FolderPath = cfg.Log.FolderPath
	publicCfg.Log.IsProd = cfg.Log.IsProd
	publicCfg.Log.JSON = cfg.Log.JSON
	publicCfg.Log.LevelApp = cfg.Log.LevelApp
	publicCfg.Log.LevelScheduler = cfg.Log.LevelScheduler
	publicCfg.Log.LevelRPC = cfg.Log.LevelRPC

	publicCfg.Markets.ConfigPath = cfg.Markets.ConfigPath

	publicCfg.Restart.Enabled = cfg.Restart.Enabled
	publicCfg.Restart.Interval = cfg.Restart.Interval

	publicCfg.Scheduler.StartStagger = cfg.Scheduler.StartStagger
	publicCfg.Scheduler.LockMargin = cfg.Scheduler.LockMargin
	publicCfg.Scheduler.BackoffMin = cfg.Scheduler.BackoffMin
	publicCfg.Scheduler.BackoffMax = cfg.Scheduler.BackoffMax

	publicCfg.Web.Address = cfg.Web.Address

	return publicCfg
}
