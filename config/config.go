// Package config loads the sequencer configuration. Values come from the
// defaults in the struct tags, then from ZKACC_ prefixed environment
// variables, then from command line flags, each layer overriding the
// previous one.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/odyzzey/zk-accumulator-demo/types"
	flag "github.com/spf13/pflag"
	dvotedb "go.vocdoni.io/dvote/db"
)

// EnvPrefix is the prefix of the environment variables read by Load.
const EnvPrefix = "ZKACC_"

// Config holds the settings of a sequencer node.
type Config struct {
	DataDir string `env:"DATADIR"`
	DBType  string `env:"DB_TYPE" envDefault:"pebble"`

	APIHost string `env:"API_HOST" envDefault:"0.0.0.0"`
	APIPort int    `env:"API_PORT" envDefault:"9090"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogOutput string `env:"LOG_OUTPUT" envDefault:"stdout"`

	// BatchSize is the number of pending votes that triggers a proof.
	BatchSize int `env:"BATCH_SIZE" envDefault:"10"`
	// BatchTimeWindow is the time after which a contract with pending votes
	// is proved even if the batch is not full.
	BatchTimeWindow time.Duration `env:"BATCH_TIME_WINDOW" envDefault:"30s"`
	// TickInterval is how often the processors look for work.
	TickInterval time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	// Workers bounds the number of batches proved concurrently.
	Workers int `env:"WORKERS" envDefault:"2"`

	// ProverKeys are the hex private keys of the local provers. A random key
	// is generated for each missing prover up to Workers, and stored in the
	// database so it is reused after a restart.
	ProverKeys []string `env:"PROVER_KEYS"`
	// AuthorizedProvers are the addresses of remote provers whose receipts
	// are settled, besides the local ones.
	AuthorizedProvers []string `env:"AUTHORIZED_PROVERS"`
	// ArtifactsDir caches the proving and verifying keys. Empty disables
	// the cache.
	ArtifactsDir string `env:"ARTIFACTS_DIR"`
}

// Load reads the environment and parses the arguments provided (without the
// program name) into a validated configuration.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.setDirs()

	fs := flag.NewFlagSet("sequencer", flag.ContinueOnError)
	fs.StringVarP(&cfg.DataDir, "datadir", "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.DBType, "dbType", cfg.DBType, "database type")
	fs.StringVar(&cfg.APIHost, "host", cfg.APIHost, "API listen host")
	fs.IntVarP(&cfg.APIPort, "port", "p", cfg.APIPort, "API listen port")
	fs.StringVarP(&cfg.LogLevel, "logLevel", "l", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVarP(&cfg.LogOutput, "logOutput", "o", cfg.LogOutput, "log output (stdout, stderr or a file path)")
	fs.IntVar(&cfg.BatchSize, "batchSize", cfg.BatchSize, "pending votes that trigger a proof")
	fs.DurationVar(&cfg.BatchTimeWindow, "batchTimeWindow", cfg.BatchTimeWindow, "maximum time a vote waits for its batch")
	fs.DurationVar(&cfg.TickInterval, "tickInterval", cfg.TickInterval, "interval of the queue processors")
	fs.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "batches proved concurrently")
	fs.StringSliceVar(&cfg.ProverKeys, "proverKeys", cfg.ProverKeys, "hex private keys of the local provers")
	fs.StringSliceVar(&cfg.AuthorizedProvers, "authorizedProvers", cfg.AuthorizedProvers, "addresses of remote provers")
	fs.StringVar(&cfg.ArtifactsDir, "artifactsDir", cfg.ArtifactsDir, "proving artifacts cache directory")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values are usable.
func (c *Config) Validate() error {
	if c.BatchSize < 1 || c.BatchSize > types.VotesPerBatch {
		return fmt.Errorf("batch size must be between 1 and %d, got %d", types.VotesPerBatch, c.BatchSize)
	}
	if c.BatchTimeWindow <= 0 {
		return fmt.Errorf("batch time window must be positive")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid API port %d", c.APIPort)
	}
	if c.DBType != dvotedb.TypePebble {
		return fmt.Errorf("invalid dbType: %q. Available types: %q", c.DBType, dvotedb.TypePebble)
	}
	return nil
}

// DatabaseDir returns the directory of the sequencer database.
func (c *Config) DatabaseDir() string {
	return filepath.Join(c.DataDir, "db")
}

func (c *Config) setDirs() {
	if c.DataDir != "" {
		return
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	c.DataDir = filepath.Join(home, ".zkacc")
}
