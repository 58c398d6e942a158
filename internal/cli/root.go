// Package cli implements the nuts command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/huffmsa/nuts/engine"
	"github.com/huffmsa/nuts/examples/etl"
	"github.com/huffmsa/nuts/internal/logging"
	"github.com/huffmsa/nuts/job"
	redisstore "github.com/huffmsa/nuts/store/redis"
	"github.com/huffmsa/nuts/workflow"
)

var (
	flagConfig    string
	flagEnvFile   string
	flagRedisURL  string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger   *slog.Logger
	settings Settings
)

// NewRootCmd creates the root cobra command for the nuts CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nuts",
		Short: "nuts: distributed jobs and workflows on Redis",
		Long:  "nuts runs scheduled jobs and dependency-ordered workflows across a cluster of workers sharing one Redis.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)

			if err := loadEnvFile(flagEnvFile); err != nil {
				return err
			}
			s, err := loadSettings(flagConfig, os.LookupEnv)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("redis-url") {
				s.RedisURL = flagRedisURL
			}
			settings = s
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", os.Getenv("NUTS_CONFIG"), "YAML config file (or NUTS_CONFIG env)")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "dotenv file to load before reading the environment (default .env if present)")
	root.PersistentFlags().StringVar(&flagRedisURL, "redis-url", defaultRedisURL, "Redis URL (or NUTS_REDIS_URL / REDIS_URL env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newWorkerCmd(),
		newStatusCmd(),
		newEnqueueCmd(),
		newScheduleCmd(),
		newTriggerCmd(),
		newCancelCmd(),
	)
	return root
}

// loadEnvFile loads a dotenv file. Without an explicit path a missing .env
// is not an error.
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// catalogue returns the job and workflow registries the process runs: the
// built-in catalogue plus any workflows read from the workflows file.
func catalogue(path string) (*job.Registry, *workflow.Registry, error) {
	jobs := job.NewRegistry()
	workflows := workflow.NewRegistry(jobs)
	if err := etl.Register(jobs, workflows); err != nil {
		return nil, nil, err
	}
	if path == "" {
		return jobs, workflows, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read workflows: %w", err)
	}
	defs, err := workflow.ParseDefinitions(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, def := range defs {
		if err := workflows.Register(def); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return jobs, workflows, nil
}

// openEngine connects to Redis and builds an engine over the catalogue.
// The returned func closes the connection.
func openEngine(s Settings) (*engine.Engine, func() error, error) {
	opts, err := goredis.ParseURL(s.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	jobs, workflows, err := catalogue(s.Workflows)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	eng, err := engine.New(redisstore.New(client, redisstore.WithLogger(logger)), jobs, workflows,
		engine.WithConfig(s.Worker),
		engine.WithLogger(logger),
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return eng, client.Close, nil
}
