package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/botflow/core/config"
	"github.com/m3rciful/botflow/core/logger"
	coretelegram "github.com/m3rciful/botflow/core/telegram"
)

// Options describe how to load configuration and assemble the bot's flows.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	// BuildFlows assembles the command-to-flow registry once config is loaded.
	BuildFlows func(cfg *coreconfig.Config) (*coretelegram.Flows, error)

	RunTelegram func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run loads configuration, initializes logging, assembles the flows and runs
// the bot until SIGINT/SIGTERM.
func Run(opts Options) error {
	if opts.BuildFlows == nil {
		return fmt.Errorf("cmd: BuildFlows is required")
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("cmd: logger init failed: %w", err)
	}

	flows, err := opts.BuildFlows(cfg)
	if err != nil {
		return fmt.Errorf("cmd: flow assembly failed: %w", err)
	}

	startedAt := time.Now()
	runOpts := coretelegram.RunOptions{
		Config: cfg,
		Flows:  flows,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			logger.Info(ctx, "app", "ready",
				slog.Int64("startup_ms", time.Since(startedAt).Milliseconds()),
			)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			logger.Info(ctx, "app", "shutdown",
				slog.Int("sessions_open", rt.Registry.Len()),
			)
			return nil
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}
