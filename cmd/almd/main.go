package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/yanliu110/ALmoMD/internal/dynamics"
	"github.com/yanliu110/ALmoMD/internal/ensemble"
	"github.com/yanliu110/ALmoMD/internal/ledger"
	"github.com/yanliu110/ALmoMD/internal/system"
	"github.com/yanliu110/ALmoMD/pkg/config"
	"github.com/yanliu110/ALmoMD/pkg/logger"
	"github.com/yanliu110/ALmoMD/pkg/utils"
)

func main() {
	var configPath string
	var logLevel string

	flag.StringVar(&configPath, "config", "config/config.yaml", "path to the sampling configuration")
	flag.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	logger.SetDefault(logger.NewText("info", os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("failed to load configuration", "path", configPath, "error", err)
		os.Exit(1)
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger.SetDefault(logger.NewText(logLevel, os.Stdout))

	conf, err := system.ReadStructure(cfg.Structure)
	if err != nil {
		logger.Error("failed to read structure", "path", cfg.Structure, "error", err)
		os.Exit(1)
	}
	logger.Info("loaded configuration",
		"path", configPath,
		"condition", cfg.Condition(),
		"structure", cfg.Structure,
		"atoms", conf.Len())

	rng := utils.NewRandSource(cfg.Seed)
	conf.InitVelocities(rng, cfg.MD.TemperatureK)

	ens, err := ensemble.FromConfig(&cfg.Ensemble, conf, rng)
	if err != nil {
		logger.Error("failed to build ensemble", "error", err)
		os.Exit(1)
	}

	store, err := ledger.New(cfg.Ledger)
	if err != nil {
		logger.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}

	sampler, err := dynamics.NewSampler(cfg, ens, store, rng)
	if err != nil {
		store.Close()
		logger.Error("failed to build sampler", "error", err)
		os.Exit(1)
	}

	if err := sampler.Run(ctx, conf); err != nil {
		store.Close()
		logger.Error("sampling run failed", "error", err)
		os.Exit(1)
	}

	run := sampler.Status()
	logger.Info("sampling run complete",
		"condition", run.Condition,
		"accepted", run.Accepted,
		"intervals", run.StepIndex,
		"duration", utils.FormatDuration(run.Duration))

	if err := store.Close(); err != nil {
		logger.Warn("failed to close ledger", "error", err)
	}
}
