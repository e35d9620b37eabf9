package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thraizz/gridwar-server-go/internal/config"
	"github.com/thraizz/gridwar-server-go/internal/game"
	"github.com/thraizz/gridwar-server-go/internal/game/rules"
	"github.com/thraizz/gridwar-server-go/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting gridwar server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	engine := game.NewEngine(logger, engineConfig(cfg))
	logger.Info("match engine initialized",
		zap.Int("tokens_per_team", cfg.Match.TokensPerTeam),
		zap.Bool("check_invariants", cfg.Match.CheckInvariants),
		zap.Bool("record_replay", cfg.Match.RecordReplay),
	)

	wsServer := server.NewServer(cfg.Server.WebSocket, engine, logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- wsServer.Start()
	}()

	logger.Info("gridwar server initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.Int("max_sessions", cfg.Server.MaxSessions),
	)

	// Wait for termination signal or a listener failure
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			logger.Error("WebSocket server error", zap.Error(err))
		}
	}

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := wsServer.Shutdown(ctx); err != nil {
		logger.Warn("WebSocket server shutdown incomplete", zap.Error(err))
	}
	engine.Close()

	logger.Info("gridwar server stopped", zap.Int("open_sessions", engine.SessionCount()))
}

// engineConfig maps the match section onto the engine.
func engineConfig(cfg *config.Config) game.EngineConfig {
	return game.EngineConfig{
		Deal: rules.DealConfig{
			TokensPerTeam: cfg.Match.TokensPerTeam,
			Health:        rules.StatRange{Min: cfg.Match.Health.Min, Max: cfg.Match.Health.Max},
			Attack:        rules.StatRange{Min: cfg.Match.Attack.Min, Max: cfg.Match.Attack.Max},
		},
		Seed:            cfg.Match.Seed,
		CheckInvariants: cfg.Match.CheckInvariants,
		RecordReplay:    cfg.Match.RecordReplay,
		ReplayLimit:     cfg.Match.ReplayLimit,
		MaxSessions:     cfg.Server.MaxSessions,
		MessageLimit:    cfg.Match.MessageLimit,
	}
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
