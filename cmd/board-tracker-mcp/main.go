package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ironsheep/board-tracker-mcp/internal/classify"
	"github.com/ironsheep/board-tracker-mcp/internal/config"
	"github.com/ironsheep/board-tracker-mcp/internal/detection"
	"github.com/ironsheep/board-tracker-mcp/internal/imaging"
	"github.com/ironsheep/board-tracker-mcp/internal/logger"
	"github.com/ironsheep/board-tracker-mcp/internal/metrics"
	"github.com/ironsheep/board-tracker-mcp/internal/ocr"
	"github.com/ironsheep/board-tracker-mcp/internal/pipeline"
	"github.com/ironsheep/board-tracker-mcp/internal/server"
	"github.com/ironsheep/board-tracker-mcp/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("board-tracker-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			fmt.Printf("  Tesseract:  %s\n", ocr.Version())
			return
		case "--help", "-h", "help":
			fmt.Println("board-tracker-mcp - MCP server that finds a game board in camera frames and tracks its tiles")
			fmt.Println()
			fmt.Println("Usage: board-tracker-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Printf("  %s=path        YAML configuration file (default config.yaml)\n", config.EnvConfigPath)
			fmt.Printf("  %s=debug    Override the configured log level\n", config.EnvLogLevel)
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "board-tracker-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Log()

	log.Info("starting board tracker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", GitCommit),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewPipeline()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, m.Registry(), log); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	detector, err := detection.NewRegionDetector(detection.DetectorOptions{
		MinAreaFraction: cfg.MinAreaFraction,
		Tolerance:       cfg.Rectangularity,
		TileColor:       cfg.TileColor,
		ColorWeight:     cfg.TileColorWeight,
		Edges:           imaging.DefaultEdgeOptions(),
	})
	if err != nil {
		return fmt.Errorf("failed to create region detector: %w", err)
	}
	tracker := detection.NewRegionTracker(detector, detection.TrackerOptions{
		Margin:     cfg.TrackMargin,
		MinOverlap: cfg.MinOverlap,
	})
	locOpts := detection.DefaultLocatorOptions()
	locOpts.MinFraction = cfg.MinBoardFraction
	locOpts.Tolerance = cfg.Rectangularity

	opts := pipeline.Options{
		GridSize:    cfg.GridSize,
		MaxInFlight: cfg.MaxInFlight,
		EventBuffer: cfg.EventBuffer,
		CallTimeout: cfg.CallTimeout,
		Acceptor: classify.Acceptor{
			Keywords:  cfg.BoardKeywords,
			Threshold: cfg.ClassifyThreshold,
			TopN:      cfg.ClassifyTopN,
		},
		Detector: detector,
		Tracker:  tracker,
		Locator:  detection.NewBoardLocator(locOpts),
		Logger:   log,
		Metrics:  m,
	}

	srvOpts := server.Options{
		Loader:     imaging.NewFrameLoader(cfg.FrameCache),
		Reader:     ocr.NewReader(cfg.TessdataPrefix, cfg.OCRLanguage),
		Logger:     log,
		SettleWait: cfg.SettleWait,
		Version:    Version,
	}

	if cfg.RecordPath != "" {
		st, err := store.Open(cfg.RecordPath)
		if err != nil {
			return err
		}
		defer st.Close()
		opts.Recorder = st
		srvOpts.History = st
		log.Info("recording sessions", zap.String("path", cfg.RecordPath))
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return err
	}
	defer p.Close()
	srvOpts.Pipeline = p

	srv, err := server.New(srvOpts)
	if err != nil {
		return err
	}
	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("board tracker stopped")
	return nil
}

func initLogger(cfg *config.Config) error {
	switch cfg.LogFormat {
	case config.LogFormatConsole:
		return logger.InitDevelopment(cfg.LogLevel)
	case config.LogFormatNone:
		logger.InitNop()
		return nil
	default:
		return logger.InitProduction(cfg.LogLevel)
	}
}
