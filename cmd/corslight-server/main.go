package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yndnr/corslight-go/internal/infra/buildinfo"
	"github.com/yndnr/corslight-go/internal/infra/confloader"
	"github.com/yndnr/corslight-go/internal/infra/shutdown"
	"github.com/yndnr/corslight-go/internal/server/config"
	"github.com/yndnr/corslight-go/internal/telemetry/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		checkOnly   = flag.Bool("check", false, "Validate the configuration and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("corslight-server %s\n", buildinfo.String())
		return nil
	}

	loader := newLoader(*configFile)
	cfg, err := loadConfig(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *checkOnly {
		fmt.Println("configuration OK")
		return nil
	}

	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting corslight-server",
		"version", info.Version,
		"commit", info.Commit,
		"protocol", info.WireVersion,
		"config", loader.FilePath())
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	srv, err := newServer(cfg, loader, log.Slog())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownTimeout, log.Slog())
	if err := srv.start(ctx, shutdownHandler); err != nil {
		_ = srv.close()
		return err
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

func newLoader(configFile string) *confloader.Loader {
	var opts []confloader.Option
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	return confloader.NewLoader(opts...)
}

// loadConfig loads and validates the configuration from file and
// environment.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger creates the redacting logger and makes it the default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  os.Stdout,
		Service: "corslight-server",
		Origin:  cfg.Server.Origin,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}
