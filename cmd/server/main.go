package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/groupxyz/media-relay/api"
	"github.com/groupxyz/media-relay/api/handlers"
	"github.com/groupxyz/media-relay/internal/app"
	"github.com/groupxyz/media-relay/internal/domain"
	"github.com/groupxyz/media-relay/internal/infrastructure"
	"github.com/groupxyz/media-relay/pkg/logger"
)

var (
	configPath = flag.String("config", "", "Path to config file (default: search ./configs, ~/.media-relay, /etc/media-relay)")
	daemon     = flag.Bool("daemon", false, "Run the server detached in the background")
	serverMode = flag.Bool("server-mode", false, "Internal flag: run in server mode (called by daemon)")
)

func main() {
	flag.Parse()

	if *daemon && !*serverMode {
		startAsDaemon()
		return
	}

	if err := runServer(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// startAsDaemon re-executes the binary detached from the terminal
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := []string{"-server-mode"}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}
	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	detach(cmd)

	// Redirect output to /dev/null
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
}

func runServer() error {
	config, err := app.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	baseLog, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
		Service:    "media-relay",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer baseLog.Sync()

	// Categorized JSON files (access, process, error) for the log endpoints
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Logging.LogsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize log files: %w", err)
	}
	defer multiLog.Close()

	log := multiLog.Tee(baseLog, logger.CategoryError)
	processLog := multiLog.Tee(baseLog, logger.CategoryProcess)
	accessLog := multiLog.Tee(baseLog, logger.CategoryAccess)

	log.Info("Starting media relay",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Bool("tls", config.Server.TLS.Enabled),
		zap.Bool("direct_stream", config.Download.DirectStream),
		zap.String("spotdl_variant", config.Tools.SpotDLVariant))

	if err := os.MkdirAll(config.Download.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	history, err := openHistory(config)
	if err != nil {
		return err
	}
	defer history.Close()

	runner := infrastructure.NewProcessRunner(processLog, &config.Download)
	temps := infrastructure.TempFactory{Dir: config.Download.TempDir, Logger: log}
	manager := app.NewMediaManager(
		app.NewProviderSet(
			infrastructure.NewYTDLPProvider(&config.Tools),
			infrastructure.NewSpotDLProvider(&config.Tools),
		),
		infrastructure.NewFFmpegTranscoder(&config.Tools),
		runner,
		func() domain.TempTracker { return temps.New() },
		&config.Download,
		log,
	)
	tools := app.NewToolChecker(runner, &config.Tools)

	// Missing tools are reported but do not stop the server; /ready reflects them
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, status := range tools.Check(ctx) {
		if !status.Available {
			log.Warn("External tool unavailable", zap.String("tool", status.Tool), zap.String("error", status.Error))
		}
	}

	router := api.SetupRouter(api.RouterDeps{
		Config:    config,
		Media:     manager,
		Tools:     tools,
		History:   history,
		AccessLog: accessLog,
		ErrorLog:  log,
		AppLog:    log,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: config.Server.ReadTimeout,
		ErrorLog:          zap.NewStdLog(log),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr), zap.Bool("tls", config.Server.TLS.Enabled))
		var err error
		if config.Server.TLS.Enabled {
			err = server.ListenAndServeTLS(config.Server.TLS.CertFile, config.Server.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err, ok := <-serveErr:
		if ok {
			log.Error("HTTP server failed", zap.Error(err))
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}

func openHistory(config *domain.Config) (domain.HistoryRepository, error) {
	if !config.History.Enabled {
		return infrastructure.NopHistoryRepository{}, nil
	}
	repo, err := infrastructure.NewSQLiteHistoryRepository(config.History.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}
	return repo, nil
}
