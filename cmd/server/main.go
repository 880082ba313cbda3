package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/baydersh/markscan/internal/capture"
	"github.com/baydersh/markscan/internal/config"
	"github.com/baydersh/markscan/internal/detect"
	"github.com/baydersh/markscan/internal/domain/entry"
	"github.com/baydersh/markscan/internal/domain/workflow"
	"github.com/baydersh/markscan/internal/sqlite"
	"github.com/baydersh/markscan/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logWriter := io.Writer(os.Stdout)
	if logPath := os.Getenv("MARKSCAN_LOG_PATH"); logPath != "" {
		file, err := openLogFile(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = file
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	entries := entry.NewService(sqlite.NewEntryRepository(db), logger)
	entries.Load(context.Background())
	logger.Info("entry log loaded", "count", entries.Count())

	source := capture.NewWebcam(
		cfg.Camera.Device(cfg.Camera.Facing),
		cfg.Camera.Width,
		cfg.Camera.Height,
		cfg.Capture.JPEGQuality,
		logger,
	)

	gateway := detect.NewGateway(
		detect.NewZXingDecoder(),
		detect.NewHTTPMarkDetector(
			cfg.Detect.URL,
			cfg.Detect.Token,
			time.Duration(cfg.Detect.TimeoutSeconds)*time.Second,
			logger,
		),
		logger,
	)

	wf := workflow.NewService(source, gateway, entries, cfg.Capture.MaxWidth, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := wf.Start(ctx); err != nil {
		// Keep serving so the operator sees the error; the workflow goes
		// live on its own once the camera comes up.
		logger.Error("camera not ready, retrying in background", "error", err)
		go retryStart(ctx, wf, logger)
	}

	middleware := []mux.MiddlewareFunc{transport.SecureContextMiddleware}
	if cfg.Auth.Token != "" {
		middleware = append(middleware, transport.AuthMiddleware(cfg.Auth.Token))
	}
	router := transport.NewRouter(wf, entries, logger, middleware...)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer, wf)
}

func retryStart(ctx context.Context, wf *workflow.Service, logger *slog.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := wf.Start(ctx)
			if err == nil || err == workflow.ErrAlreadyStarted {
				logger.Info("camera ready")
				return
			}
			logger.Warn("camera still unavailable", "error", err)
		}
	}
}

func waitForShutdown(logger *slog.Logger, server *http.Server, wf *workflow.Service) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := wf.Close(); err != nil {
		logger.Error("camera release error", "error", err)
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const maxLogSizeBytes = 5 * 1024 * 1024

// openLogFile opens the log for append, rotating the previous file away
// once it exceeds the size cap.
func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if info, err := os.Stat(path); err == nil && info.Size() > maxLogSizeBytes {
		_ = os.Rename(path, path+".old")
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
