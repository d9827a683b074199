package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/attend/internal/api"
	"github.com/your-org/attend/internal/api/ws"
	"github.com/your-org/attend/internal/capture"
	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/queue"
	"github.com/your-org/attend/internal/recognition"
	"github.com/your-org/attend/internal/service"
	"github.com/your-org/attend/internal/store"
	"github.com/your-org/attend/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting attendance service", "port", cfg.Server.Port, "camera", cfg.Capture.Source)

	// Local stores
	faces, err := store.OpenFaceStore(cfg.Storage.FacesDir(), cfg.Vision.EmbeddingDim)
	if err != nil {
		slog.Error("open face store", "error", err)
		os.Exit(1)
	}

	attLog, err := store.OpenAttendanceLog(cfg.Storage.LogsDir())
	if err != nil {
		slog.Error("open attendance log", "error", err)
		os.Exit(1)
	}

	settings, err := config.OpenSettings(cfg.Storage.SettingsPath())
	if err != nil {
		slog.Error("open settings", "error", err)
		os.Exit(1)
	}

	// Rebuild the cooldown ledger from the log so a restart does not
	// double-record anyone still inside their window.
	window := settings.Get().CooldownWindow()
	ledger, err := recognition.RebuildCooldownLedger(attLog, time.Now(), window)
	if err != nil {
		slog.Error("rebuild cooldown ledger", "error", err)
		os.Exit(1)
	}
	slog.Info("cooldown ledger rebuilt", "entries", len(ledger.Entries()), "window", window)

	// ONNX Runtime and the vision models
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("onnx runtime init", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	extractor, err := vision.NewExtractor(cfg.Vision)
	if err != nil {
		slog.Error("load vision models", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	if extractor.Dim() != faces.Dim() {
		slog.Error("embedding dimension mismatch", "model", extractor.Dim(), "store", faces.Dim())
		os.Exit(1)
	}

	svc := service.New(faces, attLog, settings, ledger, extractor)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()
	svc.SetNotifier(hub)

	// Optional object storage for snapshot archiving
	var snapshots *store.SnapshotStore
	if cfg.MinIO.Endpoint != "" {
		snapshots, err = store.NewSnapshotStore(cfg.MinIO)
		if err != nil {
			slog.Warn("connect to minio, snapshots disabled", "error", err)
			snapshots = nil
		} else if err := snapshots.EnsureBucket(context.Background()); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		if snapshots != nil {
			svc.SetSnapshots(snapshots)
		}
	}

	// Optional NATS event publishing
	var publisher *queue.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = queue.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("connect to nats, publishing disabled", "error", err)
			publisher = nil
		} else {
			defer publisher.Close()
			if err := publisher.EnsureStream(context.Background()); err != nil {
				slog.Warn("ensure nats stream", "error", err)
			}
			svc.SetPublisher(publisher)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Camera loop. FFmpeg restarts with backoff if the device drops.
	source := &capture.Source{}
	go func() {
		for {
			err := source.Run(ctx, cfg.Capture.Source, cfg.Capture.FPS, cfg.Capture.Width,
				func(img image.Image) error {
					svc.ProcessFrame(ctx, img)
					return nil
				})
			if ctx.Err() != nil {
				return
			}
			slog.Warn("camera stream ended, restarting", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		AdminKey:  cfg.Server.AdminKey,
		Service:   svc,
		Hub:       hub,
		Snapshots: snapshots,
		Publisher: publisher,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")
	cancel()
	source.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("attendance service stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
