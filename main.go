package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/go-capture/api"
	"github.com/nvr-ai/go-capture/camera"
	"github.com/nvr-ai/go-capture/config"
	"github.com/nvr-ai/go-capture/detect"
	"github.com/nvr-ai/go-capture/enroll"
	"github.com/nvr-ai/go-capture/live"
	"github.com/nvr-ai/go-capture/logger"
	"github.com/nvr-ai/go-capture/metrics"
	"github.com/nvr-ai/go-capture/notify"
	"github.com/nvr-ai/go-capture/overlay"
)

func main() {
	var startMonitor bool
	flag.BoolVar(&startMonitor, "start-monitor", false, "Start live surveillance immediately")
	flag.Parse()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	manager := camera.NewManager()
	overlays := overlay.NewManager()
	stats := metrics.NewPipelineMetrics()
	sink := notify.LogSink{}

	detectionClient := detect.NewClient(cfg.DetectionBaseURL, cfg.APIToken, cfg.RequestTimeout)
	enrollClient := enroll.NewClient(cfg.DetectionBaseURL, cfg.APIToken, 2*cfg.RequestTimeout)

	monitor := live.NewMonitor(manager, detectionClient, overlays, sink, stats, cfg.CameraDeviceID, cfg.CameraID)
	// Every exit route below funnels through this stop; the camera is the one
	// exclusively-owned hardware resource in the process.
	defer monitor.Stop()

	server := api.NewServer(monitor, enrollClient, func() enroll.SessionControl {
		return camera.NewController(manager, camera.UserFacing(cfg.CameraDeviceID))
	}, sink)

	if startMonitor {
		if err := monitor.Start(); err != nil {
			logger.WithError(err).Error("live monitor failed to start")
		}
	}

	srv := &http.Server{
		Addr:    cfg.ServerAddress(),
		Handler: server.Handler(),
	}
	go func() {
		logger.WithField("addr", srv.Addr).Info("control surface listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown incomplete")
	}
}
