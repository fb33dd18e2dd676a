// Screen sampler - answers take_screenshot requests with the average color above the light sensor
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yaap/device-oneplus-sm8150-common/internal/config"
	"github.com/yaap/device-oneplus-sm8150-common/internal/sampler"
	"github.com/yaap/device-oneplus-sm8150-common/internal/screen"
)

func main() {
	cfg := config.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	capturer, err := newCapturer(cfg)
	if err != nil {
		slog.Error("no screen capture backend", "error", err)
		os.Exit(1)
	}
	defer func() { _ = capturer.Close() }()

	health := sampler.NewHealth(sampler.DefaultUnhealthyAfter)
	svc := sampler.NewService(capturer, sampler.ServiceConfig{
		Region:    cfg.CaptureRect,
		Workers:   cfg.SamplerWorkers,
		OnCapture: health.Observe,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SamplerHealthSocket != "" {
		go func() {
			if err := health.ListenAndServe(ctx, cfg.SamplerHealthSocket); err != nil {
				slog.Error("health server error", "error", err)
			}
		}()
	}

	done := make(chan error, 1)
	go func() { done <- svc.ListenAndServe(ctx, cfg.SamplerSocket) }()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		slog.Info("shutting down...")
		cancel()
		err = <-done
	case err = <-done:
	}
	if err != nil {
		slog.Error("sampler error", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func newCapturer(cfg *config.Config) (screen.Capturer, error) {
	if cfg.CaptureFile != "" {
		slog.Info("capturing from file", "path", cfg.CaptureFile)
		return screen.FileCapturer{Path: cfg.CaptureFile}, nil
	}
	return screen.New()
}
