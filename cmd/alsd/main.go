// ALS correction daemon - removes the screen's own light from ambient light sensor readings
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/yaap/device-oneplus-sm8150-common/internal/calibration"
	"github.com/yaap/device-oneplus-sm8150-common/internal/config"
	"github.com/yaap/device-oneplus-sm8150-common/internal/correction"
	"github.com/yaap/device-oneplus-sm8150-common/internal/grpcclient"
	"github.com/yaap/device-oneplus-sm8150-common/internal/host"
	"github.com/yaap/device-oneplus-sm8150-common/internal/monitor"
	"github.com/yaap/device-oneplus-sm8150-common/internal/sampler"
)

func main() {
	cfg := config.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(logger)

	profile, err := calibration.LoadProfile(cfg.ProfilePath)
	if err != nil {
		slog.Error("failed to load profile", "path", cfg.ProfilePath, "error", err)
		os.Exit(1)
	}
	store := calibration.NewFileStore(cfg.CalibrationDir, cfg.BacklightDir)

	client := sampler.NewClient(sampler.ClientConfig{
		Path:    cfg.SamplerSocket,
		Timeout: cfg.SamplerTimeout,
	})

	engine := correction.New(correction.Options{
		Profile:             profile,
		Store:               store,
		Backlight:           calibration.StoreBacklight{Store: store},
		Sampler:             client,
		HighBrightnessRange: cfg.HighBrightnessRange,
	})

	source := host.NewIIOSource(cfg.IIODevice, cfg.PollInterval, nil)
	pipeline := host.NewPipeline(engine, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := source.WaitReady(ctx); err != nil {
		slog.Error("light sensor unavailable", "iio", cfg.IIODevice, "error", err)
		os.Exit(1)
	}

	if cfg.MonitorAddr != "" {
		var health monitor.HealthFunc
		if cfg.SamplerHealthSocket != "" {
			hc, err := grpcclient.New(cfg.SamplerHealthSocket, grpcclient.DefaultConfig())
			if err != nil {
				slog.Error("failed to create health client", "error", err)
				os.Exit(1)
			}
			defer func() { _ = hc.Close() }()
			cache := hc.NewStatusCache(sampler.HealthService)
			go cache.Run(ctx)
			health = samplerHealth(cache)
		}

		srv := monitor.New(pipeline, health)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.MonitorAddr); err != nil {
				slog.Error("monitor error", "error", err)
			}
		}()
	}

	done := make(chan error, 1)
	go func() {
		slog.Info("correction daemon starting",
			"iio", cfg.IIODevice, "sampler", cfg.SamplerSocket, "hbr", cfg.HighBrightnessRange)
		done <- pipeline.Run(ctx)
	}()

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
		slog.Error("pipeline error", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete", "stats", pipeline.Stats())
}

func samplerHealth(cache *grpcclient.StatusCache) monitor.HealthFunc {
	return func(context.Context) error {
		st, err := cache.Status()
		if err != nil {
			return err
		}
		if st != healthpb.HealthCheckResponse_SERVING {
			return fmt.Errorf("sampler is %s", st)
		}
		return nil
	}
}
