// Package grpcclient provides a client for the sampler's gRPC health socket.
package grpcclient

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	apperrors "github.com/yaap/device-oneplus-sm8150-common/internal/errors"
)

// Status is a health serving status.
type Status = healthpb.HealthCheckResponse_ServingStatus

// Config holds client settings.
type Config struct {
	KeepaliveTime       time.Duration
	KeepaliveTimeout    time.Duration
	HealthCheckInterval time.Duration
}

// DefaultConfig returns the default client settings.
func DefaultConfig() Config {
	return Config{
		KeepaliveTime:       DefaultKeepaliveTime,
		KeepaliveTimeout:    DefaultKeepaliveTimeout,
		HealthCheckInterval: DefaultHealthCheckInterval,
	}
}

// Client wraps the health service client.
type Client struct {
	conn   *grpc.ClientConn
	cfg    Config
	Health healthpb.HealthClient
}

// New creates a client for the unix socket at path. The connection is
// established lazily.
func New(path string, cfg Config) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+path,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    cfg.KeepaliveTime,
			Timeout: cfg.KeepaliveTimeout,
		}),
	)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ConfigInvalid, "health client for %s", path)
	}
	return &Client{conn: conn, cfg: cfg, Health: healthpb.NewHealthClient(conn)}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Check asks for the serving status of service.
func (c *Client) Check(ctx context.Context, service string) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, apperrors.FromGRPCError(err)
	}
	return resp.Status, nil
}

// Watch streams status changes of service to onChange until ctx is done or
// the stream ends.
func (c *Client) Watch(ctx context.Context, service string, onChange func(Status)) error {
	stream, err := c.Health.Watch(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return apperrors.FromGRPCError(err)
	}

	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return apperrors.FromGRPCError(err)
		}
		onChange(resp.Status)
	}
}

// Poll checks service every HealthCheckInterval and reports each result
// until ctx is done. Errors are reported as UNKNOWN.
func (c *Client) Poll(ctx context.Context, service string, onStatus func(Status, error)) {
	interval := c.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = DefaultHealthCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := c.Check(ctx, service)
		if err != nil {
			slog.Debug("health check failed", "service", service, "error", err)
		}
		onStatus(st, err)
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// StatusCache holds the latest polled status of one service.
type StatusCache struct {
	client  *Client
	service string

	mu     sync.RWMutex
	status Status
	err    error
}

// NewStatusCache creates a cache for service. The status is UNKNOWN until
// Run has polled once.
func (c *Client) NewStatusCache(service string) *StatusCache {
	return &StatusCache{client: c, service: service}
}

// Run polls until ctx is done.
func (s *StatusCache) Run(ctx context.Context) {
	s.client.Poll(ctx, s.service, func(st Status, err error) {
		s.mu.Lock()
		s.status, s.err = st, err
		s.mu.Unlock()
	})
}

// Status returns the last polled status and check error.
func (s *StatusCache) Status() (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.err
}
