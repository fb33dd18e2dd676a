package sampler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	apperrors "github.com/yaap/device-oneplus-sm8150-common/internal/errors"
	"github.com/yaap/device-oneplus-sm8150-common/internal/resilience"
	"github.com/yaap/device-oneplus-sm8150-common/internal/timeutil"
)

// Client defaults
const (
	DefaultTimeout = 250 * time.Millisecond
	// Replies older than this describe a frame the user no longer sees.
	DefaultMaxAge = time.Second

	trailingWindow = time.Millisecond
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Path    string
	Timeout time.Duration // bound on the whole round trip
	MaxAge  time.Duration
	Clock   timeutil.Clock
	Breaker *resilience.Breaker
}

// Client performs one take_screenshot round trip per call. It never retries:
// every failure is returned so the caller can drop the sensor event.
type Client struct {
	path    string
	timeout time.Duration
	maxAge  time.Duration
	clock   timeutil.Clock
	breaker *resilience.Breaker
	dialer  net.Dialer
}

// NewClient creates a sampler client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.BootClock{}
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.New("sampler", resilience.SamplerConfig()).WithHook(func(from, to resilience.State) {
			slog.Info("sampler breaker state change", "from", from, "to", to)
		})
	}
	return &Client{
		path:    cfg.Path,
		timeout: cfg.Timeout,
		maxAge:  cfg.MaxAge,
		clock:   cfg.Clock,
		breaker: cfg.Breaker,
	}
}

// Sample asks the service for the current average color above the sensor.
func (c *Client) Sample(ctx context.Context) (Sample, error) {
	s, err := resilience.ExecuteWithResult(c.breaker, tripsBreaker, func() (Sample, error) {
		return c.roundTrip(ctx)
	})
	if errors.Is(err, resilience.ErrOpen) {
		return Sample{}, apperrors.Wrap(err, apperrors.Unavailable, "sampler failing fast")
	}
	return s, err
}

// A stale reply still proves the channel works.
func tripsBreaker(err error) bool {
	return !apperrors.IsCode(err, apperrors.StaleReply)
}

func (c *Client) roundTrip(ctx context.Context) (Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "unix", c.path)
	if err != nil {
		return Sample{}, apperrors.Wrap(err, apperrors.Unavailable, "connect").WithMetadata("path", c.path)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write([]byte(Command + "\x00")); err != nil {
		return Sample{}, classify(err, "send command")
	}

	// The reply is fixed-length; the service may keep the connection open.
	var buf [ReplySize + 1]byte
	n, err := io.ReadFull(conn, buf[:ReplySize])
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Sample{}, apperrors.Newf(apperrors.InvalidReply, "short reply: %d of %d bytes", n, ReplySize)
	}
	if err != nil {
		return Sample{}, classify(err, "read reply")
	}
	if trailingBytes(conn, buf[ReplySize:]) {
		return Sample{}, apperrors.Newf(apperrors.InvalidReply, "reply longer than %d bytes", ReplySize)
	}

	var s Sample
	if err := s.UnmarshalBinary(buf[:ReplySize]); err != nil {
		return Sample{}, err
	}

	if age := timeutil.Since(c.clock, s.Timestamp); age > c.maxAge {
		slog.Debug("screenshot too old", "age", age)
		return Sample{}, apperrors.Newf(apperrors.StaleReply, "reply is %v old", age)
	}
	return s, nil
}

// trailingBytes reports whether the peer already queued data past the
// reply. It waits at most trailingWindow.
func trailingBytes(conn net.Conn, scratch []byte) bool {
	_ = conn.SetReadDeadline(time.Now().Add(trailingWindow))
	n, _ := conn.Read(scratch)
	return n > 0
}

func classify(err error, op string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.Wrap(err, apperrors.Timeout, op)
	}
	return apperrors.Wrap(err, apperrors.Unavailable, op)
}
