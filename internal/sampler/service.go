package sampler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/yaap/device-oneplus-sm8150-common/internal/errors"
	"github.com/yaap/device-oneplus-sm8150-common/internal/resilience"
	"github.com/yaap/device-oneplus-sm8150-common/internal/screen"
	"github.com/yaap/device-oneplus-sm8150-common/internal/syncx"
	"github.com/yaap/device-oneplus-sm8150-common/internal/timeutil"
)

// Service defaults
const (
	DefaultWorkers = 2

	ioTimeout     = time.Second
	maxCommandLen = 64
	acceptBackoff = 50 * time.Millisecond
)

// HandlerFunc produces the raw reply for one command.
type HandlerFunc func(ctx context.Context) ([]byte, error)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Region  image.Rectangle
	Workers int
	Clock   timeutil.Clock
	// OnCapture observes every capture attempt; ok is false when the reply
	// had to fall back to the last good frame.
	OnCapture func(ok bool)
}

// Service answers take_screenshot requests on a unix stream socket. One
// connection carries one request and one reply.
type Service struct {
	capturer  screen.Capturer
	region    image.Rectangle
	clock     timeutil.Clock
	workers   int
	onCapture func(ok bool)
	lastGood  syncx.Latest[image.Image]
	warnedGen atomic.Uint64
	handlers  map[string]HandlerFunc
}

// NewService creates a sampler service around a capturer.
func NewService(capturer screen.Capturer, cfg ServiceConfig) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.BootClock{}
	}
	s := &Service{
		capturer:  capturer,
		region:    cfg.Region,
		clock:     cfg.Clock,
		workers:   cfg.Workers,
		onCapture: cfg.OnCapture,
		handlers:  make(map[string]HandlerFunc),
	}
	s.Handle(Command, func(ctx context.Context) ([]byte, error) {
		sample, err := s.TakeScreenshot(ctx)
		if err != nil {
			return nil, err
		}
		return sample.MarshalBinary()
	})
	return s
}

// Handle registers a command handler. Not safe once Serve is running.
func (s *Service) Handle(command string, fn HandlerFunc) {
	s.handlers[command] = fn
}

// TakeScreenshot captures the region and averages it. A failed capture
// reuses the last good frame; only with no frame at all does it fail.
func (s *Service) TakeScreenshot(ctx context.Context) (Sample, error) {
	img, err := s.capturer.Capture(ctx, s.region)
	if err == nil {
		s.lastGood.Store(img)
	} else {
		prev, ok := s.lastGood.Load()
		if !ok {
			s.observe(false)
			return Sample{}, apperrors.Wrap(err, apperrors.CaptureFailed, "capture with no fallback frame")
		}
		// Warn once per fallback frame; a long outage would otherwise log
		// on every sensor event.
		if gen := s.lastGood.Generation(); s.warnedGen.Swap(gen) != gen {
			slog.Warn("capture failed, reusing last frame", "error", err)
		} else {
			slog.Debug("capture failed, reusing last frame", "error", err)
		}
		img = prev
	}
	s.observe(err == nil)

	r, g, b := Average(img)
	return Sample{R: r, G: g, B: b, Timestamp: s.clock.Nanotime()}, nil
}

func (s *Service) observe(ok bool) {
	if s.onCapture != nil {
		s.onCapture(ok)
	}
}

// ListenAndServe binds the unix socket at path, replacing a stale socket
// left by a previous instance, and serves until ctx is done.
func (s *Service) ListenAndServe(ctx context.Context, path string) error {
	ln, err := listenUnix(ctx, path)
	if err != nil {
		return err
	}
	slog.Info("sampler listening", "path", path, "region", s.region, "workers", s.workers)
	return s.Serve(ctx, ln)
}

func listenUnix(ctx context.Context, path string) (net.Listener, error) {
	var ln net.Listener
	err := resilience.Retry(ctx, resilience.BindRetryConfig(), func() error {
		if err := removeStaleSocket(path); err != nil {
			return err
		}
		l, err := net.Listen("unix", path)
		if err != nil {
			return err
		}
		ln = l
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	return ln, nil
}

func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}

// Serve accepts connections on ln and dispatches them to the worker pool.
// It closes ln when ctx is done and returns after in-flight requests finish.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	conns := make(chan net.Conn)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for conn := range conns {
				s.handle(ctx, conn)
			}
		}()
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer func() {
		close(conns)
		wg.Wait()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("accept failed", "error", err)
			time.Sleep(acceptBackoff)
			continue
		}
		select {
		case conns <- conn:
		case <-ctx.Done():
			_ = conn.Close()
			return nil
		}
	}
}

func (s *Service) handle(ctx context.Context, conn net.Conn) {
	// Closing releases everything the request held, including when the
	// client abandoned it.
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(ioTimeout))
	cmd, err := readCommand(conn)
	if err != nil {
		slog.Debug("read command failed", "error", err)
		return
	}
	h, ok := s.handlers[cmd]
	if !ok {
		slog.Warn("unknown command", "command", cmd)
		return
	}
	reply, err := h(ctx)
	if err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	if _, err := conn.Write(reply); err != nil {
		slog.Debug("client went away before reply", "error", err)
	}
}

// readCommand reads one NUL-terminated token. A trailing newline is
// tolerated so the socket can be poked with line-oriented tools.
func readCommand(r io.Reader) (string, error) {
	br := bufio.NewReaderSize(r, maxCommandLen)
	token, err := br.ReadSlice(0)
	switch {
	case err == nil:
		token = token[:len(token)-1]
	case errors.Is(err, io.EOF) && len(token) > 0:
	default:
		return "", err
	}
	return strings.TrimRight(string(token), "\r\n"), nil
}
