package sampler

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yaap/device-oneplus-sm8150-common/internal/errors"
	"github.com/yaap/device-oneplus-sm8150-common/internal/resilience"
	"github.com/yaap/device-oneplus-sm8150-common/internal/timeutil"
)

var testRegion = image.Rect(251, 988, 305, 1042)

// fakeCapturer returns a solid frame, or fails while failing is set.
type fakeCapturer struct {
	mu      sync.Mutex
	color   color.RGBA
	failing bool
	calls   atomic.Int32
}

func (f *fakeCapturer) Capture(_ context.Context, region image.Rectangle) (image.Image, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errors.New("compositor unavailable")
	}
	img := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = f.color.R, f.color.G, f.color.B, 255
	}
	return img, nil
}

func (f *fakeCapturer) Close() error { return nil }

func (f *fakeCapturer) set(c color.RGBA, failing bool) {
	f.mu.Lock()
	f.color, f.failing = c, failing
	f.mu.Unlock()
}

func socketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "als.sock")
}

// startService serves svc on a fresh socket until the test ends.
func startService(t *testing.T, svc *Service) string {
	t.Helper()
	path := socketPath(t)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return path
}

// startRaw serves every connection with fn instead of a Service.
func startRaw(t *testing.T, fn func(net.Conn)) string {
	t.Helper()
	path := socketPath(t)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go fn(conn)
		}
	}()
	return path
}

func newTestClient(path string, clock timeutil.Clock) *Client {
	return NewClient(ClientConfig{
		Path:    path,
		Timeout: 200 * time.Millisecond,
		Clock:   clock,
		Breaker: resilience.New("test", resilience.Config{Threshold: 100, ResetTimeout: time.Hour}),
	})
}

func TestSampleRoundTrip(t *testing.T) {
	clock := timeutil.NewFakeClock(int64(10 * time.Second))
	capt := &fakeCapturer{color: color.RGBA{R: 200, G: 120, B: 40}}
	path := startService(t, NewService(capt, ServiceConfig{Region: testRegion, Clock: clock}))

	s, err := newTestClient(path, clock).Sample(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Sample{R: 200, G: 120, B: 40, Timestamp: int64(10 * time.Second)}, s)
	assert.Equal(t, int32(1), capt.calls.Load())
}

func TestCaptureFailureFallsBackToLastFrame(t *testing.T) {
	clock := timeutil.NewFakeClock(1)
	capt := &fakeCapturer{color: color.RGBA{R: 90, G: 80, B: 70}}
	var (
		mu     sync.Mutex
		health []bool
	)
	svc := NewService(capt, ServiceConfig{Region: testRegion, Clock: clock, OnCapture: func(ok bool) {
		mu.Lock()
		health = append(health, ok)
		mu.Unlock()
	}})
	path := startService(t, svc)
	client := newTestClient(path, clock)

	_, err := client.Sample(context.Background())
	require.NoError(t, err)

	capt.set(color.RGBA{R: 1, G: 1, B: 1}, true)
	clock.Advance(500 * time.Millisecond)

	s, err := client.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(90), s.R)
	assert.Equal(t, uint32(80), s.G)
	assert.Equal(t, uint32(70), s.B)
	assert.Equal(t, clock.Nanotime(), s.Timestamp)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, health)
}

func TestCaptureFailureWithoutFallbackDropsReply(t *testing.T) {
	clock := timeutil.NewFakeClock(1)
	capt := &fakeCapturer{failing: true}
	path := startService(t, NewService(capt, ServiceConfig{Region: testRegion, Clock: clock}))

	_, err := newTestClient(path, clock).Sample(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.InvalidReply), "got %v", err)
}

func TestStaleReplyIsRejected(t *testing.T) {
	serviceClock := timeutil.NewFakeClock(int64(5 * time.Second))
	clientClock := timeutil.NewFakeClock(int64(5*time.Second + 1500*time.Millisecond))
	capt := &fakeCapturer{color: color.RGBA{R: 255, G: 255, B: 255}}
	path := startService(t, NewService(capt, ServiceConfig{Region: testRegion, Clock: serviceClock}))

	_, err := newTestClient(path, clientClock).Sample(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.StaleReply), "got %v", err)
	assert.True(t, apperrors.IsTransient(err))
}

func TestReplyWithinMaxAgeIsAccepted(t *testing.T) {
	serviceClock := timeutil.NewFakeClock(int64(5 * time.Second))
	clientClock := timeutil.NewFakeClock(int64(5*time.Second + 900*time.Millisecond))
	capt := &fakeCapturer{color: color.RGBA{R: 3, G: 4, B: 5}}
	path := startService(t, NewService(capt, ServiceConfig{Region: testRegion, Clock: serviceClock}))

	_, err := newTestClient(path, clientClock).Sample(context.Background())
	assert.NoError(t, err)
}

func TestServiceUnavailable(t *testing.T) {
	client := NewClient(ClientConfig{
		Path:    filepath.Join(t.TempDir(), "missing.sock"),
		Clock:   timeutil.NewFakeClock(1),
		Breaker: resilience.New("test", resilience.Config{Threshold: 2, ResetTimeout: time.Hour, HalfOpenSuccesses: 1}),
	})

	for i := 0; i < 2; i++ {
		_, err := client.Sample(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.Unavailable), "got %v", err)
		assert.False(t, errors.Is(err, resilience.ErrOpen))
	}

	_, err := client.Sample(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.Unavailable))
	assert.True(t, errors.Is(err, resilience.ErrOpen), "third failure should fail fast")
}

func TestSilentServiceTimesOut(t *testing.T) {
	path := startRaw(t, func(conn net.Conn) {
		defer conn.Close()
		time.Sleep(time.Second)
	})
	client := NewClient(ClientConfig{Path: path, Timeout: 50 * time.Millisecond, Clock: timeutil.NewFakeClock(1)})

	start := time.Now()
	_, err := client.Sample(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.Timeout), "got %v", err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestReplyOnHeldConnection(t *testing.T) {
	clock := timeutil.NewFakeClock(int64(time.Minute))
	reply, err := Sample{R: 12, G: 34, B: 56, Timestamp: clock.Nanotime()}.MarshalBinary()
	require.NoError(t, err)

	path := startRaw(t, func(conn net.Conn) {
		defer conn.Close()
		_, _ = readCommand(conn)
		_, _ = conn.Write(reply)
		time.Sleep(time.Second)
	})

	start := time.Now()
	s, err := newTestClient(path, clock).Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Sample{R: 12, G: 34, B: 56, Timestamp: int64(time.Minute)}, s)
	assert.Less(t, time.Since(start), 150*time.Millisecond, "reply should not wait for the peer to close")
}

func TestOversizedReplyIsRejected(t *testing.T) {
	path := startRaw(t, func(conn net.Conn) {
		defer conn.Close()
		_, _ = readCommand(conn)
		_, _ = conn.Write(make([]byte, ReplySize+6))
	})

	_, err := newTestClient(path, timeutil.NewFakeClock(1)).Sample(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.InvalidReply), "got %v", err)
}

func TestUndersizedReplyIsRejected(t *testing.T) {
	path := startRaw(t, func(conn net.Conn) {
		defer conn.Close()
		_, _ = readCommand(conn)
		_, _ = conn.Write(make([]byte, 16))
	})

	_, err := newTestClient(path, timeutil.NewFakeClock(1)).Sample(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.InvalidReply), "got %v", err)
}

func TestUnknownCommandClosesWithoutReply(t *testing.T) {
	capt := &fakeCapturer{}
	path := startService(t, NewService(capt, ServiceConfig{Region: testRegion, Clock: timeutil.NewFakeClock(1)}))

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("reboot\x00"))
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))

	n, err := conn.Read(make([]byte, ReplySize))
	assert.Equal(t, 0, n)
	assert.Error(t, err)
	assert.Equal(t, int32(0), capt.calls.Load())
}

func TestAbandonedRequestDoesNotWedgeService(t *testing.T) {
	clock := timeutil.NewFakeClock(1)
	capt := &fakeCapturer{color: color.RGBA{R: 7}}
	path := startService(t, NewService(capt, ServiceConfig{Region: testRegion, Workers: 1, Clock: clock}))

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("unix", path)
		require.NoError(t, err)
		_, _ = conn.Write([]byte(Command + "\x00"))
		require.NoError(t, conn.Close())
	}

	s, err := newTestClient(path, clock).Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(7), s.R)
}

func TestConcurrentClients(t *testing.T) {
	clock := timeutil.NewFakeClock(1)
	capt := &fakeCapturer{color: color.RGBA{R: 10, G: 20, B: 30}}
	path := startService(t, NewService(capt, ServiceConfig{Region: testRegion, Workers: 3, Clock: clock}))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := newTestClient(path, clock).Sample(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestListenAndServeReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)
	stale, err := net.Listen("unix", path)
	require.NoError(t, err)
	// Keep the file behind, as a crashed instance would.
	stale.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, stale.Close())

	clock := timeutil.NewFakeClock(1)
	svc := NewService(&fakeCapturer{color: color.RGBA{B: 99}}, ServiceConfig{Region: testRegion, Clock: clock})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.ListenAndServe(ctx, path) }()

	client := newTestClient(path, clock)
	require.Eventually(t, func() bool {
		s, err := client.Sample(context.Background())
		return err == nil && s.B == 99
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestReadCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"take_screenshot\x00", "take_screenshot", false},
		{"take_screenshot\n\x00", "take_screenshot", false},
		{"take_screenshot", "take_screenshot", false},
		{"", "", true},
	}
	for _, tt := range tests {
		client, server := net.Pipe()
		go func() {
			_, _ = client.Write([]byte(tt.in))
			_ = client.Close()
		}()
		got, err := readCommand(server)
		_ = server.Close()
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
