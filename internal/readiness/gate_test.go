package readiness

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingCloser records whether Close was called.
type trackingCloser struct {
	io.Reader
	closed atomic.Bool
}

func (c *trackingCloser) Close() error {
	c.closed.Store(true)
	return nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWait_SentinelFound(t *testing.T) {
	stream := &trackingCloser{Reader: strings.NewReader("Starting mock services.\r\nWaiting for all LocalStack services to be ready\r\nReady.\r\nnever read\r\n")}
	var log bytes.Buffer

	err := Wait(context.Background(), stream, Options{Timeout: time.Second, Log: &log})
	require.NoError(t, err)

	assert.True(t, stream.closed.Load())
	assert.Contains(t, log.String(), "Waiting for all LocalStack services")
	assert.NotContains(t, log.String(), "never read")
}

func TestWait_SentinelInsideLine(t *testing.T) {
	stream := &trackingCloser{Reader: strings.NewReader("2020-05-01T10:00:00 Ready. took 3s\n")}

	require.NoError(t, Wait(context.Background(), stream, Options{Timeout: time.Second}))
}

func TestWait_CustomSentinel(t *testing.T) {
	stream := &trackingCloser{Reader: strings.NewReader("Ready.\nup and running\n")}

	require.NoError(t, Wait(context.Background(), stream, Options{Sentinel: "up and running", Timeout: time.Second}))
}

func TestWait_SentinelBeforeTimeoutCancelsTimer(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = pw.Write([]byte("Ready.\n"))
	}()

	start := time.Now()
	err := Wait(context.Background(), pr, Options{Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	// The reader side is closed, so the producer can no longer write.
	_, err = pw.Write([]byte("more\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestWait_TimeoutClosesStream(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("Starting mock services.\n"))
	}()

	timeout := 50 * time.Millisecond
	start := time.Now()
	err := Wait(context.Background(), pr, Options{Timeout: timeout})

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), timeout)

	_, err = pw.Write([]byte("Ready.\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestWait_LinesAfterTimeoutAreIgnored(t *testing.T) {
	pr, pw := io.Pipe()
	var log lockedBuffer

	err := Wait(context.Background(), pr, Options{Timeout: 20 * time.Millisecond, Log: &log})
	require.ErrorIs(t, err, ErrTimeout)

	_, _ = pw.Write([]byte("Ready.\n"))
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, log.String())
}

// slowWriter takes its time with every write and counts the writes still running.
type slowWriter struct {
	delay    time.Duration
	inFlight atomic.Int32
	writes   atomic.Int32
}

func (w *slowWriter) Write(p []byte) (int, error) {
	w.inFlight.Add(1)
	defer w.inFlight.Add(-1)
	time.Sleep(w.delay)
	w.writes.Add(1)
	return len(p), nil
}

func TestWait_ReturnsAfterLogWriteFinishes(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("Starting mock services.\n"))
	}()
	log := &slowWriter{delay: 100 * time.Millisecond}

	err := Wait(context.Background(), pr, Options{Timeout: 20 * time.Millisecond, Log: log})
	require.ErrorIs(t, err, ErrTimeout)

	assert.Zero(t, log.inFlight.Load())
	writes := log.writes.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, writes, log.writes.Load())
}

func TestWait_StreamEndsEarly(t *testing.T) {
	stream := &trackingCloser{Reader: strings.NewReader("Error starting infrastructure\n")}

	err := Wait(context.Background(), stream, Options{Timeout: time.Second})
	require.ErrorIs(t, err, ErrStreamClosed)
	assert.True(t, stream.closed.Load())
}

func TestWait_ContextCancelled(t *testing.T) {
	pr, _ := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Wait(ctx, pr, Options{Timeout: time.Second})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWait_InvalidTimeout(t *testing.T) {
	stream := &trackingCloser{Reader: strings.NewReader("Ready.\n")}

	err := Wait(context.Background(), stream, Options{})
	require.Error(t, err)
	assert.True(t, stream.closed.Load())
}
