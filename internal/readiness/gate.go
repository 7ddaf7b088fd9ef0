// Package readiness waits for a container to announce it is ready by
// scanning its log stream for a marker line.
package readiness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultSentinel is printed by LocalStack once every requested service is up.
const DefaultSentinel = "Ready."

var (
	// ErrTimeout is returned when the sentinel did not show up in time.
	ErrTimeout = errors.New("timeout before LocalStack was ready")
	// ErrStreamClosed is returned when the log stream ends first, which
	// happens when the container exits.
	ErrStreamClosed = errors.New("log stream ended before LocalStack was ready")
)

// Options configures Wait.
type Options struct {
	Sentinel string        // defaults to DefaultSentinel
	Timeout  time.Duration // must be positive
	Log      io.Writer     // every scanned line is copied here when set
}

// Wait reads stream line by line until a line contains the sentinel, the
// timeout elapses, the stream ends or ctx is done, whichever happens first.
// The stream is closed in every case and Wait returns only after the reader
// goroutine has exited, so no line is handled after Wait returns. Closing the
// stream must unblock a pending Read.
func Wait(ctx context.Context, stream io.ReadCloser, opts Options) error {
	if opts.Timeout <= 0 {
		stream.Close()
		return fmt.Errorf("readiness timeout must be positive, got %s", opts.Timeout)
	}

	sentinel := opts.Sentinel
	if sentinel == "" {
		sentinel = DefaultSentinel
	}

	var stopped atomic.Bool
	result := make(chan error, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)

		scanner := bufio.NewScanner(stream)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			if stopped.Load() {
				return
			}

			line := scanner.Text()
			if opts.Log != nil && !stopped.Load() {
				fmt.Fprintln(opts.Log, line)
			}
			if strings.Contains(line, sentinel) {
				result <- nil
				return
			}
		}

		if err := scanner.Err(); err != nil && !stopped.Load() {
			result <- fmt.Errorf("%w: %w", ErrStreamClosed, err)
			return
		}
		result <- ErrStreamClosed
	}()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-result:
	case <-timer.C:
		err = fmt.Errorf("%w (waited %s)", ErrTimeout, opts.Timeout)
	case <-ctx.Done():
		err = ctx.Err()
	}

	stopped.Store(true)
	stream.Close()
	<-done

	return err
}
