// Package transport owns a single open serial line. It is the only
// package in the module that touches an OS serial port; everything above
// it talks bytes. A Transport is single-owner: concurrent Write or
// concurrent ReadOnce calls on the same Transport are a usage error, left
// to the caller (the bus package) to serialize.
package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Port is the subset of go.bug.st/serial's Port interface a Transport
// needs. Tests substitute a fake implementation.
type Port interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// readTimeoutSetter is implemented by go.bug.st/serial's Port. Setting it
// bounds the blocking Read call the ReadOnce goroutine makes, so that
// goroutine always returns instead of leaking past our own timer when the
// line stays silent.
type readTimeoutSetter interface {
	SetReadTimeout(t time.Duration) error
}

// Transport is a scoped handle on one opened serial line.
type Transport struct {
	port Port

	mu     sync.Mutex
	closed bool
}

// Open opens portPath at the fixed STS3215 line settings: 1_000_000 baud,
// 8 data bits, no parity, one stop bit.
func Open(portPath string) (*Transport, error) {
	mode := &serial.Mode{
		BaudRate: 1_000_000,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(portPath, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", portPath, err)
	}
	return New(p), nil
}

// New wraps an already-opened Port. Exposed for tests and for callers
// that obtained a Port through other means (e.g. discovery's probing).
func New(p Port) *Transport {
	return &Transport{port: p}
}

// Write performs a single complete write.
func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return fmt.Errorf("transport: write on closed transport")
	}
	_, err := t.port.Write(data)
	if err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// ErrTimeout is returned by ReadOnce when no data arrives within timeout.
var ErrTimeout = fmt.Errorf("transport: read timed out")

// ReadOnce waits for the next incoming chunk and returns it in one shot;
// it does not accumulate bytes across calls. The read is backed by a
// one-shot goroutine reading from the port; that goroutine delivers its
// result over a buffered channel, so its send never blocks even when
// ReadOnce has already returned on a timeout or ctx cancellation.
func (t *Transport) ReadOnce(ctx context.Context, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("transport: read on closed transport")
	}

	if rts, ok := t.port.(readTimeoutSetter); ok {
		_ = rts.SetReadTimeout(timeout)
	}

	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		buf := make([]byte, 256)
		n, err := t.port.Read(buf)
		if err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{data: append([]byte(nil), buf[:n]...)}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("transport: read: %w", r.err)
		}
		return r.data, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the underlying port. It is idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.port.Close()
}
