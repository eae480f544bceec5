// Package bus implements per-motor register access and multi-motor
// fan-outs on top of a transport, including the progressiv retry ladder
// and inter-motor pacing that absorb the servo line's occasional silent
// drops.
package bus

import (
	"context"
	"time"

	"github.com/sts3215/armctl/protocol"
	"github.com/sts3215/armctl/transport"
)

const (
	// MaxRetries bounds the read retry ladder.
	MaxRetries = 3
	// InterMotorDelay paces fan-out operations across the shared
	// half-duplex line.
	InterMotorDelay = 10 * time.Millisecond
	// writeResponseWindow is how long WriteRegister waits for an optional
	// response before giving up on it; success never depends on it.
	writeResponseWindow = 200 * time.Millisecond
)

// Bus issues framed operations over one Transport using the protocol
// package's fixed register table. It does not add its own locking: callers own one bus
// per connection and use it from a single logical flow at a time, per the
// module's single-threaded cooperative concurrency model.
type Bus struct {
	t *transport.Transport
}

// New builds a Bus on top of an already-open transport.
func New(t *transport.Transport) *Bus {
	return &Bus{t: t}
}

// ReadPosition reads Present_Position for one motor, retrying with a
// progressive timeout ladder. Attempt k waits up to 100ms*k and sleeps
// 50ms*k before the next attempt. It returns ok=false after MaxRetries
// failed attempts; callers are expected to substitute the fallback
// position in that case.
func (b *Bus) ReadPosition(ctx context.Context, id int) (pos uint16, ok bool) {
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		timeout := 100 * time.Millisecond * time.Duration(attempt)

		req := protocol.BuildRead(byte(id), protocol.AddrPresentPosition, 2)
		if err := b.t.Write(req); err != nil {
			sleepOrDone(ctx, 50*time.Millisecond*time.Duration(attempt))
			continue
		}

		resp, err := b.t.ReadOnce(ctx, timeout)
		if err != nil {
			sleepOrDone(ctx, 50*time.Millisecond*time.Duration(attempt))
			continue
		}

		frame, err := protocol.Parse(resp)
		if err != nil || len(resp) < 7 || frame.ID != byte(id) || frame.Instruction != 0 {
			sleepOrDone(ctx, 50*time.Millisecond*time.Duration(attempt))
			continue
		}

		value, err := protocol.DecodeU16(frame.Params)
		if err != nil {
			sleepOrDone(ctx, 50*time.Millisecond*time.Duration(attempt))
			continue
		}
		return value, true
	}
	return 0, false
}

// ReadAllPositions reads each id in sequence (never in parallel),
// substituting protocol.FallbackPosition for any motor whose read fails,
// and pacing successive reads by InterMotorDelay.
func (b *Bus) ReadAllPositions(ctx context.Context, ids []int) []uint16 {
	out := make([]uint16, len(ids))
	for i, id := range ids {
		if v, ok := b.ReadPosition(ctx, id); ok {
			out[i] = v
		} else {
			out[i] = protocol.FallbackPosition
		}
		if i < len(ids)-1 {
			sleepOrDone(ctx, InterMotorDelay)
		}
	}
	return out
}

// WriteRegister writes a 2-byte register value. A response may or may not
// arrive; a short wait swallows it if present but success never depends
// on it.
func (b *Bus) WriteRegister(ctx context.Context, id int, addr protocol.Address, value uint16) error {
	req := protocol.BuildWriteU16(byte(id), addr, value)
	if err := b.t.Write(req); err != nil {
		return err
	}
	_, _ = b.t.ReadOnce(ctx, writeResponseWindow)
	return nil
}

// WriteGoalPosition writes Goal_Position for one motor.
func (b *Bus) WriteGoalPosition(ctx context.Context, id int, pos uint16) error {
	return b.WriteRegister(ctx, id, protocol.AddrGoalPosition, pos)
}

// ReleaseMotor clears Torque_Enable, letting the joint move freely.
func (b *Bus) ReleaseMotor(ctx context.Context, id int) error {
	return b.WriteRegister(ctx, id, protocol.AddrTorqueEnable, 0)
}

// LockMotor sets Torque_Enable, holding the joint at its goal position.
func (b *Bus) LockMotor(ctx context.Context, id int) error {
	return b.WriteRegister(ctx, id, protocol.AddrTorqueEnable, 1)
}

// ReleaseMotors releases each id in turn, paced by InterMotorDelay.
func (b *Bus) ReleaseMotors(ctx context.Context, ids []int) error {
	for i, id := range ids {
		if err := b.ReleaseMotor(ctx, id); err != nil {
			return err
		}
		if i < len(ids)-1 {
			sleepOrDone(ctx, InterMotorDelay)
		}
	}
	return nil
}

// LockMotors locks each id in turn, paced by InterMotorDelay.
func (b *Bus) LockMotors(ctx context.Context, ids []int) error {
	for i, id := range ids {
		if err := b.LockMotor(ctx, id); err != nil {
			return err
		}
		if i < len(ids)-1 {
			sleepOrDone(ctx, InterMotorDelay)
		}
	}
	return nil
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
