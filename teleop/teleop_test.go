package teleop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sts3215/armctl/bus"
	"github.com/sts3215/armctl/calibration"
	"github.com/sts3215/armctl/profile"
	"github.com/sts3215/armctl/transport"
)

// countingPort answers every read with a fixed Present_Position and
// records every write frame it sees, so tests can assert on write count
// and on the positions that were actually sent.
type countingPort struct {
	mu     sync.Mutex
	writes [][]byte
}

func (p *countingPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.writes = append(p.writes, append([]byte(nil), b...))
	p.mu.Unlock()
	return len(b), nil
}

func (p *countingPort) Read(buf []byte) (int, error) {
	resp := buildPositionResponse(1, 2048)
	n := copy(buf, resp)
	return n, nil
}

func (p *countingPort) Close() error { return nil }

func (p *countingPort) writeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

func buildPositionResponse(id byte, position int) []byte {
	lo := byte(position & 0xFF)
	hi := byte((position >> 8) & 0xFF)
	params := []byte{lo, hi}
	length := byte(len(params) + 2)
	sum := int(id) + int(length)
	for _, pb := range params {
		sum += int(pb)
	}
	cs := byte(^sum)
	out := []byte{0xFF, 0xFF, id, length, 0}
	out = append(out, params...)
	return append(out, cs)
}

func newEngine(t *testing.T, variant Variant, artifact calibration.Artifact) (*Engine, *countingPort) {
	t.Helper()
	port := &countingPort{}
	b := bus.New(transport.New(port))
	e, err := New(context.Background(), Config{
		Bus:      b,
		Profile:  profile.Default(),
		Artifact: artifact,
		Variant:  variant,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, port
}

func TestMoveMotorClampsToCalibratedRange(t *testing.T) {
	artifact := calibration.Artifact{
		profile.ShoulderPan: {ID: 1, RangeMin: 1000, RangeMax: 3000},
	}
	e, _ := newEngine(t, Direct, artifact)
	e.Start(context.Background())

	ok := e.MoveMotor(context.Background(), profile.ShoulderPan, 9999)
	if !ok {
		t.Fatal("MoveMotor returned false")
	}

	state := e.GetState()
	got := state.MotorConfigs[profile.ShoulderPan].CurrentPosition
	if got != 3000 {
		t.Errorf("CurrentPosition = %d, want 3000 (clamped)", got)
	}
}

func TestMoveMotorsReturnsPerMotorResults(t *testing.T) {
	e, _ := newEngine(t, Direct, nil)
	e.Start(context.Background())

	results := e.MoveMotors(context.Background(), map[profile.MotorName]int{
		profile.ShoulderPan:  500,
		profile.ElbowFlex:    1500,
		profile.MotorName("not_a_motor"): 10,
	})

	if !results[profile.ShoulderPan] || !results[profile.ElbowFlex] {
		t.Errorf("expected known motors to succeed: %+v", results)
	}
	if results[profile.MotorName("not_a_motor")] {
		t.Error("expected unknown motor to fail")
	}
}

func TestEscapeStopsLoopWithinOneTick(t *testing.T) {
	e, port := newEngine(t, Keyboard, nil)

	var mu sync.Mutex
	var lastState State
	e.onState = func(s State) {
		mu.Lock()
		lastState = s
		mu.Unlock()
	}

	e.Start(context.Background())
	e.UpdateKeyState("ArrowUp", true)
	time.Sleep(30 * time.Millisecond)

	e.UpdateKeyState(profile.EmergencyStopKey, true)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	active := lastState.IsActive
	mu.Unlock()
	if active {
		t.Error("IsActive = true after Escape, want false")
	}

	countAtEscape := port.writeCount()
	time.Sleep(50 * time.Millisecond)
	if port.writeCount() != countAtEscape {
		t.Errorf("writes continued after Escape: %d -> %d", countAtEscape, port.writeCount())
	}
}

func TestStopClearsKeyState(t *testing.T) {
	e, _ := newEngine(t, Keyboard, nil)
	e.Start(context.Background())
	e.UpdateKeyState("w", true)

	e.Stop()

	state := e.GetState()
	if state.IsActive {
		t.Error("IsActive = true after Stop")
	}
	if len(state.InputState) != 0 {
		t.Errorf("InputState not cleared after Stop: %+v", state.InputState)
	}
}
