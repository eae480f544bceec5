package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sts3215/armctl/protocol"
	"github.com/sts3215/armctl/transport"
)

// scriptedPort answers reads according to a per-write script: the k-th
// write triggers the k-th scripted response (nil means "never answer").
type scriptedPort struct {
	mu        sync.Mutex
	writes    [][]byte
	responses [][]byte // indexed by write count, 1-based lookup via writes count
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.writes = append(p.writes, append([]byte(nil), b...))
	p.mu.Unlock()
	return len(b), nil
}

func (p *scriptedPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	idx := len(p.writes) - 1
	var resp []byte
	if idx >= 0 && idx < len(p.responses) {
		resp = p.responses[idx]
	}
	p.mu.Unlock()

	if resp == nil {
		time.Sleep(150 * time.Millisecond)
		return 0, errNoData
	}
	n := copy(buf, resp)
	return n, nil
}

func (p *scriptedPort) Close() error { return nil }

type staticErr string

func (e staticErr) Error() string { return string(e) }

const errNoData = staticErr("scriptedPort: no data")

func readResponse(id byte, position uint16) []byte {
	lo := byte(position & 0xFF)
	hi := byte(position >> 8)
	params := []byte{lo, hi}
	length := byte(len(params) + 2)
	sum := int(id) + int(length) + 0
	for _, pb := range params {
		sum += int(pb)
	}
	cs := byte(^sum)
	out := []byte{0xFF, 0xFF, id, length, 0}
	out = append(out, params...)
	out = append(out, cs)
	return out
}

func TestReadPositionHappyPathFirstAttempt(t *testing.T) {
	port := &scriptedPort{responses: [][]byte{readResponse(1, 2048)}}
	b := New(transport.New(port))

	got, ok := b.ReadPosition(context.Background(), 1)
	if !ok {
		t.Fatal("ReadPosition returned ok=false")
	}
	if got != 2048 {
		t.Errorf("ReadPosition = %d, want 2048", got)
	}
	if len(port.writes) != 1 {
		t.Errorf("issued %d writes, want exactly 1", len(port.writes))
	}
}

func TestReadPositionRetriesThenSucceeds(t *testing.T) {
	port := &scriptedPort{responses: [][]byte{nil, nil, readResponse(3, 1500)}}
	b := New(transport.New(port))

	got, ok := b.ReadPosition(context.Background(), 3)
	if !ok {
		t.Fatal("ReadPosition returned ok=false")
	}
	if got != 1500 {
		t.Errorf("ReadPosition = %d, want 1500", got)
	}
	if len(port.writes) != 3 {
		t.Errorf("issued %d writes, want exactly 3", len(port.writes))
	}
}

func TestReadPositionExhaustsRetries(t *testing.T) {
	port := &scriptedPort{}
	b := New(transport.New(port))

	_, ok := b.ReadPosition(context.Background(), 1)
	if ok {
		t.Fatal("ReadPosition returned ok=true on a silent line")
	}
	if len(port.writes) != MaxRetries {
		t.Errorf("issued %d writes, want exactly %d", len(port.writes), MaxRetries)
	}
}

func TestReadAllPositionsFallsBackOnSilence(t *testing.T) {
	port := &scriptedPort{}
	b := New(transport.New(port))

	got := b.ReadAllPositions(context.Background(), []int{1, 2, 3, 4, 5, 6})
	if len(got) != 6 {
		t.Fatalf("got %d positions, want 6", len(got))
	}
	for i, v := range got {
		if v != protocol.FallbackPosition {
			t.Errorf("position[%d] = %d, want fallback %d", i, v, protocol.FallbackPosition)
		}
	}
}

func TestWriteRegisterBuildsExpectedFrame(t *testing.T) {
	port := &scriptedPort{}
	b := New(transport.New(port))

	word, err := protocol.EncodeSignMagnitude(-1)
	if err != nil {
		t.Fatalf("EncodeSignMagnitude: %v", err)
	}
	if err := b.WriteRegister(context.Background(), 1, protocol.AddrHomingOffset, word); err != nil {
		t.Fatalf("WriteRegister: %v", err)
	}
	if len(port.writes) != 1 {
		t.Fatalf("issued %d writes, want 1", len(port.writes))
	}
	raw := port.writes[0]
	frame, err := protocol.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []byte{31, 0x01, 0x08}
	for i := range want {
		if frame.Params[i] != want[i] {
			t.Errorf("Params[%d] = %#x, want %#x", i, frame.Params[i], want[i])
		}
	}
}
