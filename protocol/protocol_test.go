package protocol

import "testing"

func TestBuildWriteParseRoundTrip(t *testing.T) {
	tests := []struct {
		id    byte
		addr  Address
		value uint16
	}{
		{1, AddrHomingOffset, 0x0801},
		{6, AddrGoalPosition, 2048},
		{3, AddrMinPositionLimit, 0},
		{2, AddrMaxPositionLimit, 4095},
	}

	for _, tt := range tests {
		raw := BuildWriteU16(tt.id, tt.addr, tt.value)
		frame, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%v) failed: %v", raw, err)
		}
		if frame.ID != tt.id {
			t.Errorf("ID = %d, want %d", frame.ID, tt.id)
		}
		if frame.Instruction != byte(InstWrite) {
			t.Errorf("Instruction = %#x, want %#x", frame.Instruction, InstWrite)
		}
		gotAddr := Address(frame.Params[0])
		gotValue := uint16(frame.Params[1]) | uint16(frame.Params[2])<<8
		if gotAddr != tt.addr || gotValue != tt.value {
			t.Errorf("decoded addr=%d value=%d, want addr=%d value=%d", gotAddr, gotValue, tt.addr, tt.value)
		}
	}
}

func TestChecksumExactValue(t *testing.T) {
	// encode_sign_magnitude(-1) -> 0x801, write frame for id=1 addr=31 has
	// params [31, 0x01, 0x08] and checksum ~(id + 5 + 3 + 31 + 1 + 8) & 0xFF.
	id := byte(1)
	raw := BuildWriteU16(id, AddrHomingOffset, 0x0801)
	want := byte(^(int(id) + 5 + 3 + 31 + 1 + 8))
	got := raw[len(raw)-1]
	if got != want {
		t.Errorf("checksum = %#x, want %#x", got, want)
	}
	wantParams := []byte{31, 0x01, 0x08}
	gotParams := raw[5 : len(raw)-1]
	if len(gotParams) != len(wantParams) || gotParams[0] != wantParams[0] || gotParams[1] != wantParams[1] || gotParams[2] != wantParams[2] {
		t.Errorf("params = %v, want %v", gotParams, wantParams)
	}
}

func TestParseRejectsBadChecksum(t *testing.T) {
	raw := BuildWriteU16(1, AddrGoalPosition, 100)
	raw[len(raw)-1] ^= 0xFF // corrupt checksum
	if _, err := Parse(raw); err == nil {
		t.Error("Parse accepted a frame with an invalid checksum")
	}
}

func TestParseRejectsShortFrame(t *testing.T) {
	if _, err := Parse([]byte{0xFF, 0xFF, 1, 2}); err == nil {
		t.Error("Parse accepted a too-short frame")
	}
}

func TestParseRejectsBadHeader(t *testing.T) {
	raw := BuildWriteU16(1, AddrGoalPosition, 100)
	raw[0] = 0x00
	if _, err := Parse(raw); err == nil {
		t.Error("Parse accepted a frame with a corrupt header")
	}
}

func TestBuildReadShape(t *testing.T) {
	raw := BuildRead(1, AddrPresentPosition, 2)
	frame, err := Parse(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if frame.ID != 1 {
		t.Errorf("ID = %d, want 1", frame.ID)
	}
	if frame.Instruction != byte(InstRead) {
		t.Errorf("Instruction = %#x, want %#x", frame.Instruction, InstRead)
	}
	if len(frame.Params) != 2 || frame.Params[0] != byte(AddrPresentPosition) || frame.Params[1] != 2 {
		t.Errorf("Params = %v, want [%d 2]", frame.Params, AddrPresentPosition)
	}
}
