package protocol

import "testing"

func TestSignMagnitudeRoundTrip(t *testing.T) {
	for v := -MaxMagnitude; v <= MaxMagnitude; v += 37 {
		word, err := EncodeSignMagnitude(v)
		if err != nil {
			t.Fatalf("EncodeSignMagnitude(%d) failed: %v", v, err)
		}
		got := DecodeSignMagnitude(word)
		if got != v {
			t.Errorf("DecodeSignMagnitude(EncodeSignMagnitude(%d)) = %d", v, got)
		}
	}
}

func TestSignMagnitudeKnownValue(t *testing.T) {
	word, err := EncodeSignMagnitude(-1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if word != 0x801 {
		t.Errorf("EncodeSignMagnitude(-1) = %#x, want 0x801", word)
	}
}

func TestSignMagnitudeOutOfRange(t *testing.T) {
	if _, err := EncodeSignMagnitude(2048); err == nil {
		t.Error("EncodeSignMagnitude(2048) should fail")
	}
	if _, err := EncodeSignMagnitude(-2048); err == nil {
		t.Error("EncodeSignMagnitude(-2048) should fail")
	}
}
