package discovery

import (
	"context"
	"strings"
	"testing"
)

func TestDiffDisappearedExactlyOne(t *testing.T) {
	before := []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}
	after := []string{"/dev/ttyUSB0"}

	got, err := DiffDisappeared(before, after)
	if err != nil {
		t.Fatalf("DiffDisappeared: %v", err)
	}
	if got != "/dev/ttyUSB1" {
		t.Errorf("DiffDisappeared = %q, want /dev/ttyUSB1", got)
	}
}

func TestDiffDisappearedNone(t *testing.T) {
	before := []string{"/dev/ttyUSB0"}
	after := []string{"/dev/ttyUSB0"}

	if _, err := DiffDisappeared(before, after); err == nil {
		t.Fatal("DiffDisappeared returned nil error when nothing disappeared")
	}
}

func TestDiffDisappearedMultiple(t *testing.T) {
	before := []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2"}
	after := []string{"/dev/ttyUSB2"}

	if _, err := DiffDisappeared(before, after); err == nil {
		t.Fatal("DiffDisappeared returned nil error when multiple ports disappeared")
	}
}

func TestSynthesizeSerialPrefersUSBSerialNumber(t *testing.T) {
	usb := USBInfo{SerialNumber: "ABC123", VID: "1234", PID: "5678"}
	if got := synthesizeSerial(usb); got != "ABC123" {
		t.Errorf("synthesizeSerial = %q, want ABC123", got)
	}
}

func TestSynthesizeSerialFallsBackToVIDPID(t *testing.T) {
	usb := USBInfo{VID: "1234", PID: "5678"}
	got := synthesizeSerial(usb)
	if !strings.Contains(got, "1234") || !strings.Contains(got, "5678") {
		t.Errorf("synthesizeSerial = %q, want it to contain VID/PID", got)
	}
}

func TestSynthesizeSerialFallsBackToRandom(t *testing.T) {
	got := synthesizeSerial(USBInfo{})
	if !strings.HasPrefix(got, "fallback-") {
		t.Errorf("synthesizeSerial = %q, want fallback- prefix", got)
	}
}

func TestAutoReconnectNotFoundDoesNotFailWholeCall(t *testing.T) {
	h := AutoReconnect(context.Background(), []RobotConfig{{RobotType: "follower", RobotID: "arm1", SerialNumber: "does-not-exist"}})
	out, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("AutoReconnect.Wait: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d results, want 1", len(out))
	}
	if out[0].Connected {
		t.Error("Connected = true for a serial number no port can match")
	}
	if out[0].Error != "not found" {
		t.Errorf("Error = %q, want \"not found\"", out[0].Error)
	}
}
