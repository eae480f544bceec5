// Package armctl is the façade over the runtime that drives STS3215-based
// 6-DOF serial-bus arms: port discovery, calibration, and teleoperation.
// Subpackages (protocol, transport, bus, profile, discovery, calibration,
// teleop, process) implement each concern; this package wires them into
// the public operations a host application calls.
package armctl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sts3215/armctl/calibration"
	"github.com/sts3215/armctl/discovery"
	"github.com/sts3215/armctl/process"
	"github.com/sts3215/armctl/profile"
	"github.com/sts3215/armctl/teleop"
)

// TransportError wraps a failure opening, writing to, or reading from a
// serial port.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("armctl: transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError wraps a malformed or unparsable wire frame.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("armctl: protocol %s: %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// TimeoutError wraps a bus operation that exhausted its retry ladder.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("armctl: %s timed out", e.Op) }

// ConfigurationError wraps an invalid or incomplete request, such as a
// connection with no open bus.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("armctl: configuration error in %s: %v", e.Op, e.Err)
}
func (e *ConfigurationError) Unwrap() error { return e.Err }

// StoppedError wraps process.ErrStopped with the operation name that was
// cancelled.
type StoppedError struct {
	Op string
}

func (e *StoppedError) Error() string { return fmt.Sprintf("armctl: %s stopped by caller", e.Op) }
func (e *StoppedError) Unwrap() error { return process.ErrStopped }

// NotFoundError wraps a discovery match failure: no port carries the
// requested serial number, or no motor answered on it.
type NotFoundError struct {
	Op  string
	Err error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("armctl: %s: %v", e.Op, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// RobotConfig names a robot to look for during auto-reconnect.
type RobotConfig = discovery.RobotConfig

// Connection is an exclusive handle on one robot's open port, transport
// and bus.
type Connection = discovery.Connection

// FindPort runs interactive single-port discovery, delegating port
// selection to selector (a host-supplied callback). robotID overrides
// the placeholder robot id stamped on the resulting Connection.
func FindPort(selector discovery.PortSelector, robotID string) *process.Handle[[]*Connection] {
	return discovery.FindPort(selector, robotID)
}

// Connect opens a specific port path directly.
func Connect(portPath, robotType, robotID string) (*Connection, error) {
	conn, err := discovery.Connect(portPath, robotType, robotID)
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	return conn, nil
}

// AutoReconnect matches each requested config against currently visible
// ports and verifies each match with a live ping.
func AutoReconnect(ctx context.Context, configs []RobotConfig) *process.Handle[[]*Connection] {
	return discovery.AutoReconnect(ctx, configs)
}

// ReleaseMotors clears Torque_Enable on motorIDs (default: every id in
// prof), letting the joints move freely.
func ReleaseMotors(ctx context.Context, conn *Connection, prof profile.Profile, motorIDs []int) error {
	if conn == nil || conn.Bus == nil {
		return &ConfigurationError{Op: "release_motors", Err: errors.New("connection has no open bus")}
	}
	ids := motorIDs
	if len(ids) == 0 {
		ids = prof.IDs()
	}
	if err := conn.Bus.ReleaseMotors(ctx, ids); err != nil {
		return &TransportError{Op: "release_motors", Err: err}
	}
	return nil
}

// CalibrateOptions configures a Calibrate call.
type CalibrateOptions struct {
	OnProgress   func(step string)
	OnLiveUpdate func(calibration.LiveUpdate)
	UserFinished <-chan struct{}
	OutputPath   string
}

// Calibrate runs the reset-offsets -> set-homing -> record-range ->
// write-limits -> persist state machine against conn and returns a
// handle whose result resolves to the persisted Calibration Artifact.
func Calibrate(ctx context.Context, conn *Connection, prof profile.Profile, opts CalibrateOptions) *process.Handle[calibration.Artifact] {
	if conn == nil || conn.Bus == nil {
		h, finish := process.New[calibration.Artifact]()
		finish(nil, &ConfigurationError{Op: "calibrate", Err: errors.New("connection has no open bus")})
		return h
	}
	return calibration.Calibrate(ctx, calibration.Config{
		Bus:          conn.Bus,
		Profile:      prof,
		RobotType:    conn.RobotType,
		RobotID:      conn.RobotID,
		OnProgress:   opts.OnProgress,
		OnLiveUpdate: opts.OnLiveUpdate,
		UserFinished: opts.UserFinished,
		OutputPath:   opts.OutputPath,
	})
}

// TeleoperateOptions configures a Teleoperate call.
type TeleoperateOptions struct {
	Artifact      calibration.Artifact
	Variant       teleop.Variant
	StepSize      int
	UpdateRate    int
	KeyTimeout    int // milliseconds; 0 uses the package default
	OnStateUpdate func(teleop.State)
}

// Teleoperate builds a teleoperation Engine against conn. The returned
// Engine is the "TeleoperationProcess" handle from the public interface:
// its Start/Stop/GetState/UpdateKeyState/Disconnect methods (and
// MoveMotor/MoveMotors for the direct variant) are the full surface a
// host needs.
func Teleoperate(ctx context.Context, conn *Connection, prof profile.Profile, opts TeleoperateOptions) (*teleop.Engine, error) {
	if conn == nil || conn.Bus == nil {
		return nil, &ConfigurationError{Op: "teleoperate", Err: errors.New("connection has no open bus")}
	}
	cfg := teleop.Config{
		Bus:           conn.Bus,
		Profile:       prof,
		Artifact:      opts.Artifact,
		Variant:       opts.Variant,
		StepSize:      opts.StepSize,
		UpdateRate:    opts.UpdateRate,
		OnStateUpdate: opts.OnStateUpdate,
	}
	if opts.KeyTimeout > 0 {
		cfg.KeyTimeout = msToDuration(opts.KeyTimeout)
	}
	e, err := teleop.New(ctx, cfg)
	if err != nil {
		return nil, &ConfigurationError{Op: "teleoperate", Err: err}
	}
	return e, nil
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
