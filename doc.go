// Package armctl is documented in armctl.go; this file covers
// installation and command-line usage.
//
// # Installation
//
//	go install github.com/sts3215/armctl/cmd/armctl@latest
//
// # Usage
//
// Discover and calibrate a connected arm:
//
//	armctl find-port
//	armctl calibrate --robot-type follower --robot-id my_follower_arm
//
// Then start teleoperation:
//
//	armctl teleoperate --robot-type follower --robot-id my_follower_arm
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/armctl: CLI with find-port, calibrate and teleoperate subcommands
//   - cmd/armctl-monitor: live terminal dashboard for a running teleop session
//   - protocol: STS3215 wire-frame codec (no I/O)
//   - transport: single-owner serial line wrapper
//   - bus: per-motor register access with the read retry ladder
//   - profile: motor layout and default key map
//   - discovery: port-to-robot identity matching
//   - calibration: the calibration state machine and artifact store
//   - teleop: the teleoperation control loop
//   - process: the cooperative cancellation handle used across engines
package armctl
