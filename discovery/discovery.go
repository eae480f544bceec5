// Package discovery matches a logical robot identity to a physical
// serial port, in both interactive and auto-reconnect modes, and owns
// the resulting Connection's transport and bus for the caller.
package discovery

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"

	"github.com/sts3215/armctl/bus"
	"github.com/sts3215/armctl/process"
	"github.com/sts3215/armctl/transport"
)

// baudRate is the fixed STS3215 line speed used while probing ports.
const baudRate = 1_000_000

// USBInfo carries whatever USB descriptor fields the platform exposed
// for a port. Any field may be empty.
type USBInfo struct {
	VID          string
	PID          string
	SerialNumber string
	Manufacturer string
	Product      string
}

// RobotConfig names a robot the caller expects to find: used as the
// input to AutoReconnect and, once discovered, as the identity stamped
// onto a Connection.
type RobotConfig struct {
	RobotType    string
	RobotID      string
	SerialNumber string
}

// Connection is an exclusive handle on one opened serial line, carrying
// the identity discovery assigned it. A Connection owns its Transport
// and Bus; closing it releases the port.
type Connection struct {
	RobotType    string
	RobotID      string
	SerialNumber string
	Port         string
	USB          USBInfo
	Connected    bool
	Error        string

	Transport *transport.Transport
	Bus       *bus.Bus
}

// Close releases the underlying transport, if one was opened.
func (c *Connection) Close() error {
	if c.Transport == nil {
		return nil
	}
	return c.Transport.Close()
}

// PortSelector is supplied by the host; it presents the available ports
// to the user and returns the one chosen. The core never renders UI
// itself.
type PortSelector func(available []string) (string, error)

// FindPort runs interactive single-port discovery: it asks the host to
// choose one port via selector, opens it, derives identity from its USB
// descriptor, and returns a one-element Connection list. robotID, if
// empty, is left for the caller to override after the fact.
func FindPort(selector PortSelector, robotID string) *process.Handle[[]*Connection] {
	h, finish := process.New[[]*Connection]()

	go func() {
		available, err := ListPorts()
		if err != nil {
			finish(nil, fmt.Errorf("discovery: list ports: %w", err))
			return
		}

		chosen, err := selector(available)
		if err != nil {
			finish(nil, fmt.Errorf("discovery: port selection: %w", err))
			return
		}

		select {
		case <-h.Stopped():
			finish(nil, process.ErrStopped)
			return
		default:
		}

		tr, err := transport.Open(chosen)
		if err != nil {
			finish(nil, fmt.Errorf("discovery: open %s: %w", chosen, err))
			return
		}

		usb := lookupUSBInfo(chosen)
		conn := &Connection{
			RobotType:    "follower",
			RobotID:      robotID,
			SerialNumber: synthesizeSerial(usb),
			Port:         chosen,
			USB:          usb,
			Connected:    true,
			Transport:    tr,
			Bus:          bus.New(tr),
		}
		finish([]*Connection{conn}, nil)
	}()

	return h
}

// Connect opens a specific port path directly, bypassing discovery.
// This is the node/native-only path from the public interface: the
// caller already knows which port it wants.
func Connect(portPath, robotType, robotID string) (*Connection, error) {
	tr, err := transport.Open(portPath)
	if err != nil {
		return nil, fmt.Errorf("discovery: connect %s: %w", portPath, err)
	}
	usb := lookupUSBInfo(portPath)
	return &Connection{
		RobotType:    robotType,
		RobotID:      robotID,
		SerialNumber: synthesizeSerial(usb),
		Port:         portPath,
		USB:          usb,
		Connected:    true,
		Transport:    tr,
		Bus:          bus.New(tr),
	}, nil
}

// AutoReconnect matches each requested config against the ports
// currently visible, verifies each candidate with a live ping, and
// returns one Connection per config in the same order as configs. A
// config that cannot be matched or does not answer is returned with
// Connected=false and Error set; the whole call never fails because one
// arm is missing.
func AutoReconnect(ctx context.Context, configs []RobotConfig) *process.Handle[[]*Connection] {
	h, finish := process.New[[]*Connection]()

	go func() {
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			finish(nil, fmt.Errorf("discovery: enumerate ports: %w", err))
			return
		}

		out := make([]*Connection, len(configs))
		for i, cfg := range configs {
			select {
			case <-h.Stopped():
				finish(nil, process.ErrStopped)
				return
			default:
			}
			out[i] = matchAndVerify(ctx, cfg, ports)
		}
		finish(out, nil)
	}()

	return h
}

func matchAndVerify(ctx context.Context, cfg RobotConfig, ports []*enumerator.PortDetails) *Connection {
	conn := &Connection{
		RobotType:    cfg.RobotType,
		RobotID:      cfg.RobotID,
		SerialNumber: cfg.SerialNumber,
	}

	var matched *enumerator.PortDetails
	for _, p := range ports {
		usb := usbInfoFrom(p)
		if synthesizeSerial(usb) == cfg.SerialNumber {
			matched = p
			break
		}
	}
	if matched == nil {
		conn.Connected = false
		conn.Error = "not found"
		return conn
	}

	conn.Port = matched.Name
	conn.USB = usbInfoFrom(matched)

	tr, err := transport.Open(matched.Name)
	if err != nil {
		conn.Connected = false
		conn.Error = fmt.Sprintf("open failed: %v", err)
		return conn
	}

	b := bus.New(tr)
	if _, ok := b.ReadPosition(ctx, 1); !ok {
		conn.Connected = false
		conn.Error = "no motor response"
		_ = tr.Close()
		return conn
	}

	conn.Connected = true
	conn.Transport = tr
	conn.Bus = b
	return conn
}

// ListPorts returns the names of every currently visible serial port.
func ListPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return names, nil
}

// SnapshotPorts is an alias for ListPorts used by cable-pairing
// discovery, kept as a distinct name so call sites read as what they
// mean: "take a snapshot", not "enumerate ports".
func SnapshotPorts() ([]string, error) {
	return ListPorts()
}

// DiffDisappeared compares two port snapshots taken before and after
// the operator unplugs a cable and returns the single path that
// disappeared. It fails with an explanatory error if zero or more than
// one port disappeared.
func DiffDisappeared(before, after []string) (string, error) {
	afterSet := make(map[string]bool, len(after))
	for _, p := range after {
		afterSet[p] = true
	}

	var disappeared []string
	for _, p := range before {
		if !afterSet[p] {
			disappeared = append(disappeared, p)
		}
	}

	switch len(disappeared) {
	case 0:
		return "", fmt.Errorf("discovery: no port disappeared, nothing was unplugged")
	case 1:
		return disappeared[0], nil
	default:
		return "", fmt.Errorf("discovery: %d ports disappeared (%s), expected exactly 1",
			len(disappeared), strings.Join(disappeared, ", "))
	}
}

func usbInfoFrom(p *enumerator.PortDetails) USBInfo {
	if p == nil || !p.IsUSB {
		return USBInfo{}
	}
	return USBInfo{
		VID:          p.VID,
		PID:          p.PID,
		SerialNumber: p.SerialNumber,
	}
}

func lookupUSBInfo(portPath string) USBInfo {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return USBInfo{}
	}
	for _, p := range ports {
		if p.Name == portPath {
			return usbInfoFrom(p)
		}
	}
	return USBInfo{}
}

// synthesizeSerial builds a stable identity string from whatever USB
// fields were readable, or a timestamp/random fallback when none were.
func synthesizeSerial(usb USBInfo) string {
	if usb.SerialNumber != "" {
		return usb.SerialNumber
	}
	if usb.VID != "" || usb.PID != "" {
		return fmt.Sprintf("usb-%s-%s", usb.VID, usb.PID)
	}
	return fmt.Sprintf("fallback-%d-%d", time.Now().UnixNano(), rand.Intn(1_000_000))
}
