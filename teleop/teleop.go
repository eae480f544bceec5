// Package teleop drives one Robot Connection from either held keys or
// direct position commands, at a fixed tick rate, with per-motor
// clamping to the calibrated (or default) range.
package teleop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sts3215/armctl/bus"
	"github.com/sts3215/armctl/calibration"
	"github.com/sts3215/armctl/profile"
)

// Variant selects which input surface an Engine exposes.
type Variant string

const (
	Keyboard Variant = "keyboard"
	Direct   Variant = "direct"
)

const (
	defaultStepSize   = 25
	defaultUpdateRate = 120 // Hz
	defaultKeyTimeout = 150 * time.Millisecond
)

// MotorConfig is one motor's live teleoperation state.
type MotorConfig struct {
	ID              int
	Name            profile.MotorName
	CurrentPosition int
	MinPosition     int
	MaxPosition     int
}

func (m MotorConfig) clamp(v int) int {
	if v < m.MinPosition {
		return m.MinPosition
	}
	if v > m.MaxPosition {
		return m.MaxPosition
	}
	return v
}

// State is a snapshot emitted to the host callback.
type State struct {
	IsActive    bool
	MotorConfigs map[profile.MotorName]MotorConfig
	LastUpdate  time.Time
	InputState  map[string]bool
}

// Config configures a teleoperation Engine.
type Config struct {
	Bus      *bus.Bus
	Profile  profile.Profile
	Artifact calibration.Artifact // optional; default [0,4095] range if nil

	Variant Variant

	StepSize   int           // keyboard only, default 25
	UpdateRate int           // keyboard only, Hz, default 120
	KeyTimeout time.Duration // keyboard only, default 150ms

	OnStateUpdate func(State)
}

// Engine is a running teleoperation session against one bus.
type Engine struct {
	bus      *bus.Bus
	profile  profile.Profile
	variant  Variant
	stepSize int
	period   time.Duration
	keyTTL   time.Duration
	onState  func(State)

	mu        sync.Mutex
	motors    map[profile.MotorName]MotorConfig
	targets   map[profile.MotorName]int
	keys      map[string]time.Time
	isActive  bool

	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// New builds an Engine, reading current positions from the bus to seed
// each motor's CurrentPosition (falling back to mid-range on a read
// failure).
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Bus == nil {
		return nil, fmt.Errorf("teleop: Config.Bus is required")
	}

	stepSize := cfg.StepSize
	if stepSize == 0 {
		stepSize = defaultStepSize
	}
	rate := cfg.UpdateRate
	if rate == 0 {
		rate = defaultUpdateRate
	}
	keyTTL := cfg.KeyTimeout
	if keyTTL == 0 {
		keyTTL = defaultKeyTimeout
	}

	e := &Engine{
		bus:      cfg.Bus,
		profile:  cfg.Profile,
		variant:  cfg.Variant,
		stepSize: stepSize,
		period:   time.Second / time.Duration(rate),
		keyTTL:   keyTTL,
		onState:  cfg.OnStateUpdate,
		motors:   make(map[profile.MotorName]MotorConfig, len(cfg.Profile.Motors)),
		targets:  make(map[profile.MotorName]int, len(cfg.Profile.Motors)),
		keys:     make(map[string]time.Time),
	}

	ids := cfg.Profile.IDs()
	positions := cfg.Bus.ReadAllPositions(ctx, ids)
	for i, spec := range cfg.Profile.Motors {
		min, max := 0, 4095
		if cfg.Artifact != nil {
			if mc, ok := cfg.Artifact[spec.Name]; ok {
				min, max = mc.RangeMin, mc.RangeMax
			}
		}
		mc := MotorConfig{
			ID:              spec.ID,
			Name:            spec.Name,
			CurrentPosition: int(positions[i]),
			MinPosition:     min,
			MaxPosition:     max,
		}
		e.motors[spec.Name] = mc
		e.targets[spec.Name] = mc.CurrentPosition
	}

	return e, nil
}

// Start transitions the engine to active. For the keyboard variant this
// launches the fixed-rate control loop; for the direct variant it only
// flips IsActive, since direct writes happen synchronously per call.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.isActive {
		e.mu.Unlock()
		return
	}
	e.isActive = true
	e.mu.Unlock()

	if e.variant != Keyboard {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.loopCancel = cancel
	e.loopDone = make(chan struct{})
	done := e.loopDone
	e.mu.Unlock()

	go e.runLoop(loopCtx, done)
}

// Stop clears all key state and the update timer, transitioning the
// engine to idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	wasActive := e.isActive
	e.isActive = false
	e.keys = make(map[string]time.Time)
	cancel := e.loopCancel
	done := e.loopDone
	e.loopCancel = nil
	e.loopDone = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if wasActive {
		e.emitState()
	}
}

// Disconnect stops the engine, like Stop. It does not close the bus's
// transport; that stays open until the Connection owning it is closed.
func (e *Engine) Disconnect() error {
	e.Stop()
	return nil
}

// GetState returns a snapshot of the engine's current state.
func (e *Engine) GetState() State {
	return e.snapshot()
}

// UpdateKeyState records a key transition for the keyboard variant. A
// transition from unpressed to pressed issues one write immediately
// (the "immediate first press" rule) rather than waiting for the next
// tick.
func (e *Engine) UpdateKeyState(key string, pressed bool) {
	if e.variant != Keyboard {
		return
	}

	binding, ok := e.profile.KeyMap[key]
	isEmergencyStop := key == profile.EmergencyStopKey

	e.mu.Lock()
	_, wasPressed := e.keys[key]
	if pressed {
		e.keys[key] = time.Now()
	} else {
		delete(e.keys, key)
	}
	active := e.isActive
	e.mu.Unlock()

	if !active {
		return
	}

	if isEmergencyStop && pressed {
		e.Stop()
		return
	}

	if pressed && !wasPressed && ok {
		e.applyPressedKeys(context.Background())
		_ = binding
	}
}

// MoveMotor clamps and writes a single motor's goal position (direct
// variant). It updates the runtime MotorConfig and returns whether the
// write succeeded.
func (e *Engine) MoveMotor(ctx context.Context, name profile.MotorName, position int) bool {
	e.mu.Lock()
	mc, ok := e.motors[name]
	e.mu.Unlock()
	if !ok {
		return false
	}

	target := mc.clamp(position)
	if err := e.bus.WriteGoalPosition(ctx, mc.ID, uint16(target)); err != nil {
		return false
	}

	e.mu.Lock()
	mc.CurrentPosition = target
	e.motors[name] = mc
	e.targets[name] = target
	e.mu.Unlock()
	return true
}

// MoveMotors writes several motors' goal positions (direct variant) and
// returns a per-motor success map.
func (e *Engine) MoveMotors(ctx context.Context, positions map[profile.MotorName]int) map[profile.MotorName]bool {
	results := make(map[profile.MotorName]bool, len(positions))
	for name, pos := range positions {
		results[name] = e.MoveMotor(ctx, name, pos)
	}
	return results
}

func (e *Engine) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.tick(ctx) {
				return
			}
		}
	}
}

// tick runs one control-loop iteration and returns true if the engine
// should stop (Escape observed).
func (e *Engine) tick(ctx context.Context) bool {
	now := time.Now()

	e.mu.Lock()
	for k, ts := range e.keys {
		if now.Sub(ts) > e.keyTTL {
			delete(e.keys, k)
		}
	}
	_, escapePressed := e.keys[profile.EmergencyStopKey]
	e.mu.Unlock()

	if escapePressed {
		e.mu.Lock()
		e.isActive = false
		e.keys = make(map[string]time.Time)
		e.mu.Unlock()
		e.emitState()
		return true
	}

	e.applyPressedKeys(ctx)
	e.emitState()
	return false
}

// applyPressedKeys accumulates per-motor targets from every
// currently-pressed key, clamps, and writes motors whose target changed.
func (e *Engine) applyPressedKeys(ctx context.Context) {
	e.mu.Lock()
	deltas := make(map[profile.MotorName]int)
	for key := range e.keys {
		binding, ok := e.profile.KeyMap[key]
		if !ok {
			continue
		}
		deltas[binding.Motor] += int(binding.Direction) * e.stepSize
	}

	type write struct {
		id     int
		name   profile.MotorName
		target int
	}
	var writes []write
	for name, delta := range deltas {
		if delta == 0 {
			continue
		}
		mc := e.motors[name]
		base := e.targets[name]
		target := mc.clamp(base + delta)
		if target == e.targets[name] {
			continue
		}
		e.targets[name] = target
		writes = append(writes, write{id: mc.ID, name: name, target: target})
	}
	e.mu.Unlock()

	for _, w := range writes {
		if err := e.bus.WriteGoalPosition(ctx, w.id, uint16(w.target)); err != nil {
			continue
		}
		e.mu.Lock()
		mc := e.motors[w.name]
		mc.CurrentPosition = w.target
		e.motors[w.name] = mc
		e.mu.Unlock()
	}
}

func (e *Engine) snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	motors := make(map[profile.MotorName]MotorConfig, len(e.motors))
	for k, v := range e.motors {
		motors[k] = v
	}
	keys := make(map[string]bool, len(e.keys))
	for k := range e.keys {
		keys[k] = true
	}
	return State{
		IsActive:     e.isActive,
		MotorConfigs: motors,
		LastUpdate:   time.Now(),
		InputState:   keys,
	}
}

func (e *Engine) emitState() {
	if e.onState == nil {
		return
	}
	e.onState(e.snapshot())
}
