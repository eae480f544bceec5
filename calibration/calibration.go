// Package calibration drives the reset-offsets -> set-homing ->
// record-range -> write-limits -> persist state machine that turns a
// released, mechanically-centered arm into a Calibration Artifact.
package calibration

import (
	"context"
	"fmt"
	"time"

	"github.com/sts3215/armctl/bus"
	"github.com/sts3215/armctl/process"
	"github.com/sts3215/armctl/profile"
	"github.com/sts3215/armctl/protocol"
)

// recordLoopPeriod is the record-range sampling interval.
const recordLoopPeriod = 100 * time.Millisecond

// offsetSettleWait is how long reset-offsets waits for the write sweep
// to settle before the flush read.
const offsetSettleWait = 1100 * time.Millisecond

// flushSettleWait follows the discarded flush read in reset-offsets.
const flushSettleWait = 200 * time.Millisecond

// LiveUpdate is one record-range sample, emitted at ~10 Hz.
type LiveUpdate struct {
	Positions map[profile.MotorName]int
	RangeMin  map[profile.MotorName]int
	RangeMax  map[profile.MotorName]int
}

// Config configures one calibration run.
type Config struct {
	Bus       *bus.Bus
	Profile   profile.Profile
	RobotType string
	RobotID   string

	// OnProgress is called with a step name as the engine transitions:
	// "reset-offsets", "set-homing", "record-range", "write-limits",
	// "persist".
	OnProgress func(step string)
	// OnLiveUpdate is called once per record-range loop iteration.
	OnLiveUpdate func(LiveUpdate)
	// UserFinished, when non-nil, ends the record-range loop once it is
	// closed; the run then goes on to write-limits and persist.
	UserFinished <-chan struct{}
	// OutputPath overrides the conventional persistence path.
	OutputPath string
}

// Calibrate runs the calibration state machine against cfg.Bus and
// returns a handle whose result resolves to the persisted Artifact. A
// Stop observed before write-limits aborts with process.ErrStopped and
// persists nothing; the physical Homing_Offset writes already made are
// not rolled back.
func Calibrate(ctx context.Context, cfg Config) *process.Handle[Artifact] {
	h, finish := process.New[Artifact]()

	go func() {
		ids := cfg.Profile.IDs()
		progress := cfg.OnProgress
		if progress == nil {
			progress = func(string) {}
		}

		if stopped(h) {
			finish(nil, process.ErrStopped)
			return
		}
		progress("reset-offsets")
		if err := resetOffsets(ctx, cfg.Bus, ids); err != nil {
			finish(nil, fmt.Errorf("calibration: reset-offsets: %w", err))
			return
		}
		sleepOrDone(ctx, h, offsetSettleWait)
		_ = cfg.Bus.ReadAllPositions(ctx, ids)
		sleepOrDone(ctx, h, flushSettleWait)

		if stopped(h) {
			finish(nil, process.ErrStopped)
			return
		}
		progress("set-homing")
		homingOffsets, err := setHoming(ctx, cfg.Bus, cfg.Profile, ids)
		if err != nil {
			finish(nil, fmt.Errorf("calibration: set-homing: %w", err))
			return
		}

		if stopped(h) {
			finish(nil, process.ErrStopped)
			return
		}
		progress("record-range")
		rangeMin, rangeMax, completed := recordRange(ctx, h, cfg)
		if !completed {
			finish(nil, process.ErrStopped)
			return
		}

		progress("write-limits")
		if err := writeLimits(ctx, cfg.Bus, cfg.Profile, rangeMin, rangeMax); err != nil {
			finish(nil, fmt.Errorf("calibration: write-limits: %w", err))
			return
		}

		progress("persist")
		artifact := buildArtifact(cfg.Profile, homingOffsets, rangeMin, rangeMax)
		path := cfg.OutputPath
		if path == "" {
			var err error
			path, err = ArtifactPath(cfg.RobotType, cfg.RobotID)
			if err != nil {
				finish(nil, fmt.Errorf("calibration: resolve artifact path: %w", err))
				return
			}
		}
		if err := Save(path, artifact); err != nil {
			finish(nil, fmt.Errorf("calibration: persist: %w", err))
			return
		}
		finish(artifact, nil)
	}()

	return h
}

func resetOffsets(ctx context.Context, b *bus.Bus, ids []int) error {
	for _, id := range ids {
		if err := b.WriteRegister(ctx, id, profile.Registers.HomingOffset, 0); err != nil {
			return err
		}
	}
	return nil
}

func setHoming(ctx context.Context, b *bus.Bus, p profile.Profile, ids []int) (map[profile.MotorName]int, error) {
	positions := b.ReadAllPositions(ctx, ids)
	offsets := make(map[profile.MotorName]int, len(ids))
	for i, spec := range p.Motors {
		offset := int(positions[i]) - 2047
		word, err := protocol.EncodeSignMagnitude(offset)
		if err != nil {
			return nil, fmt.Errorf("motor %d: %w", spec.ID, err)
		}
		if err := b.WriteRegister(ctx, spec.ID, profile.Registers.HomingOffset, word); err != nil {
			return nil, err
		}
		offsets[spec.Name] = offset
	}
	return offsets, nil
}

func recordRange(ctx context.Context, h *process.Handle[Artifact], cfg Config) (min, max map[profile.MotorName]int, completed bool) {
	ids := cfg.Profile.IDs()
	names := cfg.Profile.Names()

	positions := cfg.Bus.ReadAllPositions(ctx, ids)
	min = make(map[profile.MotorName]int, len(names))
	max = make(map[profile.MotorName]int, len(names))
	for i, name := range names {
		min[name] = int(positions[i])
		max[name] = int(positions[i])
	}

	ticker := time.NewTicker(recordLoopPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-h.Stopped():
			return nil, nil, false
		case <-cfg.UserFinished:
			return min, max, true
		case <-ctx.Done():
			return nil, nil, false
		case <-ticker.C:
			positions := cfg.Bus.ReadAllPositions(ctx, ids)
			for i, name := range names {
				p := int(positions[i])
				if p < min[name] {
					min[name] = p
				}
				if p > max[name] {
					max[name] = p
				}
			}
			if cfg.OnLiveUpdate != nil {
				snapshot := LiveUpdate{
					Positions: make(map[profile.MotorName]int, len(names)),
					RangeMin:  make(map[profile.MotorName]int, len(names)),
					RangeMax:  make(map[profile.MotorName]int, len(names)),
				}
				for i, name := range names {
					snapshot.Positions[name] = int(positions[i])
					snapshot.RangeMin[name] = min[name]
					snapshot.RangeMax[name] = max[name]
				}
				cfg.OnLiveUpdate(snapshot)
			}
		}
	}
}

func writeLimits(ctx context.Context, b *bus.Bus, p profile.Profile, rangeMin, rangeMax map[profile.MotorName]int) error {
	for _, spec := range p.Motors {
		if err := b.WriteRegister(ctx, spec.ID, profile.Registers.MinPositionLimit, uint16(rangeMin[spec.Name])); err != nil {
			return err
		}
		if err := b.WriteRegister(ctx, spec.ID, profile.Registers.MaxPositionLimit, uint16(rangeMax[spec.Name])); err != nil {
			return err
		}
	}
	return nil
}

func buildArtifact(p profile.Profile, homingOffsets, rangeMin, rangeMax map[profile.MotorName]int) Artifact {
	artifact := make(Artifact, len(p.Motors))
	for _, spec := range p.Motors {
		artifact[spec.Name] = MotorCalibration{
			ID:           spec.ID,
			DriveMode:    spec.DriveMode,
			HomingOffset: homingOffsets[spec.Name],
			RangeMin:     rangeMin[spec.Name],
			RangeMax:     rangeMax[spec.Name],
		}
	}
	return artifact
}

func stopped(h *process.Handle[Artifact]) bool {
	select {
	case <-h.Stopped():
		return true
	default:
		return false
	}
}

func sleepOrDone(ctx context.Context, h *process.Handle[Artifact], d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-h.Stopped():
	}
}
