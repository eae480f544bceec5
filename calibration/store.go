package calibration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sts3215/armctl/profile"
)

// MotorCalibration is one motor's row in a persisted Calibration
// Artifact.
type MotorCalibration struct {
	ID           int `json:"id"`
	DriveMode    int `json:"drive_mode"`
	HomingOffset int `json:"homing_offset"`
	RangeMin     int `json:"range_min"`
	RangeMax     int `json:"range_max"`
}

// Artifact is a complete calibration result, keyed by motor name.
type Artifact map[profile.MotorName]MotorCalibration

// ArtifactPath resolves the conventional persistence path for a
// (robotType, robotID) pair:
//
//	$HF_HOME/lerobot/calibration/robots/<robot_type>/<robot_id>.json
//
// HF_HOME defaults to $HOME/.cache/huggingface. HF_LEROBOT_HOME
// overrides the lerobot root directly; HF_LEROBOT_CALIBRATION overrides
// the calibration directory itself, taking precedence over both.
func ArtifactPath(robotType, robotID string) (string, error) {
	if dir := os.Getenv("HF_LEROBOT_CALIBRATION"); dir != "" {
		return filepath.Join(dir, "robots", robotType, robotID+".json"), nil
	}
	if lerobotHome := os.Getenv("HF_LEROBOT_HOME"); lerobotHome != "" {
		return filepath.Join(lerobotHome, "calibration", "robots", robotType, robotID+".json"), nil
	}

	hfHome := os.Getenv("HF_HOME")
	if hfHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("calibration: resolve home directory: %w", err)
		}
		hfHome = filepath.Join(home, ".cache", "huggingface")
	}
	return filepath.Join(hfHome, "lerobot", "calibration", "robots", robotType, robotID+".json"), nil
}

// Save writes artifact as pretty-printed JSON atomically: it writes to a
// temp file in the destination directory, then renames it into place,
// so a reader never observes a partially-written file.
func Save(path string, artifact Artifact) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("calibration: create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("calibration: marshal artifact: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".calibration-*.json.tmp")
	if err != nil {
		return fmt.Errorf("calibration: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("calibration: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("calibration: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("calibration: rename into place: %w", err)
	}
	return nil
}

// Load reads a Calibration Artifact previously written by Save.
func Load(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("calibration: read %s: %w", path, err)
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("calibration: parse %s: %w", path, err)
	}
	return artifact, nil
}
