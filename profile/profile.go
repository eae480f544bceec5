// Package profile holds the immutable tables describing a robot family:
// motor layout, protocol register addresses and the default key map. The
// module ships one family (the SO-101-style 6-DOF arm); additional
// families are additive.
package profile

import "github.com/sts3215/armctl/protocol"

// MotorName identifies one of the six motors in canonical order.
type MotorName string

const (
	ShoulderPan  MotorName = "shoulder_pan"
	ShoulderLift MotorName = "shoulder_lift"
	ElbowFlex    MotorName = "elbow_flex"
	WristFlex    MotorName = "wrist_flex"
	WristRoll    MotorName = "wrist_roll"
	Gripper      MotorName = "gripper"
)

// MotorSpec is one row of the fixed motor table.
type MotorSpec struct {
	ID        int
	Name      MotorName
	DriveMode int
}

// Direction is the sign applied to a key's step for a given motor.
type Direction int

const (
	Negative Direction = -1
	Positive Direction = 1
)

// KeyBinding maps a held key to a motor and a direction.
type KeyBinding struct {
	Motor       MotorName
	Direction   Direction
	Description string
}

// EmergencyStopKey is the key that unconditionally halts teleoperation.
const EmergencyStopKey = "Escape"

// Profile is the immutable description of a robot family.
type Profile struct {
	Motors []MotorSpec
	KeyMap map[string]KeyBinding
}

// Registers re-exports the protocol package's fixed register table so
// callers only need to import profile for the common case.
var Registers = struct {
	MinPositionLimit protocol.Address
	MaxPositionLimit protocol.Address
	HomingOffset     protocol.Address
	TorqueEnable     protocol.Address
	GoalPosition     protocol.Address
	PresentPosition  protocol.Address
}{
	MinPositionLimit: protocol.AddrMinPositionLimit,
	MaxPositionLimit: protocol.AddrMaxPositionLimit,
	HomingOffset:     protocol.AddrHomingOffset,
	TorqueEnable:     protocol.AddrTorqueEnable,
	GoalPosition:     protocol.AddrGoalPosition,
	PresentPosition:  protocol.AddrPresentPosition,
}

// Default returns the canonical six-motor SO-101-family profile, in the
// fixed order shoulder_pan, shoulder_lift, elbow_flex, wrist_flex,
// wrist_roll, gripper with ids 1..6 and drive mode 0.
func Default() Profile {
	return Profile{
		Motors: []MotorSpec{
			{ID: 1, Name: ShoulderPan, DriveMode: 0},
			{ID: 2, Name: ShoulderLift, DriveMode: 0},
			{ID: 3, Name: ElbowFlex, DriveMode: 0},
			{ID: 4, Name: WristFlex, DriveMode: 0},
			{ID: 5, Name: WristRoll, DriveMode: 0},
			{ID: 6, Name: Gripper, DriveMode: 0},
		},
		KeyMap: defaultKeyMap(),
	}
}

func defaultKeyMap() map[string]KeyBinding {
	return map[string]KeyBinding{
		"ArrowUp":    {Motor: ShoulderLift, Direction: Positive, Description: "shoulder lift up"},
		"ArrowDown":  {Motor: ShoulderLift, Direction: Negative, Description: "shoulder lift down"},
		"ArrowLeft":  {Motor: ShoulderPan, Direction: Negative, Description: "shoulder pan left"},
		"ArrowRight": {Motor: ShoulderPan, Direction: Positive, Description: "shoulder pan right"},
		"w":          {Motor: ElbowFlex, Direction: Positive, Description: "elbow flex up"},
		"s":          {Motor: ElbowFlex, Direction: Negative, Description: "elbow flex down"},
		"a":          {Motor: WristFlex, Direction: Negative, Description: "wrist flex left"},
		"d":          {Motor: WristFlex, Direction: Positive, Description: "wrist flex right"},
		"q":          {Motor: WristRoll, Direction: Negative, Description: "wrist roll ccw"},
		"e":          {Motor: WristRoll, Direction: Positive, Description: "wrist roll cw"},
		"o":          {Motor: Gripper, Direction: Positive, Description: "gripper open"},
		"c":          {Motor: Gripper, Direction: Negative, Description: "gripper close"},
	}
}

// Names returns the motor names in canonical order.
func (p Profile) Names() []MotorName {
	names := make([]MotorName, len(p.Motors))
	for i, m := range p.Motors {
		names[i] = m.Name
	}
	return names
}

// IDs returns the motor ids in canonical order.
func (p Profile) IDs() []int {
	ids := make([]int, len(p.Motors))
	for i, m := range p.Motors {
		ids[i] = m.ID
	}
	return ids
}

// ByName looks up a motor spec by name.
func (p Profile) ByName(name MotorName) (MotorSpec, bool) {
	for _, m := range p.Motors {
		if m.Name == name {
			return m, true
		}
	}
	return MotorSpec{}, false
}

// ByID looks up a motor spec by servo id.
func (p Profile) ByID(id int) (MotorSpec, bool) {
	for _, m := range p.Motors {
		if m.ID == id {
			return m, true
		}
	}
	return MotorSpec{}, false
}
