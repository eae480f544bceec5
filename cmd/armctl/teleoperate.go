package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sts3215/armctl"
	"github.com/sts3215/armctl/calibration"
	"github.com/sts3215/armctl/profile"
	"github.com/sts3215/armctl/teleop"
)

type TeleoperateCommand struct {
	RobotType  string `long:"robot-type" default:"follower" description:"Robot type, e.g. follower"`
	RobotID    string `long:"robot-id" default:"my_robot" description:"Robot id, used to load its calibration file"`
	Port       string `long:"port" description:"Serial port; prompts interactively if omitted"`
	UpdateRate int    `long:"update-rate" default:"120" description:"Control loop frequency in Hz"`
}

// keyNames maps bubbletea's key strings to the profile's key map names.
var keyNames = map[string]string{
	"up": "ArrowUp", "down": "ArrowDown", "left": "ArrowLeft", "right": "ArrowRight",
	"esc": profile.EmergencyStopKey,
}

func (c *TeleoperateCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("armctl teleoperate"))
	fmt.Println(dimStyle.Render("───────────────────"))
	fmt.Println()

	ctx := cliContext()

	conn, err := resolveConnection(ctx, c.Port, c.RobotType, c.RobotID)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("connect: %v", err)))
		os.Exit(1)
	}
	defer conn.Close()

	var artifact calibration.Artifact
	if path, pathErr := calibration.ArtifactPath(conn.RobotType, conn.RobotID); pathErr == nil {
		if loaded, loadErr := calibration.Load(path); loadErr == nil {
			artifact = loaded
		} else {
			fmt.Println(dimStyle.Render("no calibration found, using the default [0,4095] range"))
		}
	}

	prof := profile.Default()
	stateUpdates := make(chan teleop.State, 1)

	engine, err := armctl.Teleoperate(ctx, conn, prof, armctl.TeleoperateOptions{
		Artifact:   artifact,
		Variant:    teleop.Keyboard,
		UpdateRate: c.UpdateRate,
		OnStateUpdate: func(s teleop.State) {
			select {
			case stateUpdates <- s:
			default:
				select {
				case <-stateUpdates:
				default:
				}
				stateUpdates <- s
			}
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("teleoperate: %v", err)))
		os.Exit(1)
	}

	engine.Start(ctx)
	defer engine.Disconnect()

	program := tea.NewProgram(newTeleopModel(engine, prof, stateUpdates))
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("teleoperate UI: %v", err)))
		os.Exit(1)
	}
	return nil
}

type teleopStateMsg teleop.State

func waitForTeleopState(updates <-chan teleop.State) tea.Cmd {
	return func() tea.Msg {
		return teleopStateMsg(<-updates)
	}
}

type teleopModel struct {
	engine  *teleop.Engine
	profile profile.Profile
	updates <-chan teleop.State
	latest  teleop.State
	pressed map[string]bool
}

func newTeleopModel(e *teleop.Engine, p profile.Profile, updates <-chan teleop.State) teleopModel {
	return teleopModel{engine: e, profile: p, updates: updates, pressed: map[string]bool{}}
}

func (m teleopModel) Init() tea.Cmd {
	return waitForTeleopState(m.updates)
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		if mapped, ok := keyNames[key]; ok {
			key = mapped
		}
		if key == "ctrl+c" {
			return m, tea.Quit
		}
		if _, bound := m.profile.KeyMap[key]; bound || key == profile.EmergencyStopKey {
			m.engine.UpdateKeyState(key, true)
		}
		return m, nil

	case teleopStateMsg:
		m.latest = teleop.State(msg)
		if !m.latest.IsActive {
			return m, tea.Quit
		}
		return m, waitForTeleopState(m.updates)
	}
	return m, nil
}

func (m teleopModel) View() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("Teleoperating"))
	sb.WriteString(" (Escape to stop, Ctrl+C to quit)\n\n")
	for _, spec := range m.profile.Motors {
		mc := m.latest.MotorConfigs[spec.Name]
		sb.WriteString(fmt.Sprintf("%-14s %4d  [%d, %d]\n", spec.Name, mc.CurrentPosition, mc.MinPosition, mc.MaxPosition))
	}
	return sb.String()
}
