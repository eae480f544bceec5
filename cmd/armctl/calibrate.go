package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sts3215/armctl"
	"github.com/sts3215/armctl/calibration"
	"github.com/sts3215/armctl/discovery"
	"github.com/sts3215/armctl/process"
	"github.com/sts3215/armctl/profile"
)

type CalibrateCommand struct {
	RobotType string `long:"robot-type" default:"follower" description:"Robot type, e.g. follower or leader"`
	RobotID   string `long:"robot-id" default:"my_robot" description:"Robot id, used to name the calibration file"`
	Port      string `long:"port" description:"Serial port; prompts interactively if omitted"`
}

func (c *CalibrateCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("armctl calibrate"))
	fmt.Println(dimStyle.Render("─────────────────"))
	fmt.Println()

	ctx := cliContext()

	conn, err := resolveConnection(ctx, c.Port, c.RobotType, c.RobotID)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("connect: %v", err)))
		os.Exit(1)
	}
	defer conn.Close()

	prof := profile.Default()

	fmt.Println("Release the motors and move the arm to its mechanical midpoint, then press Enter to start.")
	waitForEnter()

	if err := armctl.ReleaseMotors(ctx, conn, prof, nil); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("release motors: %v", err)))
		os.Exit(1)
	}

	liveUpdates := make(chan calibration.LiveUpdate, 1)
	userFinished := make(chan struct{})

	h := armctl.Calibrate(ctx, conn, prof, armctl.CalibrateOptions{
		OnProgress: func(step string) {
			fmt.Println(dimStyle.Render("→ " + step))
		},
		OnLiveUpdate: func(u calibration.LiveUpdate) {
			select {
			case liveUpdates <- u:
			default:
				select {
				case <-liveUpdates:
				default:
				}
				liveUpdates <- u
			}
		},
		UserFinished: userFinished,
	})

	fmt.Println()
	fmt.Println("Move every joint through its full range of motion, then press Enter to finish.")
	program := tea.NewProgram(newCalibrationModel(prof, liveUpdates, userFinished))
	final, err := program.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("calibration UI: %v", err)))
		os.Exit(1)
	}
	if m, ok := final.(calibrationModel); ok && !m.done {
		h.Stop()
	}

	artifact, err := h.Wait(ctx)
	if errors.Is(err, process.ErrStopped) {
		err = &armctl.StoppedError{Op: "calibrate"}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("calibrate: %v", err)))
		os.Exit(1)
	}

	path, _ := calibration.ArtifactPath(conn.RobotType, conn.RobotID)
	fmt.Println()
	fmt.Println(successStyle.Render("Calibration complete."))
	fmt.Printf("Saved %d motors to %s\n", len(artifact), path)
	return nil
}

func resolveConnection(ctx context.Context, port, robotType, robotID string) (*discovery.Connection, error) {
	if port != "" {
		return armctl.Connect(port, robotType, robotID)
	}
	h := armctl.FindPort(selectPortInteractively, robotID)
	conns, err := h.Wait(ctx)
	if err != nil {
		return nil, err
	}
	conn := conns[0]
	conn.RobotType = robotType
	return conn, nil
}

func waitForEnter() {
	fmt.Scanln()
}

type calibrationModel struct {
	profile      profile.Profile
	liveUpdates  <-chan calibration.LiveUpdate
	userFinished chan<- struct{}
	latest       calibration.LiveUpdate
	done         bool
}

type liveUpdateMsg calibration.LiveUpdate

func newCalibrationModel(p profile.Profile, updates <-chan calibration.LiveUpdate, finished chan<- struct{}) calibrationModel {
	return calibrationModel{profile: p, liveUpdates: updates, userFinished: finished}
}

func waitForLiveUpdate(updates <-chan calibration.LiveUpdate) tea.Cmd {
	return func() tea.Msg {
		return liveUpdateMsg(<-updates)
	}
}

func (m calibrationModel) Init() tea.Cmd {
	return waitForLiveUpdate(m.liveUpdates)
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if !m.done {
				m.done = true
				close(m.userFinished)
			}
			return m, tea.Quit
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	case liveUpdateMsg:
		m.latest = calibration.LiveUpdate(msg)
		return m, waitForLiveUpdate(m.liveUpdates)
	}
	return m, nil
}

func (m calibrationModel) View() string {
	if m.latest.Positions == nil {
		return dimStyle.Render("waiting for the first reading...") + "\n"
	}

	rows := make([][]string, 0, len(m.profile.Motors))
	for _, spec := range m.profile.Motors {
		rows = append(rows, []string{
			string(spec.Name),
			fmt.Sprintf("%d", m.latest.Positions[spec.Name]),
			fmt.Sprintf("%d", m.latest.RangeMin[spec.Name]),
			fmt.Sprintf("%d", m.latest.RangeMax[spec.Name]),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Current", "Min", "Max").
		Rows(rows...)

	var sb strings.Builder
	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done, q to abort"))
	return sb.String()
}
