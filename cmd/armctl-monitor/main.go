// Command armctl-monitor is a live terminal dashboard for a running
// teleoperation session: it drives the arm from the keyboard like
// armctl teleoperate (except that 'q' quits instead of rolling the
// wrist), but renders a streaming chart of every motor's normalized
// position instead of a plain table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/sts3215/armctl"
	"github.com/sts3215/armctl/calibration"
	"github.com/sts3215/armctl/profile"
	"github.com/sts3215/armctl/teleop"
)

const (
	headerHeight = 2
	legendHeight = 2
	footerHeight = 3
	borderSize   = 2
)

var motorColors = map[profile.MotorName]string{
	profile.ShoulderPan:  "196",
	profile.ShoulderLift: "208",
	profile.ElbowFlex:    "226",
	profile.WristFlex:    "46",
	profile.WristRoll:    "51",
	profile.Gripper:      "201",
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// keyNames maps bubbletea's key strings to the profile's key map names.
var keyNames = map[string]string{
	"up": "ArrowUp", "down": "ArrowDown", "left": "ArrowLeft", "right": "ArrowRight",
	"esc": profile.EmergencyStopKey,
}

type model struct {
	engine        *teleop.Engine
	profile       profile.Profile
	updates       <-chan teleop.State
	chart         *streamlinechart.Model
	width, height int
	lastPositions map[profile.MotorName]int
	quitting      bool
}

type stateMsg teleop.State

func waitForState(updates <-chan teleop.State) tea.Cmd {
	return func() tea.Msg { return stateMsg(<-updates) }
}

func (m *model) chartSize() (int, int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	w := m.width - borderSize - 2
	if w < 40 {
		w = 40
	}
	h := m.height - headerHeight - legendHeight - footerHeight - borderSize
	if h < 10 {
		h = 10
	}
	return w, h
}

func (m *model) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func normalize(mc teleop.MotorConfig) float64 {
	span := mc.MaxPosition - mc.MinPosition
	if span == 0 {
		return 0
	}
	return (float64(mc.CurrentPosition-mc.MinPosition)/float64(span))*200 - 100
}

func (m model) hasMovement(configs map[profile.MotorName]teleop.MotorConfig) bool {
	if m.lastPositions == nil {
		return true
	}
	for name, mc := range configs {
		if last, ok := m.lastPositions[name]; !ok || last != mc.CurrentPosition {
			return true
		}
	}
	return false
}

func initialModel(e *teleop.Engine, p profile.Profile, updates <-chan teleop.State) model {
	chart := streamlinechart.New(80, 20, streamlinechart.WithYRange(-100, 100))
	for _, name := range p.Names() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(motorColors[name]))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}
	return model{engine: e, profile: p, updates: updates, chart: &chart}
}

func (m model) Init() tea.Cmd {
	return waitForState(m.updates)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		key := msg.String()
		if mapped, ok := keyNames[key]; ok {
			key = mapped
		}
		if key == "q" || key == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if _, bound := m.profile.KeyMap[key]; bound || key == profile.EmergencyStopKey {
			m.engine.UpdateKeyState(key, true)
		}
		return m, nil

	case stateMsg:
		state := teleop.State(msg)
		if !state.IsActive {
			m.quitting = true
			return m, tea.Quit
		}
		if m.hasMovement(state.MotorConfigs) {
			positions := make(map[profile.MotorName]int, len(state.MotorConfigs))
			for name, mc := range state.MotorConfigs {
				m.chart.PushDataSet(string(name), normalize(mc))
				positions[name] = mc.CurrentPosition
			}
			m.chart.DrawAll()
			m.lastPositions = positions
		}
		return m, waitForState(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("armctl monitor"))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend(m.profile))
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render("Press 'q' or Escape to stop"))
	sb.WriteString("\n")
	return sb.String()
}

func renderLegend(p profile.Profile) string {
	items := make([]string, 0, len(p.Motors))
	for _, name := range p.Names() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(motorColors[name])).Bold(true)
		items = append(items, style.Render("──")+" "+string(name))
	}
	return strings.Join(items, "  ")
}

func main() {
	port := flag.String("port", "", "Serial port to connect to")
	robotType := flag.String("robot-type", "follower", "Robot type")
	robotID := flag.String("robot-id", "my_robot", "Robot id, used to load its calibration file")
	flag.Parse()

	if *port == "" {
		fmt.Fprintln(os.Stderr, "armctl-monitor requires -port (run 'armctl find-port' to identify it)")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := armctl.Connect(*port, *robotType, *robotID)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	var artifact calibration.Artifact
	if path, pathErr := calibration.ArtifactPath(*robotType, *robotID); pathErr == nil {
		if loaded, loadErr := calibration.Load(path); loadErr == nil {
			artifact = loaded
		}
	}

	prof := profile.Default()
	updates := make(chan teleop.State, 1)

	engine, err := armctl.Teleoperate(ctx, conn, prof, armctl.TeleoperateOptions{
		Artifact: artifact,
		Variant:  teleop.Keyboard,
		OnStateUpdate: func(s teleop.State) {
			select {
			case updates <- s:
			default:
				select {
				case <-updates:
				default:
				}
				updates <- s
			}
		},
	})
	if err != nil {
		log.Fatalf("teleoperate: %v", err)
	}

	engine.Start(ctx)
	defer engine.Disconnect()

	p := tea.NewProgram(initialModel(engine, prof, updates), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("monitor UI: %v", err)
	}
}
