package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sts3215/armctl/discovery"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type FindPortCommand struct {
	RobotID string `long:"robot-id" default:"my_robot" description:"Robot id stamped on the discovered connection"`
}

func (c *FindPortCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("armctl find-port"))
	fmt.Println(dimStyle.Render("────────────────"))
	fmt.Println()

	h := discovery.FindPort(selectPortInteractively, c.RobotID)
	conns, err := h.Wait(cliContext())
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("find-port failed: %v", err)))
		os.Exit(1)
	}

	conn := conns[0]
	defer conn.Close()

	fmt.Println()
	fmt.Println(successStyle.Render("Connected."))
	fmt.Printf("  Port:          %s\n", conn.Port)
	fmt.Printf("  Robot type:    %s\n", conn.RobotType)
	fmt.Printf("  Robot id:      %s\n", conn.RobotID)
	fmt.Printf("  Serial number: %s\n", conn.SerialNumber)
	return nil
}

func selectPortInteractively(available []string) (string, error) {
	if len(available) == 0 {
		return "", fmt.Errorf("no serial ports found; is the arm connected and powered on?")
	}

	options := make([]huh.Option[string], len(available))
	for i, p := range available {
		options[i] = huh.NewOption(p, p)
	}

	var chosen string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select the arm's serial port").
				Options(options...).
				Value(&chosen),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return chosen, nil
}
