package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	FindPort    FindPortCommand    `command:"find-port" description:"Interactively select and identify a connected arm's serial port"`
	Calibrate   CalibrateCommand   `command:"calibrate" description:"Record a calibration artifact for one arm"`
	Teleoperate TeleoperateCommand `command:"teleoperate" alias:"teleop" description:"Drive one arm from the keyboard"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "armctl - control CLI for STS3215-driven 6-DOF serial-bus arms"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
