// Command dstui is an interactive terminal driver station: it drives a
// station.Station directly (no HTTP hop) and renders its RobotState,
// connection state and robot stdout in a bubbletea TUI, the way the
// teacher's hasher-cli drove its Orchestrator in-process. Other TCP messages
// are drained from the station but not displayed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"driverstation/internal/config"
	"driverstation/internal/station"
)

func main() {
	team := flag.Int("team", 0, "FRC team number (0 = use .env/DS_TEAM_NUMBER)")
	usb := flag.Bool("usb", false, "connect over the roboRIO USB RNDIS link")
	flag.Parse()

	cfg := config.Load()
	teamNumber := cfg.TeamNumber
	if *team != 0 {
		teamNumber = *team
	}
	usbMode := cfg.USBMode || *usb

	st := station.New(teamNumber, cfg.Alliance, usbMode, cfg.Practice)
	if cfg.GameData != "" {
		st.SetGameData(cfg.GameData)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go st.Run(ctx)

	p := tea.NewProgram(newModel(st), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "dstui: %v\n", err)
		os.Exit(1)
	}
}
