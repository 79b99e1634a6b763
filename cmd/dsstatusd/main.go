// Command dsstatusd runs a headless driver station: it owns the connection
// manager and command surface (internal/station) and exposes them over the
// JSON HTTP API (internal/httpapi) until the process receives SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"log"

	"driverstation/internal/config"
	"driverstation/internal/httpapi"
	"driverstation/internal/station"
)

func main() {
	team := flag.Int("team", 0, "FRC team number (0 = use .env/DS_TEAM_NUMBER)")
	usb := flag.Bool("usb", false, "connect over the roboRIO USB RNDIS link")
	addr := flag.String("addr", ":8840", "HTTP API listen address")
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

	log.Printf("dsstatusd: team=%d usb=%v addr=%s", teamNumber, usbMode, *addr)
	httpapi.ServeStandalone(*addr, st)
}
