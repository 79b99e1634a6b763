// Package httpapi exposes the driver station's command surface and
// RobotState snapshot over a small JSON REST API, built the way the
// teacher's hasher-host orchestrator wired gin: gin.ReleaseMode, a bare
// gin.New() plus gin.Recovery() (no default logger middleware), routes
// grouped under /api/v1, and graceful shutdown via http.Server.Shutdown on
// SIGINT/SIGTERM.
package httpapi

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"driverstation/internal/practice"
	"driverstation/internal/station"
	"driverstation/internal/wire"
)

// NewRouter builds the gin engine for the given station.
func NewRouter(st *station.Station) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	h := &handlers{station: st}
	api := router.Group("/api/v1")
	{
		api.GET("/state", h.getState)
		api.GET("/health", h.getHealth)
		api.GET("/stdout", h.takeStdout)
		api.GET("/messages", h.takeMessage)

		api.POST("/enable", h.postEnable)
		api.POST("/disable", h.postDisable)
		api.POST("/estop", h.postEStop)
		api.POST("/clear_estop", h.postClearEStop)
		api.POST("/mode", h.postMode)
		api.POST("/alliance", h.postAlliance)
		api.POST("/team", h.postTeam)
		api.POST("/usb_mode", h.postUSBMode)
		api.POST("/joysticks", h.postJoysticks)
		api.POST("/game_data", h.postGameData)
		api.POST("/reboot_roborio", h.postReboot)
		api.POST("/restart_code", h.postRestartCode)
		api.POST("/practice/start", h.postPracticeStart)
		api.POST("/practice/stop", h.postPracticeStop)
	}
	return router
}

// Serve runs the HTTP API on addr until ctx is canceled, then shuts down
// gracefully with a 5-second drain window — the same shutdown timeout the
// teacher's orchestrator used.
func Serve(ctx context.Context, addr string, st *station.Station) error {
	srv := &http.Server{Addr: addr, Handler: NewRouter(st)}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("httpapi: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeStandalone is a convenience wrapper for cmd/dsstatusd: it blocks
// until SIGINT/SIGTERM, mirroring the teacher's runAPIServer signal
// handling instead of taking a context from a parent process.
func ServeStandalone(addr string, st *station.Station) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("httpapi: shutting down")
		cancel()
	}()

	if err := Serve(ctx, addr, st); err != nil {
		log.Printf("httpapi: server error: %v", err)
	}
}

type handlers struct {
	station *station.Station
}

func (h *handlers) getState(c *gin.Context) {
	st, ok := h.station.SubscribeState()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no state published yet"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connection_state": h.station.ConnectionState().String(),
	})
}

func (h *handlers) takeStdout(c *gin.Context) {
	line, ok := h.station.TakeStdout()
	if !ok {
		c.JSON(http.StatusNoContent, gin.H{})
		return
	}
	c.JSON(http.StatusOK, gin.H{"line": line})
}

func (h *handlers) takeMessage(c *gin.Context) {
	msg, ok := h.station.TakeMessage()
	if !ok {
		c.JSON(http.StatusNoContent, gin.H{})
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *handlers) postEnable(c *gin.Context) {
	h.station.Enable()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) postDisable(c *gin.Context) {
	h.station.Disable()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) postEStop(c *gin.Context) {
	h.station.EStop()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) postClearEStop(c *gin.Context) {
	h.station.ClearEStop()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

func (h *handlers) postMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown mode %q", req.Mode)})
		return
	}
	h.station.SetMode(mode)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func parseMode(s string) (wire.Mode, bool) {
	switch s {
	case "teleop":
		return wire.ModeTeleop, true
	case "test":
		return wire.ModeTest, true
	case "autonomous":
		return wire.ModeAutonomous, true
	default:
		return 0, false
	}
}

type allianceRequest struct {
	Color   string `json:"color" binding:"required"`
	Station uint8  `json:"station" binding:"required"`
}

func (h *handlers) postAlliance(c *gin.Context) {
	var req allianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	color := wire.Red
	if req.Color == "blue" {
		color = wire.Blue
	}
	h.station.SetAlliance(wire.Alliance{Color: color, Station: req.Station})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type teamRequest struct {
	Team int `json:"team" binding:"required"`
}

func (h *handlers) postTeam(c *gin.Context) {
	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.station.SetTeam(req.Team)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type usbModeRequest struct {
	USB bool `json:"usb"`
}

func (h *handlers) postUSBMode(c *gin.Context) {
	var req usbModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.station.SetUSBMode(req.USB)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type joystickRequest struct {
	Axes    []int8  `json:"axes"`
	Buttons []bool  `json:"buttons"`
	Povs    []int16 `json:"povs"`
}

type joysticksRequest struct {
	Joysticks []joystickRequest `json:"joysticks"`
}

func (h *handlers) postJoysticks(c *gin.Context) {
	var req joysticksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	js := make([]wire.JoystickData, len(req.Joysticks))
	for i, j := range req.Joysticks {
		js[i] = wire.JoystickData{Axes: j.Axes, Buttons: j.Buttons, Povs: j.Povs}
	}
	h.station.SetJoysticks(js)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type gameDataRequest struct {
	Data string `json:"data"`
}

func (h *handlers) postGameData(c *gin.Context) {
	var req gameDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.station.SetGameData(req.Data)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) postReboot(c *gin.Context) {
	h.station.RebootRoborio()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) postRestartCode(c *gin.Context) {
	h.station.RestartCode()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type practiceTimingRequest struct {
	CountdownSecs float64 `json:"countdown_secs"`
	AutoSecs      float64 `json:"auto_secs"`
	DelaySecs     float64 `json:"delay_secs"`
	TeleopSecs    float64 `json:"teleop_secs"`
}

func (h *handlers) postPracticeStart(c *gin.Context) {
	var req practiceTimingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.station.StartPractice(practice.Timing{
		CountdownSecs: req.CountdownSecs,
		AutoSecs:      req.AutoSecs,
		DelaySecs:     req.DelaySecs,
		TeleopSecs:    req.TeleopSecs,
	})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) postPracticeStop(c *gin.Context) {
	h.station.StopPractice()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
