package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"driverstation/internal/practice"
	"driverstation/internal/station"
	"driverstation/internal/wire"
)

func newTestModel() model {
	st := station.New(1868, wire.Alliance{Color: wire.Red, Station: 1}, false, practice.Timing{})
	return newModel(st)
}

func TestNewModelStartsWithNoPacketYet(t *testing.T) {
	m := newTestModel()
	assert.False(t, m.havePacket, "fresh model should not report a packet yet")
	assert.Contains(t, m.renderStateText(), "no state yet")
}

func TestModeCyclesThroughAllThreeModes(t *testing.T) {
	assert.Equal(t, wire.ModeTest, nextMode(wire.ModeTeleop))
	assert.Equal(t, wire.ModeAutonomous, nextMode(wire.ModeTest))
	assert.Equal(t, wire.ModeTeleop, nextMode(wire.ModeAutonomous))
}

func TestViewRendersCommandHints(t *testing.T) {
	m := newTestModel()
	view := m.View()
	assert.Contains(t, view, "Driver Station")
	assert.Contains(t, view, "e]nable")
}
