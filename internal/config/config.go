// Package config loads the driver station's initial configuration: team
// number, USB mode, alliance, practice timings and persisted joystick slot
// locks. Adapted from the teacher's .env-file-plus-environment-override
// loader (originally internal/config/config.go in the source repo).
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"driverstation/internal/practice"
	"driverstation/internal/wire"
)

// Config is the driver station's persisted/ambient configuration. A missing
// or corrupt config file never blocks startup (spec.md §7 ConfigFailure
// policy): Load always returns usable zero-value defaults.
type Config struct {
	TeamNumber int
	USBMode    bool
	Alliance   wire.Alliance
	GameData   string
	Practice   practice.Timing

	// JoystickSlotLocks pins a joystick identity string to a fixed slot
	// index; unset slots are assigned in discovery order by the input
	// source collaborator.
	JoystickSlotLocks map[string]int
}

var (
	cached *Config
	loaded bool
)

// Load reads the .env-style config file (walking up from the working
// directory to the module root, same search as the teacher's
// findProjectRoot), then applies environment variable overrides. Results
// are cached after the first call.
func Load() *Config {
	if loaded {
		return cached
	}

	cfg := &Config{
		Alliance:          wire.Alliance{Color: wire.Red, Station: 1},
		JoystickSlotLocks: map[string]int{},
	}

	envPath := filepath.Join(findProjectRoot(), ".env")
	if data, err := os.ReadFile(envPath); err == nil {
		parseEnvFile(string(data), cfg)
	}
	applyEnvOverrides(cfg)
	applyJoystickSlotLockOverrides(cfg)

	cached = cfg
	loaded = true
	return cfg
}

func parseEnvFile(content string, cfg *Config) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		applyKV(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), cfg)
	}
}

func applyEnvOverrides(cfg *Config) {
	for _, key := range []string{
		"DS_TEAM_NUMBER", "DS_USB_MODE", "DS_ALLIANCE_COLOR", "DS_ALLIANCE_STATION",
		"DS_GAME_DATA", "DS_COUNTDOWN_SECS", "DS_AUTO_SECS", "DS_DELAY_SECS", "DS_TELEOP_SECS",
	} {
		if v := os.Getenv(key); v != "" {
			applyKV(key, v, cfg)
		}
	}
}

func applyKV(key, value string, cfg *Config) {
	switch key {
	case "DS_TEAM_NUMBER":
		if n, err := strconv.Atoi(value); err == nil {
			cfg.TeamNumber = n
		}
	case "DS_USB_MODE":
		cfg.USBMode = value == "1" || strings.EqualFold(value, "true")
	case "DS_ALLIANCE_COLOR":
		if strings.EqualFold(value, "blue") {
			cfg.Alliance.Color = wire.Blue
		} else {
			cfg.Alliance.Color = wire.Red
		}
	case "DS_ALLIANCE_STATION":
		if n, err := strconv.Atoi(value); err == nil {
			cfg.Alliance.Station = uint8(n)
		}
	case "DS_GAME_DATA":
		cfg.GameData = value
	case "DS_COUNTDOWN_SECS":
		cfg.Practice.CountdownSecs = parseFloatOr(value, cfg.Practice.CountdownSecs)
	case "DS_AUTO_SECS":
		cfg.Practice.AutoSecs = parseFloatOr(value, cfg.Practice.AutoSecs)
	case "DS_DELAY_SECS":
		cfg.Practice.DelaySecs = parseFloatOr(value, cfg.Practice.DelaySecs)
	case "DS_TELEOP_SECS":
		cfg.Practice.TeleopSecs = parseFloatOr(value, cfg.Practice.TeleopSecs)
	default:
		// Per-joystick slot locks are keyed "DS_JOYSTICK_SLOT_<identity>=<slot>"
		// so each identity gets its own .env line / environment variable
		// rather than overloading a single key.
		if ident, ok := strings.CutPrefix(key, "DS_JOYSTICK_SLOT_"); ok {
			if n, err := strconv.Atoi(value); err == nil {
				cfg.JoystickSlotLocks[ident] = n
			}
		}
	}
}

// applyJoystickSlotLockOverrides scans the process environment for
// DS_JOYSTICK_SLOT_<identity> overrides, since applyEnvOverrides only probes
// a fixed set of keys and identities are caller-defined.
func applyJoystickSlotLockOverrides(cfg *Config) {
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if ident, ok := strings.CutPrefix(key, "DS_JOYSTICK_SLOT_"); ok {
			if n, err := strconv.Atoi(value); err == nil {
				cfg.JoystickSlotLocks[ident] = n
			}
		}
	}
}

func parseFloatOr(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func findProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}
