package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"driverstation/internal/hoststat"
	"driverstation/internal/station"
	"driverstation/internal/wire"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2563EB"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	logViewport = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type stateTickMsg struct{}
type resourceTickMsg struct{ cpuAvg, ramPercent float64 }
type logTickMsg struct{}

// model is the dstui bubbletea model. It polls the station at a fixed
// cadence rather than subscribing to a push channel, mirroring the
// teacher's tea.Tick-driven resource/health polling.
type model struct {
	station *station.Station

	width, height int

	state        wire.RobotState
	havePacket   bool
	connState    string
	resourceLine string

	log      viewport.Model
	logLines []string

	copiedNotice bool
}

func newModel(st *station.Station) model {
	vp := viewport.New(78, 14)
	vp.SetContent("waiting for telemetry...")
	return model{station: st, log: vp, width: 80, height: 24}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tea.ClearScreen, pollState(), pollResource(), pollLog())
}

func pollState() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return stateTickMsg{} })
}

func pollResource() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		sample, _ := hoststat.Collect(".")
		var cpuAvg float64
		for _, p := range sample.CPUPercent {
			cpuAvg += p
		}
		if len(sample.CPUPercent) > 0 {
			cpuAvg /= float64(len(sample.CPUPercent))
		}
		var ramPercent float64
		if sample.RAMTotalBytes > 0 {
			ramPercent = 100 * float64(sample.RAMUsedBytes) / float64(sample.RAMTotalBytes)
		}
		return resourceTickMsg{cpuAvg: cpuAvg, ramPercent: ramPercent}
	})
}

func pollLog() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(time.Time) tea.Msg { return logTickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.log.Width = msg.Width - 4
		m.log.Height = msg.Height - 12

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "e":
			m.station.Enable()
		case "d":
			m.station.Disable()
		case "x":
			m.station.EStop()
		case "c":
			m.station.ClearEStop()
		case "m":
			m.station.SetMode(nextMode(m.state.Status.Mode))
		case "r":
			m.station.RebootRoborio()
		case "p":
			m.station.StartPracticeDefault()
		case "o":
			m.station.StopPractice()
		case "y":
			if clipboard.WriteAll(m.renderStateText()) == nil {
				m.copiedNotice = true
			}
		}

	case stateTickMsg:
		if st, ok := m.station.SubscribeState(); ok {
			m.state = st
			m.havePacket = true
		}
		m.connState = m.station.ConnectionState().String()
		cmds = append(cmds, pollState())

	case resourceTickMsg:
		m.resourceLine = fmt.Sprintf("CPU: %.1f%% | RAM: %.1f%%", msg.cpuAvg, msg.ramPercent)
		cmds = append(cmds, pollResource())

	case logTickMsg:
		drained := false
		for i := 0; i < 20; i++ {
			if line, ok := m.station.TakeStdout(); ok {
				m.logLines = append(m.logLines, line)
				drained = true
				continue
			}
			break
		}
		if drained {
			if len(m.logLines) > 200 {
				m.logLines = m.logLines[len(m.logLines)-200:]
			}
			content := ansi.Wordwrap(strings.Join(m.logLines, "\n"), m.log.Width, " \t")
			m.log.SetContent(content)
			m.log.GotoBottom()
		}
		for {
			if _, ok := m.station.TakeMessage(); !ok {
				break
			}
		}
		cmds = append(cmds, pollLog())
	}

	return m, tea.Batch(cmds...)
}

func nextMode(m wire.Mode) wire.Mode {
	switch m {
	case wire.ModeTeleop:
		return wire.ModeTest
	case wire.ModeTest:
		return wire.ModeAutonomous
	default:
		return wire.ModeTeleop
	}
}

func (m model) renderStateText() string {
	if !m.havePacket {
		return "no state yet"
	}
	return fmt.Sprintf("connected=%v code_running=%v voltage=%.2f mode=%v trip_ms=%.1f lost=%d",
		m.state.Connected, m.state.CodeRunning, float64(m.state.Voltage), m.state.Status.Mode,
		m.state.TripTimeMs, m.state.LostPackets)
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Driver Station") + "\n")
	b.WriteString(fmt.Sprintf("connection: %s\n", m.connState))

	statusStyle := okStyle
	if m.state.Status.EStop || m.state.Status.Brownout {
		statusStyle = warnStyle
	}
	b.WriteString(statusStyle.Render(m.renderStateText()) + "\n")
	b.WriteString(m.resourceLine + "\n\n")
	b.WriteString(logViewport.Render(m.log.View()) + "\n")
	b.WriteString("[e]nable [d]isable [x]e-stop [c]lear [m]ode [r]eboot [p]ractice st[o]p [y]copy [q]uit\n")
	if m.copiedNotice {
		b.WriteString(okStyle.Render("copied state to clipboard") + "\n")
	}
	return b.String()
}
