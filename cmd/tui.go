// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for anomalies, false for info
}

type keyMap struct {
	Quit    key.Binding
	ShowAll key.Binding
	Clear   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.ShowAll, k.Clear, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	ShowAll: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "toggle valid records"),
	),
	Clear: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear log"),
	),
}

// TUI model
type model struct {
	source        string
	statsInterval int
	showAll       bool
	stats         *vedirect.Statistics
	telemetry     *vedirect.Telemetry
	readings      table.Model
	keys          keyMap
	help          help.Model
	eventLog      []logEntry
	maxLogEntries int
	synchronized  bool
	skipped       int
	width         int
	height        int
	quitting      bool
	closed        bool
}

// Messages
type tickMsg time.Time
type recordMsg struct {
	record           vedirect.Record
	at               time.Time
	validationErrors []vedirect.ValidationError
	reported         bool
}
type syncMsg struct {
	skipped int
}
type staleMsg struct {
	label string
	idle  time.Duration
}
type closedMsg struct {
	err error
}

var uptimeUnits = []struct {
	name string
	size time.Duration
}{
	{"day", 24 * time.Hour},
	{"hour", time.Hour},
	{"minute", time.Minute},
	{"second", time.Second},
}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}

	parts := []string{}
	for _, u := range uptimeUnits {
		n := d / u.size
		d -= n * u.size
		switch {
		case n == 1:
			parts = append(parts, "1 "+u.name)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, u.name))
		}
	}

	// Join with commas and "and" for last item
	switch len(parts) {
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}

func initialModel(source string, statsInterval int, showAll bool, stats *vedirect.Statistics, telemetry *vedirect.Telemetry) model {
	readings := table.New(
		table.WithColumns([]table.Column{
			{Title: "Output", Width: 28},
			{Title: "Value", Width: 22},
			{Title: "Updates", Width: 8},
			{Title: "Age", Width: 8},
		}),
		table.WithHeight(len(telemetry.Outputs())+1),
		table.WithFocused(false),
	)

	m := model{
		source:        source,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         stats,
		telemetry:     telemetry,
		readings:      readings,
		keys:          defaultKeys,
		help:          help.New(),
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.refreshReadings(time.Now())
	return m
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.ShowAll):
			m.showAll = !m.showAll
		case key.Matches(msg, m.keys.Clear):
			m.eventLog = m.eventLog[:0]
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tickMsg:
		m.refreshReadings(time.Time(msg))
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.skipped = msg.skipped
		if msg.skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d records", msg.skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case recordMsg:
		if len(msg.validationErrors) > 0 && msg.reported {
			for _, err := range msg.validationErrors {
				m.addLogEntryAt(msg.at, fmt.Sprintf("%s: %s", err.Type, err.Message), true)
			}
		} else if m.showAll {
			m.addLogEntryAt(msg.at, fmt.Sprintf("%s = %s (valid)", msg.record.Label, msg.record.Value), false)
		}
		m.refreshReadings(msg.at)

	case staleMsg:
		m.addLogEntry(fmt.Sprintf("Stale frame %q discarded after %s idle", msg.label, msg.idle.Round(time.Millisecond)), true)

	case closedMsg:
		m.closed = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection error: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", false)
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	m.addLogEntryAt(time.Now(), message, isError)
}

func (m *model) addLogEntryAt(ts time.Time, message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: ts,
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// refreshReadings rebuilds the readings table from the sensors
func (m *model) refreshReadings(now time.Time) {
	rows := make([]table.Row, 0, len(m.telemetry.Outputs()))
	for _, o := range m.telemetry.Outputs() {
		sensor, _ := m.telemetry.Sensor(o)
		r, ok := sensor.Reading()
		if !ok {
			rows = append(rows, table.Row{o.Name(), "-", "0", "-"})
			continue
		}
		age := now.Sub(sensor.Updated()).Round(time.Second)
		if age < 0 {
			age = 0
		}
		rows = append(rows, table.Row{
			o.Name(),
			vedirect.FormatReading(r),
			fmt.Sprintf("%d", sensor.Count()),
			age.String(),
		})
	}
	m.readings.SetRows(rows)
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	mode := "Anomalies only"
	if m.showAll {
		mode = "All records"
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("VEDIRECT - ERROR DETECTION"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s", m.source, mode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.closed:
		s.WriteString(errorStyle.Render("✗ Connection closed"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for end of block..."))
	default:
		s.WriteString(valueStyle.Render("✓ Synchronized"))
		if m.skipped > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d records)", m.skipped)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	snap := m.stats.Snapshot()
	var validPercent, errorPercent float64
	if snap.TotalRecords > 0 {
		validPercent = float64(snap.ValidRecords) * 100.0 / float64(snap.TotalRecords)
		errorPercent = float64(snap.TotalRecords-snap.ValidRecords) * 100.0 / float64(snap.TotalRecords)
	}

	var stats strings.Builder
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", snap.TotalRecords)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.ValidRecords, validPercent)),
		labelStyle.Render("Flagged:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.TotalRecords-snap.ValidRecords, errorPercent)),
	))
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Blocks:"), valueStyle.Render(fmt.Sprintf("%d", snap.ChecksumFrames)),
		labelStyle.Render("Stale:"), warningStyle.Render(fmt.Sprintf("%d", snap.StaleResets)),
		labelStyle.Render("Unknown:"), warningStyle.Render(fmt.Sprintf("%d", snap.UnknownLabels)),
	))

	errorRate := valueStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
	if snap.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", snap.ErrorRate))
	}
	stats.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Record Rate:"), valueStyle.Render(fmt.Sprintf("%.1f recs/s", snap.RecordRate)),
		labelStyle.Render("Error Rate:"), errorRate,
		labelStyle.Render("Uptime:"), valueStyle.Render(formatUptime(snap.Uptime)),
	))

	s.WriteString(boxStyle.Render(stats.String()))
	s.WriteString("\n\n")

	// Latest readings
	s.WriteString(labelStyle.Render("Latest Readings:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.readings.View()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - m.readings.Height() - 16
	if logHeight < 5 {
		logHeight = 5
	}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	var events strings.Builder
	if len(m.eventLog) == 0 {
		events.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.eventLog[startIdx:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("01/02/06 15:04:05.000"))
		if entry.isError {
			events.WriteString(timestamp + " " + errorStyle.Render("✗ "+entry.message) + "\n")
		} else {
			events.WriteString(timestamp + " " + warningStyle.Render("ℹ "+entry.message) + "\n")
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(events.String()))
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}
