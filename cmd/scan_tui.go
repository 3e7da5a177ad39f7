// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/lidarstat/pkg/lidar"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// TUI model
type scanModel struct {
	lidar    *lidar.Lidar
	session  *scanSession
	connInfo string
	mode     lidar.Mode

	watch         table.Model
	angleInput    textinput.Model
	editing       bool
	snapshot      lidar.StatsSnapshot
	eventLog      []eventLogEntry
	maxLogEntries int
	switching     bool
	stopped       bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type obstacleMsg struct {
	grade lidar.Grade
	data  lidar.SampleData
}
type modeSwitchedMsg struct {
	mode lidar.Mode
	err  error
}
type angleAddedMsg struct {
	angle int
	err   error
}

func newScanModel(l *lidar.Lidar, mode lidar.Mode, connInfo string, session *scanSession) scanModel {
	columns := []table.Column{
		{Title: "Angle", Width: 7},
		{Title: "Distance", Width: 12},
		{Title: "Grade", Width: 10},
		{Title: "Age", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("12")).
		Bold(true)
	t.SetStyles(styles)

	ti := textinput.New()
	ti.Placeholder = "90"
	ti.CharLimit = 3
	ti.Width = 5

	m := scanModel{
		lidar:         l,
		session:       session,
		connInfo:      connInfo,
		mode:          mode,
		watch:         t,
		angleInput:    ti,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.refresh()
	return m
}

func (m scanModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Duration(statsInterval)*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// switchModeCmd starts a scan in the given mode off the UI goroutine
func switchModeCmd(l *lidar.Lidar, mode lidar.Mode) tea.Cmd {
	return func() tea.Msg {
		return modeSwitchedMsg{mode: mode, err: l.Run(mode)}
	}
}

// addAngleCmd stops the scan, watches one more angle and resumes in mode.
// Subscriptions are only accepted while the scanner is idle.
func addAngleCmd(l *lidar.Lidar, session *scanSession, angle int, mode lidar.Mode) tea.Cmd {
	return func() tea.Msg {
		if err := l.Stop(); err != nil {
			lidar.Logf("scan ended with error: %v", err)
		}
		if err := session.addAngle(l, angle); err != nil {
			return angleAddedMsg{angle: angle, err: err}
		}
		return angleAddedMsg{angle: angle, err: l.Run(mode)}
	}
}

// nextMode cycles through the modes the device supports
func (m scanModel) nextMode() lidar.Mode {
	modes := m.lidar.Modes()
	for i, mode := range modes {
		if mode == m.mode {
			return modes[(i+1)%len(modes)]
		}
	}
	return modes[0]
}

func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.handleAngleInput(msg)
		}
		switch msg.String() {
		case "a":
			if m.switching {
				return m, nil
			}
			m.editing = true
			m.angleInput.SetValue("")
			return m, m.angleInput.Focus()
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "m":
			if m.switching {
				return m, nil
			}
			next := m.nextMode()
			m.switching = true
			m.addLogEntry(fmt.Sprintf("Switching to %s mode", next), false)
			return m, switchModeCmd(m.lidar, next)
		case "s":
			if m.switching || !m.stopped {
				return m, nil
			}
			m.switching = true
			m.addLogEntry(fmt.Sprintf("Restarting %s scan", m.mode), false)
			return m, switchModeCmd(m.lidar, m.mode)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.refresh()
		if !m.switching && !m.stopped && !m.lidar.IsRunning() {
			m.stopped = true
			if err := m.lidar.Err(); err != nil {
				m.addLogEntry(fmt.Sprintf("Scan stopped: %v", err), true)
			} else {
				m.addLogEntry("Scan stopped", true)
			}
		}
		return m, tickCmd()

	case modeSwitchedMsg:
		m.switching = false
		if msg.err != nil {
			m.stopped = true
			m.addLogEntry(fmt.Sprintf("Failed to start %s scan: %v", msg.mode, msg.err), true)
			return m, nil
		}
		m.mode = msg.mode
		m.stopped = false
		m.addLogEntry(fmt.Sprintf("Scanning in %s mode", msg.mode), false)

	case angleAddedMsg:
		m.switching = false
		m.refresh()
		if msg.err != nil {
			m.stopped = !m.lidar.IsRunning()
			m.addLogEntry(fmt.Sprintf("Failed to watch %d°: %v", msg.angle, msg.err), true)
			return m, nil
		}
		m.stopped = false
		m.addLogEntry(fmt.Sprintf("Watching %d°", msg.angle), false)

	case obstacleMsg:
		m.addLogEntry(fmt.Sprintf("Obstacle %s at %d°: %.1f cm", msg.grade, msg.data.Angle, msg.data.Distance),
			msg.grade != lidar.GradeGood)
	}

	var cmd tea.Cmd
	m.watch, cmd = m.watch.Update(msg)
	return m, cmd
}

func (m scanModel) handleAngleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "esc":
		m.editing = false
		m.angleInput.Blur()
		return m, nil
	case "enter":
		m.editing = false
		m.angleInput.Blur()
		val := m.angleInput.Value()
		if val == "" {
			val = m.angleInput.Placeholder
		}
		angle, err := strconv.Atoi(val)
		if err != nil || angle < 0 || angle >= lidar.MaxAngle {
			m.addLogEntry(fmt.Sprintf("Invalid angle %q", val), true)
			return m, nil
		}
		m.switching = true
		m.addLogEntry(fmt.Sprintf("Adding watch angle %d°", angle), false)
		return m, addAngleCmd(m.lidar, m.session, angle, m.mode)
	}

	var cmd tea.Cmd
	m.angleInput, cmd = m.angleInput.Update(msg)
	return m, cmd
}

// refresh copies the latest readings and counters into the model
func (m *scanModel) refresh() {
	m.snapshot = m.lidar.Statistics().Snapshot()

	watched := m.session.rows()
	rows := make([]table.Row, 0, len(watched))
	for _, r := range watched {
		if !r.Seen {
			rows = append(rows, table.Row{fmt.Sprintf("%d°", r.Angle), "---", "", ""})
			continue
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d°", r.Angle),
			fmt.Sprintf("%.1f cm", r.Reading.Distance),
			m.session.grader.Grade(r.Reading.Distance).String(),
			r.Age.Truncate(time.Millisecond).String(),
		})
	}
	m.watch.SetRows(rows)
	m.watch.SetHeight(len(rows) + 1)
}

func (m *scanModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m scanModel) View() string {
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

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
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

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("LIDARSTAT - SCAN MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s | Mode: %s | 'm' mode, 'a' add angle, 's' restart, 'q' quit",
		m.connInfo, m.lidar.Name, m.mode)))
	s.WriteString("\n\n")

	// Scan state
	switch {
	case m.switching:
		s.WriteString(warningStyle.Render("⏳ Starting scan..."))
	case m.stopped:
		s.WriteString(errorStyle.Render("✗ Scan stopped"))
	default:
		s.WriteString(statsValueStyle.Render("✓ Scanning"))
	}
	if grade, ok := m.session.obstacle(); ok {
		style := statsValueStyle
		switch grade {
		case lidar.GradeCritical:
			style = errorStyle
		case lidar.GradeWarning:
			style = warningStyle
		}
		s.WriteString(headerStyle.Render(fmt.Sprintf("   Obstacle (%d°): ", obstacleAngle)))
		s.WriteString(style.Render(grade.String()))
	}
	s.WriteString("\n\n")

	// Statistics
	snap := m.snapshot
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Units:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Units)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", snap.ValidSamples, snap.ValidPercent())),
		statsLabelStyle.Render("Revolutions:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Revolutions)),
	))

	if snap.ResyncBytes > 0 || snap.ChecksumErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Resync Bytes:"), warningStyle.Render(fmt.Sprintf("%d", snap.ResyncBytes)),
			statsLabelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", snap.ChecksumErrors)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Sample Rate:"), statsValueStyle.Render(fmt.Sprintf("%.0f samples/s", snap.SampleRate)),
		statsLabelStyle.Render("Scan Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f Hz", snap.ScanRate)),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Watch angles
	s.WriteString(statsLabelStyle.Render("Watch Angles:"))
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.watch.View()))
	s.WriteString("\n")
	if m.editing {
		s.WriteString(statsLabelStyle.Render("Add angle: "))
		s.WriteString(m.angleInput.View())
		s.WriteString(headerStyle.Render("  (enter to add, esc to cancel)"))
	}
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - len(m.watch.Rows()) - 19
	if logHeight < 3 {
		logHeight = 3
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

func runScanTUI(l *lidar.Lidar, mode lidar.Mode, connInfo string, session *scanSession) error {
	// Log lines would tear the alternate screen
	lidar.SetLogger(nil)

	m := newScanModel(l, mode, connInfo, session)
	p := tea.NewProgram(m)

	session.onGrade = func(grade lidar.Grade, d lidar.SampleData) {
		p.Send(obstacleMsg{grade: grade, data: d})
	}
	if err := session.subscribe(l); err != nil {
		return err
	}

	ctx, cancel := scanContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if err := l.Run(mode); err != nil {
		return fmt.Errorf("failed to start %s scan: %w", mode, err)
	}

	_, err := p.Run()
	scanErr := l.Stop()
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	fmt.Print(l.Statistics().Snapshot().String())
	fmt.Println()
	fmt.Print(session.summary.String())
	return scanErr
}
