// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Thermoquad/lpcisp/pkg/isp"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// TUI model
type programModel struct {
	connInfo  string
	units     int
	stats     *isp.Statistics
	bar       progress.Model
	progress  isp.Progress
	events    []eventEntry
	maxEvents int
	width     int
	height    int
	done      bool
	err       error
	quitting  bool
	cancel    context.CancelFunc
}

// Messages
type progressMsg isp.Progress
type eventMsg eventEntry
type sessionDoneMsg struct {
	session *isp.Session
	err     error
}

// tuiLogger forwards informational and error events to the TUI event log.
// Debug output goes to the standard logger.
type tuiLogger struct {
	program *tea.Program
}

func (l tuiLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Print(formatLogLine("DEBUG", msg, keysAndValues))
}

func (l tuiLogger) Info(msg string, keysAndValues ...interface{}) {
	l.program.Send(eventMsg{timestamp: time.Now(), message: kvMessage(msg, keysAndValues)})
}

func (l tuiLogger) Error(msg string, keysAndValues ...interface{}) {
	l.program.Send(eventMsg{timestamp: time.Now(), message: kvMessage(msg, keysAndValues), isError: true})
}

func kvMessage(msg string, keysAndValues []interface{}) string {
	line := formatLogLine("", msg, keysAndValues)
	return strings.TrimPrefix(line, "[] ")
}

func newProgramModel(connInfo string, units int, stats *isp.Statistics, cancel context.CancelFunc) programModel {
	return programModel{
		connInfo:  connInfo,
		units:     units,
		stats:     stats,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		events:    make([]eventEntry, 0),
		maxEvents: 100,
		width:     80,
		height:    24,
		cancel:    cancel,
	}
}

func (m programModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m programModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = !m.done
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-20, 10)

	case tickMsg:
		// Redraw for the elapsed time and rates
		return m, tickCmd()

	case progressMsg:
		if msg.Phase != m.progress.Phase {
			m.addEvent(fmt.Sprintf("Phase: %s", phaseDescription(msg.Phase)), false)
		}
		m.progress = isp.Progress(msg)

	case eventMsg:
		m.addEvent(msg.message, msg.isError)

	case sessionDoneMsg:
		m.done = true
		m.err = msg.err
		if msg.err != nil {
			m.addEvent(fmt.Sprintf("FAILED: %v", msg.err), true)
		} else {
			m.addEvent("Flashing completed successfully", false)
		}
	}

	return m, nil
}

func (m *programModel) addEvent(message string, isError bool) {
	m.events = append(m.events, eventEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
}

func (m programModel) View() string {
	if m.quitting {
		return "Cancelling after the current transaction...\n"
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

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("LPCISP - PROGRAM"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %d units | Press 'q' to %s",
		m.connInfo, m.units, func() string {
			if m.done {
				return "exit"
			}
			return "cancel"
		}())))
	s.WriteString("\n\n")

	// Progress
	total := m.units * isp.UnitSize
	percent := 0.0
	if total > 0 {
		percent = min(float64(m.progress.Cursor)/float64(total), 1)
	}
	progressContent := strings.Builder{}
	progressContent.WriteString(m.bar.ViewAs(percent))
	progressContent.WriteString(fmt.Sprintf(" %5.1f%%\n", percent*100))
	progressContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Phase:"), valueStyle.Render(phaseDescription(m.progress.Phase)),
		labelStyle.Render("Units:"), valueStyle.Render(fmt.Sprintf("%d/%d", m.progress.Units, m.units)),
		labelStyle.Render("Cursor:"), valueStyle.Render(fmt.Sprintf("0x%05X", m.progress.Cursor)),
	))
	if m.progress.Staged > 0 {
		progressContent.WriteString(fmt.Sprintf("   %s %s",
			labelStyle.Render("Staged:"), valueStyle.Render(fmt.Sprintf("%d bytes", m.progress.Staged))))
	}
	s.WriteString(boxStyle.Render(progressContent.String()))
	s.WriteString("\n\n")

	// Statistics
	c := m.stats.Snapshot()
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Transactions:"), valueStyle.Render(fmt.Sprintf("%d", c.Transactions)),
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d B", c.BytesSent)),
		labelStyle.Render("Received:"), valueStyle.Render(fmt.Sprintf("%d B", c.BytesReceived)),
	))
	if c.Version != 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render("Bootloader:"), valueStyle.Render(fmt.Sprintf("%d", c.Version))))
	}
	if c.Mismatches > 0 || c.Timeouts > 0 || c.FlushFailures > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Mismatches:"), errorStyle.Render(fmt.Sprintf("%d", c.Mismatches)),
			labelStyle.Render("Timeouts:"), errorStyle.Render(fmt.Sprintf("%d", c.Timeouts)),
			labelStyle.Render("Unit retries:"), errorStyle.Render(fmt.Sprintf("%d", c.FlushFailures)),
		))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Elapsed:"), valueStyle.Render(c.Elapsed.Round(time.Second).String()),
		labelStyle.Render("Payload Rate:"), valueStyle.Render(fmt.Sprintf("%.0f B/s", c.PayloadRate)),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Events:"))
	s.WriteString("\n")

	logHeight := max(m.height-16, 5)
	startIdx := max(len(m.events)-logHeight, 0)

	logContent := strings.Builder{}
	if len(m.events) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.events[startIdx:] {
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp), infoStyle.Render("ℹ "+entry.message)))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

// runProgramTUI flashes the image on a worker goroutine while the TUI runs.
// Quitting early cancels the session between transactions.
func runProgramTUI(ctx context.Context, transport isp.Transport, stats *isp.Statistics,
	records [][]byte, connInfo string, units int) (*isp.Session, error) {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgramModel(connInfo, units, stats, cancel))
	prog := isp.New(transport,
		isp.WithLogger(tuiLogger{program: p}),
		isp.WithStatistics(stats),
		isp.WithRetries(programRetries),
		isp.WithProgressCallback(func(pr isp.Progress) {
			p.Send(progressMsg(pr))
		}),
	)

	result := make(chan sessionDoneMsg, 1)
	go func() {
		s, err := flashImage(ctx, prog, records)
		done := sessionDoneMsg{session: s, err: err}
		result <- done
		p.Send(done)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-result
		return nil, fmt.Errorf("TUI error: %w", err)
	}

	cancel()
	done := <-result
	if done.err == nil {
		fmt.Print(stats.String())
	}
	return done.session, done.err
}
