// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/servostat/pkg/scs"
)

type pollTickMsg time.Time

type pollDoneMsg struct {
	err error
}

// pollModel is the Bubble Tea model for poll --tui
type pollModel struct {
	connInfo string
	ids      []uint8
	rate     float64

	stats     *scs.Statistics
	perDevice *deviceStats
	snap      scs.StatsSnapshot
	table     table.Model

	width    int
	height   int
	finished bool
	err      error
	quitting bool
}

func newPollModel(connInfo string, ids []uint8, rate float64, stats *scs.Statistics, perDevice *deviceStats) pollModel {
	columns := []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Total", Width: 8},
		{Title: "OK", Width: 8},
		{Title: "Timeout", Width: 8},
		{Title: "Corrupt", Width: 8},
		{Title: "Other", Width: 6},
		{Title: "RTT", Width: 10},
		{Title: "Flags", Width: 20},
		{Title: "Data", Width: 18},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(min(len(ids), 16)+1),
	)

	return pollModel{
		connInfo:  connInfo,
		ids:       ids,
		rate:      rate,
		stats:     stats,
		perDevice: perDevice,
		table:     t,
		width:     80,
		height:    24,
	}
}

func (m pollModel) Init() tea.Cmd {
	return pollTickCmd()
}

func pollTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func (m pollModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case pollTickMsg:
		m.refresh()
		return m, pollTickCmd()

	case pollDoneMsg:
		m.refresh()
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m *pollModel) refresh() {
	m.snap = m.stats.Snapshot()

	devices := m.perDevice.snapshot()
	rows := make([]table.Row, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", d.id),
			fmt.Sprintf("%d", d.total),
			fmt.Sprintf("%d", d.ok),
			fmt.Sprintf("%d", d.timeouts),
			fmt.Sprintf("%d", d.corrupt),
			fmt.Sprintf("%d", d.other),
			d.lastRTT.Round(time.Microsecond).String(),
			d.flags.String(),
			scs.HexDump(d.lastData),
		})
	}
	m.table.SetRows(rows)
}

func (m pollModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

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

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("SERVOSTAT - POLL"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %d devices @ %.1f/s | r=reset q=quit",
		m.connInfo, len(m.ids), m.rate)))
	s.WriteString("\n\n")

	snap := m.snap
	var okPercent float64
	if snap.TotalRoundTrips > 0 {
		okPercent = float64(snap.Successes) * 100.0 / float64(snap.TotalRoundTrips)
	}

	failures := statsValueStyle.Render("0")
	if snap.Failures > 0 {
		failures = errorStyle.Render(fmt.Sprintf("%d", snap.Failures))
	}

	statsContent := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n%s %s   %s %s   %s %s/%s/%s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.TotalRoundTrips)),
		statsLabelStyle.Render("OK:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", okPercent)),
		statsLabelStyle.Render("Failed:"), failures,
		statsLabelStyle.Render("Faults:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.ServoFaults)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", snap.RoundTripRate)),
		statsLabelStyle.Render("Errors:"), statsValueStyle.Render(fmt.Sprintf("%.1f/s", snap.ErrorRate)),
		statsLabelStyle.Render("RTT:"),
		statsValueStyle.Render(snap.MinLatency.Round(time.Microsecond).String()),
		statsValueStyle.Render(snap.AvgLatency.Round(time.Microsecond).String()),
		statsValueStyle.Render(snap.MaxLatency.Round(time.Microsecond).String()),
	)
	s.WriteString(boxStyle.Width(m.width - 4).Render(statsContent))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(m.table.View()))
	s.WriteString("\n")

	if m.finished {
		if m.err != nil {
			s.WriteString(errorStyle.Render(fmt.Sprintf("Stopped: %v", m.err)))
		} else {
			s.WriteString(headerStyle.Render("Polling finished"))
		}
		s.WriteString("\n")
	}
	return s.String()
}
