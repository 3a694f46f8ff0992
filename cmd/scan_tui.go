// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/servostat/pkg/scs"
)

type scanProgressMsg scanProgress

type scanDoneMsg struct {
	err error
}

// scanModel is the Bubble Tea model for scan --tui
type scanModel struct {
	connInfo string
	from, to uint8
	current  uint8
	done     int
	total    int

	bar   progress.Model
	table table.Model

	finished bool
	aborted  bool
	err      error
}

func newScanModel(connInfo string, from, to uint8) scanModel {
	columns := []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Result", Width: 10},
		{Title: "RTT", Width: 10},
		{Title: "Error Flags", Width: 30},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(10),
		table.WithFocused(true),
	)

	return scanModel{
		connInfo: connInfo,
		from:     from,
		to:       to,
		current:  from,
		total:    int(to) - int(from) + 1,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		table:    t,
	}
}

func (m scanModel) Init() tea.Cmd {
	return nil
}

func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.finished {
				m.aborted = true
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-10, 20), 80)

	case scanProgressMsg:
		m.current = msg.id
		m.done = msg.done
		if msg.hit != nil {
			m.table.SetRows(append(m.table.Rows(), scanRow(*msg.hit)))
		}
		return m, nil

	case scanDoneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func scanRow(h scanHit) table.Row {
	if h.outcome == scs.RxCorrupt {
		return table.Row{fmt.Sprintf("%d", h.id), "CORRUPT", h.rtt.Round(time.Microsecond).String(), "-"}
	}
	return table.Row{fmt.Sprintf("%d", h.id), "FOUND", h.rtt.Round(time.Microsecond).String(), h.flags.String()}
}

func (m scanModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("SERVOSTAT - BUS SCAN"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | ids %d-%d | q=quit", m.connInfo, m.from, m.to)))
	s.WriteString("\n\n")

	var percent float64
	if m.total > 0 {
		percent = float64(m.done) / float64(m.total)
	}
	s.WriteString(m.bar.ViewAs(percent))
	s.WriteString(fmt.Sprintf("  %s (%d/%d)\n\n", scs.FormatID(m.current), m.done, m.total))

	s.WriteString(boxStyle.Render(m.table.View()))
	s.WriteString("\n")

	if m.finished {
		s.WriteString(headerStyle.Render(fmt.Sprintf("Scan complete: %d replies\n", len(m.table.Rows()))))
	}
	return s.String()
}
