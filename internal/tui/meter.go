// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// BarsMsg delivers one frame of bars in [0, 1] to a running Meter.
type BarsMsg []float32

const (
	columnWidth    = 4 // three cells of bar and a gap
	defaultHeight  = 16
	minHeight      = 4
	meterChrome    = 6 // title, labels, status and help lines
	blockLevels    = 8
	emptyCell      = "   "
	fullCell       = "███"
	columnGap      = " "
	pausedLabel    = "paused"
	waitingMessage = "Waiting for audio..."
)

// eighths are the partial block glyphs, index 1 to 8.
var eighths = [blockLevels + 1]string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// Meter is a Bubble Tea model drawing one vertical column per bar, each
// labelled with the low edge frequency of its band.
type Meter struct {
	title  string
	labels []string
	bars   []float32
	height int
	width  int
	frames uint64
	paused bool

	keys meterKeys
	help help.Model
}

// NewMeter creates a meter for len(labels) bars.
func NewMeter(title string, labels []string) Meter {
	return Meter{
		title:  title,
		labels: labels,
		bars:   make([]float32, len(labels)),
		height: defaultHeight,
		keys:   meterKeys{keys},
		help:   help.New(),
	}
}

// FrequencyLabel formats hz for a meter column: "40", "1.2k", "16k".
func FrequencyLabel(hz float64) string {
	switch {
	case hz < 1000:
		return fmt.Sprintf("%.0f", hz)
	case hz < 10000:
		return strings.Replace(fmt.Sprintf("%.1fk", hz/1000), ".0k", "k", 1)
	default:
		return fmt.Sprintf("%.0fk", hz/1000)
	}
}

// Init implements tea.Model.
func (m Meter) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Meter) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.height = max(msg.Height-meterChrome, minHeight)

	case BarsMsg:
		if m.paused {
			return m, nil
		}
		m.frames++
		if len(m.bars) != len(msg) {
			m.bars = make([]float32, len(msg))
		}
		copy(m.bars, msg)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Meter) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	if m.frames == 0 {
		sb.WriteString(dimStyle.Render(waitingMessage))
		sb.WriteString("\n\n")
		sb.WriteString(m.help.View(m.keys))
		return sb.String()
	}

	sb.WriteString(m.renderColumns())
	sb.WriteString(m.renderLabels())
	sb.WriteString("\n")

	status := fmt.Sprintf("%d frames", m.frames)
	if m.paused {
		status += " • " + pausedLabel
	}
	sb.WriteString(dimStyle.Render(status))
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

// renderColumns draws the bars top row first. Each row is worth
// blockLevels steps so a column ends in a partial glyph.
func (m Meter) renderColumns() string {
	var sb strings.Builder
	for row := m.height - 1; row >= 0; row-- {
		style := rowStyle(row, m.height)
		for _, v := range m.bars {
			sb.WriteString(style.Render(cell(v, row, m.height)))
			sb.WriteString(columnGap)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// cell returns the glyphs for bar value v in the given row.
func cell(v float32, row, height int) string {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	steps := int(v*float32(height*blockLevels) + 0.5)
	filled := steps - row*blockLevels
	switch {
	case filled <= 0:
		return emptyCell
	case filled >= blockLevels:
		return fullCell
	default:
		return strings.Repeat(eighths[filled], columnWidth-1)
	}
}

func rowStyle(row, height int) lipgloss.Style {
	switch frac := float64(row+1) / float64(height); {
	case frac > 0.85:
		return highStyle
	case frac > 0.6:
		return midStyle
	default:
		return lowStyle
	}
}

func (m Meter) renderLabels() string {
	var sb strings.Builder
	for _, l := range m.labels {
		if len(l) > columnWidth {
			l = l[:columnWidth]
		}
		sb.WriteString(fmt.Sprintf("%-*s", columnWidth, l))
	}
	return infoStyle.Render(strings.TrimRight(sb.String(), " "))
}

// Bars returns the bars currently displayed.
func (m Meter) Bars() []float32 { return m.bars }

// Frames returns how many frames the meter has displayed.
func (m Meter) Frames() uint64 { return m.frames }

var _ tea.Model = Meter{}
