// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"visbridge/internal/analysis"
)

// BarLabels returns the meter label for every bar of p.
func BarLabels(p analysis.Params) []string {
	labels := make([]string, p.BarCount)
	for i := range labels {
		lo, _ := analysis.BarEdges(p, i)
		labels[i] = FrequencyLabel(lo)
	}
	return labels
}

// BinTable renders the bar to bin mapping of p: the nominal band edges,
// the inclusive bin range averaged for each bar and the frequencies those
// bins actually cover.
func BinTable(p analysis.Params) string {
	binWidth := p.BinWidth()
	rows := make([][]string, 0, p.BarCount)
	for i, r := range analysis.ComputeBinMap(p) {
		lo, hi := analysis.BarEdges(p, i)
		rows = append(rows, []string{
			fmt.Sprint(i),
			fmt.Sprintf("%.1f", lo),
			fmt.Sprintf("%.1f", hi),
			fmt.Sprintf("%d-%d", r.Lo, r.Hi),
			fmt.Sprint(r.Len()),
			fmt.Sprintf("%.1f-%.1f", float64(r.Lo)*binWidth, float64(r.Hi+1)*binWidth),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("BAR", "LOW HZ", "HIGH HZ", "BINS", "COUNT", "COVERED HZ").
		Rows(rows...)

	header := fmt.Sprintf("FFT %d @ %.0f Hz (%.2f Hz/bin, %.1f ms/frame), %d bars %.0f-%.0f Hz, %v window",
		p.FFTSize, p.SampleRate, binWidth, p.FrameDuration()*1000, p.BarCount, p.FreqMin, p.FreqMax, p.Window)
	return header + "\n" + t.String() + "\n"
}
