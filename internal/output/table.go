package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// RenderFunctionTable renders the top-functions view of a report: one row
// per function with sample count and estimated self/total times.
func RenderFunctionTable(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	for i, h := range header {
		sb.WriteString(headerStyle.Render(pad(h, widths[i])))
		sb.WriteString(cellStyle.Render(""))
	}
	sb.WriteByte('\n')
	sb.WriteString(dimStyle.Render(strings.Repeat("─", sum(widths)+2*len(widths))))
	sb.WriteByte('\n')

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				sb.WriteString(pad(cell, widths[i]))
				sb.WriteString(cellStyle.Render(""))
			}
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}

func pad(s string, width int) string {
	return fmt.Sprintf("%-*s", width, s)
}

func sum(ns []int) int {
	total := 0
	for _, n := range ns {
		total += n
	}

	return total
}
