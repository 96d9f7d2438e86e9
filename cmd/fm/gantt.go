package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/zulandar/foreman/internal/planner"
	"github.com/zulandar/foreman/internal/schedule"
	"golang.org/x/term"
)

const (
	labelWidth    = 34
	minBarWidth   = 20
	fallbackWidth = 120
)

// terminalWidth returns the width of stdout, or a fixed width when stdout
// is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fallbackWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return fallbackWidth
	}
	return w
}

// renderGantt draws one row per task in hierarchy order. Bars are placed
// from the timeline's percentage positions; critical tasks are drawn with
// '#', the rest with '=', milestones as '*'.
func renderGantt(out io.Writer, tree *schedule.Tree, tl planner.Timeline, width int) {
	bars := width - labelWidth - 1
	if bars < minBarWidth {
		bars = minBarWidth
	}

	fmt.Fprintf(out, "%-*s %s\n", labelWidth, "", axisLine(tl.Labels, bars))
	fmt.Fprintf(out, "%-*s %s\n", labelWidth, "", strings.Repeat("-", bars))

	for _, n := range tree.Flatten() {
		t := n.Task
		label := strings.Repeat("  ", n.Level) + t.WBS + " " + t.Title
		row := []byte(strings.Repeat(" ", bars))

		pos, ok := tl.Positions[t.ID]
		if ok {
			from := int(math.Round(pos.Left / 100 * float64(bars)))
			span := int(math.Round(pos.Width / 100 * float64(bars)))
			if span < 1 {
				span = 1
			}
			if from > bars-1 {
				from = bars - 1
			}
			if from+span > bars {
				span = bars - from
			}
			fill := byte('=')
			switch {
			case t.Milestone:
				fill = '*'
				span = 1
			case t.CriticalPath:
				fill = '#'
			}
			for i := from; i < from+span; i++ {
				row[i] = fill
			}
		}
		fmt.Fprintf(out, "%-*s %s\n", labelWidth, truncate(label, labelWidth), strings.TrimRight(string(row), " "))
	}
}

// axisLine spreads header labels across width columns, dropping labels
// that would overlap the previous one.
func axisLine(labels []string, width int) string {
	line := []byte(strings.Repeat(" ", width))
	next := 0
	for i, l := range labels {
		col := i * width / len(labels)
		if col < next || col+len(l) > width {
			continue
		}
		copy(line[col:], l)
		next = col + len(l) + 1
	}
	return strings.TrimRight(string(line), " ")
}
