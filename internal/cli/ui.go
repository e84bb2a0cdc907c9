package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/flowco/flowsync/pkg/flow"
)

// console receives all human-facing command output. The root command points
// it at cmd.OutOrStdout so tests can capture it.
var console io.Writer = os.Stdout

var (
	colorAccent = lipgloss.Color("36")
	colorOK     = lipgloss.Color("35")
	colorWarn   = lipgloss.Color("220")
	colorFail   = lipgloss.Color("167")
	colorLink   = lipgloss.Color("75")
	colorValue  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	// StyleTitle renders headings such as the journal browser title.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	// StyleHighlight marks the interesting part of a line (selection, command).
	StyleHighlight = lipgloss.NewStyle().Foreground(colorAccent)

	StyleDim   = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue = lipgloss.NewStyle().Foreground(colorValue)
)

var (
	styleOK      = lipgloss.NewStyle().Foreground(colorOK)
	styleFail    = lipgloss.NewStyle().Foreground(colorFail)
	styleWarn    = lipgloss.NewStyle().Foreground(colorWarn)
	styleInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleSpinner = lipgloss.NewStyle().Foreground(colorAccent)
	styleCommand = lipgloss.NewStyle().Foreground(colorLink)
	styleKey     = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

const (
	markOK    = "✓"
	markFail  = "✗"
	markWarn  = "!"
	markInfo  = "›"
	markArrow = "→"
)

func writeLine(s string) {
	fmt.Fprintln(console, s)
}

func printSuccess(format string, args ...any) {
	writeLine(styleOK.Render(markOK) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	writeLine(styleFail.Render(markFail) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	writeLine(styleWarn.Render(markWarn) + " " + styleWarn.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	writeLine(styleInfo.Render(markInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented secondary line.
func printDetail(format string, args ...any) {
	writeLine("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile reports a file the command wrote.
func printFile(path string) {
	writeLine("  " + StyleDim.Render(markArrow) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	writeLine(styleKey.Render(key) + " " + StyleValue.Render(value))
}

// layoutSource says where a set of positions came from.
type layoutSource string

const (
	sourceCached   layoutSource = "cached"
	sourceComputed layoutSource = "computed"
	sourceFile     layoutSource = "from file"
)

// printGraphStats prints node and edge counts plus the layout source on one line.
func printGraphStats(nodes []flow.Node, edges []flow.Edge, src layoutSource) {
	parts := []string{graphSummary(nodes, edges)}
	if n := countDisconnected(nodes, edges); n > 0 {
		parts = append(parts, fmt.Sprintf("%d isolated", n))
	}
	sep := StyleDim.Render(" · ")
	line := StyleDim.Render(strings.Join(parts, " · "))
	if src == sourceCached {
		line += sep + styleOK.Render(string(src))
	} else {
		line += sep + StyleDim.Render(string(src))
	}
	writeLine("  " + line)
}

// countDisconnected counts nodes that no edge touches.
func countDisconnected(nodes []flow.Node, edges []flow.Edge) int {
	touched := make(map[string]bool, len(edges)*2)
	for _, e := range edges {
		touched[e.Source] = true
		touched[e.Target] = true
	}
	n := 0
	for _, node := range nodes {
		if !touched[node.ID] {
			n++
		}
	}
	return n
}

// formatEdge renders an edge as "id: source -> target".
func formatEdge(e flow.Edge) string {
	return fmt.Sprintf("%s: %s %s %s", e.ID, e.Source, markArrow, e.Target)
}

// printNextStep suggests a follow-up command.
func printNextStep(description, cmd string) {
	writeLine("")
	writeLine(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}
