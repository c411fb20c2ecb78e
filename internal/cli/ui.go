package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Palette
// =============================================================================

// The accent and trace colours follow the frame renderer so terminal output
// reads like the drawn graph.
var (
	colorAccent = lipgloss.Color("36")
	colorTrace  = lipgloss.Color("214")
	colorOK     = lipgloss.Color("35")
	colorWarn   = lipgloss.Color("220")
	colorFail   = lipgloss.Color("167")
	colorLink   = lipgloss.Color("75")
	colorText   = lipgloss.Color("255")
	colorMuted  = lipgloss.Color("245")
	colorFaint  = lipgloss.Color("240")
)

// =============================================================================
// Styles
// =============================================================================

var (
	// StyleTitle renders headings such as a node's name.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	StyleHighlight = lipgloss.NewStyle().Foreground(colorAccent)
	StyleLink      = lipgloss.NewStyle().Foreground(colorLink).Underline(true)
	StyleDim       = lipgloss.NewStyle().Foreground(colorFaint)
	StyleValue     = lipgloss.NewStyle().Foreground(colorText)
	StyleNumber    = lipgloss.NewStyle().Foreground(colorAccent)
)

var (
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorAccent)
	styleCommand     = lipgloss.NewStyle().Foreground(colorLink)
	styleKey         = lipgloss.NewStyle().Foreground(colorMuted).Width(12)

	styleTableHeader = lipgloss.NewStyle().Foreground(colorMuted).Bold(true)
	styleTableBorder = lipgloss.NewStyle().Foreground(colorFaint)
	styleTraced      = lipgloss.NewStyle().Foreground(colorTrace).Bold(true)
	styleLost        = lipgloss.NewStyle().Foreground(colorFail)

	styleListSelected = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleListNormal   = lipgloss.NewStyle().Foreground(colorText)
)

const (
	iconInfo  = "›"
	iconArrow = "→"
)

// =============================================================================
// Status lines
// =============================================================================

// status is a leading icon and the style it is drawn in.
type status struct {
	icon  string
	style lipgloss.Style
	// tint also draws the message in style.
	tint bool
}

var (
	statusOK   = status{icon: "✓", style: lipgloss.NewStyle().Foreground(colorOK)}
	statusFail = status{icon: "✗", style: lipgloss.NewStyle().Foreground(colorFail)}
	statusWarn = status{icon: "!", style: lipgloss.NewStyle().Foreground(colorWarn), tint: true}
	statusInfo = status{icon: iconInfo, style: lipgloss.NewStyle().Foreground(colorMuted)}
)

func (s status) line(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if s.tint {
		msg = s.style.Render(msg)
	}
	return s.style.Render(s.icon) + " " + msg
}

func printSuccess(format string, args ...any) { fmt.Println(statusOK.line(format, args...)) }
func printError(format string, args ...any)   { fmt.Println(statusFail.line(format, args...)) }
func printWarning(format string, args ...any) { fmt.Println(statusWarn.line(format, args...)) }
func printInfo(format string, args ...any)    { fmt.Println(statusInfo.line(format, args...)) }

// printDetail prints an indented, muted line under a status line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Println(styleKey.Render(key) + " " + StyleValue.Render(value))
}

// statsLine joins the counts of a rendered graph and whether it came from
// the artifact cache.
func statsLine(nodes, links int, cached bool) string {
	var parts []string
	if nodes > 0 {
		parts = append(parts, StyleDim.Render(fmt.Sprintf("%d nodes", nodes)))
	}
	if links > 0 {
		parts = append(parts, StyleDim.Render(fmt.Sprintf("%d links", links)))
	}
	if cached {
		parts = append(parts, statusOK.style.Render("cached"))
	} else {
		parts = append(parts, statusInfo.style.Render("fresh"))
	}
	return "  " + strings.Join(parts, StyleDim.Render(" · "))
}

func printStats(nodes, links int, cached bool) { fmt.Println(statsLine(nodes, links, cached)) }

func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

func printNewline() { fmt.Println() }
