package display

import "github.com/charmbracelet/lipgloss"

var (
	leafGreen   = lipgloss.Color("#2E7D32")
	lightGreen  = lipgloss.Color("#8BC34A")
	destructive = lipgloss.Color("#E53935")
	muted       = lipgloss.Color("#9E9E9E")
	white       = lipgloss.Color("#FFFFFF")
)

// Width is the wrap width of the result card
const Width = 72

type styles struct {
	Title      lipgloss.Style
	Scientific lipgloss.Style
	Section    lipgloss.Style
	Body       lipgloss.Style
	Label      lipgloss.Style
	Value      lipgloss.Style
	Badge      lipgloss.Style
	Card       lipgloss.Style
	Error      lipgloss.Style
	Muted      lipgloss.Style
	Ready      lipgloss.Style
	Down       lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		Title:      r.NewStyle().Bold(true).Foreground(leafGreen),
		Scientific: r.NewStyle().Italic(true).Foreground(muted),
		Section:    r.NewStyle().Bold(true).MarginTop(1),
		Body:       r.NewStyle().Width(Width),
		Label:      r.NewStyle().Bold(true).Width(20),
		Value:      r.NewStyle().Width(Width - 20),
		Badge:      r.NewStyle().Foreground(white).Background(lightGreen).Padding(0, 1).MarginRight(1),
		Card:       r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(leafGreen).Padding(0, 1),
		Error:      r.NewStyle().Foreground(destructive).Width(Width),
		Muted:      r.NewStyle().Foreground(muted),
		Ready:      r.NewStyle().Foreground(leafGreen).Bold(true),
		Down:       r.NewStyle().Foreground(destructive).Bold(true),
	}
}
