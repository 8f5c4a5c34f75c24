// Package display holds the presentation state and renders it to a terminal.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/shehryarbajwa/plant-identifier/pkg/models"
)

// State is what the display currently shows
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateResult  State = "result"
	StateError   State = "error"
)

const (
	statusReady       = "Ready"
	statusUnavailable = "Service Unavailable"
)

// View is a copy of the display state
type View struct {
	State     State
	Record    models.PlantRecord
	Message   string
	Available bool
}

// Sink holds the display state and writes a rendering on every change
type Sink struct {
	out    io.Writer
	styles styles

	mu   sync.Mutex
	view View
}

// NewSink creates a sink writing to out. Colors are chosen from out's
// terminal capabilities.
func NewSink(out io.Writer) *Sink {
	if out == nil {
		out = io.Discard
	}
	return &Sink{
		out:    out,
		styles: newStyles(lipgloss.NewRenderer(out)),
		view:   View{State: StateIdle, Available: true},
	}
}

// Reset clears any result, error or loading indicator
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.State = StateIdle
	s.view.Record = models.PlantRecord{}
	s.view.Message = ""
}

func (s *Sink) ShowLoading() {
	s.update(func(v *View) {
		v.State = StateLoading
		v.Message = ""
	})
}

func (s *Sink) ShowResult(record models.PlantRecord) {
	s.update(func(v *View) {
		v.State = StateResult
		v.Record = record
		v.Message = ""
	})
}

// ShowError displays a message that is already in user-facing form
func (s *Sink) ShowError(message string) {
	s.update(func(v *View) {
		v.State = StateError
		v.Message = message
	})
}

// SetAvailable toggles the service status indicator
func (s *Sink) SetAvailable(available bool) {
	s.update(func(v *View) {
		v.Available = available
	})
}

// View returns the current display state
func (s *Sink) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Sink) update(fn func(*View)) {
	s.mu.Lock()
	fn(&s.view)
	rendered := s.render(s.view)
	s.mu.Unlock()

	fmt.Fprintln(s.out, rendered)
}

// Render returns the rendering of the current state
func (s *Sink) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render(s.view)
}

func (s *Sink) render(v View) string {
	st := s.styles

	var status string
	if v.Available {
		status = st.Ready.Render("● " + statusReady)
	} else {
		status = st.Down.Render("● " + statusUnavailable)
	}

	switch v.State {
	case StateLoading:
		return status + "\n" + st.Muted.Render("Identifying plant...")
	case StateError:
		return status + "\n" + st.Error.Render(v.Message)
	case StateResult:
		return status + "\n" + st.Card.Render(s.renderRecord(v.Record))
	default:
		return status
	}
}

func (s *Sink) renderRecord(r models.PlantRecord) string {
	st := s.styles
	var b strings.Builder

	b.WriteString(st.Title.Render(r.CommonName))
	if r.ScientificName != "" {
		b.WriteString("\n")
		b.WriteString(st.Scientific.Render(r.ScientificName))
	}

	b.WriteString("\n")
	b.WriteString(st.Section.Render("Description"))
	b.WriteString("\n")
	b.WriteString(st.Body.Render(r.Description))

	b.WriteString("\n")
	b.WriteString(st.Section.Render("Plant Care"))
	for _, row := range [][2]string{
		{"Water Needs", r.WaterNeeds},
		{"Light", r.LightRequirements},
		{"Growth Rate", r.GrowthRate},
		{"Mature Size", r.MatureSize},
		{"Ideal Climate", r.IdealClimate},
	} {
		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, st.Label.Render(row[0]), st.Value.Render(row[1])))
	}

	b.WriteString("\n")
	b.WriteString(st.Section.Render("Key Facts"))
	b.WriteString("\n")
	b.WriteString(s.renderBadges(r.KeyFacts))

	b.WriteString("\n")
	b.WriteString(st.Section.Render("Care Instructions"))
	b.WriteString("\n")
	b.WriteString(st.Body.Render(r.CareInstructions))

	return b.String()
}

// renderBadges lays out one badge per fact, wrapping at Width
func (s *Sink) renderBadges(facts []string) string {
	var lines []string
	var line []string
	lineWidth := 0

	for _, fact := range facts {
		badge := s.styles.Badge.Render(fact)
		w := lipgloss.Width(badge)
		if lineWidth > 0 && lineWidth+w > Width {
			lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, line...))
			line, lineWidth = nil, 0
		}
		line = append(line, badge)
		lineWidth += w
	}
	if len(line) > 0 {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, line...))
	}
	return strings.Join(lines, "\n")
}
