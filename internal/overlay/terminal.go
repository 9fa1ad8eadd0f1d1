package overlay

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(accent)).
			Padding(0, 2)
	faint   = lipgloss.NewStyle().Faint(true)
	heading = lipgloss.NewStyle().Bold(true)
)

// RenderTerminal renders a score card for a terminal.
func RenderTerminal(score int, strengths, weaknesses []string) string {
	tier := TierFor(score)
	color := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(tier.Color))

	var b strings.Builder
	b.WriteString(color.Render(fmt.Sprintf("%d", score)))
	b.WriteString(faint.Render("/100 "))
	b.WriteString(color.Render(tier.Label))

	section := func(title, titleColor string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("\n\n")
		b.WriteString(heading.Foreground(lipgloss.Color(titleColor)).Render(strings.ToUpper(title)))
		for _, item := range head(items) {
			b.WriteString("\n • " + item)
		}
	}
	section("Strengths", ColorSuccess, strengths)
	section("Gaps", ColorDanger, weaknesses)

	return cardStyle.Render(b.String())
}
