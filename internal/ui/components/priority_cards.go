package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/telepathic/pkg/models"
)

var (
	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1)

	selectedCardStyle = cardStyle.Copy().
				BorderForeground(lipgloss.Color("86"))

	cardsHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Padding(0, 1)

	projectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Italic(true)

	reasoningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	assistTagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)
)

// PriorityCards renders the priority view as one bordered card per task.
type PriorityCards struct {
	Views   []models.PriorityTaskView
	Width   int
	Title   string
	Cursor  int
	Focused bool
}

func NewPriorityCards(width int) *PriorityCards {
	return &PriorityCards{
		Width: width,
		Title: "Right now",
	}
}

// SetViews replaces the cards and keeps the cursor in range.
func (c *PriorityCards) SetViews(views []models.PriorityTaskView) {
	c.Views = views
	if c.Cursor >= len(views) {
		c.Cursor = len(views) - 1
	}
	if c.Cursor < 0 {
		c.Cursor = 0
	}
}

func (c *PriorityCards) Move(delta int) {
	if len(c.Views) == 0 {
		return
	}
	c.Cursor = (c.Cursor + delta + len(c.Views)) % len(c.Views)
}

// Selected returns the view under the cursor.
func (c *PriorityCards) Selected() (models.PriorityTaskView, bool) {
	if c.Cursor < 0 || c.Cursor >= len(c.Views) {
		return models.PriorityTaskView{}, false
	}
	return c.Views[c.Cursor], true
}

func (c *PriorityCards) View() string {
	var content string
	if len(c.Views) == 0 {
		content = placeholderStyle.Render("Nothing needs your attention right now")
	} else {
		cards := make([]string, 0, len(c.Views))
		for i, v := range c.Views {
			cards = append(cards, c.renderCard(v, c.Focused && i == c.Cursor))
		}
		content = strings.Join(cards, "\n")
	}

	if c.Title == "" {
		return content
	}
	return cardsHeaderStyle.Render(c.Title) + "\n" + content
}

func (c *PriorityCards) renderCard(v models.PriorityTaskView, selected bool) string {
	style := cardStyle
	if selected {
		style = selectedCardStyle
	}

	// Two columns of border and two of padding.
	innerWidth := c.Width - 4
	if innerWidth < 1 {
		innerWidth = 1
	}
	wrap := lipgloss.NewStyle().Width(innerWidth)

	title := ""
	var reasoning string
	var assist models.AssistType
	if v.Task != nil {
		title = v.Task.Title
		reasoning = v.Task.PriorityReasoning
		assist = v.Task.AssistType
	}

	lines := []string{wrap.Render(title)}
	if v.ProjectName != "" {
		lines = append(lines, projectStyle.Render(v.ProjectName))
	}
	if assist != models.AssistNone {
		lines = append(lines, assistTagStyle.Render(fmt.Sprintf("⚡ %s", assist)))
	}
	if v.IsShowingReasoning && reasoning != "" {
		lines = append(lines, reasoningStyle.Width(innerWidth).Render(reasoning))
	}

	return style.Width(innerWidth + 2).Render(strings.Join(lines, "\n"))
}
