package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	answerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("86"))

	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	scrollbarTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	scrollbarHandleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
)

// AnswerView shows a titled, scrollable text such as an AI answer.
type AnswerView struct {
	viewport viewport.Model
	title    string
	content  string
	ready    bool
}

func NewAnswerView(width, height int) *AnswerView {
	a := &AnswerView{}
	a.SetSize(width, height)
	return a
}

// SetSize resizes the view. One column is kept for the scrollbar and one
// row for the title.
func (a *AnswerView) SetSize(width, height int) {
	vpWidth := width
	if width > 0 {
		vpWidth = width - 1
	}
	vpHeight := height - 1
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !a.ready {
		a.viewport = viewport.New(vpWidth, vpHeight)
		a.ready = true
	} else {
		a.viewport.Width = vpWidth
		a.viewport.Height = vpHeight
	}
	a.updateContent()
}

func (a *AnswerView) Show(title, content string) {
	a.title = title
	a.content = content
	a.updateContent()
	a.viewport.GotoTop()
}

func (a *AnswerView) Title() string {
	return a.title
}

func (a *AnswerView) updateContent() {
	width := a.viewport.Width
	content := a.content
	if width > 0 {
		content = answerStyle.Copy().Width(width).Render(content)
	} else {
		content = answerStyle.Render(content)
	}
	a.viewport.SetContent(content)
}

func (a *AnswerView) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return cmd
}

func (a *AnswerView) View() string {
	title := answerTitleStyle.Render(a.title)

	if a.viewport.TotalLineCount() <= a.viewport.Height {
		return title + "\n" + a.viewport.View()
	}

	h := a.viewport.Height
	handlePos := int(float64(h-1) * a.viewport.ScrollPercent())

	var sb strings.Builder
	for i := 0; i < h; i++ {
		if i == handlePos {
			sb.WriteString(scrollbarHandleStyle.Render("┃"))
		} else {
			sb.WriteString(scrollbarTrackStyle.Render("│"))
		}
		if i < h-1 {
			sb.WriteString("\n")
		}
	}

	return title + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, a.viewport.View(), sb.String())
}
