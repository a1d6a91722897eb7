package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	logoStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	taglineStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true).PaddingLeft(2)
	itemStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("86")).Bold(true)
	hintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).PaddingLeft(4)
)

const logo = `
  _       _                  _   _     _
 | |_ ___| | ___ _ __   __ _| |_| |__ (_) ___
 | __/ _ \ |/ _ \ '_ \ / _' | __| '_ \| |/ __|
 | ||  __/ |  __/ |_) | (_| | |_| | | | | (__
  \__\___|_|\___| .__/ \__,_|\__|_| |_|_|\___|
                |_|
`

// menuItem is one launchable command.
type menuItem struct {
	command string
	hint    string
}

var menuItems = []menuItem{
	{"tui", "Your tasks and what needs attention right now"},
	{"web", "Dashboard and JSON API on the configured port"},
	{"serve", "Dashboard plus scheduled refreshes and chat digests"},
	{"mcp", "Tool server for assistants over stdio"},
	{"list-tasks", "Print open tasks"},
	{"prioritize", "Ask for the priority view once and print it"},
	{"status", "Counts, settings and categories"},
	{"init", "Create the data directory and database here"},
}

// MenuModel is the launch menu shown when no command is given.
type MenuModel struct {
	items    []menuItem
	cursor   int
	selected string
	quitting bool
}

func NewMenuModel() MenuModel {
	return MenuModel{items: menuItems}
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch s := key.String(); s {
	case "ctrl+c", "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		m.cursor = (m.cursor - 1 + len(m.items)) % len(m.items)
	case "down", "j":
		m.cursor = (m.cursor + 1) % len(m.items)
	case "enter":
		m.selected = m.items[m.cursor].command
		return m, tea.Quit
	default:
		// Digits jump straight to an item.
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if idx := int(s[0] - '1'); idx < len(m.items) {
				m.cursor = idx
				m.selected = m.items[idx].command
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m MenuModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(logoStyle.Render(logo))
	s.WriteString("\n")
	s.WriteString(taglineStyle.Render("knows what you should do next"))
	s.WriteString("\n\n")

	for i, item := range m.items {
		line := fmt.Sprintf("%d %s", i+1, item.command)
		if m.cursor == i {
			s.WriteString(selectedItemStyle.Render("> " + line))
		} else {
			s.WriteString(itemStyle.Render("  " + line))
		}
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(hintStyle.Render(m.items[m.cursor].hint))
	s.WriteString("\n\n(j/k or arrows to move, enter or a number to launch, q to quit)\n")
	return s.String()
}

// Selected is the chosen command, empty when the menu was dismissed.
func (m MenuModel) Selected() string {
	return m.selected
}

func RunMenu() (string, error) {
	p := tea.NewProgram(NewMenuModel())
	final, err := p.Run()
	if err != nil {
		return "", err
	}
	return final.(MenuModel).Selected(), nil
}
