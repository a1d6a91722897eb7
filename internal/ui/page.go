package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/telepathic/internal/notify"
	"github.com/ldi/telepathic/internal/orchestrator"
	"github.com/ldi/telepathic/internal/ui/components"
	"github.com/ldi/telepathic/pkg/models"
)

var (
	orbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true)

	greetingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	locationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	taskStyle         = lipgloss.NewStyle().PaddingLeft(2)
	selectedTaskStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("86")).Bold(true)
	doneTaskStyle     = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("240")).Strikethrough(true)

	toastStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1)
)

type pane int

const (
	paneTasks pane = iota
	panePriority
)

// actionDoneMsg is returned by commands that changed orchestrator state.
type actionDoneMsg struct {
	err error
}

// Model is the main page: greeting, priority cards and the task list.
type Model struct {
	ctx   context.Context
	orch  *orchestrator.Orchestrator
	notes *notify.Channel

	cards   *components.PriorityCards
	answer  *components.AnswerView
	input   textinput.Model
	spinner spinner.Model

	tasks    []*models.Task
	greeting string
	visible  bool
	busy     bool
	location string

	pane       pane
	taskCursor int
	adding     bool
	modal      bool
	toast      string
	toastErr   bool

	width    int
	height   int
	ready    bool
	quitting bool
}

// NewModel builds the page. notes receives the orchestrator's notifications
// and may be nil.
func NewModel(ctx context.Context, orch *orchestrator.Orchestrator, notes *notify.Channel) *Model {
	input := textinput.New()
	input.Placeholder = "What needs doing?"
	input.CharLimit = 200
	input.Prompt = "+ "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = orbStyle

	m := &Model{
		ctx:      ctx,
		orch:     orch,
		notes:    notes,
		cards:    components.NewPriorityCards(60),
		answer:   components.NewAnswerView(60, 12),
		input:    input,
		spinner:  sp,
		location: orch.User().LocationLabel,
	}
	m.sync()
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.pollMessages(),
		m.pollNotifications(),
		m.spinner.Tick,
		m.refresh(),
	)
}

func (m *Model) pollMessages() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.orch.Messages()
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) pollNotifications() tea.Cmd {
	if m.notes == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-m.notes.C()
		if !ok {
			return nil
		}
		return n
	}
}

func (m *Model) sync() {
	m.tasks = m.orch.Tasks()
	if m.taskCursor >= len(m.tasks) {
		m.taskCursor = len(m.tasks) - 1
	}
	if m.taskCursor < 0 {
		m.taskCursor = 0
	}
	m.cards.SetViews(m.orch.PriorityTasks())
	m.greeting = m.orch.Greeting()
	m.visible = m.orch.HasPriorityTasks()
	m.busy = m.orch.IsBusy()
	if !m.visible && m.pane == panePriority {
		m.pane = paneTasks
	}
	m.cards.Focused = m.pane == panePriority
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.recalculateLayout()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case actionDoneMsg:
		if msg.err != nil {
			m.setToast(msg.err.Error(), true)
		}
		m.sync()

	case orchestrator.PrioritiesUpdatedMsg, orchestrator.TasksChangedMsg:
		m.sync()
		cmds = append(cmds, m.pollMessages())

	case orchestrator.BusyMsg:
		m.busy = msg.Busy
		cmds = append(cmds, m.pollMessages())

	case orchestrator.LocationMsg:
		m.location = msg.Label
		cmds = append(cmds, m.pollMessages())

	case notify.Notification:
		m.handleNotification(msg)
		cmds = append(cmds, m.pollNotifications())
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleNotification(n notify.Notification) {
	switch n.Kind {
	case notify.KindAlert:
		m.answer.Show(n.Title, n.Message)
		m.modal = true
	case notify.KindError:
		m.setToast(n.Message, true)
	default:
		m.setToast(n.Message, false)
	}
}

func (m *Model) setToast(msg string, isErr bool) {
	m.toast = msg
	m.toastErr = isErr
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	if m.modal {
		switch msg.String() {
		case "esc", "q", "enter":
			m.modal = false
			return m, nil
		}
		return m, m.answer.Update(msg)
	}

	if m.adding {
		switch msg.Type {
		case tea.KeyEsc:
			m.adding = false
			m.input.Blur()
			m.input.Reset()
			return m, nil
		case tea.KeyEnter:
			title := strings.TrimSpace(m.input.Value())
			m.adding = false
			m.input.Blur()
			m.input.Reset()
			if title == "" {
				return m, nil
			}
			return m, m.addTask(title)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "j", "down":
		m.move(1)
	case "k", "up":
		m.move(-1)
	case "tab":
		if m.visible {
			if m.pane == paneTasks {
				m.pane = panePriority
			} else {
				m.pane = paneTasks
			}
			m.cards.Focused = m.pane == panePriority
		}
	case " ", "space":
		if t := m.selectedTask(); t != nil {
			return m, m.toggleComplete(t.ID, !t.IsCompleted)
		}
	case "a":
		if t := m.selectedTask(); t != nil && t.HasAssist() {
			return m, m.runAssist(t.ID)
		}
	case "d":
		if t := m.selectedTask(); t != nil {
			return m, m.deleteTask(t.ID)
		}
	case "?":
		if v, ok := m.cards.Selected(); ok && m.pane == panePriority {
			m.orch.ToggleReasoning(v.TaskID)
			m.sync()
		}
	case "r":
		return m, m.refresh()
	case "c":
		return m, m.clean()
	case "n":
		m.adding = true
		return m, m.input.Focus()
	}
	return m, nil
}

func (m *Model) move(delta int) {
	if m.pane == panePriority {
		m.cards.Move(delta)
		return
	}
	if len(m.tasks) == 0 {
		return
	}
	m.taskCursor += delta
	if m.taskCursor < 0 {
		m.taskCursor = 0
	}
	if m.taskCursor >= len(m.tasks) {
		m.taskCursor = len(m.tasks) - 1
	}
}

// selectedTask returns the task under the cursor of the focused pane.
func (m *Model) selectedTask() *models.Task {
	if m.pane == panePriority {
		if v, ok := m.cards.Selected(); ok {
			return v.Task
		}
		return nil
	}
	if m.taskCursor < 0 || m.taskCursor >= len(m.tasks) {
		return nil
	}
	return m.tasks[m.taskCursor]
}

func (m *Model) toggleComplete(id int64, completed bool) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.orch.ToggleComplete(m.ctx, id, completed)}
	}
}

func (m *Model) deleteTask(id int64) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: m.orch.DeleteTask(m.ctx, id)}
	}
}

func (m *Model) addTask(title string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.orch.AddTask(m.ctx, title, nil)
		return actionDoneMsg{err: err}
	}
}

func (m *Model) clean() tea.Cmd {
	return func() tea.Msg {
		_, err := m.orch.CleanCompleted(m.ctx)
		return actionDoneMsg{err: err}
	}
}

func (m *Model) runAssist(id int64) tea.Cmd {
	return func() tea.Msg {
		m.orch.RunAssist(m.ctx, id)
		return actionDoneMsg{}
	}
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		if err := m.orch.Load(m.ctx); err != nil {
			return actionDoneMsg{err: err}
		}
		m.orch.Refresh(m.ctx)
		return actionDoneMsg{}
	}
}

func (m *Model) recalculateLayout() {
	cardWidth := m.width - 4
	if cardWidth < 20 {
		cardWidth = 20
	}
	m.cards.Width = cardWidth

	modalWidth := m.width * 3 / 4
	if modalWidth < 30 {
		modalWidth = 30
	}
	modalHeight := m.height / 2
	if modalHeight < 6 {
		modalHeight = 6
	}
	m.answer.SetSize(modalWidth-4, modalHeight)
	m.input.Width = cardWidth - 4
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading tasks..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())

	if m.modal {
		sections = append(sections, modalStyle.Render(m.answer.View()))
		sections = append(sections, helpStyle.Render("esc/enter to close • j/k to scroll"))
		return strings.Join(sections, "\n\n")
	}

	if m.visible {
		sections = append(sections, m.cards.View())
	}
	sections = append(sections, m.renderTasks())

	if m.adding {
		sections = append(sections, m.input.View())
	}
	if m.toast != "" {
		style := toastStyle
		if m.toastErr {
			style = errorStyle
		}
		sections = append(sections, style.Render(m.toast))
	}
	sections = append(sections, m.renderHelp())
	return strings.Join(sections, "\n\n")
}

func (m *Model) renderHeader() string {
	orb := orbStyle.Render("⬤")
	if m.busy {
		orb = m.spinner.View()
	}
	header := lipgloss.JoinHorizontal(lipgloss.Center, orb, " ", greetingStyle.Render(m.greeting))
	if m.location != "" {
		header += "\n" + locationStyle.Render("📍 "+m.location)
	}
	return header
}

func (m *Model) renderTasks() string {
	var sb strings.Builder
	sb.WriteString(sectionStyle.Render("Tasks"))
	sb.WriteString("\n")
	if len(m.tasks) == 0 {
		sb.WriteString(helpStyle.Render("  No tasks yet. Press n to add one."))
		return sb.String()
	}

	for i, t := range m.tasks {
		box := "[ ]"
		if t.IsCompleted {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %s", box, t.Title)
		if t.ProjectName != "" {
			line += fmt.Sprintf(" · %s", t.ProjectName)
		}
		if t.HasAssist() {
			line += fmt.Sprintf(" ⚡%s", t.AssistType)
		}

		switch {
		case m.pane == paneTasks && i == m.taskCursor:
			sb.WriteString(selectedTaskStyle.Render("> " + line))
		case t.IsCompleted:
			sb.WriteString(doneTaskStyle.Render("  " + line))
		default:
			sb.WriteString(taskStyle.Render("  " + line))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m *Model) renderHelp() string {
	return helpStyle.Render("j/k move • space complete • a assist • n new • d delete • c clean • r refresh • tab switch • ? why • q quit")
}

// Run starts the page in the alternate screen and blocks until the user quits.
func Run(ctx context.Context, orch *orchestrator.Orchestrator, notes *notify.Channel) error {
	m := NewModel(ctx, orch, notes)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err == tea.ErrProgramKilled && ctx.Err() != nil {
		return nil
	}
	return err
}
