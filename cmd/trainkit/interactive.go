package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
	"github.com/gomlx/trainkit/scaffold"
	"github.com/pkg/errors"
)

// ErrUserAborted is returned when the user cancels the interaction (e.g., via Ctrl+C or Esc).
var ErrUserAborted = errors.New("interaction aborted by user")

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	styleWarning = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleBox     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

// PromptName asks the user for the name of the new project, until a valid one is given.
func PromptName(kind scaffold.Kind) (string, error) {
	theme := huh.ThemeCharm()
	fmt.Println()
	fmt.Println(styleTitle.Render(fmt.Sprintf("Creating a trainkit %s", kind)))
	fmt.Println()

	keyMap := huh.NewDefaultKeyMap()
	keyMap.Quit = key.NewBinding(key.WithKeys("ctrl+c"))

	var value string
	input := huh.NewInput().
		Title(fmt.Sprintf("Name your trainkit %s", kind)).
		Description(fmt.Sprintf("Letters (a-z), numbers (0-9) and '-' only, example: the-%s-name", kind)).
		Value(&value).
		Validate(func(s string) error {
			_, err := scaffold.ValidateName(s)
			return err
		})
	form := huh.NewForm(huh.NewGroup(input)).
		WithTheme(theme).
		WithKeyMap(keyMap)
	model := &formModel{form: form}
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return "", err
	}
	if model.IsEscExit || model.form.State == huh.StateAborted {
		return "", ErrUserAborted
	}
	return scaffold.ValidateName(value)
}

// formModel wraps a huh.Form, and quits if the user presses Esc.
type formModel struct {
	form      *huh.Form
	IsEscExit bool
}

// Init is the first command that is run when the program starts.
func (m *formModel) Init() tea.Cmd {
	return m.form.Init()
}

var escKey = key.NewBinding(key.WithKeys("esc"))

// Update is called when a message is received.
func (m *formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && key.Matches(keyMsg, escKey) {
		m.IsEscExit = true
		return m, tea.Quit
	}
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted || m.form.State == huh.StateAborted {
		return m, tea.Quit
	}
	return m, cmd
}

// View renders the UI.
func (m *formModel) View() string {
	return m.form.View()
}

// renderBox renders the message in a box that fits the terminal. If the output is not a terminal the message is
// returned as is.
func renderBox(message string) string {
	message = strings.TrimRight(message, "\n")
	width, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || width <= 4 {
		return message
	}
	if lipgloss.Width(message)+4 > width {
		return styleBox.Width(width - 2).Render(message)
	}
	return styleBox.Render(message)
}
