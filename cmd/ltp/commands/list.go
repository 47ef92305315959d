package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/ltp-backup/ltp/internal/catalog"
)

func newListCmd() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "print all complete snapshot names",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.List(cfg.Target)
			if err != nil {
				return err
			}
			for _, name := range cat.Incomplete {
				logf(0, "warning: orphaned incomplete snapshot %s found", name)
			}

			if interactive && isTerminalStdout() {
				picked, err := pickSnapshot(cat.Complete)
				if err != nil {
					return err
				}
				if picked != "" {
					fmt.Println(picked)
				}
				return nil
			}

			for _, name := range cat.Complete {
				fmt.Println(name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick a snapshot from a scrollable list")
	return cmd
}

// pickModel is a minimal Bubble Tea model for picking one name out of a
// list, used when list/path run with --interactive.
type pickModel struct {
	filter   textinput.Model
	names    []string
	filtered []string
	cursor   int
	height   int
	chosen   string
	quitting bool
}

func (m *pickModel) applyFilter() {
	query := m.filter.Value()
	if query == "" {
		m.filtered = m.names
	} else {
		matches := fuzzy.Find(query, m.names)
		filtered := make([]string, len(matches))
		for i, match := range matches {
			filtered[i] = m.names[match.Index]
		}
		m.filtered = filtered
	}
	if m.cursor >= len(m.filtered) {
		m.cursor = len(m.filtered) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

var (
	pickTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	pickSelectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("236")).Foreground(lipgloss.Color("255"))
	pickHelpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func (m pickModel) Init() tea.Cmd { return textinput.Blink }

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "ctrl+k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "ctrl+j":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			if len(m.filtered) > 0 {
				m.chosen = m.filtered[m.cursor]
			}
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m pickModel) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(pickTitleStyle.Render("snapshots") + "\n")
	b.WriteString(m.filter.View() + "\n")
	for i, name := range m.filtered {
		if i == m.cursor {
			b.WriteString(pickSelectedStyle.Render("> "+name) + "\n")
			continue
		}
		b.WriteString("  " + name + "\n")
	}
	b.WriteString(pickHelpStyle.Render("\n↑/↓ select · enter confirm · esc quit · type to filter"))
	return b.String()
}

// pickSnapshot runs an interactive, fuzzy-filterable picker over names,
// starting on the last (most recent) entry, and returns the chosen name or
// "" if the user quit without choosing.
func pickSnapshot(names []string) (string, error) {
	if len(names) == 0 {
		return "", nil
	}
	filter := textinput.New()
	filter.Placeholder = "filter"
	filter.Focus()

	m := pickModel{filter: filter, names: names, filtered: names, cursor: len(names) - 1}
	result, err := tea.NewProgram(m).Run()
	if err != nil {
		return "", err
	}
	final := result.(pickModel)
	return final.chosen, nil
}
