package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/thaiproxy/searchproxy/internal/config"
	"github.com/thaiproxy/searchproxy/internal/dictionary"
)

// dict palette, matching the lime-green accent used elsewhere in the CLI.
const (
	colorLime     = "154"
	colorGray     = "245"
	colorDarkGray = "238"
)

// newDictCmd creates the dict command group.
func newDictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Inspect the compound dictionary",
	}
	cmd.AddCommand(newDictBrowseCmd())
	return cmd
}

// newDictBrowseCmd creates the read-only TUI dictionary browser.
func newDictBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the compound dictionary in a terminal UI",
		Long: `browse opens a read-only, filterable terminal UI over the compound
dictionary file on disk (spec §4.A). It does not require a running
server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return fmt.Errorf("dict browse requires an interactive terminal")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			dict := dictionary.New(cfg.Dictionary.Path)
			if err := dict.Load(cmd.Context()); err != nil {
				return fmt.Errorf("load dictionary: %w", err)
			}

			model := newDictBrowseModel(dict.Entries(""))
			_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
			return err
		},
	}
}

type dictBrowseModel struct {
	all      []dictionary.CompoundEntry
	filtered []dictionary.CompoundEntry
	cursor   int
	filter   textinput.Model
	filtering bool
	width    int
	height   int

	styleHeader lipgloss.Style
	styleActive lipgloss.Style
	styleDim    lipgloss.Style
	styleBorder lipgloss.Style
}

func newDictBrowseModel(entries []dictionary.CompoundEntry) *dictBrowseModel {
	ti := textinput.New()
	ti.Placeholder = "filter by surface or category"
	ti.CharLimit = 64

	return &dictBrowseModel{
		all:      entries,
		filtered: entries,
		filter:   ti,
		width:    80,
		height:   24,

		styleHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLime)),
		styleActive: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorLime)),
		styleDim:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		styleBorder: lipgloss.NewStyle().Foreground(lipgloss.Color(colorDarkGray)),
	}
}

func (m *dictBrowseModel) Init() tea.Cmd {
	return nil
}

func (m *dictBrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "esc":
				m.filtering = false
				m.filter.Blur()
				return m, nil
			case "enter":
				m.filtering = false
				m.filter.Blur()
				m.applyFilter()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			m.applyFilter()
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "/":
			m.filtering = true
			m.filter.Focus()
			return m, textinput.Blink
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.filtered)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m *dictBrowseModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if q == "" {
		m.filtered = m.all
		m.cursor = 0
		return
	}
	var out []dictionary.CompoundEntry
	for _, e := range m.all {
		if strings.Contains(strings.ToLower(e.Surface), q) || strings.Contains(strings.ToLower(e.Category), q) {
			out = append(out, e)
		}
	}
	m.filtered = out
	m.cursor = 0
}

func (m *dictBrowseModel) View() string {
	var b strings.Builder

	title := fmt.Sprintf("Compound dictionary — %d entries", len(m.all))
	b.WriteString(m.styleHeader.Render(title) + "\n")
	b.WriteString(m.styleBorder.Render(strings.Repeat("─", min(m.width, 70))) + "\n")

	if m.filtering {
		b.WriteString("filter: " + m.filter.View() + "\n")
	} else if m.filter.Value() != "" {
		b.WriteString(m.styleDim.Render("filter: "+m.filter.Value()+" (press / to change)") + "\n")
	}

	if len(m.filtered) == 0 {
		b.WriteString(m.styleDim.Render("no entries match") + "\n")
	}

	visibleRows := m.height - 8
	if visibleRows < 5 {
		visibleRows = 5
	}
	start := 0
	if m.cursor >= visibleRows {
		start = m.cursor - visibleRows + 1
	}
	end := start + visibleRows
	if end > len(m.filtered) {
		end = len(m.filtered)
	}

	for i := start; i < end; i++ {
		e := m.filtered[i]
		line := fmt.Sprintf("%-24s %-16s %.2f  %s", e.Surface, e.Category, e.Confidence, strings.Join(e.Components, "+"))
		if i == m.cursor {
			b.WriteString(m.styleActive.Render("> " + line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString(m.styleBorder.Render(strings.Repeat("─", min(m.width, 70))) + "\n")
	b.WriteString(m.styleDim.Render("↑/↓ navigate · / filter · q quit"))
	return b.String()
}
