package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/lv2-runtime/internal/inspect"
	"github.com/wippyai/lv2-runtime/world"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	uriStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type entry struct {
	plugin *world.Plugin
	name   string
	uri    string
}

type modelState int

const (
	stateBrowse modelState = iota
	stateDetails
)

type browserModel struct {
	filter   textinput.Model
	details  viewport.Model
	entries  []entry
	visible  []int
	selected int
	offset   int
	height   int
	width    int
	state    modelState
}

func newBrowserModel(plugins world.Plugins) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "filter by name or URI"
	ti.Prompt = "/ "
	ti.Width = 40
	ti.Focus()

	m := &browserModel{filter: ti, height: 20, width: 80}
	for p := range plugins.All() {
		e := entry{plugin: p, uri: p.URI()}
		if name, ok := p.Name(); ok {
			e.name = name.AsString()
		}
		m.entries = append(m.entries, e)
	}
	m.applyFilter()
	return m
}

func (m *browserModel) Init() tea.Cmd {
	return textinput.Blink
}

// applyFilter keeps the entries whose name or URI contains the filter text,
// ignoring case.
func (m *browserModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for i, e := range m.entries {
		if q == "" || strings.Contains(strings.ToLower(e.name), q) || strings.Contains(strings.ToLower(e.uri), q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
	m.scroll()
}

func (m *browserModel) listHeight() int {
	return max(m.height-6, 1)
}

func (m *browserModel) scroll() {
	switch {
	case m.selected < m.offset:
		m.offset = m.selected
	case m.selected >= m.offset+m.listHeight():
		m.offset = m.selected - m.listHeight() + 1
	}
}

func (m *browserModel) showDetails() {
	if len(m.visible) == 0 {
		return
	}
	var buf bytes.Buffer
	inspect.Plugin(&buf, m.entries[m.visible[m.selected]].plugin, inspect.Options{NoColor: true})
	m.details = viewport.New(m.width, max(m.height-4, 1))
	m.details.SetContent(strings.ReplaceAll(buf.String(), "\t", "    "))
	m.state = stateDetails
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.state == stateDetails {
			m.details.Width = msg.Width
			m.details.Height = max(msg.Height-4, 1)
		}
		m.scroll()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc":
			if m.state == stateDetails {
				m.state = stateBrowse
				return m, nil
			}
			return m, tea.Quit

		case "up", "ctrl+p":
			if m.state == stateBrowse {
				if m.selected > 0 {
					m.selected--
					m.scroll()
				}
				return m, nil
			}

		case "down", "ctrl+n":
			if m.state == stateBrowse {
				if m.selected < len(m.visible)-1 {
					m.selected++
					m.scroll()
				}
				return m, nil
			}

		case "enter":
			if m.state == stateBrowse {
				m.showDetails()
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	if m.state == stateDetails {
		m.details, cmd = m.details.Update(msg)
		return m, cmd
	}
	before := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != before {
		m.applyFilter()
	}
	return m, cmd
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("LV2 Plugins"))
	fmt.Fprintf(&b, " %d of %d\n\n", len(m.visible), len(m.entries))

	if m.state == stateDetails {
		b.WriteString(m.details.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back • ctrl+c quit"))
		return b.String()
	}

	b.WriteString(m.filter.View())
	b.WriteString("\n\n")
	if len(m.visible) == 0 {
		b.WriteString(helpStyle.Render("no matching plugins"))
		b.WriteString("\n")
	}
	end := min(m.offset+m.listHeight(), len(m.visible))
	for i := m.offset; i < end; i++ {
		e := m.entries[m.visible[i]]
		line := uriStyle.Render(e.uri)
		if e.name != "" {
			line = nameStyle.Render(e.name) + "  " + line
		}
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + e.name + "  " + e.uri))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("type to filter • ↑/↓ select • enter details • esc quit"))
	return b.String()
}

func runInteractive(w *world.World) error {
	p := tea.NewProgram(newBrowserModel(w.AllPlugins()), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
