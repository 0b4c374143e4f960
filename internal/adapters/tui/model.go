// Package tui is a terminal front end for one dashboard engine.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dashcore/internal/engine"
	"dashcore/pkg/bundle"
	"dashcore/pkg/filter"
)

var (
	accent = lipgloss.Color("#50E3C2")
	muted  = lipgloss.Color("#8CA1AE")
	warn   = lipgloss.Color("#FF6B6B")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	sectionStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle    = lipgloss.NewStyle().Foreground(muted)
	errorStyle    = lipgloss.NewStyle().Foreground(warn).Bold(true)
	activeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#05090C")).Background(accent).Padding(0, 1)
	inactiveStyle = lipgloss.NewStyle().Foreground(muted).Padding(0, 1)
	focusStyle    = lipgloss.NewStyle().Underline(true)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#2D6A80")).Padding(0, 1)
)

// bundleMsg carries the reply of one event. Commands run concurrently, so
// replies can arrive out of order; Update keeps the newest cycle.
type bundleMsg struct {
	bundle bundle.Bundle
	event  string
	err    error
}

// Model renders the bundle of an engine and turns key presses into events:
// digits flip toggles in order, tab moves between selects, n/p cycle the
// focused select, r resets and q quits.
type Model struct {
	eng     *engine.Engine
	bundle  bundle.Bundle
	toggles []filter.Spec
	selects []filter.Spec
	options map[string][]string
	focus   int
	status  string
	err     error
	width   int
}

// New builds a model over eng.
func New(eng *engine.Engine) Model {
	m := Model{eng: eng, bundle: eng.Bundle(), options: make(map[string][]string)}
	reg := eng.Registry()
	for _, group := range reg.Groups() {
		m.toggles = append(m.toggles, reg.Group(group)...)
	}
	for _, spec := range reg.Specs() {
		if spec.Kind != filter.KindSelect {
			continue
		}
		m.selects = append(m.selects, spec)
		var opts []string
		if spec.AllValue != "" {
			opts = append(opts, spec.AllValue)
		}
		if col, ok := eng.Dataset().Column(spec.Column); ok {
			opts = append(opts, col.Categories()...)
		}
		m.options[spec.ID] = opts
	}
	return m
}

// Bundle returns the bundle currently on screen.
func (m Model) Bundle() bundle.Bundle { return m.bundle }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) process(ev filter.Event) tea.Cmd {
	eng := m.eng
	return func() tea.Msg {
		b, err := eng.Process(context.Background(), ev)
		return bundleMsg{bundle: b, event: ev.EventName(), err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case bundleMsg:
		m.err = msg.err
		if msg.err == nil && msg.bundle.Cycle >= m.bundle.Cycle {
			m.bundle = msg.bundle
			m.status = fmt.Sprintf("%s: cycle %d", msg.event, msg.bundle.Cycle)
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "r":
		return m, m.process(filter.ResetRequested{})
	case "tab":
		if len(m.selects) > 0 {
			m.focus = (m.focus + 1) % len(m.selects)
		}
		return m, nil
	case "n", "p":
		if len(m.selects) == 0 {
			return m, nil
		}
		spec := m.selects[m.focus]
		next, ok := cycle(m.options[spec.ID], m.selection(spec), key == "n")
		if !ok {
			return m, nil
		}
		return m, m.process(filter.SelectionChanged{ControlID: spec.ID, Value: next})
	}
	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		idx := int(key[0] - '1')
		if idx < len(m.toggles) {
			return m, m.process(filter.ToggleActivated{ControlID: m.toggles[idx].ID})
		}
	}
	return m, nil
}

// selection reports the current choice of a select, showing "no selection"
// as its all value.
func (m Model) selection(spec filter.Spec) string {
	if sel := m.eng.State().Selection(spec.ID); sel != "" {
		return sel
	}
	return spec.AllValue
}

// cycle returns the option after (or before) current, wrapping around. An
// unset current starts at the first option.
func cycle(options []string, current string, forward bool) (string, bool) {
	if len(options) == 0 {
		return "", false
	}
	idx := -1
	for i, o := range options {
		if o == current {
			idx = i
			break
		}
	}
	switch {
	case idx < 0:
		return options[0], true
	case forward:
		return options[(idx+1)%len(options)], true
	default:
		return options[(idx-1+len(options))%len(options)], true
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.bundle.Dashboard))
	b.WriteString("\n\n")

	if len(m.toggles) > 0 {
		parts := make([]string, 0, len(m.toggles))
		for i, spec := range m.toggles {
			label := fmt.Sprintf("%d %s", i+1, firstNonEmpty(spec.Label, spec.Value))
			if m.bundle.State.Toggles[spec.ID] {
				parts = append(parts, activeStyle.Render(label))
			} else {
				parts = append(parts, inactiveStyle.Render(label))
			}
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, parts...))
		b.WriteString("\n")
	}
	for i, spec := range m.selects {
		line := fmt.Sprintf("%s: %s", firstNonEmpty(spec.Label, spec.ID), firstNonEmpty(m.bundle.State.Selections[spec.ID], spec.AllValue, "(none)"))
		if i == m.focus {
			line = focusStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	ranges := make([]string, 0, len(m.bundle.State.Ranges))
	for id := range m.bundle.State.Ranges {
		ranges = append(ranges, id)
	}
	sort.Strings(ranges)
	for _, id := range ranges {
		r := m.bundle.State.Ranges[id]
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%s: %s .. %s", id, r[0], r[1])) + "\n")
	}

	var panels []string
	for _, k := range m.bundle.KPIs {
		var lines []string
		for _, s := range k.Stats {
			name := s.Name
			if s.Series != "" {
				name = s.Series + " " + name
			}
			lines = append(lines, fmt.Sprintf("%-16s %s", name, s.Text))
		}
		panels = append(panels, panelStyle.Render(sectionStyle.Render(firstNonEmpty(k.Label, k.ID))+"\n"+strings.Join(lines, "\n")))
	}
	if len(panels) > 0 {
		b.WriteString("\n" + lipgloss.JoinHorizontal(lipgloss.Top, panels...) + "\n")
	}
	for _, s := range m.bundle.Summaries {
		b.WriteString("\n" + sectionStyle.Render(firstNonEmpty(s.Title, s.ID)) + "\n")
		for _, line := range s.Lines {
			b.WriteString("  " + line + "\n")
		}
	}
	for _, c := range m.bundle.Charts {
		b.WriteString("\n" + sectionStyle.Render(firstNonEmpty(c.Title, c.ID)) + mutedStyle.Render(" ("+c.Type+")") + "\n")
		if c.Empty {
			b.WriteString(mutedStyle.Render("  no data") + "\n")
			continue
		}
		for _, s := range c.Series {
			last := ""
			if n := len(s.Points); n > 0 {
				last = s.Points[n-1].Y.String()
			}
			b.WriteString(fmt.Sprintf("  %-20s %4d pts  last %s\n", s.Name, len(s.Points), last))
		}
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(mutedStyle.Render(m.status) + "\n")
	}
	b.WriteString(mutedStyle.Render("1-9 toggle  tab select  n/p cycle  r reset  q quit"))
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Run starts the program on the terminal.
func Run(eng *engine.Engine, opts ...tea.ProgramOption) error {
	_, err := tea.NewProgram(New(eng), opts...).Run()
	return err
}
