package browse

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages and updates the model (Bubbletea interface).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.scroll()
		return m, nil
	}
	return m, nil
}

// handleKeyMsg handles keyboard input.
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	m.lastErr = nil

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.cursor = max(0, m.cursor-1)

	case key.Matches(msg, m.keys.Down):
		m.cursor = min(len(m.rows)-1, m.cursor+1)

	case key.Matches(msg, m.keys.PageUp):
		m.cursor = max(0, m.cursor-m.pageSize())

	case key.Matches(msg, m.keys.PageDown):
		m.cursor = min(len(m.rows)-1, m.cursor+m.pageSize())

	case key.Matches(msg, m.keys.Expand):
		m.lastErr = m.expand(m.cursor)

	case key.Matches(msg, m.keys.Collapse):
		m.collapse(m.cursor)

	case key.Matches(msg, m.keys.HotPath):
		m.lastErr = m.followHotPath()

	case key.Matches(msg, m.keys.NextView):
		prev := m.view
		m.view = (m.view + 1) % len(m.opts.Views)
		if err := m.load(); err != nil {
			m.view = prev
			m.lastErr = err
		}

	case key.Matches(msg, m.keys.Percent):
		m.opts.Percent = !m.opts.Percent

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.scroll()
	return m, nil
}

// scroll keeps the cursor inside the visible window.
func (m *Model) scroll() {
	page := m.pageSize()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+page {
		m.offset = m.cursor - page + 1
	}
}
