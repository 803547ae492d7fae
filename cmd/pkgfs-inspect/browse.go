// Copyright 2026 The pkgfs Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pkgfs/pkgfs/image"
)

// browseKeyMap is the key binding set for the directory browser,
// scoped to list navigation since there is only one pane.
type browseKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	Back  key.Binding
	Quit  key.Binding
}

var defaultBrowseKeyMap = browseKeyMap{
	Up:    key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:  key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Enter: key.NewBinding(key.WithKeys("enter", "l", "right"), key.WithHelp("enter", "open")),
	Back:  key.NewBinding(key.WithKeys("backspace", "h", "left"), key.WithHelp("BS", "up a level")),
	Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

var (
	browseTitleStyle  = lipgloss.NewStyle().Bold(true)
	browseHelpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	browseCursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)

// browseEntry is one row in the current directory listing.
type browseEntry struct {
	node *image.INode
}

type browseModel struct {
	engine  *image.Engine
	stack   []uint16 // directory id stack; stack[len-1] is the current directory
	path    []string // display names matching stack, stack[0]'s name is "/"
	entries []browseEntry
	cursor  int
	err     error
}

func newBrowseModel(engine *image.Engine) (*browseModel, error) {
	m := &browseModel{
		engine: engine,
		stack:  []uint16{image.RootID},
		path:   []string{"/"},
	}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *browseModel) reload() error {
	children, err := m.engine.GetChildrenOfDirectory(m.stack[len(m.stack)-1])
	if err != nil {
		return err
	}
	m.entries = m.entries[:0]
	for _, child := range children {
		m.entries = append(m.entries, browseEntry{node: child})
	}
	if m.cursor >= len(m.entries) {
		m.cursor = len(m.entries) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	return nil
}

func (m *browseModel) Init() tea.Cmd { return nil }

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, defaultBrowseKeyMap.Quit):
		return m, tea.Quit

	case key.Matches(keyMsg, defaultBrowseKeyMap.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(keyMsg, defaultBrowseKeyMap.Down):
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}

	case key.Matches(keyMsg, defaultBrowseKeyMap.Enter):
		if m.cursor < len(m.entries) {
			entry := m.entries[m.cursor]
			if entry.node.Tag == image.TagDirectory {
				m.stack = append(m.stack, entry.node.ID)
				m.path = append(m.path, entry.node.Name)
				m.cursor = 0
				if err := m.reload(); err != nil {
					m.err = err
				}
			}
		}

	case key.Matches(keyMsg, defaultBrowseKeyMap.Back):
		if len(m.stack) > 1 {
			m.stack = m.stack[:len(m.stack)-1]
			m.path = m.path[:len(m.path)-1]
			m.cursor = 0
			if err := m.reload(); err != nil {
				m.err = err
			}
		}
	}

	return m, nil
}

func (m *browseModel) View() string {
	var b []byte
	b = append(b, browseTitleStyle.Render(joinPath(m.path))...)
	b = append(b, '\n', '\n')

	if m.err != nil {
		b = append(b, fmt.Sprintf("error: %v\n", m.err)...)
	}

	if len(m.entries) == 0 {
		b = append(b, "(empty)\n"...)
	}
	for index, entry := range m.entries {
		line := fmt.Sprintf("%-9s %s", entry.node.Tag.String(), entry.node.Name)
		if index == m.cursor {
			line = browseCursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b = append(b, line...)
		b = append(b, '\n')
	}

	b = append(b, '\n')
	b = append(b, browseHelpStyle.Render("↑/↓ move  enter open  backspace up  q quit")...)
	return string(b)
}

func joinPath(path []string) string {
	if len(path) == 1 {
		return "/"
	}
	result := ""
	for _, segment := range path[1:] {
		result += "/" + segment
	}
	return result
}

func (ins *inspector) cmdBrowse(args []string) error {
	model, err := newBrowseModel(ins.engine)
	if err != nil {
		return err
	}
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
