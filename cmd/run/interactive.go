package main

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	experimentalsys "github.com/tetratelabs/wazero/experimental/sys"

	"github.com/wippyai/wasi-vfs/vfs"
)

const previewLimit = 4 * 1024

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	dirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	sizeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateBrowse modelState = iota
	stateGoto
	statePreview
)

type browserModel struct {
	err       error
	fsys      experimentalsys.FS
	program   string
	cwd       string
	preview   string
	previewOf string
	entries   []entryInfo
	input     textinput.Model
	previewSz int
	selected  int
	state     modelState
}

type listedMsg struct {
	err     error
	dir     string
	entries []entryInfo
}

type previewMsg struct {
	err     error
	path    string
	content string
	size    int
}

func newBrowserModel(fsys experimentalsys.FS, program string) *browserModel {
	ti := textinput.New()
	ti.Prompt = "go to: "
	ti.Placeholder = "/path"
	ti.Width = 60

	return &browserModel{
		fsys:    fsys,
		program: program,
		cwd:     vfs.Root,
		input:   ti,
		state:   stateBrowse,
	}
}

func (m *browserModel) Init() tea.Cmd {
	return m.list(vfs.Root)
}

func (m *browserModel) list(dir string) tea.Cmd {
	return func() tea.Msg {
		entries, err := readEntries(m.fsys, dir)
		return listedMsg{err: err, dir: dir, entries: entries}
	}
}

func (m *browserModel) open(p string) tea.Cmd {
	return func() tea.Msg {
		data, err := vfs.ReadFile(m.fsys, p)
		if err != nil {
			return previewMsg{err: err}
		}
		return previewMsg{path: p, content: formatPreview(data), size: len(data)}
	}
}

func formatPreview(data []byte) string {
	truncated := len(data) > previewLimit
	if truncated {
		data = data[:previewLimit]
	}
	if !utf8.Valid(data) {
		return fmt.Sprintf("(binary, %s)", humanize.IBytes(uint64(len(data))))
	}
	s := string(data)
	if truncated {
		s += "\n..."
	}
	return s
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateGoto {
			return m.updateGoto(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateBrowse && m.selected < len(m.entries)-1 {
				m.selected++
			}

		case "enter", "l":
			switch m.state {
			case stateBrowse:
				if len(m.entries) == 0 {
					return m, nil
				}
				e := m.entries[m.selected]
				p := path.Join(m.cwd, e.name)
				if e.isDir {
					return m, m.list(p)
				}
				return m, m.open(p)
			case statePreview:
				m.state = stateBrowse
				m.preview = ""
			}

		case "backspace", "h":
			if m.state == stateBrowse && m.cwd != vfs.Root {
				return m, m.list(path.Dir(m.cwd))
			}

		case "/", "g":
			if m.state == stateBrowse {
				m.state = stateGoto
				m.input.SetValue(m.cwd)
				m.input.CursorEnd()
				return m, m.input.Focus()
			}

		case "esc":
			if m.state == statePreview {
				m.state = stateBrowse
				m.preview = ""
			}
			m.err = nil
		}

	case listedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.cwd = msg.dir
		m.entries = msg.entries
		m.selected = 0

	case previewMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.preview = msg.content
		m.previewOf = msg.path
		m.previewSz = msg.size
		m.state = statePreview
	}

	return m, nil
}

func (m *browserModel) updateGoto(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.input.Blur()
		m.state = stateBrowse
		return m, nil
	case "enter":
		target := vfs.Absolute(strings.TrimSpace(m.input.Value()))
		m.input.Blur()
		m.state = stateBrowse
		if vfs.IsDir(m.fsys, target) {
			return m, m.list(target)
		}
		return m, m.open(target)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *browserModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("WASI VFS"))
	b.WriteString(" ")
	b.WriteString(m.program)
	b.WriteString(" ")
	b.WriteString(dirStyle.Render(m.cwd))
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse, stateGoto:
		if len(m.entries) == 0 {
			b.WriteString(helpStyle.Render("(empty)"))
			b.WriteString("\n")
		}
		for i, e := range m.entries {
			line := m.formatEntry(e)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		if m.state == stateGoto {
			b.WriteString(m.input.View())
			b.WriteString("\n")
			b.WriteString(helpStyle.Render("enter open • esc cancel"))
		} else {
			b.WriteString(helpStyle.Render("↑/↓ select • enter open • backspace up • / go to • q quit"))
		}

	case statePreview:
		b.WriteString(fmt.Sprintf("%s %s\n\n", m.previewOf, sizeStyle.Render(humanize.IBytes(uint64(m.previewSz)))))
		b.WriteString(m.preview)
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter back • q quit"))
	}

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	return b.String()
}

func (m *browserModel) formatEntry(e entryInfo) string {
	name := e.displayName()
	if e.isDir {
		name = dirStyle.Render(name)
	}
	return fmt.Sprintf("%s  %8s  %s", e.mode, sizeStyle.Render(e.sizeString()), name)
}

func runInteractive(fsys experimentalsys.FS, program string) error {
	p := tea.NewProgram(newBrowserModel(fsys, program), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
