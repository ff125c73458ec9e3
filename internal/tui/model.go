// Package tui is a terminal reader for one stored document: a paginated page
// view above a question box whose answers link back into the pages.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mfenderov/citedoc/internal/qa"
	"github.com/mfenderov/citedoc/internal/viewer"
	"github.com/mfenderov/citedoc/pkg/models"
)

// Session is the part of the chat service the reader needs.
type Session interface {
	Ask(ctx context.Context, ownerID, documentID, question string) (*qa.Result, error)
	File(ctx context.Context, ownerID, documentID string) ([]byte, *models.Document, error)
}

// Config wires runtime options into the TUI program.
type Config struct {
	Session    Session
	OwnerID    string
	DocumentID string
	Timeout    time.Duration // per question, 0 means no limit
}

type focus int

const (
	focusInput focus = iota
	focusCitations
)

// reservedLines is the height of everything drawn around the page viewport.
const reservedLines = 19

type model struct {
	config Config
	cursor *viewer.Cursor

	doc   *models.Document
	pages []string

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	focus    focus
	pending  bool
	question string
	result   *qa.Result
	selected int

	width  int
	height int
	status string
	err    error
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	return newModel(config)
}

func newModel(config Config) *model {
	input := textinput.New()
	input.Placeholder = "Ask a question about the document…"
	input.CharLimit = 500
	input.Width = 70
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &model{
		config:   config,
		cursor:   viewer.NewCursor(),
		input:    input,
		spinner:  spin,
		viewport: vp,
		status:   "Loading document…",
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		loadDocumentCmd(m.config.Session, m.config.OwnerID, m.config.DocumentID),
		textinput.Blink,
	)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case documentLoadedMsg:
		return m, m.handleDocumentLoaded(msg)

	case answerMsg:
		return m, m.handleAnswer(msg)

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) handleDocumentLoaded(msg documentLoadedMsg) tea.Cmd {
	if msg.err != nil {
		m.err = msg.err
		m.status = ""
		return nil
	}
	m.doc = msg.doc
	m.pages = msg.pages
	m.cursor.OnDocumentLoaded(len(msg.pages))
	m.status = fmt.Sprintf("Loaded %s.", msg.doc.FileName)
	m.renderPage()
	return nil
}

func (m *model) handleAnswer(msg answerMsg) tea.Cmd {
	m.pending = false
	m.input.Focus()
	if msg.err != nil {
		m.err = msg.err
		m.status = ""
		return textinput.Blink
	}
	m.err = nil
	m.question = msg.question
	m.result = msg.result
	m.selected = 0
	switch n := len(msg.result.Citations); {
	case msg.result.Fallback:
		m.status = "The model returned no answer."
	case n == 0:
		m.status = "No citations in this answer."
	default:
		m.status = fmt.Sprintf("%d citation(s). Press tab to browse them.", n)
	}
	return textinput.Blink
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		return tea.Quit
	case "tab":
		m.toggleFocus()
		return nil
	case "pgdown", "ctrl+n":
		if !m.cursor.CanNext() {
			if m.cursor.Loaded() {
				m.status = "Already on the last page."
			}
			return nil
		}
		m.cursor.Next()
		m.renderPage()
		return nil
	case "pgup", "ctrl+p":
		if !m.cursor.CanPrev() {
			if m.cursor.Loaded() {
				m.status = "Already on the first page."
			}
			return nil
		}
		m.cursor.Prev()
		m.renderPage()
		return nil
	}

	if m.focus == focusCitations {
		m.handleCitationKey(msg)
		return nil
	}
	return m.handleInputKey(msg)
}

func (m *model) handleInputKey(msg tea.KeyMsg) tea.Cmd {
	if m.pending {
		return nil
	}
	if msg.Type == tea.KeyEnter {
		return m.submit()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *model) handleCitationKey(msg tea.KeyMsg) {
	citations := m.citations()
	switch msg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(citations)-1 {
			m.selected++
		}
	case "enter":
		if len(citations) == 0 {
			return
		}
		m.openCitation(citations[m.selected])
	case "+", "=":
		m.cursor.ZoomIn()
		m.renderPage()
	case "-":
		m.cursor.ZoomOut()
		m.renderPage()
	}
}

func (m *model) openCitation(c models.Citation) {
	if !c.HasPage() {
		m.status = fmt.Sprintf("%s has no page to show.", c.Text)
		return
	}
	if m.cursor.OnCitationClick(c) {
		m.renderPage()
	}
	if m.cursor.Pending() {
		m.status = fmt.Sprintf("Page %d is not available yet.", *c.Page)
		return
	}
	m.status = fmt.Sprintf("Showing page %d.", m.cursor.Page())
}

func (m *model) submit() tea.Cmd {
	question := strings.TrimSpace(m.input.Value())
	if question == "" || m.pending {
		return nil
	}
	m.pending = true
	m.err = nil
	m.status = ""
	m.input.Reset()
	m.input.Blur()
	return tea.Batch(
		m.spinner.Tick,
		askCmd(m.config.Session, m.config.OwnerID, m.config.DocumentID, question, m.config.Timeout),
	)
}

func (m *model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusCitations
		m.input.Blur()
		return
	}
	m.focus = focusInput
	if !m.pending {
		m.input.Focus()
	}
}

func (m *model) citations() []models.Citation {
	if m.result == nil {
		return nil
	}
	return m.result.Citations
}

func (m *model) resize() {
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-reservedLines, 3)
	m.input.Width = max(m.width-4, 10)
	m.renderPage()
}

func (m *model) renderPage() {
	if len(m.pages) == 0 {
		m.viewport.SetContent("")
		return
	}
	page := m.cursor.Page()
	if page < 1 || page > len(m.pages) {
		return
	}
	m.viewport.SetContent(wrapPage(m.pages[page-1], wrapWidth(m.viewport.Width, m.cursor.Scale())))
	m.viewport.GotoTop()
}
