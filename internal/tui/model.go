// Package tui is an interactive console for searching and chatting over the
// ingested documents.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/service"
)

// Searcher is the retrieval side of the engine.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]service.Result, error)
}

// Chatter answers questions with retrieved context. It is optional.
type Chatter interface {
	Chat(ctx context.Context, settings service.ChatSettings, message string) (string, error)
}

type mode int

const (
	modeSearch mode = iota
	modeAsk
)

func (m mode) String() string {
	if m == modeAsk {
		return "ask"
	}
	return "search"
}

// Options configures the console.
type Options struct {
	TopK     int
	Chatter  Chatter
	Settings service.ChatSettings
	Digest   string
}

type searchDoneMsg struct {
	query   string
	results []service.Result
	err     error
}

type answerMsg struct {
	question string
	answer   string
	err      error
}

// Model is the Bubble Tea model for the console.
type Model struct {
	searcher  Searcher
	opts      Options
	mode      mode
	input     textinput.Model
	viewport  viewport.Model
	results   []service.Result
	answer    string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a console model. Digest is shown under the header.
func New(searcher Searcher, opts Options) Model {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	status := "Loaded. Type to search."
	if opts.Chatter != nil {
		status += " Tab switches to ask mode."
	}
	return Model{searcher: searcher, opts: opts, input: ti, viewport: viewport.New(0, 0), status: status}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and completion events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frameH := resultBoxStyle.GetFrameSize()
		_, inputH := queryBoxStyle.GetFrameSize()
		// header, digest, status and one spacer line
		height := msg.Height - (4 + inputH)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, height-frameH)
		m.refresh()
		return m, nil

	case searchDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.results = nil
		} else {
			m.status = fmt.Sprintf("%d results for %q", len(msg.results), msg.query)
			m.results = msg.results
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = ""
		} else {
			m.status = fmt.Sprintf("Answered %q", msg.question)
			m.answer = msg.answer
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if m.opts.Chatter != nil {
				m.mode = 1 - m.mode
				m.status = "Mode: " + m.mode.String()
				m.refresh()
			}
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.input.SetValue("")
			if m.mode == modeAsk {
				m.status = "Thinking..."
				return m, m.ask(q)
			}
			m.status = "Searching..."
			return m, m.search(q)
		case "down":
			if m.mode == modeSearch && len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.mode == modeSearch && len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) search(q string) tea.Cmd {
	searcher, k := m.searcher, m.opts.TopK
	return func() tea.Msg {
		res, err := searcher.Search(context.Background(), q, k)
		return searchDoneMsg{query: q, results: res, err: err}
	}
}

func (m Model) ask(q string) tea.Cmd {
	chatter, settings := m.opts.Chatter, m.opts.Settings
	return func() tea.Msg {
		answer, err := chatter.Chat(context.Background(), settings, q)
		return answerMsg{question: q, answer: answer, err: err}
	}
}

func (m *Model) refresh() {
	if m.mode == modeAsk {
		m.viewport.SetContent(m.renderAnswer())
	} else {
		m.viewport.SetContent(m.renderCurrentResult())
	}
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("ragchat · " + m.mode.String())
	digest := digestStyle.Render(m.opts.Digest)
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + digest + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == "" {
		return "Ask a question about the documents."
	}
	return m.answer
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	file := r.File
	if file == "" {
		file = service.UnknownSource
	}
	title := fmt.Sprintf("Result %d/%d  score=%.3f  [From %s]", m.cursor+1, len(m.results), r.Similarity, file)
	return title + "\n\n" + highlightBestSentence(r.Content, m.lastQuery)
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	digestStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	wordRe         = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// highlightBestSentence emphasises the sentence of text sharing the most
// distinct words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	want := wordSet(query)
	if len(want) == 0 {
		return strings.Join(sentences, " ")
	}
	best, bestHits := 0, -1
	for i, sent := range sentences {
		hits := 0
		for w := range wordSet(sent) {
			if _, ok := want[w]; ok {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = i, hits
		}
	}
	sentences[best] = highlightStyle.Render(sentences[best])
	return strings.Join(sentences, " ")
}

func wordSet(s string) map[string]struct{} {
	words := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
