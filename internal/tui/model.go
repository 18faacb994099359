package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/service"
)

// PresetQuestions are offered with Tab.
var PresetQuestions = []string{
	"红楼梦人物之间的关系是什么？",
	"红楼梦的情节概要是什么？",
	"红楼梦的文学手法有哪些？",
	"红楼梦的文学价值是什么？",
}

const (
	minTopK = 1
	maxTopK = 20
)

// EnginePort is the TUI-facing subset of the engine.
type EnginePort interface {
	Query(ctx context.Context, question string, topK int, threshold float64) (domain.QueryResponse, error)
	Rebuild(ctx context.Context) error
	Stats() service.Stats
	Summary() string
}

type answerMsg struct {
	resp domain.QueryResponse
	err  error
}

type rebuiltMsg struct{ err error }

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	engine    EnginePort
	tokenizer domain.Tokenizer
	input     textinput.Model
	viewport  viewport.Model
	response  *domain.QueryResponse
	stats     service.Stats
	topK      int
	threshold float64
	status    string
	cursor    int
	preset    int
	busy      bool
	ready     bool
}

// New creates a new TUI model instance. tokenizer is used to highlight the
// sentence of a source that best matches the question.
func New(engine EnginePort, tokenizer domain.Tokenizer, topK int, threshold float64) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "输入问题后回车，Tab 切换示例问题"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		engine:    engine,
		tokenizer: tokenizer,
		input:     ti,
		viewport:  vp,
		stats:     engine.Stats(),
		topK:      clampTopK(topK),
		threshold: threshold,
		preset:    -1,
		status:    "Ready. enter: ask  tab: preset  ctrl+n/ctrl+p: top-k  ctrl+r: rebuild  ctrl+c: quit",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResponse())
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.response = nil
		} else {
			m.response = &msg.resp
			m.cursor = 0
			m.status = fmt.Sprintf("%d sources for %q (top-k %d)", len(msg.resp.Sources), msg.resp.Question, m.topK)
		}
		m.viewport.SetContent(m.renderResponse())
		m.viewport.GotoTop()
		return m, nil
	case rebuiltMsg:
		m.busy = false
		m.stats = m.engine.Stats()
		if msg.err != nil {
			m.status = "Rebuild failed: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Rebuilt: %d documents, %d chunks", m.stats.Documents, m.stats.Chunks)
		}
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Generating answer..."
				return m, m.query(q)
			}
		case "tab":
			m.preset = (m.preset + 1) % len(PresetQuestions)
			m.input.SetValue(PresetQuestions[m.preset])
			m.input.CursorEnd()
			return m, nil
		case "ctrl+n":
			m.topK = clampTopK(m.topK + 1)
			m.status = fmt.Sprintf("top-k = %d", m.topK)
			return m, nil
		case "ctrl+p":
			m.topK = clampTopK(m.topK - 1)
			m.status = fmt.Sprintf("top-k = %d", m.topK)
			return m, nil
		case "ctrl+r":
			if !m.busy {
				m.busy = true
				m.status = "Rebuilding index..."
				return m, m.rebuild()
			}
		case "down":
			if m.response != nil && len(m.response.Sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.response.Sources)
				m.viewport.SetContent(m.renderResponse())
				return m, nil
			}
		case "up":
			if m.response != nil && len(m.response.Sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.response.Sources)) % len(m.response.Sources)
				m.viewport.SetContent(m.renderResponse())
				return m, nil
			}
		case "pgdown":
			m.viewport.HalfViewDown()
			return m, nil
		case "pgup":
			m.viewport.HalfViewUp()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) query(q string) tea.Cmd {
	engine, topK, threshold := m.engine, m.topK, m.threshold
	return func() tea.Msg {
		resp, err := engine.Query(context.Background(), q, topK, threshold)
		return answerMsg{resp: resp, err: err}
	}
}

func (m Model) rebuild() tea.Cmd {
	engine := m.engine
	return func() tea.Msg {
		return rebuiltMsg{err: engine.Rebuild(context.Background())}
	}
}

// View renders the TUI layout and current response.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("红楼梦 RAG 问答") + "  " + statsStyle.Render(statsLine(m.stats, m.topK, m.threshold))
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(truncate(m.engine.Summary(), m.viewport.Width))
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func statsLine(s service.Stats, topK int, threshold float64) string {
	cache := "cache: missing"
	if s.CacheReady {
		cache = "cache: ready"
	}
	return fmt.Sprintf("docs %d · chunks %d · vocab %d · %s · top-k %d · threshold %.2f",
		s.Documents, s.Chunks, s.Vocabulary, cache, topK, threshold)
}

func (m Model) renderResponse() string {
	if m.response == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(answerTitleStyle.Render("Answer"))
	b.WriteString("\n")
	b.WriteString(m.response.Answer)
	b.WriteString("\n\n")
	if len(m.response.Sources) == 0 {
		return b.String()
	}
	src := m.response.Sources[m.cursor]
	title := fmt.Sprintf("Source %d/%d  %s #%d  ", m.cursor+1, len(m.response.Sources), src.Source, src.ChunkIndex)
	b.WriteString(title)
	b.WriteString(SimilarityStyle(src.Similarity).Render(fmt.Sprintf("similarity=%.3f", src.Similarity)))
	b.WriteString("\n")
	b.WriteString(m.highlightBestSentence(src.ContentPreview, m.response.Question))
	return b.String()
}

var (
	resultBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerTitleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	statsStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	goodStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#4caf50"))
	fairStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff9800"))
	weakStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#f44336"))
)

// SimilarityBucket names the quality band of a similarity score.
func SimilarityBucket(sim float64) string {
	switch {
	case sim > 0.5:
		return "good"
	case sim > 0.3:
		return "fair"
	default:
		return "weak"
	}
}

// SimilarityStyle colours a similarity score by its bucket.
func SimilarityStyle(sim float64) lipgloss.Style {
	switch SimilarityBucket(sim) {
	case "good":
		return goodStyle
	case "fair":
		return fairStyle
	default:
		return weakStyle
	}
}

func (m Model) highlightBestSentence(text, query string) string {
	body, ellipsis := strings.CutSuffix(text, "...")
	sentences := chunker.SplitSentences(body)
	best := bestSentence(m.tokenizer, sentences, query)
	if best < 0 {
		return text
	}
	// A truncated preview ends mid-sentence; drop the "." SplitSentences
	// appends to the unterminated tail.
	if ellipsis && !strings.HasSuffix(strings.TrimSpace(body), ".") {
		last := len(sentences) - 1
		sentences[last] = strings.TrimSuffix(sentences[last], ".")
	}
	sentences[best] = highlightStyle.Render(sentences[best])
	out := strings.Join(sentences, "")
	if ellipsis {
		out += "..."
	}
	return out
}

// bestSentence returns the index of the sentence sharing the most distinct
// terms with query, or -1 when nothing overlaps.
func bestSentence(tok domain.Tokenizer, sentences []string, query string) int {
	if tok == nil {
		return -1
	}
	qTokens := make(map[string]struct{})
	for _, t := range tok.Tokenize(query) {
		qTokens[t] = struct{}{}
	}
	bestIdx, bestScore := -1, 0
	for i, s := range sentences {
		seen := make(map[string]struct{})
		score := 0
		for _, t := range tok.Tokenize(s) {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			if _, ok := qTokens[t]; ok {
				score++
			}
		}
		if score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	return bestIdx
}

func clampTopK(k int) int {
	return min(maxTopK, max(minTopK, k))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
