package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"ragqa/internal/domain"
	"ragqa/internal/service"
)

type fakeEngine struct {
	topK      int
	threshold float64
	rebuilds  int
}

func (f *fakeEngine) Query(_ context.Context, q string, topK int, threshold float64) (domain.QueryResponse, error) {
	f.topK, f.threshold = topK, threshold
	return domain.QueryResponse{
		ID:       "id-1",
		Question: q,
		Answer:   "宝玉与黛玉是表兄妹。",
		Sources: []domain.Source{
			{Source: "hlm.txt", ChunkIndex: 0, Similarity: 0.62, ContentPreview: "宝玉 黛玉 相见。园中 花落。"},
			{Source: "hlm.txt", ChunkIndex: 3, Similarity: 0.2, ContentPreview: "其他 内容。"},
		},
	}, nil
}

func (f *fakeEngine) Rebuild(context.Context) error { f.rebuilds++; return nil }

func (f *fakeEngine) Stats() service.Stats {
	return service.Stats{Documents: 1, Chunks: 4, Vocabulary: 12, CacheReady: true}
}

func (f *fakeEngine) Summary() string { return "宝玉 黛玉 相见。" }

type fieldsTokenizer struct{}

func (fieldsTokenizer) Tokenize(text string) []string {
	return strings.Fields(strings.NewReplacer("。", " ", "？", " ").Replace(text))
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	case "ctrl+p":
		return tea.KeyMsg{Type: tea.KeyCtrlP}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestModel_PresetAndQuery(t *testing.T) {
	engine := &fakeEngine{}
	m := New(engine, fieldsTokenizer{}, 10, 0.01)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = update(t, m, key("tab"))
	if m.input.Value() != PresetQuestions[0] {
		t.Fatalf("input = %q, want first preset", m.input.Value())
	}
	m, _ = update(t, m, key("tab"))
	if m.input.Value() != PresetQuestions[1] {
		t.Fatalf("input = %q, want second preset", m.input.Value())
	}

	m, cmd := update(t, m, key("enter"))
	if cmd == nil || !m.busy {
		t.Fatal("enter should start a query")
	}
	m, _ = update(t, m, cmd())
	if m.busy || m.response == nil {
		t.Fatal("answer not applied")
	}
	if engine.topK != 10 || engine.threshold != 0.01 {
		t.Errorf("query used topK=%d threshold=%v", engine.topK, engine.threshold)
	}
	content := m.renderResponse()
	for _, want := range []string{"宝玉与黛玉是表兄妹。", "Source 1/2", "similarity=0.620"} {
		if !strings.Contains(content, want) {
			t.Errorf("rendered response missing %q:\n%s", want, content)
		}
	}

	m, _ = update(t, m, key("down"))
	if m.cursor != 1 {
		t.Errorf("cursor = %d after down", m.cursor)
	}
	if !strings.Contains(m.View(), "docs 1") {
		t.Error("stats missing from header")
	}
}

func TestModel_TopKClamp(t *testing.T) {
	m := New(&fakeEngine{}, nil, 19, 0)
	for i := 0; i < 5; i++ {
		m, _ = update(t, m, key("ctrl+n"))
	}
	if m.topK != maxTopK {
		t.Errorf("topK = %d, want %d", m.topK, maxTopK)
	}
	for i := 0; i < 30; i++ {
		m, _ = update(t, m, key("ctrl+p"))
	}
	if m.topK != minTopK {
		t.Errorf("topK = %d, want %d", m.topK, minTopK)
	}
}

func TestModel_Rebuild(t *testing.T) {
	engine := &fakeEngine{}
	m := New(engine, nil, 10, 0)
	m, cmd := update(t, m, key("ctrl+r"))
	if cmd == nil {
		t.Fatal("ctrl+r should start a rebuild")
	}
	m, _ = update(t, m, cmd())
	if engine.rebuilds != 1 || m.busy {
		t.Errorf("rebuilds = %d busy = %v", engine.rebuilds, m.busy)
	}
	if !strings.HasPrefix(m.status, "Rebuilt") {
		t.Errorf("status = %q", m.status)
	}
}

func TestSimilarityBucket(t *testing.T) {
	tests := []struct {
		sim  float64
		want string
	}{
		{0.9, "good"},
		{0.51, "good"},
		{0.5, "fair"},
		{0.31, "fair"},
		{0.3, "weak"},
		{0, "weak"},
	}
	for _, tt := range tests {
		if got := SimilarityBucket(tt.sim); got != tt.want {
			t.Errorf("SimilarityBucket(%v) = %q, want %q", tt.sim, got, tt.want)
		}
	}
}

func TestBestSentence(t *testing.T) {
	sentences := []string{"园中 花落。", "宝玉 黛玉 相见。"}
	if got := bestSentence(fieldsTokenizer{}, sentences, "宝玉 黛玉"); got != 1 {
		t.Errorf("bestSentence() = %d, want 1", got)
	}
	if got := bestSentence(fieldsTokenizer{}, sentences, "无关"); got != -1 {
		t.Errorf("bestSentence() = %d, want -1", got)
	}
}

func TestHighlightBestSentence_TruncatedPreview(t *testing.T) {
	m := New(&fakeEngine{}, fieldsTokenizer{}, 10, 0)
	tests := []struct {
		name    string
		text    string
		wantEnd string
	}{
		{"cut mid-sentence", "宝玉 黛玉 相见。园中 花落...", "园中 花落..."},
		{"cut after terminator", "园中 花落。宝玉 黛玉 相见。...", "。..."},
		{"not truncated", "园中 花落。宝玉 黛玉 相见", "相见."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.highlightBestSentence(tt.text, "宝玉 黛玉")
			if !strings.HasSuffix(got, tt.wantEnd) {
				t.Errorf("highlightBestSentence() = %q, want suffix %q", got, tt.wantEnd)
			}
			if strings.Contains(got, "....") {
				t.Errorf("highlightBestSentence() = %q has a doubled terminator", got)
			}
		})
	}
}
