package chatbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/newsrag/index"
	"github.com/mohammad-safakhou/newsrag/models"
	"github.com/mohammad-safakhou/newsrag/session/inmemory"
)

type fakeEmbedder struct {
	mu     sync.Mutex
	texts  []string
	err    error
	failAt int // 1-based call that fails; 0 fails every call
}

func (f *fakeEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil && (f.failAt == 0 || f.failAt == len(f.texts)) {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type fakeIndex struct {
	mu          sync.Mutex
	ensured     int
	ensureErr   error
	upserts     [][]index.Point
	upsertErr   error
	searches    int
	lastLimit   int
	lastPayload bool
	hits        []index.ScoredPoint
	searchErr   error
}

func (f *fakeIndex) EnsureCollection(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured++
	return f.ensureErr
}

func (f *fakeIndex) Upsert(_ context.Context, points []index.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, points)
	return f.upsertErr
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, limit int, withPayload bool) ([]index.ScoredPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	f.lastLimit = limit
	f.lastPayload = withPayload
	return f.hits, f.searchErr
}

type fakeProvider struct {
	prompts []string
	answer  string
	err     error
}

func (f *fakeProvider) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

type fakeScraper struct {
	articles []models.Article
	err      error
	sources  []string
	limit    int
}

func (f *fakeScraper) Ingest(_ context.Context, sources []string, limit int) ([]models.Article, error) {
	f.sources = sources
	f.limit = limit
	return f.articles, f.err
}

type recordingNotifier struct {
	events []string
}

func (r *recordingNotifier) Working(_ context.Context, id string, working bool) {
	r.events = append(r.events, fmt.Sprintf("working:%s:%v", id, working))
}

func (r *recordingNotifier) Result(_ context.Context, id string, res models.QueryResult) {
	r.events = append(r.events, fmt.Sprintf("result:%s:%s", id, res.Response))
}

func (r *recordingNotifier) Failed(_ context.Context, id string, err error) {
	r.events = append(r.events, "failed:"+id)
}

type fixture struct {
	bot      *Chatbot
	store    *inmemory.Store
	embedder *fakeEmbedder
	index    *fakeIndex
	provider *fakeProvider
	scraper  *fakeScraper
	notifier *recordingNotifier
}

var clock = time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    inmemory.NewInMemorySessionStore().WithClock(func() time.Time { return clock }),
		embedder: &fakeEmbedder{},
		index:    &fakeIndex{},
		provider: &fakeProvider{answer: "Here is what happened."},
		scraper:  &fakeScraper{},
		notifier: &recordingNotifier{},
	}
	bot, err := New(Deps{
		Sessions: f.store,
		Embedder: f.embedder,
		Index:    f.index,
		Provider: f.provider,
		Scraper:  f.scraper,
		Notifier: f.notifier,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return clock },
	}, Options{
		TopK:          5,
		HistoryWindow: 6,
		SessionTTL:    time.Hour,
		Sources:       []string{"https://a.example/feed"},
		IngestLimit:   50,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.bot = bot
	return f
}

func article(id, title string) models.Article {
	return models.Article{ID: id, Title: title, Content: title + " body", URL: "https://n.example/" + id}
}

func hit(a models.Article, score float64) index.ScoredPoint {
	return index.ScoredPoint{ID: a.ID, Score: score, Payload: &a}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()
	if _, err := New(Deps{}, Options{}); err == nil {
		t.Fatalf("expected error for empty deps")
	}
}

func TestProcessQueryEndToEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	rates, storm := article("a1", "Rates rise"), article("a2", "Storm warning")
	f.index.hits = []index.ScoredPoint{hit(rates, 0.9), hit(storm, 0.5)}

	res, err := f.bot.ProcessQuery(ctx, "s1", "What happened with rates?")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if res.Response != "Here is what happened." {
		t.Fatalf("response = %q", res.Response)
	}
	wantSources := []models.SourceRef{{Title: "Rates rise", URL: "https://n.example/a1"}, {Title: "Storm warning", URL: "https://n.example/a2"}}
	if fmt.Sprint(res.Sources) != fmt.Sprint(wantSources) {
		t.Fatalf("sources = %v", res.Sources)
	}
	if f.index.lastLimit != 5 || !f.index.lastPayload {
		t.Fatalf("search limit=%d payload=%v", f.index.lastLimit, f.index.lastPayload)
	}
	if len(f.embedder.texts) != 1 || f.embedder.texts[0] != "What happened with rates?" {
		t.Fatalf("embedded = %v", f.embedder.texts)
	}

	wantPrompt := "You are a helpful news assistant. \nChat History:\n\nRelevant News:\n" +
		"Title: Rates rise\nContent: Rates rise body\nURL: https://n.example/a1\n\n" +
		"Title: Storm warning\nContent: Storm warning body\nURL: https://n.example/a2\n" +
		"User: What happened with rates?\nAnswer:"
	if f.provider.prompts[0] != wantPrompt {
		t.Fatalf("prompt =\n%q\nwant\n%q", f.provider.prompts[0], wantPrompt)
	}

	history, _ := f.bot.History(ctx, "s1")
	want := []models.ChatMessage{
		{Role: models.RoleUser, Content: "What happened with rates?", Timestamp: clock.UnixMilli()},
		{Role: models.RoleAssistant, Content: "Here is what happened.", Timestamp: clock.UnixMilli()},
	}
	if fmt.Sprint(history) != fmt.Sprint(want) {
		t.Fatalf("history = %+v", history)
	}
	if ttl := f.store.TTL("s1"); ttl != time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}
}

func TestProcessQueryHistoryWindow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		role := models.RoleUser
		if i%2 == 0 {
			role = models.RoleAssistant
		}
		_ = f.store.Append(ctx, "s1", models.ChatMessage{Role: role, Content: fmt.Sprintf("m%d", i)}, time.Hour)
	}

	if _, err := f.bot.ProcessQuery(ctx, "s1", "newest question"); err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	prompt := f.provider.prompts[0]
	wantHistory := "Chat History:\nuser: m5\nassistant: m6\nuser: m7\nassistant: m8\nuser: m9\nassistant: m10\nRelevant News:"
	if !strings.Contains(prompt, wantHistory) {
		t.Fatalf("prompt history window wrong:\n%s", prompt)
	}
	if strings.Contains(prompt, "m4\n") || strings.Contains(prompt, "user: newest question") {
		t.Fatalf("window leaked older or current message:\n%s", prompt)
	}

	history, _ := f.store.Load(ctx, "s1")
	if len(history) != 12 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[10].Content != "newest question" || history[11].Role != models.RoleAssistant {
		t.Fatalf("tail = %+v", history[10:])
	}
}

func TestProcessQueryFailures(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	tests := []struct {
		name          string
		setup         func(f *fixture)
		wantMessages  int
		wantGenerated bool
	}{
		{
			name:         "embedding fails",
			setup:        func(f *fixture) { f.embedder.err = boom },
			wantMessages: 1,
		},
		{
			name:         "search fails",
			setup:        func(f *fixture) { f.index.searchErr = boom },
			wantMessages: 1,
		},
		{
			name:          "generation fails",
			setup:         func(f *fixture) { f.provider.err = boom },
			wantMessages:  1,
			wantGenerated: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			tt.setup(f)
			res, err := f.bot.ProcessQuery(context.Background(), "s1", "q")
			if !errors.Is(err, boom) {
				t.Fatalf("err = %v, want boom", err)
			}
			if res.Response != "" || res.Sources != nil {
				t.Fatalf("partial result returned: %+v", res)
			}
			history, _ := f.store.Load(context.Background(), "s1")
			if len(history) != tt.wantMessages {
				t.Fatalf("history = %+v", history)
			}
			if (len(f.provider.prompts) > 0) != tt.wantGenerated {
				t.Fatalf("provider calls = %d", len(f.provider.prompts))
			}
		})
	}
}

func TestProcessQueryRejectsEmptyInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	for _, in := range [][2]string{{"", "q"}, {"s1", "  "}} {
		if _, err := f.bot.ProcessQuery(context.Background(), in[0], in[1]); !errors.Is(err, models.ErrInvalidRequest) {
			t.Fatalf("ProcessQuery(%q,%q) err = %v", in[0], in[1], err)
		}
	}
	if len(f.embedder.texts) != 0 {
		t.Fatalf("embedder called for invalid input")
	}
}

func TestProcessQueryNotify(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if _, err := f.bot.ProcessQueryNotify(context.Background(), "s1", "q"); err != nil {
		t.Fatalf("ProcessQueryNotify: %v", err)
	}
	want := []string{"working:s1:true", "working:s1:false", "result:s1:Here is what happened."}
	if fmt.Sprint(f.notifier.events) != fmt.Sprint(want) {
		t.Fatalf("events = %v", f.notifier.events)
	}

	f.notifier.events = nil
	f.provider.err = errors.New("down")
	if _, err := f.bot.ProcessQueryNotify(context.Background(), "s1", "q"); err == nil {
		t.Fatalf("expected error")
	}
	want = []string{"working:s1:true", "working:s1:false", "failed:s1"}
	if fmt.Sprint(f.notifier.events) != fmt.Sprint(want) {
		t.Fatalf("events = %v", f.notifier.events)
	}
}

func TestClearHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.bot.ProcessQuery(ctx, "s1", "q")
	if err := f.bot.ClearHistory(ctx, "s1"); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if h, _ := f.bot.History(ctx, "s1"); len(h) != 0 {
		t.Fatalf("history after clear = %+v", h)
	}
}

func TestInitialize(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := f.bot.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	f.index.ensureErr = errors.New("unreachable")
	if err := f.bot.Initialize(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if f.index.ensured != 2 {
		t.Fatalf("ensured = %d", f.index.ensured)
	}
}
