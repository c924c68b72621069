package worker

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/headliner/config"
	"github.com/mohammad-safakhou/headliner/internal/agent"
	"github.com/mohammad-safakhou/headliner/internal/browser"
	"github.com/mohammad-safakhou/headliner/internal/notifier"
	"github.com/mohammad-safakhou/headliner/internal/store"
	"github.com/mohammad-safakhou/headliner/models"
	"github.com/mohammad-safakhou/headliner/session/inmemory"
)

var quiet = log.New(io.Discard, "", 0)

const techcrunch = `<html><head><title>TechCrunch</title></head><body>
<a href="https://techcrunch.com/2025/01/01/one/">AI startup raises $100M</a>
<a href="/2025/01/01/two/">Chipmaker unveils new GPU</a>
<a href="/2025/01/01/three/">Streaming service hikes prices</a>
<a href="/2025/01/01/four/">EV maker recalls sedans</a>
<a href="/2025/01/01/five/">Social app adds payments</a>
</body></html>`

const translated = "1. Startup de IA levanta US$ 100 milhões - https://techcrunch.com/2025/01/01/one/\n" +
	"2. Fabricante de chips revela nova GPU - https://techcrunch.com/2025/01/01/two/\n" +
	"3. Serviço de streaming aumenta preços - https://techcrunch.com/2025/01/01/three/\n" +
	"4. Montadora de carros elétricos faz recall de sedãs - https://techcrunch.com/2025/01/01/four/\n" +
	"5. App social adiciona pagamentos - https://techcrunch.com/2025/01/01/five/"

type fakeSession struct {
	navErr  error
	visited []string
	closed  bool
}

func (f *fakeSession) Navigate(ctx context.Context, rawURL string) (browser.Page, error) {
	if f.navErr != nil {
		return browser.Page{}, f.navErr
	}
	f.visited = append(f.visited, rawURL)
	return browser.Page{URL: "https://techcrunch.com/", Title: "TechCrunch", Status: 200}, nil
}

func (f *fakeSession) Snapshot(ctx context.Context) (browser.Snapshot, error) {
	if len(f.visited) == 0 {
		return browser.Snapshot{}, browser.ErrNoPage
	}
	return browser.Snapshot{URL: "https://techcrunch.com/", Title: "TechCrunch", HTML: techcrunch}, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

// scriptedLLM replays canned replies and records the prompts it saw.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []models.Message
	err     error
	seen    [][]models.Message
}

func (s *scriptedLLM) Complete(ctx context.Context, msgs []models.Message, specs []models.ToolSpec) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, msgs)
	if s.err != nil {
		return models.Message{}, s.err
	}
	if len(s.replies) == 0 {
		return models.AssistantMessage("done"), nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

type recordingRuns struct {
	mu       sync.Mutex
	created  []string
	statuses []string
	errs     []*string
}

func (r *recordingRuns) CreateRun(ctx context.Context, trigger, sessionID, prompt string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, trigger)
	return "run-1", nil
}

func (r *recordingRuns) FinishRun(ctx context.Context, runID, status, reply string, steps int, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	r.errs = append(r.errs, errMsg)
	return nil
}

type telegramServer struct {
	mu    sync.Mutex
	texts []string
}

func newTelegram(t *testing.T) (*notifier.Telegram, *telegramServer) {
	t.Helper()
	ts := &telegramServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(raw))
		ts.mu.Lock()
		ts.texts = append(ts.texts, form.Get("text"))
		ts.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
	}))
	t.Cleanup(srv.Close)
	n := notifier.New(config.TelegramConfig{
		Token:       "123:abc",
		ChatID:      "42",
		APIEndpoint: srv.URL + "/bot%s/%s",
		Timeout:     5 * time.Second,
	}, notifier.WithLogger(quiet))
	return n, ts
}

func call(id, name, args string) models.ToolCall {
	return models.ToolCall{ID: id, Name: name, Arguments: args}
}

func TestDailyRoutineDeliversTranslatedHeadlines(t *testing.T) {
	n, tg := newTelegram(t)
	page := &fakeSession{}
	llm := &scriptedLLM{replies: []models.Message{
		models.AssistantMessage("", call("c1", "navigate_browser", `{"url":"https://techcrunch.com"}`)),
		models.AssistantMessage("", call("c2", "extract_hyperlinks", `{}`)),
		models.AssistantMessage("", call("c3", "send_telegram_notification", `{"text":`+quote(translated)+`}`)),
		models.AssistantMessage("Enviei as 5 principais manchetes para o seu Telegram."),
	}}
	runs := &recordingRuns{}
	sessions := inmemory.NewInMemorySessionStore()
	p := NewProcessor(quiet, llm, sessions, runs, func(ctx context.Context) (browser.Session, error) { return page, nil }, n, nil, Options{MaxChars: 1000})

	res := p.Process(context.Background(), Request{
		Trigger:   TriggerScheduled,
		SessionID: "10",
		Prompt:    DailyPrompt("https://techcrunch.com", 5, "Portuguese"),
	})
	if res.Err != nil || res.State != agent.StateFinalAnswer || res.Steps != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.RunID != "run-1" {
		t.Fatalf("run id not propagated: %q", res.RunID)
	}
	if len(tg.texts) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(tg.texts))
	}
	if lines := strings.Split(tg.texts[0], "\n"); len(lines) != 5 {
		t.Fatalf("expected five headline lines, got %d: %q", len(lines), tg.texts[0])
	}
	if tg.texts[0] != translated {
		t.Fatalf("unexpected text %q", tg.texts[0])
	}
	if !page.closed {
		t.Fatalf("browser session not closed")
	}
	if len(runs.statuses) != 1 || runs.statuses[0] != store.RunStatusSucceeded {
		t.Fatalf("unexpected run statuses %v", runs.statuses)
	}

	// the extracted links were fed back to the model
	last := llm.seen[2]
	out := last[len(last)-1].Content
	for _, want := range []string{`"https://techcrunch.com/2025/01/01/one/"`, `"https://techcrunch.com/2025/01/01/five/"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("absolute link %s missing from tool result: %q", want, out)
		}
	}
	for _, line := range strings.Split(tg.texts[0], "\n") {
		if !strings.Contains(line, "https://techcrunch.com/2025/01/01/") {
			t.Fatalf("headline without an absolute link: %q", line)
		}
	}
	history, _ := sessions.Load(context.Background(), "10")
	if len(history) != 8 {
		t.Fatalf("expected 8 stored messages, got %d", len(history))
	}
}

func TestNavigationFailureSendsNothing(t *testing.T) {
	n, tg := newTelegram(t)
	page := &fakeSession{navErr: context.DeadlineExceeded}
	llm := &scriptedLLM{replies: []models.Message{
		models.AssistantMessage("", call("c1", "navigate_browser", `{"url":"https://techcrunch.com"}`)),
	}}
	runs := &recordingRuns{}
	p := NewProcessor(quiet, llm, inmemory.NewInMemorySessionStore(), runs, func(ctx context.Context) (browser.Session, error) { return page, nil }, n, nil, Options{})

	res := p.Process(context.Background(), Request{Trigger: TriggerScheduled, SessionID: "10", Prompt: "headlines"})
	var toolErr *agent.ToolError
	if !errors.As(res.Err, &toolErr) || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected tool error wrapping deadline, got %v", res.Err)
	}
	if res.State != agent.StateFailed {
		t.Fatalf("unexpected state %s", res.State)
	}
	if len(tg.texts) != 0 {
		t.Fatalf("no notification expected, got %v", tg.texts)
	}
	if runs.statuses[0] != store.RunStatusFailed || runs.errs[0] == nil {
		t.Fatalf("failure not recorded: %v", runs.statuses)
	}
}

func TestChatTurnDoesNotOpenBrowser(t *testing.T) {
	opened := 0
	llm := &scriptedLLM{replies: []models.Message{models.AssistantMessage("Olá!")}}
	p := NewProcessor(quiet, llm, inmemory.NewInMemorySessionStore(), nil, func(ctx context.Context) (browser.Session, error) {
		opened++
		return &fakeSession{}, nil
	}, nil, nil, Options{})

	res := p.Process(context.Background(), Request{SessionID: "10", Prompt: "oi"})
	if res.Err != nil || res.Reply != "Olá!" {
		t.Fatalf("unexpected result %+v", res)
	}
	if opened != 0 {
		t.Fatalf("browser opened %d times for a chat turn", opened)
	}
}

func TestModelFailureIsReported(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("rate limited")}
	runs := &recordingRuns{}
	p := NewProcessor(quiet, llm, inmemory.NewInMemorySessionStore(), runs, nil, nil, nil, Options{})
	res := p.Process(context.Background(), Request{Trigger: TriggerInteractive, SessionID: "s", Prompt: "hi"})
	if !errors.Is(res.Err, agent.ErrModel) {
		t.Fatalf("expected model error, got %v", res.Err)
	}
	if runs.statuses[0] != store.RunStatusFailed {
		t.Fatalf("unexpected status %v", runs.statuses)
	}
}

func TestOpenBrowserFailureBecomesToolError(t *testing.T) {
	llm := &scriptedLLM{replies: []models.Message{
		models.AssistantMessage("", call("c1", "navigate_browser", `{"url":"https://techcrunch.com"}`)),
	}}
	boom := errors.New("chrome not found")
	p := NewProcessor(quiet, llm, inmemory.NewInMemorySessionStore(), nil, func(ctx context.Context) (browser.Session, error) {
		return nil, boom
	}, nil, nil, Options{})
	res := p.Process(context.Background(), Request{SessionID: "s", Prompt: "go"})
	if !errors.Is(res.Err, boom) {
		t.Fatalf("expected launch error, got %v", res.Err)
	}
}

func TestRenderPrompt(t *testing.T) {
	got := DailyPrompt("https://techcrunch.com", 5, "Portuguese")
	for _, want := range []string{"https://techcrunch.com", "5 main stories", "Portuguese", "send_telegram_notification", "Do not open"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q: %s", want, got)
		}
	}
	out, err := RenderPrompt("Top {{.Headlines}} from {{.Site}} in {{.Language}}", PromptData{Site: "https://g1.globo.com"})
	if err != nil {
		t.Fatalf("RenderPrompt: %v", err)
	}
	if out != "Top 5 from https://g1.globo.com in Portuguese" {
		t.Fatalf("unexpected prompt %q", out)
	}
	if _, err := RenderPrompt("{{.Nope}}", PromptData{}); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
