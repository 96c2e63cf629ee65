package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/newsrag/models"
)

type fakeChat struct {
	result     models.QueryResult
	queryErr   error
	count      int
	ingestErr  error
	history    []models.ChatMessage
	cleared    []string
	gotSession string
	gotMessage string
}

func (f *fakeChat) ProcessQuery(_ context.Context, sessionID, message string) (models.QueryResult, error) {
	f.gotSession, f.gotMessage = sessionID, message
	return f.result, f.queryErr
}

func (f *fakeChat) IngestArticles(context.Context) (int, error) { return f.count, f.ingestErr }

func (f *fakeChat) History(_ context.Context, sessionID string) ([]models.ChatMessage, error) {
	return f.history, nil
}

func (f *fakeChat) ClearHistory(_ context.Context, sessionID string) error {
	f.cleared = append(f.cleared, sessionID)
	return nil
}

func newTestEcho(chat *fakeChat) *echo.Echo {
	e := echo.New()
	s := NewServer(chat, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.UTC) }
	s.NewID = func() string { return "11111111-2222-3333-4444-555555555555" }
	s.Register(e.Group("/api"))
	return e
}

func do(e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestChatMessage(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{result: models.QueryResult{
		Response: "Answer",
		Sources:  []models.SourceRef{{Title: "T", URL: "https://n.example/1"}},
	}}
	e := newTestEcho(chat)

	rec, body := do(e, http.MethodPost, "/api/chat", `{"sessionId":"s1","message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["response"] != "Answer" {
		t.Fatalf("body = %v", body)
	}
	sources := body["sources"].([]any)
	if len(sources) != 1 || sources[0].(map[string]any)["url"] != "https://n.example/1" {
		t.Fatalf("sources = %v", sources)
	}
	if chat.gotSession != "s1" || chat.gotMessage != "hi" {
		t.Fatalf("forwarded %q %q", chat.gotSession, chat.gotMessage)
	}
}

func TestChatMessageValidation(t *testing.T) {
	t.Parallel()
	e := newTestEcho(&fakeChat{})
	for _, payload := range []string{`{"sessionId":"s1"}`, `{"message":"hi"}`, `{"sessionId":"","message":""}`} {
		rec, body := do(e, http.MethodPost, "/api/chat", payload)
		if rec.Code != http.StatusBadRequest || body["error"] != "Missing sessionId or message" {
			t.Fatalf("payload %s: %d %v", payload, rec.Code, body)
		}
	}
}

func TestChatMessageFailure(t *testing.T) {
	t.Parallel()
	e := newTestEcho(&fakeChat{queryErr: errors.New("provider down")})
	rec, body := do(e, http.MethodPost, "/api/chat", `{"sessionId":"s1","message":"hi"}`)
	if rec.Code != http.StatusInternalServerError || body["error"] != "Failed to process query" {
		t.Fatalf("%d %v", rec.Code, body)
	}
}

func TestIngest(t *testing.T) {
	t.Parallel()
	rec, body := do(newTestEcho(&fakeChat{count: 7}), http.MethodPost, "/api/chat/ingest", "")
	if rec.Code != http.StatusOK || body["message"] != "Ingested 7 articles" || body["count"].(float64) != 7 {
		t.Fatalf("%d %v", rec.Code, body)
	}
	rec, body = do(newTestEcho(&fakeChat{ingestErr: errors.New("x")}), http.MethodPost, "/api/chat/ingest", "")
	if rec.Code != http.StatusInternalServerError || body["error"] != "Ingestion failed" {
		t.Fatalf("%d %v", rec.Code, body)
	}
}

func TestSessions(t *testing.T) {
	t.Parallel()
	chat := &fakeChat{history: []models.ChatMessage{{Role: models.RoleUser, Content: "q", Timestamp: 1}}}
	e := newTestEcho(chat)

	rec, body := do(e, http.MethodPost, "/api/sessions", "")
	if rec.Code != http.StatusOK || body["sessionId"] != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("%d %v", rec.Code, body)
	}

	rec, body = do(e, http.MethodGet, "/api/sessions/s1/history", "")
	history := body["history"].([]any)
	if rec.Code != http.StatusOK || len(history) != 1 || history[0].(map[string]any)["role"] != "user" {
		t.Fatalf("%d %v", rec.Code, body)
	}

	rec, body = do(e, http.MethodDelete, "/api/sessions/s1", "")
	if rec.Code != http.StatusOK || body["success"] != true || len(chat.cleared) != 1 || chat.cleared[0] != "s1" {
		t.Fatalf("%d %v %v", rec.Code, body, chat.cleared)
	}
}

func TestEmptyHistoryIsArray(t *testing.T) {
	t.Parallel()
	rec, _ := do(newTestEcho(&fakeChat{}), http.MethodGet, "/api/sessions/none/history", "")
	if !strings.Contains(rec.Body.String(), `"history":[]`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()
	rec, body := do(newTestEcho(&fakeChat{}), http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK || body["status"] != "healthy" || body["timestamp"] != "2025-01-02T03:04:05.006Z" {
		t.Fatalf("%d %v", rec.Code, body)
	}
}
