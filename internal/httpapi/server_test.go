package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CrewPublisher/internal/domain"
)

type fakeRunner struct {
	got    domain.RunRequest
	result string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, req domain.RunRequest) (string, error) {
	f.got = req
	return f.result, f.err
}

func newTestServer(runner Runner) *Server {
	return NewServer(Settings{Name: "Crew AI Bot API"}, runner, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, payload
}

func TestRoot(t *testing.T) {
	t.Parallel()

	rec, payload := do(t, newTestServer(&fakeRunner{}).Handler(), http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if payload["message"] != "Crew AI Bot API is running" {
		t.Fatalf("unexpected message: %v", payload)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected content type: %s", rec.Header().Get("Content-Type"))
	}
}

func TestUnknownPath(t *testing.T) {
	t.Parallel()

	rec, _ := do(t, newTestServer(&fakeRunner{}).Handler(), http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestRunAgentSuccess(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: "Published hello-world.md"}
	body := `{"topic":"Go","author_name":"Ada","cover_image_url":"https://example.org/c.png"}`
	rec, payload := do(t, newTestServer(runner).Handler(), http.MethodPost, "/run-agent", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if payload["status"] != "success" || payload["message"] != "Agent executed successfully" || payload["result"] != "Published hello-world.md" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	want := domain.RunRequest{Topic: "Go", AuthorName: "Ada", CoverImageURL: "https://example.org/c.png"}
	if runner.got != want {
		t.Fatalf("unexpected request: %+v", runner.got)
	}
}

func TestRunAgentFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("git push: exit status 1")}
	rec, payload := do(t, newTestServer(runner).Handler(), http.MethodPost, "/run-agent", `{"topic":"Go","author_name":"Ada"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if payload["detail"] != "An error occurred while running the agent: git push: exit status 1" {
		t.Fatalf("unexpected detail: %v", payload)
	}
}

func TestRunAgentValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invalid json":   `{"topic":`,
		"missing topic":  `{"author_name":"Ada"}`,
		"missing author": `{"topic":"Go"}`,
	}
	for name, body := range cases {
		runner := &fakeRunner{}
		rec, payload := do(t, newTestServer(runner).Handler(), http.MethodPost, "/run-agent", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: unexpected status %d", name, rec.Code)
		}
		if payload["detail"] == "" {
			t.Fatalf("%s: expected detail", name)
		}
		if runner.got != (domain.RunRequest{}) {
			t.Fatalf("%s: runner must not be called", name)
		}
	}
}

func TestRunAgentMethodNotAllowed(t *testing.T) {
	t.Parallel()

	rec, _ := do(t, newTestServer(&fakeRunner{}).Handler(), http.MethodGet, "/run-agent", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("unexpected Allow header: %s", rec.Header().Get("Allow"))
	}
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()

	server := NewServer(Settings{Name: "Test", Addr: "127.0.0.1:0"}, &fakeRunner{}, nil)
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := server.Start(context.Background()); err == nil {
		t.Fatalf("expected error on double start")
	}

	resp, err := http.Get("http://" + server.Addr() + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Test is running") {
		t.Fatalf("unexpected response %d: %s", resp.StatusCode, body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if server.Addr() != "" {
		t.Fatalf("expected no address after shutdown")
	}
}
