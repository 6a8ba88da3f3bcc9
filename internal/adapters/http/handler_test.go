package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpadapter "github.com/PabloGalante/worksession/internal/adapters/http"
	"github.com/PabloGalante/worksession/internal/adapters/llm"
	speechadapter "github.com/PabloGalante/worksession/internal/adapters/speech"
	"github.com/PabloGalante/worksession/internal/adapters/storage/memory"
	"github.com/PabloGalante/worksession/internal/app/evidence"
	"github.com/PabloGalante/worksession/internal/app/worksession"
	"github.com/PabloGalante/worksession/internal/domain"
)

type brokenGenerator struct{}

func (brokenGenerator) NextPrompt(ctx context.Context, req domain.PromptRequest) (*domain.PromptResult, error) {
	return nil, errors.New("vertex: 503 backend unavailable")
}

func newTestServer(t *testing.T, gen domain.PromptGenerator) http.Handler {
	t.Helper()

	mock := llm.NewMockLLM()
	if gen == nil {
		gen = mock
	}
	store := memory.NewStore()

	sessions := worksession.NewService(store, gen, nil)
	evidenceSvc := evidence.NewService(store, mock)

	return httpadapter.NewServer(sessions, evidenceSvc, speechadapter.NewMockSynthesizer())
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, w.Body.String())
	}
}

func createSession(t *testing.T, srv http.Handler) string {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/sessions",
		`{"githubUrl":"https://github.com/x","roleTrack":"backend","level":"mid","duration":15}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		SessionID     string `json:"sessionId"`
		GitHubURL     string `json:"githubUrl"`
		HasGitHubData bool   `json:"hasGitHubData"`
	}
	decode(t, w, &resp)
	if resp.SessionID == "" || resp.GitHubURL != "https://github.com/x" || resp.HasGitHubData {
		t.Fatalf("unexpected create response %+v", resp)
	}
	return resp.SessionID
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)
	w := do(t, srv, http.MethodGet, "/healthz", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestFramingScenario(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv)

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/events",
		`{"eventType":"PROMPT","content":{"text":"How would you restate the problem?","stage":"framing"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add event: expected 201, got %d, body=%s", w.Code, w.Body.String())
	}
	var added struct {
		Success bool   `json:"success"`
		EventID string `json:"eventId"`
	}
	decode(t, w, &added)
	if !added.Success || added.EventID == "" {
		t.Fatalf("unexpected add event response %+v", added)
	}

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/next-prompt",
		`{"currentStage":"framing","candidateResponse":"I'd clarify constraints first"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("next prompt: expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	var next struct {
		NextPrompt      string   `json:"nextPrompt"`
		StageComplete   bool     `json:"stageComplete"`
		SignalTags      []string `json:"signalTags"`
		CurrentStage    string   `json:"currentStage"`
		CompletedStages []string `json:"completedStages"`
		Progress        float64  `json:"progress"`
	}
	decode(t, w, &next)
	if !next.StageComplete || next.CurrentStage != "approach" || len(next.SignalTags) == 0 {
		t.Fatalf("expected framing complete and approach current, got %+v", next)
	}

	w = do(t, srv, http.MethodGet, "/sessions/"+id+"/stage", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"currentStage":"approach"`) {
		t.Fatalf("stage progress: got %d %s", w.Code, w.Body.String())
	}

	// Stale stage from a client that missed the advance.
	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/next-prompt", `{"currentStage":"framing"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for stage mismatch, got %d", w.Code)
	}
}

func TestCompleteAndReadEvidencePack(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv)

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/events",
		`{"eventType":"RESPONSE","content":{"text":"I'd clarify constraints first","stage":"framing"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add event: got %d, body=%s", w.Code, w.Body.String())
	}

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/complete", "")
	if w.Code != http.StatusOK {
		t.Fatalf("complete: got %d, body=%s", w.Code, w.Body.String())
	}
	var done struct {
		EvidencePackID string `json:"evidencePackId"`
		ShareID        string `json:"shareId"`
	}
	decode(t, w, &done)

	type packResponse struct {
		ID          string                     `json:"id"`
		SessionID   string                     `json:"sessionId"`
		ShareID     string                     `json:"shareId"`
		SummaryJSON domain.EvidencePackSummary `json:"summaryJson"`
		Session     struct {
			Status string `json:"status"`
		} `json:"session"`
	}

	var byShare, bySession packResponse
	w = do(t, srv, http.MethodGet, "/evidence-packs?share_id="+done.ShareID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get by share id: got %d, body=%s", w.Code, w.Body.String())
	}
	decode(t, w, &byShare)

	w = do(t, srv, http.MethodGet, "/evidence-packs?session_id="+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get by session id: got %d, body=%s", w.Code, w.Body.String())
	}
	decode(t, w, &bySession)

	if byShare.ID != done.EvidencePackID || byShare.SessionID != id || byShare.Session.Status != "completed" {
		t.Fatalf("unexpected pack %+v", byShare)
	}
	a, _ := json.Marshal(byShare.SummaryJSON)
	b, _ := json.Marshal(bySession.SummaryJSON)
	if !bytes.Equal(a, b) {
		t.Fatalf("summaries differ:\n%s\n%s", a, b)
	}

	w = do(t, srv, http.MethodPost, "/sessions/"+id+"/events",
		`{"eventType":"RESPONSE","content":{"text":"too late","stage":"review"}}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 after completion, got %d", w.Code)
	}
}

func TestEvidencePackLookupErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	cases := []struct {
		path string
		code int
	}{
		{"/evidence-packs", http.StatusBadRequest},
		{"/evidence-packs?share_id=a&session_id=b", http.StatusBadRequest},
		{"/evidence-packs?share_id=nope", http.StatusNotFound},
	}
	for _, c := range cases {
		w := do(t, srv, http.MethodGet, c.path, "")
		if w.Code != c.code {
			t.Fatalf("%s: expected %d, got %d", c.path, c.code, w.Code)
		}
		if strings.Contains(w.Body.String(), "session\"") {
			t.Fatalf("%s: error body leaks session data: %s", c.path, w.Body.String())
		}
	}
}

func TestAddEventErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	id := createSession(t, srv)

	cases := []struct {
		name string
		path string
		body string
		code int
	}{
		{"unknown session", "/sessions/missing/events", `{"eventType":"RESPONSE","content":{"text":"x","stage":"framing"}}`, http.StatusNotFound},
		{"unknown type", "/sessions/" + id + "/events", `{"eventType":"CHAT","content":{"text":"x"}}`, http.StatusBadRequest},
		{"wrong shape", "/sessions/" + id + "/events", `{"eventType":"CODE_SNAPSHOT","content":{"text":"x","stage":"build"}}`, http.StatusBadRequest},
		{"bad json", "/sessions/" + id + "/events", `{`, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, c.path, c.body)
			if w.Code != c.code {
				t.Fatalf("expected %d, got %d, body=%s", c.code, w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateSessionRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/sessions",
		`{"githubUrl":"https://github.com/x/y","roleTrack":"backend","level":"mid","duration":25}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = do(t, srv, http.MethodGet, "/sessions", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestNextPromptUpstreamFailure(t *testing.T) {
	srv := newTestServer(t, brokenGenerator{})
	id := createSession(t, srv)

	w := do(t, srv, http.MethodPost, "/sessions/"+id+"/next-prompt",
		`{"currentStage":"framing","candidateResponse":"hello"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var body map[string]string
	decode(t, w, &body)
	if body["error"] != "failed to get next prompt" {
		t.Fatalf("unexpected error message %q", body["error"])
	}
}

func TestLatestSessionAndAbandon(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/sessions/latest?candidate_id=c-1", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"session":null}` {
		t.Fatalf("expected null session, got %d %s", w.Code, w.Body.String())
	}

	w = do(t, srv, http.MethodPost, "/sessions",
		`{"githubUrl":"https://github.com/acme/widgets","roleTrack":"frontend","level":"junior","duration":60,"candidateId":"c-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d", w.Code)
	}

	var latest struct {
		Session struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"session"`
	}
	w = do(t, srv, http.MethodGet, "/sessions/latest?candidate_id=c-1", "")
	decode(t, w, &latest)
	if latest.Session.ID == "" || latest.Session.Status != "active" {
		t.Fatalf("unexpected latest session %s", w.Body.String())
	}

	w = do(t, srv, http.MethodPost, "/sessions/"+latest.Session.ID+"/abandon", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"abandoned"`) {
		t.Fatalf("abandon: got %d %s", w.Code, w.Body.String())
	}

	w = do(t, srv, http.MethodPost, "/sessions/"+latest.Session.ID+"/complete", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("complete after abandon: expected 400, got %d", w.Code)
	}

	w = do(t, srv, http.MethodGet, "/sessions/"+latest.Session.ID, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"subtype":"session_started"`) {
		t.Fatalf("timeline: got %d %s", w.Code, w.Body.String())
	}
}

func TestStagesAndSpeech(t *testing.T) {
	srv := newTestServer(t, nil)

	w := do(t, srv, http.MethodGet, "/stages", "")
	var stages struct {
		Stages []struct {
			Stage      string `json:"stage"`
			MinMinutes int    `json:"minMinutes"`
			MaxMinutes int    `json:"maxMinutes"`
		} `json:"stages"`
	}
	decode(t, w, &stages)
	if len(stages.Stages) != 4 || stages.Stages[2].Stage != "build" || stages.Stages[2].MaxMinutes != 30 {
		t.Fatalf("unexpected stages %+v", stages)
	}

	w = do(t, srv, http.MethodPost, "/speech", `{"text":"Walk me through your approach."}`)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "audio/wav" {
		t.Fatalf("speech: got %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("RIFF")) {
		t.Fatalf("expected a WAV body")
	}

	w = do(t, srv, http.MethodPost, "/speech", `{"text":""}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty speech text: expected 400, got %d", w.Code)
	}
}
