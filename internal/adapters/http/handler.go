package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PabloGalante/worksession/internal/app/evidence"
	"github.com/PabloGalante/worksession/internal/app/speech"
	"github.com/PabloGalante/worksession/internal/app/worksession"
	"github.com/PabloGalante/worksession/internal/domain"
	"github.com/PabloGalante/worksession/internal/observability"
)

// maxBodyBytes bounds request bodies; code snapshots are the largest payloads.
const maxBodyBytes = 1 << 20

type Server struct {
	sessions *worksession.Service
	evidence *evidence.Service
	speech   domain.SpeechSynthesizer
}

// NewServer wires the routes and the middleware chain.
func NewServer(
	sessions *worksession.Service,
	evidenceSvc *evidence.Service,
	speechSynth domain.SpeechSynthesizer,
) http.Handler {
	s := &Server{
		sessions: sessions,
		evidence: evidenceSvc,
		speech:   speechSynth,
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/stages", s.handleStages)

	// /sessions → create session (POST)
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/latest, /sessions/{id} and /sessions/{id}/{action}
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	mux.HandleFunc("/evidence-packs", s.handleEvidencePacks)
	mux.HandleFunc("/speech", s.handleSpeech)

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	GitHubURL   string `json:"githubUrl"`
	RoleTrack   string `json:"roleTrack"`
	Level       string `json:"level"`
	Duration    int    `json:"duration"`
	CandidateID string `json:"candidateId,omitempty"`
}

type createSessionResponse struct {
	SessionID     string          `json:"sessionId"`
	GitHubURL     string          `json:"githubUrl"`
	HasGitHubData bool            `json:"hasGitHubData"`
	Session       sessionResponse `json:"session"`
}

type sessionResponse struct {
	ID            string                 `json:"id"`
	CandidateID   string                 `json:"candidateId,omitempty"`
	GitHubURL     string                 `json:"githubUrl"`
	RoleTrack     string                 `json:"roleTrack"`
	Level         string                 `json:"level"`
	Duration      int                    `json:"duration"`
	Status        string                 `json:"status"`
	StartedAt     time.Time              `json:"startedAt"`
	EndedAt       *time.Time             `json:"endedAt"`
	HasGitHubData bool                   `json:"hasGitHubData"`
	Repository    *domain.RepositoryInfo `json:"repository,omitempty"`
}

type stageRecordResponse struct {
	Stage       string     `json:"stage"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

type eventResponse struct {
	ID        string              `json:"id"`
	SessionID string              `json:"sessionId"`
	Seq       int64               `json:"seq"`
	Type      string              `json:"eventType"`
	Content   domain.EventContent `json:"content"`
	CreatedAt time.Time           `json:"createdAt"`
}

type timelineResponse struct {
	Session sessionResponse       `json:"session"`
	Stages  []stageRecordResponse `json:"stages"`
	Events  []eventResponse       `json:"events"`
}

type addEventRequest struct {
	EventType string          `json:"eventType"`
	Content   json.RawMessage `json:"content"`
}

type addEventResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId"`
}

type nextPromptRequest struct {
	CurrentStage      string `json:"currentStage"`
	CandidateResponse string `json:"candidateResponse,omitempty"`
}

type nextPromptResponse struct {
	NextPrompt      string   `json:"nextPrompt"`
	StageComplete   bool     `json:"stageComplete"`
	SignalTags      []string `json:"signalTags"`
	CurrentStage    string   `json:"currentStage"`
	CompletedStages []string `json:"completedStages"`
	Progress        float64  `json:"progress"`
}

type stageProgressResponse struct {
	CurrentStage    string                `json:"currentStage"`
	CompletedStages []string              `json:"completedStages"`
	Progress        float64               `json:"progress"`
	Terminal        bool                  `json:"terminal"`
	Records         []stageRecordResponse `json:"records"`
}

type completeResponse struct {
	EvidencePackID string `json:"evidencePackId"`
	ShareID        string `json:"shareId"`
}

type evidencePackResponse struct {
	ID          string                     `json:"id"`
	SessionID   string                     `json:"sessionId"`
	ShareID     string                     `json:"shareId"`
	SummaryJSON domain.EvidencePackSummary `json:"summaryJson"`
	GeneratedAt time.Time                  `json:"generatedAt"`
	Session     sessionResponse            `json:"session"`
}

type stageInfoResponse struct {
	Stage      string `json:"stage"`
	Title      string `json:"title"`
	MinMinutes int    `json:"minMinutes"`
	MaxMinutes int    `json:"maxMinutes"`
}

type speechRequest struct {
	Text string `json:"text"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

// /sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions/latest, /sessions/{id} or /sessions/{id}/{action}
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := domain.SessionID(parts[0])

	if len(parts) == 1 {
		switch {
		case parts[0] == "latest" && r.Method == http.MethodGet:
			s.handleLatestSession(w, r)
		case r.Method == http.MethodGet:
			s.handleGetTimeline(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}

	var (
		method  string
		handler func(http.ResponseWriter, *http.Request, domain.SessionID)
	)
	switch parts[1] {
	case "stage":
		method, handler = http.MethodGet, s.handleStageProgress
	case "events":
		method, handler = http.MethodPost, s.handleAddEvent
	case "next-prompt":
		method, handler = http.MethodPost, s.handleNextPrompt
	case "complete":
		method, handler = http.MethodPost, s.handleComplete
	case "abandon":
		method, handler = http.MethodPost, s.handleAbandon
	default:
		http.NotFound(w, r)
		return
	}

	if r.Method != method {
		methodNotAllowed(w)
		return
	}
	handler(w, r, id)
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	infos := domain.Stages()
	out := make([]stageInfoResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, stageInfoResponse{
			Stage:      string(info.Stage),
			Title:      info.Title,
			MinMinutes: int(info.MinDuration.Minutes()),
			MaxMinutes: int(info.MaxDuration.Minutes()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": out})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := s.sessions.CreateSession(r.Context(), worksession.CreateSessionInput{
		GitHubURL:       req.GitHubURL,
		RoleTrack:       req.RoleTrack,
		Level:           req.Level,
		DurationMinutes: req.Duration,
		CandidateID:     req.CandidateID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:     string(out.Session.ID),
		GitHubURL:     out.Session.GitHubURL,
		HasGitHubData: out.Session.HasGitHubData(),
		Session:       toSessionResponse(out.Session),
	})
}

func (s *Server) handleLatestSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.LatestSession(r.Context(), r.URL.Query().Get("candidate_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var resp *sessionResponse
	if session != nil {
		sr := toSessionResponse(session)
		resp = &sr
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": resp})
}

func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	tl, err := s.sessions.GetTimeline(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	events := make([]eventResponse, 0, len(tl.Events))
	for _, ev := range tl.Events {
		events = append(events, toEventResponse(ev))
	}

	writeJSON(w, http.StatusOK, timelineResponse{
		Session: toSessionResponse(tl.Session),
		Stages:  toStageRecordsResponse(tl.Stages),
		Events:  events,
	})
}

func (s *Server) handleStageProgress(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	p, err := s.sessions.StageProgress(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stageProgressResponse{
		CurrentStage:    string(p.CurrentStage),
		CompletedStages: stageNames(p.CompletedStages),
		Progress:        p.Progress,
		Terminal:        p.Terminal,
		Records:         toStageRecordsResponse(p.Records),
	})
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req addEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	eventType, err := domain.ParseEventType(req.EventType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	content, err := domain.DecodeContent(eventType, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}

	event, err := s.sessions.RecordEvent(r.Context(), id, content)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, addEventResponse{Success: true, EventID: string(event.ID)})
}

func (s *Server) handleNextPrompt(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req nextPromptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := s.sessions.NextPrompt(r.Context(), worksession.NextPromptInput{
		SessionID:         id,
		CurrentStage:      req.CurrentStage,
		CandidateResponse: req.CandidateResponse,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, nextPromptResponse{
		NextPrompt:      out.NextPrompt,
		StageComplete:   out.StageComplete,
		SignalTags:      out.SignalTags,
		CurrentStage:    string(out.CurrentStage),
		CompletedStages: stageNames(out.CompletedStages),
		Progress:        out.Progress,
	})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	out, err := s.evidence.Complete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, completeResponse{
		EvidencePackID: string(out.EvidencePackID),
		ShareID:        string(out.ShareID),
	})
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	session, err := s.sessions.AbandonSession(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": toSessionResponse(session)})
}

// /evidence-packs?share_id= or ?session_id=
func (s *Server) handleEvidencePacks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	view, err := s.evidence.Get(r.Context(), evidence.Lookup{
		ShareID:   q.Get("share_id"),
		SessionID: q.Get("session_id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, evidencePackResponse{
		ID:          string(view.Pack.ID),
		SessionID:   string(view.Pack.SessionID),
		ShareID:     string(view.Pack.ShareID),
		SummaryJSON: view.Pack.Summary,
		GeneratedAt: view.Pack.GeneratedAt,
		Session:     toSessionResponse(view.Session),
	})
}

// /speech streams the spoken form of a prompt.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req speechRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	playback, err := speech.Acquire(r.Context(), s.speech, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer playback.Release()

	w.Header().Set("Content-Type", playback.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, playback); err != nil {
		observability.LoggerFromContext(r.Context()).Warn("speech stream interrupted", "error", err)
	}
}

// ─────────────────────────────────────────────
// Conversion helpers
// ─────────────────────────────────────────────

func toSessionResponse(s *domain.WorkSession) sessionResponse {
	return sessionResponse{
		ID:            string(s.ID),
		CandidateID:   string(s.CandidateID),
		GitHubURL:     s.GitHubURL,
		RoleTrack:     string(s.RoleTrack),
		Level:         string(s.Level),
		Duration:      s.DurationMinutes,
		Status:        string(s.Status),
		StartedAt:     s.StartedAt,
		EndedAt:       s.EndedAt,
		HasGitHubData: s.HasGitHubData(),
		Repository:    s.Repository,
	}
}

func toEventResponse(e *domain.Event) eventResponse {
	return eventResponse{
		ID:        string(e.ID),
		SessionID: string(e.SessionID),
		Seq:       e.Seq,
		Type:      string(e.Type()),
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
	}
}

func toStageRecordsResponse(records []domain.StageRecord) []stageRecordResponse {
	out := make([]stageRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, stageRecordResponse{
			Stage:       string(rec.Stage),
			StartedAt:   rec.StartedAt,
			CompletedAt: rec.CompletedAt,
		})
	}
	return out
}

func stageNames(stages []domain.Stage) []string {
	out := make([]string, 0, len(stages))
	for _, st := range stages {
		out = append(out, string(st))
	}
	return out
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "request body too large",
			})
			return false
		}
		badRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// writeError maps domain error classes to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err), domain.IsState(err):
		badRequest(w, err.Error())
	case domain.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrUpstream):
		observability.LoggerFromContext(r.Context()).Error("upstream failure", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": upstreamMessage(err),
		})
	default:
		internalError(w, r, err)
	}
}

// upstreamMessage keeps the operation name and drops provider details.
func upstreamMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), domain.ErrUpstream.Error()+": ")
	if i := strings.Index(msg, ": "); i > 0 {
		msg = msg[:i]
	}
	return msg
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("internal error", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
