// Package storetest holds behaviour tests shared by every domain.Store implementation.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/PabloGalante/worksession/internal/domain"
)

// Factory returns an empty store. Cleanup is the factory's responsibility.
type Factory func(t *testing.T) domain.Store

// Run executes the shared store suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("EventsRoundTripInOrder", func(t *testing.T) { testEventsRoundTrip(t, newStore(t)) })
	t.Run("EventsAreNotShared", func(t *testing.T) { testEventsAreNotShared(t, newStore(t)) })
	t.Run("AppendRequiresActiveSession", func(t *testing.T) { testAppendRequiresActive(t, newStore(t)) })
	t.Run("AdvanceStage", func(t *testing.T) { testAdvanceStage(t, newStore(t)) })
	t.Run("CompleteKeepsStageCompletion", func(t *testing.T) { testCompleteKeepsStageCompletion(t, newStore(t)) })
	t.Run("CompleteOnce", func(t *testing.T) { testCompleteOnce(t, newStore(t)) })
	t.Run("ConcurrentComplete", func(t *testing.T) { testConcurrentComplete(t, newStore(t)) })
	t.Run("AbandonIsTerminal", func(t *testing.T) { testAbandon(t, newStore(t)) })
	t.Run("ListByCandidate", func(t *testing.T) { testListByCandidate(t, newStore(t)) })
	t.Run("EvidenceNotFound", func(t *testing.T) { testEvidenceNotFound(t, newStore(t)) })
}

var base = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func newSession(id string, startedAt time.Time) *domain.WorkSession {
	return &domain.WorkSession{
		ID:              domain.SessionID(id),
		CandidateID:     "cand-1",
		GitHubURL:       "https://github.com/x",
		RoleTrack:       domain.RoleTrackBackend,
		Level:           domain.LevelMid,
		DurationMinutes: 15,
		Status:          domain.StatusActive,
		StartedAt:       startedAt,
	}
}

func mustCreate(t *testing.T, store domain.Store, sess *domain.WorkSession) {
	t.Helper()
	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
}

func newPack(sessionID domain.SessionID, n int) *domain.EvidencePack {
	return &domain.EvidencePack{
		ID:        domain.EvidencePackID(fmt.Sprintf("pack-%s-%d", sessionID, n)),
		SessionID: sessionID,
		ShareID:   domain.ShareID(fmt.Sprintf("share-%s-%d", sessionID, n)),
		Summary: domain.EvidencePackSummary{
			RoleLevelEstimate:   "backend / mid",
			Confidence:          domain.ConfidenceMedium,
			Strengths:           []string{"clarifies constraints"},
			Risks:               []string{},
			DecisionLog:         []domain.DecisionLogEntry{{Stage: domain.StageFraming, Decision: "clarify scope"}},
			Observations:        []string{},
			RecommendedNextStep: "advance to onsite",
			Highlights:          []string{},
		},
		GeneratedAt: base.Add(time.Hour),
	}
}

func testCreateAndGet(t *testing.T, store domain.Store) {
	ctx := context.Background()
	sess := newSession("s-create", base)
	sess.Repository = &domain.RepositoryInfo{Owner: "x", Name: "y", FullName: "x/y", Topics: []string{"go"}, Stars: 3}
	mustCreate(t, store, sess)

	got, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != domain.StatusActive || got.GitHubURL != sess.GitHubURL || got.DurationMinutes != 15 {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.StartedAt.Equal(base) {
		t.Fatalf("expected startedAt %v, got %v", base, got.StartedAt)
	}
	if !reflect.DeepEqual(got.Repository, sess.Repository) {
		t.Fatalf("expected repository %+v, got %+v", sess.Repository, got.Repository)
	}

	records, err := store.ListStageRecords(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListStageRecords failed: %v", err)
	}
	if len(records) != 1 || records[0].Stage != domain.FirstStage || !records[0].Open() {
		t.Fatalf("expected one open framing record, got %+v", records)
	}

	if _, err := store.GetSession(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func testEventsRoundTrip(t *testing.T, store domain.Store) {
	ctx := context.Background()
	sess := newSession("s-events", base)
	mustCreate(t, store, sess)

	contents := []domain.EventContent{
		domain.PromptContent{Text: "What would you clarify?", Stage: domain.StageFraming, Tags: []string{"scope"}},
		domain.ResponseContent{Text: "I'd clarify constraints first", Stage: domain.StageFraming},
		domain.CodeSnapshotContent{Code: "package main\n", Language: "go", Stage: domain.StageBuild},
		domain.SystemContent{Message: "timer paused", Subtype: "timer"},
		domain.ResponseContent{Text: "I'd clarify constraints first", Stage: domain.StageFraming},
	}
	for i, c := range contents {
		ev := &domain.Event{
			ID:        domain.EventID(fmt.Sprintf("e-%d", i)),
			SessionID: sess.ID,
			Content:   c,
			// Equal timestamps must still come back in append order.
			CreatedAt: base.Add(time.Minute),
		}
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent %d failed: %v", i, err)
		}
		if ev.Seq != int64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, ev.Seq)
		}
	}

	got, err := store.ListEvents(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(got) != len(contents) {
		t.Fatalf("expected %d events, got %d", len(contents), len(got))
	}
	for i, ev := range got {
		if ev.ID != domain.EventID(fmt.Sprintf("e-%d", i)) {
			t.Fatalf("event %d out of order: %s", i, ev.ID)
		}
		if !reflect.DeepEqual(ev.Content, contents[i]) {
			t.Fatalf("event %d content changed: %#v != %#v", i, ev.Content, contents[i])
		}
	}
}

func testEventsAreNotShared(t *testing.T, store domain.Store) {
	ctx := context.Background()
	sess := newSession("s-shared", base)
	mustCreate(t, store, sess)

	tags := []string{"scope"}
	events := []*domain.Event{
		{ID: "e-tags", SessionID: sess.ID, Content: domain.PromptContent{Text: "Scope?", Stage: domain.StageFraming, Tags: tags}, CreatedAt: base},
		{ID: "e-empty", SessionID: sess.ID, Content: domain.PromptContent{Text: "Next?", Stage: domain.StageFraming, Tags: []string{}}, CreatedAt: base},
	}
	for _, ev := range events {
		if err := store.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
	}
	tags[0] = "changed-by-writer"

	got, err := store.ListEvents(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	got[0].Content.(domain.PromptContent).Tags[0] = "changed-by-reader"

	again, err := store.ListEvents(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if tag := again[0].Content.(domain.PromptContent).Tags[0]; tag != "scope" {
		t.Fatalf("stored event was mutated: tag %q", tag)
	}
	// Every backend reads an empty tag list back as nil.
	if tags := again[1].Content.(domain.PromptContent).Tags; tags != nil {
		t.Fatalf("expected nil tags, got %#v", tags)
	}
}

func testCompleteKeepsStageCompletion(t *testing.T, store domain.Store) {
	ctx := context.Background()
	sess := newSession("s-review", base)
	mustCreate(t, store, sess)

	stages := domain.Stages()
	for i, info := range stages {
		var to domain.Stage
		if i+1 < len(stages) {
			to = stages[i+1].Stage
		}
		if err := store.AdvanceStage(ctx, sess.ID, info.Stage, to, base.Add(time.Duration(i+1)*time.Minute)); err != nil {
			t.Fatalf("AdvanceStage(%s) failed: %v", info.Stage, err)
		}
	}
	if err := store.AdvanceStage(ctx, sess.ID, domain.StageReview, "", base.Add(time.Hour)); !errors.Is(err, domain.ErrStageMismatch) {
		t.Fatalf("expected closed review to reject another advance, got %v", err)
	}

	if _, err := store.CompleteSession(ctx, newPack(sess.ID, 1)); err != nil {
		t.Fatalf("CompleteSession failed: %v", err)
	}

	records, err := store.ListStageRecords(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListStageRecords failed: %v", err)
	}
	review := records[len(records)-1]
	want := base.Add(time.Duration(len(stages)) * time.Minute)
	if review.Stage != domain.StageReview || review.CompletedAt == nil || !review.CompletedAt.Equal(want) {
		t.Fatalf("expected review completed at %v, got %+v", want, review)
	}
}

func testAppendRequiresActive(t *testing.T, store domain.Store) {
	ctx := context.Background()

	missing := &domain.Event{ID: "e-missing", SessionID: "nope", Content: domain.SystemContent{Message: "x", Subtype: "y"}, CreatedAt: base}
	if err := store.AppendEvent(ctx, missing); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	sess := newSession("s-inactive", base)
	mustCreate(t, store, sess)
	if _, err := store.CompleteSession(ctx, newPack(sess.ID, 1)); err != nil {
		t.Fatalf("CompleteSession failed: %v", err)
	}

	ev := &domain.Event{ID: "e-late", SessionID: sess.ID, Content: domain.SystemContent{Message: "x", Subtype: "y"}, CreatedAt: base}
	if err := store.AppendEvent(ctx, ev); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	events, err := store.ListEvents(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events on inactive session, got %d", len(events))
	}
}

func testAdvanceStage(t *testing.T, store domain.Store) {
	ctx := context.Background()
	sess := newSession("s-stage", base)
	mustCreate(t, store, sess)

	if err := store.AdvanceStage(ctx, sess.ID, domain.StageApproach, domain.StageBuild, base); !errors.Is(err, domain.ErrStageMismatch) {
		t.Fatalf("expected ErrStageMismatch, got %v", err)
	}
	if err := store.AdvanceStage(ctx, sess.ID, domain.StageFraming, domain.StageApproach, base.Add(time.Minute)); err != nil {
		t.Fatalf("AdvanceStage failed: %v", err)
	}

	records, err := store.ListStageRecords(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListStageRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Open() || !records[1].Open() || records[1].Stage != domain.StageApproach {
		t.Fatalf("unexpected records: %+v", records)
	}

	seq := domain.RestoreSequencer(records)
	if seq.Current() != domain.StageApproach {
		t.Fatalf("expected approach, got %s", seq.Current())
	}
}

func testCompleteOnce(t *testing.T, store domain.Store) {
	ctx := context.Background()
	sess := newSession("s-complete", base)
	mustCreate(t, store, sess)

	first, err := store.CompleteSession(ctx, newPack(sess.ID, 1))
	if err != nil {
		t.Fatalf("CompleteSession failed: %v", err)
	}
	second, err := store.CompleteSession(ctx, newPack(sess.ID, 2))
	if err != nil {
		t.Fatalf("second CompleteSession failed: %v", err)
	}
	if second.ShareID != first.ShareID || second.ID != first.ID {
		t.Fatalf("expected the original pack back, got %s vs %s", second.ShareID, first.ShareID)
	}

	got, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != domain.StatusCompleted || got.EndedAt == nil {
		t.Fatalf("expected completed session with end time, got %+v", got)
	}

	byShare, err := store.GetEvidencePackByShareID(ctx, first.ShareID)
	if err != nil {
		t.Fatalf("GetEvidencePackByShareID failed: %v", err)
	}
	bySession, err := store.GetEvidencePackBySessionID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetEvidencePackBySessionID failed: %v", err)
	}
	if !reflect.DeepEqual(byShare.Summary, bySession.Summary) {
		t.Fatalf("summaries differ by lookup: %+v vs %+v", byShare.Summary, bySession.Summary)
	}
	if _, err := store.GetEvidencePackByShareID(ctx, "share-s-complete-2"); !errors.Is(err, domain.ErrEvidencePackNotFound) {
		t.Fatalf("discarded pack must not be readable, got %v", err)
	}

	records, err := store.ListStageRecords(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ListStageRecords failed: %v", err)
	}
	for _, r := range records {
		if r.Open() {
			t.Fatalf("stage %s left open after completion", r.Stage)
		}
	}
}

func testConcurrentComplete(t *testing.T, store domain.Store) {
	ctx := context.Background()
	sess := newSession("s-race", base)
	mustCreate(t, store, sess)

	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		shares = make(map[domain.ShareID]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			pack, err := store.CompleteSession(ctx, newPack(sess.ID, n))
			if err != nil {
				t.Errorf("CompleteSession %d failed: %v", n, err)
				return
			}
			mu.Lock()
			shares[pack.ShareID] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(shares) != 1 {
		t.Fatalf("expected exactly one evidence pack, got %d", len(shares))
	}
}

func testAbandon(t *testing.T, store domain.Store) {
	ctx := context.Background()
	sess := newSession("s-abandon", base)
	mustCreate(t, store, sess)

	got, err := store.AbandonSession(ctx, sess.ID, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("AbandonSession failed: %v", err)
	}
	if got.Status != domain.StatusAbandoned {
		t.Fatalf("expected abandoned, got %s", got.Status)
	}

	if _, err := store.AbandonSession(ctx, sess.ID, base); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	if _, err := store.CompleteSession(ctx, newPack(sess.ID, 1)); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("abandoned session must not complete, got %v", err)
	}
	if err := store.AdvanceStage(ctx, sess.ID, domain.StageFraming, domain.StageApproach, base); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("abandoned session must not advance, got %v", err)
	}
	ev := &domain.Event{ID: "e", SessionID: sess.ID, Content: domain.SystemContent{Message: "x", Subtype: "y"}, CreatedAt: base}
	if err := store.AppendEvent(ctx, ev); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
}

func testListByCandidate(t *testing.T, store domain.Store) {
	ctx := context.Background()
	older := newSession("s-old", base)
	newer := newSession("s-new", base.Add(time.Hour))
	other := newSession("s-other", base.Add(2*time.Hour))
	other.CandidateID = "cand-2"
	mustCreate(t, store, older)
	mustCreate(t, store, newer)
	mustCreate(t, store, other)

	got, err := store.ListSessionsByCandidate(ctx, "cand-1", 1)
	if err != nil {
		t.Fatalf("ListSessionsByCandidate failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != newer.ID {
		t.Fatalf("expected newest session first, got %+v", got)
	}

	none, err := store.ListSessionsByCandidate(ctx, "nobody", 1)
	if err != nil {
		t.Fatalf("ListSessionsByCandidate failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no sessions, got %d", len(none))
	}
}

func testEvidenceNotFound(t *testing.T, store domain.Store) {
	ctx := context.Background()
	if _, err := store.GetEvidencePackByShareID(ctx, "never-issued"); !errors.Is(err, domain.ErrEvidencePackNotFound) {
		t.Fatalf("expected ErrEvidencePackNotFound, got %v", err)
	}
	if _, err := store.GetEvidencePackBySessionID(ctx, "never-created"); !errors.Is(err, domain.ErrEvidencePackNotFound) {
		t.Fatalf("expected ErrEvidencePackNotFound, got %v", err)
	}
}
