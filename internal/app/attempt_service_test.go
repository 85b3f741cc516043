package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/attempt"
	"exam-attempt-service/internal/domain"
	"exam-attempt-service/internal/infra/memory"
)

func TestStartLoadsAndStoresSession(t *testing.T) {
	ctx := context.Background()
	service, store, _, _ := newTestService(t)

	started, err := service.Start(ctx, "alice", 9, yes{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.Quiz.Title != "Go basics" {
		t.Fatalf("unexpected quiz %+v", started.Quiz)
	}
	if started.Page.TotalElements != 3 || started.Page.Number != 1 {
		t.Fatalf("unexpected first page %+v", started.Page)
	}
	if started.Session.TotalTime() != 3*60 {
		t.Fatalf("expected 180s, got %d", started.Session.TotalTime())
	}
	if got, ok := store.Get(started.Session.ID()); !ok || got != started.Session {
		t.Fatalf("expected stored session")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored session, got %d", store.Len())
	}

	service.End(started.Session.ID())
	if _, ok := store.Get(started.Session.ID()); ok {
		t.Fatalf("expected session gone")
	}
	if started.Session.State() != attempt.StateClosed {
		t.Fatalf("expected closed session, got %s", started.Session.State())
	}
}

func TestStartUnknownQuizKeepsNothing(t *testing.T) {
	service, store, _, _ := newTestService(t)

	_, err := service.Start(context.Background(), "alice", 404, yes{})
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	var loadErr *app.LoadError
	if !errors.As(err, &loadErr) || loadErr.MessageKey != domain.MsgQuizLoadError {
		t.Fatalf("expected quiz load error key, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no session, got %d", store.Len())
	}
}

func TestSubmitArchivesAttempt(t *testing.T) {
	ctx := context.Background()
	service, _, archive, backend := newTestService(t)

	started, err := service.Start(ctx, "alice", 9, yes{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	s := started.Session
	if err := s.Answer(ctx, 1, "4"); err != nil {
		t.Fatalf("answer failed: %v", err)
	}

	result, err := s.Submit(ctx)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.CorrectAnswers != 1 || result.Attempted != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if backend.Submissions() != 1 {
		t.Fatalf("expected one backend submission, got %d", backend.Submissions())
	}

	history, err := service.History(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one archived attempt, got %d", len(history))
	}
	rec := history[0]
	if rec.SessionID != s.ID() || rec.QuizTitle != "Go basics" || rec.Forced {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(rec.Answers) != 3 || rec.Answers[1] != "4" {
		t.Fatalf("expected every question archived, got %v", rec.Answers)
	}
	if archive.count() != 1 {
		t.Fatalf("expected a single save, got %d", archive.count())
	}
}

func TestSubmitPublishesWithoutArchive(t *testing.T) {
	ctx := context.Background()
	backend := sampleBackend()
	publisher := &fakeArchive{}
	service := app.NewAttemptService(memory.NewSessionStore(), memory.NewQuizRepository(backend, time.Minute), backend,
		attempt.Settings{}, app.WithPublisher(publisher), app.WithClock(newManualClock()))

	started, err := service.Start(ctx, "alice", 9, yes{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := started.Session.Submit(ctx); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if publisher.count() != 1 || publisher.last().Username != "alice" {
		t.Fatalf("expected one published attempt")
	}
}

func TestForcedSubmissionIsArchivedAsForced(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	backend := sampleBackend()
	archive := &fakeArchive{}
	service := app.NewAttemptService(memory.NewSessionStore(), memory.NewQuizRepository(backend, time.Minute), backend,
		attempt.Settings{PageSize: 7, MinutesPerQuestion: 1},
		app.WithArchive(archive), app.WithClock(clock), app.WithJournal(memory.NewJournal()))

	started, err := service.Start(ctx, "alice", 9, yes{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	events, cancel := started.Session.Subscribe()
	defer cancel()

	for i := 0; i < started.Session.TotalTime(); i++ {
		clock.ch <- time.Now()
	}
	for ev := range events {
		if ev.Type == attempt.EventResult {
			if !ev.Payload.(attempt.ResultPayload).Forced {
				t.Fatalf("expected forced result")
			}
			break
		}
	}
	if archive.count() != 1 || !archive.last().Forced {
		t.Fatalf("expected forced archive record")
	}
}

func TestJournalResumesAcrossSessions(t *testing.T) {
	ctx := context.Background()
	backend := sampleBackend()
	journal := memory.NewJournal()
	service := app.NewAttemptService(memory.NewSessionStore(), memory.NewQuizRepository(backend, time.Minute), backend,
		attempt.Settings{}, app.WithJournal(journal))

	first, err := service.Start(ctx, "alice", 9, yes{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_ = first.Session.Answer(ctx, 2, "2")
	service.End(first.Session.ID())

	second, err := service.Start(ctx, "alice", 9, yes{})
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer service.End(second.Session.ID())
	if got := second.Session.Answers()[2]; got != "2" {
		t.Fatalf("expected resumed answer, got %q", got)
	}

	other, err := service.Start(ctx, "bob", 9, yes{})
	if err != nil {
		t.Fatalf("start bob failed: %v", err)
	}
	defer service.End(other.Session.ID())
	if _, ok := other.Session.Answers()[2]; ok {
		t.Fatalf("journals must be per user")
	}
}

func TestResumeKeepsRemainingTime(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	backend := sampleBackend()
	service := app.NewAttemptService(memory.NewSessionStore(), memory.NewQuizRepository(backend, time.Minute), backend,
		attempt.Settings{PageSize: 7, MinutesPerQuestion: 1},
		app.WithJournal(memory.NewJournal()), app.WithClock(clock))

	first, err := service.Start(ctx, "alice", 9, yes{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := first.Session.Answer(ctx, 2, "2"); err != nil {
		t.Fatalf("answer failed: %v", err)
	}
	for i := 0; i < 170; i++ {
		clock.ch <- time.Now()
	}
	waitFor(t, func() bool { return first.Session.Remaining() == 10 })
	service.End(first.Session.ID())

	second, err := service.Start(ctx, "alice", 9, yes{})
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	defer service.End(second.Session.ID())
	if got := second.Session.Remaining(); got != 10 {
		t.Fatalf("expected resumed countdown at 10s, got %d", got)
	}
	if got := second.Session.Answers()[2]; got != "2" {
		t.Fatalf("expected resumed answer, got %q", got)
	}
	if second.Session.TotalTime() != 180 {
		t.Fatalf("total time must stay 180s, got %d", second.Session.TotalTime())
	}
}

func TestManualResubmitAfterFailedForcedSubmission(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	backend := &flakyBackend{StaticBackend: sampleBackend(), failures: 2}
	archive := &fakeArchive{}
	service := app.NewAttemptService(memory.NewSessionStore(), memory.NewQuizRepository(backend, time.Minute), backend,
		attempt.Settings{PageSize: 7, MinutesPerQuestion: 1},
		app.WithArchive(archive), app.WithClock(clock))

	started, err := service.Start(ctx, "alice", 9, yes{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer service.End(started.Session.ID())
	events, cancel := started.Session.Subscribe()
	defer cancel()

	for i := 0; i < started.Session.TotalTime(); i++ {
		clock.ch <- time.Now()
	}
	for ev := range events {
		if ev.Type == attempt.EventError {
			break
		}
	}
	waitFor(t, func() bool { return started.Session.State() == attempt.StateReady })
	if archive.count() != 0 {
		t.Fatalf("failed submissions must not be archived")
	}

	if _, err := started.Session.Submit(ctx); err != nil {
		t.Fatalf("manual resubmit failed: %v", err)
	}
	if archive.count() != 1 || archive.last().Forced {
		t.Fatalf("expected one manual archive record, got %d", archive.count())
	}
}

func TestStartWithoutQuestionsDropsCachedQuiz(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewStaticBackend(domain.User{ID: 5, Username: "alice"})
	quiz := domain.Quiz{ID: 9, Title: "Go basics", MaxMarks: 30, Active: true}
	backend.AddQuiz(quiz, nil)
	loader := &countingLoader{StaticBackend: backend}
	service := app.NewAttemptService(memory.NewSessionStore(), memory.NewQuizRepository(loader, time.Minute), backend,
		attempt.Settings{}, app.WithClock(newManualClock()))

	_, err := service.Start(ctx, "alice", 9, yes{})
	if !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions, got %v", err)
	}

	backend.AddQuiz(quiz, sampleBackendQuestions())
	started, err := service.Start(ctx, "alice", 9, yes{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer service.End(started.Session.ID())
	if loader.count() != 2 {
		t.Fatalf("expected quiz metadata reloaded, loader calls %d", loader.count())
	}
	if started.Quiz.NumberOfQuestions != 3 {
		t.Fatalf("expected fresh metadata, got %+v", started.Quiz)
	}
}

func TestCatalogPassThrough(t *testing.T) {
	ctx := context.Background()
	service, _, _, _ := newTestService(t)

	counts, err := service.Categories(ctx)
	if err != nil || len(counts) != 1 {
		t.Fatalf("categories: %v %+v", err, counts)
	}
	quizzes, err := service.QuizzesOfCategory(ctx, 3)
	if err != nil || len(quizzes) != 1 {
		t.Fatalf("quizzes: %v %+v", err, quizzes)
	}
	if _, err := service.LastReview(ctx); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected no review before any attempt, got %v", err)
	}
}

func TestHistoryWithoutArchive(t *testing.T) {
	backend := sampleBackend()
	service := app.NewAttemptService(memory.NewSessionStore(), memory.NewQuizRepository(backend, time.Minute), backend, attempt.Settings{})
	if _, err := service.History(context.Background(), "alice", 5); !errors.Is(err, app.ErrNoArchive) {
		t.Fatalf("expected ErrNoArchive, got %v", err)
	}
}

func newTestService(t *testing.T) (*app.AttemptService, *memory.SessionStore, *fakeArchive, *memory.StaticBackend) {
	t.Helper()
	backend := sampleBackend()
	store := memory.NewSessionStore()
	archive := &fakeArchive{}
	service := app.NewAttemptService(store, memory.NewQuizRepository(backend, time.Minute), backend,
		attempt.Settings{PageSize: 7, MinutesPerQuestion: 1},
		app.WithArchive(archive), app.WithClock(newManualClock()))
	return service, store, archive, backend
}

func sampleBackend() *memory.StaticBackend {
	b := memory.NewStaticBackend(domain.User{ID: 5, Username: "alice"})
	b.AddQuiz(domain.Quiz{ID: 9, Title: "Go basics", MaxMarks: 30, Active: true, Category: &domain.Category{ID: 3, Title: "Go"}},
		sampleBackendQuestions())
	return b
}

func sampleBackendQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Content: "2+2?", Option1: "3", Option2: "4", Option3: "5", Option4: "6", Answer: "4"},
		{ID: 2, Content: "len(\"go\")?", Option1: "1", Option2: "2", Option3: "3", Option4: "4", Answer: "2"},
		{ID: 3, Content: "zero value of int?", Option1: "0", Option2: "nil", Option3: "1", Option4: "-1", Answer: "0"},
	}
}

// flakyBackend fails the first failures submissions.
type flakyBackend struct {
	*memory.StaticBackend
	mu       sync.Mutex
	failures int
}

func (b *flakyBackend) SubmitQuiz(ctx context.Context, answered []domain.Question) (domain.SubmissionResult, error) {
	b.mu.Lock()
	if b.failures > 0 {
		b.failures--
		b.mu.Unlock()
		return domain.SubmissionResult{}, errors.New("backend unavailable")
	}
	b.mu.Unlock()
	return b.StaticBackend.SubmitQuiz(ctx, answered)
}

type countingLoader struct {
	*memory.StaticBackend
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.StaticBackend.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type yes struct{}

func (yes) Confirm(context.Context, string, string) (bool, error) { return true, nil }

type fakeArchive struct {
	mu      sync.Mutex
	records []domain.AttemptRecord
}

func (a *fakeArchive) SaveAttempt(_ context.Context, rec domain.AttemptRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *fakeArchive) ListAttempts(_ context.Context, username string, limit int) ([]domain.AttemptRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AttemptRecord
	for i := len(a.records) - 1; i >= 0 && len(out) < limit; i-- {
		if a.records[i].Username == username {
			out = append(out, a.records[i])
		}
	}
	return out, nil
}

func (a *fakeArchive) PublishAttempt(ctx context.Context, rec domain.AttemptRecord) error {
	return a.SaveAttempt(ctx, rec)
}

func (a *fakeArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

func (a *fakeArchive) last() domain.AttemptRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.records[len(a.records)-1]
}

type manualClock struct{ ch chan time.Time }

func newManualClock() *manualClock { return &manualClock{ch: make(chan time.Time)} }

func (c *manualClock) NewTicker(time.Duration) attempt.Ticker { return manualTicker{ch: c.ch} }

type manualTicker struct{ ch chan time.Time }

func (t manualTicker) C() <-chan time.Time { return t.ch }
func (t manualTicker) Stop() {}
