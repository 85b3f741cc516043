package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exam-attempt-service/internal/attempt"
	"exam-attempt-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionRepository abstracts where live attempt sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *attempt.Session)
	Get(sessionID string) (*attempt.Session, bool)
	Delete(sessionID string)
}

// QuizRepository loads quiz metadata (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID int64) (domain.Quiz, error)
	Invalidate(ctx context.Context, quizID int64) error
}

// AttemptArchive keeps graded attempts after their session is gone.
type AttemptArchive interface {
	SaveAttempt(ctx context.Context, record domain.AttemptRecord) error
	ListAttempts(ctx context.Context, username string, limit int) ([]domain.AttemptRecord, error)
}

// ResultPublisher announces graded attempts to other services.
type ResultPublisher interface {
	PublishAttempt(ctx context.Context, record domain.AttemptRecord) error
}

// Backend is the slice of the exam REST API the service uses.
type Backend interface {
	attempt.QuestionSource
	attempt.Submitter
	ActiveQuizCounts(ctx context.Context) ([]domain.CategoryQuizCount, error)
	ActiveQuizzes(ctx context.Context, categoryID int64) ([]domain.Quiz, error)
	CurrentUser(ctx context.Context) (domain.User, error)
	LastAttempt(ctx context.Context, userID int64) (domain.AttemptReview, error)
}

// AttemptService contains the quiz-taking use cases.
type AttemptService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	backend  Backend
	settings attempt.Settings

	journal   attempt.Journal
	archive   AttemptArchive
	publisher ResultPublisher
	clock     attempt.Clock
	newID     func() string
	now       func() time.Time
}

// Option customises an AttemptService.
type Option func(*AttemptService)

// WithJournal mirrors answers so a reconnecting test-taker keeps them.
func WithJournal(j attempt.Journal) Option { return func(s *AttemptService) { s.journal = j } }

// WithArchive records every graded attempt.
func WithArchive(a AttemptArchive) Option { return func(s *AttemptService) { s.archive = a } }

// WithPublisher announces every graded attempt.
func WithPublisher(p ResultPublisher) Option { return func(s *AttemptService) { s.publisher = p } }

// WithClock drives session countdowns; tests pass a manual clock.
func WithClock(c attempt.Clock) Option { return func(s *AttemptService) { s.clock = c } }

// WithIDs overrides session id generation.
func WithIDs(newID func() string) Option { return func(s *AttemptService) { s.newID = newID } }

func NewAttemptService(store SessionRepository, quizzes QuizRepository, backend Backend, settings attempt.Settings, opts ...Option) *AttemptService {
	s := &AttemptService{
		sessions: store,
		quizzes:  quizzes,
		backend:  backend,
		settings: settings,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadError reports which step of starting an attempt failed, as the
// translation key the browser shows.
type LoadError struct {
	MessageKey string
	Err        error
}

func (e *LoadError) Error() string { return e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// Started describes a freshly loaded attempt.
type Started struct {
	Session *attempt.Session
	Quiz    domain.Quiz
	Page    attempt.PageView
}

// Start opens an attempt for username on quizID and loads its questions.
// If loading fails nothing is kept and the caller may simply try again.
func (s *AttemptService) Start(ctx context.Context, username string, quizID int64, confirmer attempt.Confirmer) (Started, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Started{}, &LoadError{MessageKey: domain.MsgQuizLoadError, Err: fmt.Errorf("load quiz %d: %w", quizID, err)}
	}

	sessionID := s.newID()
	submitter := &archivingSubmitter{
		next:      s.backend,
		archive:   s.archive,
		publisher: s.publisher,
		now:       s.now,
		record: domain.AttemptRecord{
			SessionID: sessionID,
			Username:  username,
			QuizID:    quizID,
			QuizTitle: quiz.Title,
		},
	}
	session := attempt.NewSession(ctx, sessionID, quizID, s.settings, attempt.Deps{
		Questions:  s.backend,
		Submitter:  submitter,
		Confirmer:  confirmer,
		Journal:    s.journal,
		JournalKey: JournalKey(username, quizID),
		Clock:      s.clock,
	})

	page, err := session.Load(ctx)
	if err != nil {
		session.Close()
		if errors.Is(err, domain.ErrQuizNotFound) || errors.Is(err, domain.ErrNoQuestions) {
			// cached metadata outlived the quiz or its questions
			if ierr := s.quizzes.Invalidate(ctx, quizID); ierr != nil {
				log.Warn().Err(ierr).Int64("quizId", quizID).Msg("invalidate quiz metadata")
			}
		}
		return Started{}, &LoadError{MessageKey: domain.MsgQuestionsLoadError, Err: err}
	}
	s.sessions.Put(session)
	log.Info().Str("sessionId", sessionID).Str("user", username).Int64("quizId", quizID).Msg("attempt started")
	return Started{Session: session, Quiz: quiz, Page: page}, nil
}

// End tears a session down when the test-taker navigates away.
func (s *AttemptService) End(sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(sessionID)
}

// Quiz returns cached quiz metadata.
func (s *AttemptService) Quiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, quizID)
}

// Categories lists categories that have active quizzes.
func (s *AttemptService) Categories(ctx context.Context) ([]domain.CategoryQuizCount, error) {
	return s.backend.ActiveQuizCounts(ctx)
}

// QuizzesOfCategory lists the active quizzes of one category.
func (s *AttemptService) QuizzesOfCategory(ctx context.Context, categoryID int64) ([]domain.Quiz, error) {
	return s.backend.ActiveQuizzes(ctx, categoryID)
}

// LastReview fetches the backend's review of the caller's latest attempt.
func (s *AttemptService) LastReview(ctx context.Context) (domain.AttemptReview, error) {
	user, err := s.backend.CurrentUser(ctx)
	if err != nil {
		return domain.AttemptReview{}, fmt.Errorf("current user: %w", err)
	}
	return s.backend.LastAttempt(ctx, user.ID)
}

// ErrNoArchive is returned when history is requested without an archive configured.
var ErrNoArchive = errors.New("attempt archive not configured")

// History lists locally archived attempts for username, newest first.
func (s *AttemptService) History(ctx context.Context, username string, limit int) ([]domain.AttemptRecord, error) {
	if s.archive == nil {
		return nil, ErrNoArchive
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.archive.ListAttempts(ctx, username, limit)
}

// JournalKey names the answer journal of one user's attempt on one quiz.
func JournalKey(username string, quizID int64) string {
	return fmt.Sprintf("%s:%d", username, quizID)
}

// archivingSubmitter forwards to the backend, then archives and announces
// successful results. Archive or publish failures never fail the submission.
type archivingSubmitter struct {
	next      attempt.Submitter
	archive   AttemptArchive
	publisher ResultPublisher
	now       func() time.Time
	record    domain.AttemptRecord
}

func (a *archivingSubmitter) SubmitQuiz(ctx context.Context, answered []domain.Question) (domain.SubmissionResult, error) {
	result, err := a.next.SubmitQuiz(ctx, answered)
	if err != nil || (a.archive == nil && a.publisher == nil) {
		return result, err
	}

	record := a.record
	record.Result = result
	record.Forced = attempt.IsForced(ctx)
	record.SubmittedAt = a.now()
	record.Answers = make(map[int64]string, len(answered))
	for _, q := range answered {
		record.Answers[q.ID] = q.GivenAnswer
	}
	if a.archive != nil {
		if err := a.archive.SaveAttempt(ctx, record); err != nil {
			log.Warn().Err(err).Str("sessionId", record.SessionID).Msg("archive attempt")
		}
	}
	if a.publisher != nil {
		if err := a.publisher.PublishAttempt(ctx, record); err != nil {
			log.Warn().Err(err).Str("sessionId", record.SessionID).Msg("publish attempt")
		}
	}
	return result, nil
}
