package attempt

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"exam-attempt-service/internal/domain"
	"github.com/rs/zerolog/log"
)

// State is the lifecycle position of a session.
type State int

const (
	StateLoading State = iota
	StateReady
	StateSubmitting
	StateSubmitted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// QuestionSource fetches the question set of a quiz.
type QuestionSource interface {
	QuestionsOfQuiz(ctx context.Context, quizID int64) ([]domain.Question, error)
}

// Submitter grades an answered question set.
type Submitter interface {
	SubmitQuiz(ctx context.Context, answered []domain.Question) (domain.SubmissionResult, error)
}

// Confirmer asks the test-taker a yes/no question and waits for the reply.
type Confirmer interface {
	Confirm(ctx context.Context, messageKey, titleKey string) (bool, error)
}

// Progress is what a journal remembers of an interrupted attempt.
type Progress struct {
	Answers map[int64]string
	// Remaining is the countdown in seconds at the last save. It is only
	// meaningful when TimerSaved is set.
	Remaining  int
	TimerSaved bool
}

// Journal mirrors ledger writes and the countdown so an interrupted attempt
// can be resumed.
type Journal interface {
	Restore(ctx context.Context, key string) (Progress, error)
	Record(ctx context.Context, key string, questionID int64, answer string) error
	RecordRemaining(ctx context.Context, key string, seconds int) error
	Clear(ctx context.Context, key string) error
}

// timerSaveInterval is how often, in seconds, a running countdown is journalled.
const timerSaveInterval = 10

// Settings are constant for the life of a session.
type Settings struct {
	PageSize           int
	MinutesPerQuestion int
}

// Deps are the collaborators a session talks to. Journal, Clock and Rand are optional.
type Deps struct {
	Questions  QuestionSource
	Submitter  Submitter
	Confirmer  Confirmer
	Journal    Journal
	JournalKey string
	Clock      Clock
	Rand       *rand.Rand
}

// PageView is a display-ready page. Questions carry the ledger's answers and
// never the answer key.
type PageView struct {
	Number        int               `json:"number"`
	TotalPages    int               `json:"totalPages"`
	TotalElements int               `json:"totalElements"`
	PageSize      int               `json:"pageSize"`
	Questions     []domain.Question `json:"questions"`
}

// Session is one test-taker's pass through one quiz: load, shuffle, page,
// answer, count down and submit.
type Session struct {
	id       string
	quizID   int64
	settings Settings
	deps     Deps
	clock    Clock
	rnd      *rand.Rand

	// ctx outlives the request that created the session and ends on Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	loading     bool
	confirming  bool
	isShuffled  bool
	expired     bool
	shuffled    []domain.Question
	index       map[int64]struct{}
	ledger      *Ledger
	pager       *Pager
	countdown   *Countdown
	totalTime   int
	result      *domain.SubmissionResult
	subscribers map[chan Event]struct{}
}

// NewSession builds an unstarted session. Values carried by ctx (such as the
// caller's token) stay visible to background submissions.
func NewSession(ctx context.Context, id string, quizID int64, settings Settings, deps Deps) *Session {
	if settings.PageSize <= 0 {
		settings.PageSize = DefaultPageSize
	}
	if settings.MinutesPerQuestion <= 0 {
		settings.MinutesPerQuestion = 1
	}
	clock := deps.Clock
	if clock == nil {
		clock = RealClock()
	}
	rnd := deps.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	base, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Session{
		id:          id,
		quizID:      quizID,
		settings:    settings,
		deps:        deps,
		clock:       clock,
		rnd:         rnd,
		ctx:         base,
		cancel:      cancel,
		state:       StateLoading,
		ledger:      NewLedger(),
		subscribers: make(map[chan Event]struct{}),
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) QuizID() int64 { return s.quizID }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Expired reports whether the countdown ran out.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

func (s *Session) TotalTime() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalTime
}

// Remaining is the countdown value in seconds, 0 before load.
func (s *Session) Remaining() int {
	s.mu.Lock()
	cd := s.countdown
	s.mu.Unlock()
	if cd == nil {
		return 0
	}
	return cd.Remaining()
}

func (s *Session) Result() (domain.SubmissionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.SubmissionResult{}, false
	}
	return *s.result, true
}

// Answers returns a copy of the ledger.
func (s *Session) Answers() map[int64]string {
	return s.ledger.Snapshot()
}

// Shuffled returns a copy of the session's question order.
func (s *Session) Shuffled() []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Question, len(s.shuffled))
	copy(out, s.shuffled)
	return out
}

// Load fetches the questions and starts the attempt. On failure nothing is
// created and Load may be called again. Once the questions are shuffled a
// repeated Load keeps the existing order and timer.
func (s *Session) Load(ctx context.Context) (PageView, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return PageView{}, domain.ErrSessionClosed
	}
	if s.loading {
		s.mu.Unlock()
		return PageView{}, domain.ErrLoadInFlight
	}
	s.loading = true
	s.mu.Unlock()

	questions, err := s.deps.Questions.QuestionsOfQuiz(ctx, s.quizID)
	if err == nil && len(questions) == 0 {
		err = domain.ErrNoQuestions
	}

	var restored Progress
	if err == nil && s.deps.Journal != nil {
		var jerr error
		restored, jerr = s.deps.Journal.Restore(ctx, s.deps.JournalKey)
		if jerr != nil {
			log.Warn().Err(jerr).Str("sessionId", s.id).Msg("restore answer journal")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if s.state == StateClosed {
		return PageView{}, domain.ErrSessionClosed
	}
	if err != nil {
		s.publishLocked(errorEvent(domain.MsgQuestionsLoadError))
		log.Error().Err(err).Str("sessionId", s.id).Int64("quizId", s.quizID).Msg("load questions")
		return PageView{}, fmt.Errorf("load questions of quiz %d: %w", s.quizID, err)
	}
	if s.isShuffled {
		return s.viewLocked(), nil
	}

	s.shuffled = Shuffle(questions, s.rnd)
	s.isShuffled = true
	s.index = make(map[int64]struct{}, len(s.shuffled))
	for _, q := range s.shuffled {
		s.index[q.ID] = struct{}{}
	}

	s.pager = NewPager(len(s.shuffled), s.settings.PageSize)
	known := make(map[int64]string, len(restored.Answers))
	for id, answer := range restored.Answers {
		if _, ok := s.index[id]; ok {
			known[id] = answer
		}
	}
	s.ledger.Seed(known)

	s.totalTime = s.pager.TotalElements() * s.settings.MinutesPerQuestion * 60
	remaining := s.totalTime
	if restored.TimerSaved && restored.Remaining < remaining {
		remaining = max(restored.Remaining, 0)
	}
	s.countdown = NewCountdown(remaining, s.onTick, s.onExpire)
	s.state = StateReady

	view := s.viewLocked()
	s.publishLocked(Event{Type: EventReady, Payload: ReadyPayload{
		SessionID: s.id,
		QuizID:    s.quizID,
		TotalTime: s.totalTime,
		Remaining: remaining,
		Display:   FormatRemaining(remaining),
		Page:      view,
	}})
	if remaining == 0 {
		// resumed after the time ran out
		go s.onExpire()
	} else {
		s.countdown.Start(s.clock)
	}

	log.Info().Str("sessionId", s.id).Int64("quizId", s.quizID).
		Int("questions", len(s.shuffled)).Int("totalTime", s.totalTime).Int("remaining", remaining).Msg("attempt ready")
	return view, nil
}

// Answer records the test-taker's input for a question in the ledger.
func (s *Session) Answer(ctx context.Context, questionID int64, answer string) error {
	s.mu.Lock()
	switch {
	case s.state == StateClosed:
		s.mu.Unlock()
		return domain.ErrSessionClosed
	case s.state == StateSubmitted:
		s.mu.Unlock()
		return domain.ErrAlreadySubmitted
	case s.state != StateReady:
		s.mu.Unlock()
		return domain.ErrNotReady
	case s.expired:
		s.mu.Unlock()
		return domain.ErrTimeExpired
	}
	if _, ok := s.index[questionID]; !ok {
		s.mu.Unlock()
		return domain.ErrQuestionNotFound
	}
	s.ledger.Record(questionID, answer)
	s.mu.Unlock()

	if s.deps.Journal != nil {
		if err := s.deps.Journal.Record(ctx, s.deps.JournalKey, questionID, answer); err != nil {
			log.Warn().Err(err).Str("sessionId", s.id).Int64("questionId", questionID).Msg("journal answer")
		}
	}
	return nil
}

// Page returns the currently visible page.
func (s *Session) Page() (PageView, error) {
	return s.navigate(func(p *Pager) {})
}

// NextPage moves forward one page, staying put on the last one.
func (s *Session) NextPage() (PageView, error) {
	return s.navigate(func(p *Pager) { p.Next() })
}

// PrevPage moves back one page, staying put on the first one.
func (s *Session) PrevPage() (PageView, error) {
	return s.navigate(func(p *Pager) { p.Prev() })
}

// GoToPage jumps to page n, clamped to the valid range.
func (s *Session) GoToPage(n int) (PageView, error) {
	return s.navigate(func(p *Pager) { p.GoToPage(n) })
}

func (s *Session) navigate(move func(*Pager)) (PageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return PageView{}, domain.ErrSessionClosed
	}
	if s.pager == nil {
		return PageView{}, domain.ErrNotReady
	}
	move(s.pager)
	return s.viewLocked(), nil
}

func (s *Session) viewLocked() PageView {
	page := s.pager.Project(s.shuffled, s.ledger)
	for i := range page {
		s.ledger.Touch(page[i].ID)
		page[i].Answer = ""
	}
	return PageView{
		Number:        s.pager.Current(),
		TotalPages:    s.pager.TotalPages(),
		TotalElements: s.pager.TotalElements(),
		PageSize:      s.pager.PageSize(),
		Questions:     page,
	}
}

// Submit is the manual submission. It waits for the test-taker to confirm,
// then sends every ledger answer regardless of the visible page. A failed
// submission leaves the answers intact for a retry.
func (s *Session) Submit(ctx context.Context) (domain.SubmissionResult, error) {
	s.mu.Lock()
	if err := s.submittableLocked(); err != nil {
		s.mu.Unlock()
		return domain.SubmissionResult{}, err
	}
	s.confirming = true
	s.mu.Unlock()

	ok, err := s.deps.Confirmer.Confirm(ctx, domain.MsgSubmitQuizConfirmation, domain.TitleConfirm)

	s.mu.Lock()
	s.confirming = false
	if err != nil {
		s.mu.Unlock()
		return domain.SubmissionResult{}, fmt.Errorf("confirm submission: %w", err)
	}
	if !ok {
		s.mu.Unlock()
		return domain.SubmissionResult{}, domain.ErrSubmitDeclined
	}
	// the countdown may have forced a submission while the prompt was open
	if err := s.submittableLocked(); err != nil {
		s.mu.Unlock()
		return domain.SubmissionResult{}, err
	}
	s.state = StateSubmitting
	answered := s.assembleLocked()
	s.mu.Unlock()

	result, err := s.deps.Submitter.SubmitQuiz(ctx, answered)
	if err := s.finishSubmit(ctx, result, err, false); err != nil {
		return domain.SubmissionResult{}, err
	}
	return result, nil
}

func (s *Session) submittableLocked() error {
	switch s.state {
	case StateClosed:
		return domain.ErrSessionClosed
	case StateLoading:
		return domain.ErrNotReady
	case StateSubmitting:
		return domain.ErrSubmitInFlight
	case StateSubmitted:
		return domain.ErrAlreadySubmitted
	}
	if s.confirming {
		return domain.ErrSubmitInFlight
	}
	return nil
}

// assembleLocked copies ledger answers onto the full shuffled list.
func (s *Session) assembleLocked() []domain.Question {
	answered := make([]domain.Question, len(s.shuffled))
	for i, q := range s.shuffled {
		q.GivenAnswer, _ = s.ledger.Answer(q.ID)
		answered[i] = q
	}
	return answered
}

func (s *Session) finishSubmit(ctx context.Context, result domain.SubmissionResult, err error, forced bool) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		if err == nil {
			// graded after the socket went away; nothing is left to resume
			s.clearJournal(ctx)
		}
		return domain.ErrSessionClosed
	}
	if err != nil {
		s.state = StateReady
		s.publishLocked(errorEvent(domain.MsgSubmitQuizError))
		s.mu.Unlock()
		log.Error().Err(err).Str("sessionId", s.id).Bool("forced", forced).Msg("submit attempt")
		return fmt.Errorf("submit quiz %d: %w", s.quizID, err)
	}
	s.state = StateSubmitted
	s.result = &result
	if s.countdown != nil {
		s.countdown.Stop()
	}
	s.publishLocked(Event{Type: EventResult, Payload: ResultPayload{Result: result, Forced: forced}})
	s.mu.Unlock()

	log.Info().Str("sessionId", s.id).Int64("quizId", s.quizID).Bool("forced", forced).
		Float64("marksGot", result.MarksGot).Int("attempted", result.Attempted).Msg("attempt submitted")

	s.clearJournal(ctx)
	return nil
}

func (s *Session) clearJournal(ctx context.Context) {
	if s.deps.Journal == nil {
		return
	}
	if err := s.deps.Journal.Clear(ctx, s.deps.JournalKey); err != nil {
		log.Warn().Err(err).Str("sessionId", s.id).Msg("clear answer journal")
	}
}

func (s *Session) saveRemaining(ctx context.Context, remaining int) {
	if s.deps.Journal == nil {
		return
	}
	if err := s.deps.Journal.RecordRemaining(ctx, s.deps.JournalKey, remaining); err != nil {
		log.Warn().Err(err).Str("sessionId", s.id).Int("remaining", remaining).Msg("journal countdown")
	}
}

func (s *Session) onTick(remaining int) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	s.publishLocked(Event{Type: EventTick, Payload: TickPayload{
		Remaining: remaining,
		Display:   FormatRemaining(remaining),
	}})
	s.mu.Unlock()

	if remaining%timerSaveInterval == 0 {
		s.saveRemaining(s.ctx, remaining)
	}
}

// onExpire forces a submission without the confirmation prompt. A failed
// forced submission is retried once, then left for the test-taker.
func (s *Session) onExpire() {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateSubmitted {
		s.mu.Unlock()
		return
	}
	s.expired = true
	s.publishLocked(Event{Type: EventExpired, Payload: ErrorPayload{
		MessageKey: domain.MsgTimeExpired,
		TitleKey:   domain.TitleError,
	}})
	if s.state != StateReady {
		// a manual submission is already in flight and owns the outcome
		s.mu.Unlock()
		return
	}
	s.state = StateSubmitting
	answered := s.assembleLocked()
	s.mu.Unlock()

	log.Info().Str("sessionId", s.id).Msg("time expired, forcing submission")
	ctx := WithForced(s.ctx)
	result, err := s.deps.Submitter.SubmitQuiz(ctx, answered)
	if err != nil && s.ctx.Err() == nil {
		log.Warn().Err(err).Str("sessionId", s.id).Msg("forced submission failed, retrying once")
		result, err = s.deps.Submitter.SubmitQuiz(ctx, answered)
	}
	_ = s.finishSubmit(s.ctx, result, err, true)
}

// Close tears the session down: the timer stops, background work is
// cancelled and subscribers are released. An unsubmitted attempt keeps its
// remaining time in the journal. Further calls are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	resumable := s.state == StateReady
	cd := s.countdown
	s.state = StateClosed
	if cd != nil {
		cd.Stop()
	}
	s.cancel()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()

	if resumable && cd != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 2*time.Second)
		defer cancel()
		s.saveRemaining(ctx, cd.Remaining())
	}
}

type forcedKey struct{}

// WithForced marks ctx as carrying a submission the countdown forced.
func WithForced(ctx context.Context) context.Context {
	return context.WithValue(ctx, forcedKey{}, true)
}

// IsForced reports whether ctx carries a forced submission.
func IsForced(ctx context.Context) bool {
	forced, _ := ctx.Value(forcedKey{}).(bool)
	return forced
}
