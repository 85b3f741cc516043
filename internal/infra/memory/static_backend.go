package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"exam-attempt-service/internal/domain"
)

// StaticBackend is an in-process stand-in for the exam REST API (useful for tests/demos).
// It serves fixed quizzes and grades submissions against the stored answer key.
type StaticBackend struct {
	mu        sync.Mutex
	quizzes   map[int64]domain.Quiz
	questions map[int64][]domain.Question
	user      domain.User
	last      map[int64]domain.AttemptReview
	submits   int
}

func NewStaticBackend(user domain.User) *StaticBackend {
	return &StaticBackend{
		quizzes:   make(map[int64]domain.Quiz),
		questions: make(map[int64][]domain.Question),
		user:      user,
		last:      make(map[int64]domain.AttemptReview),
	}
}

// AddQuiz registers a quiz with its questions. Each question's Quiz is set to quiz.
func (b *StaticBackend) AddQuiz(quiz domain.Quiz, questions []domain.Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	qs := make([]domain.Question, len(questions))
	for i, q := range questions {
		ref := quiz
		q.Quiz = &ref
		qs[i] = q
	}
	quiz.NumberOfQuestions = len(qs)
	b.quizzes[quiz.ID] = quiz
	b.questions[quiz.ID] = qs
}

func (b *StaticBackend) LoadQuiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	quiz, ok := b.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (b *StaticBackend) QuestionsOfQuiz(_ context.Context, quizID int64) ([]domain.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	qs, ok := b.questions[quizID]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	out := make([]domain.Question, len(qs))
	copy(out, qs)
	return out, nil
}

// SubmitQuiz grades like the real backend: marks are split evenly across
// questions and only non-blank answers count as attempted.
func (b *StaticBackend) SubmitQuiz(_ context.Context, answered []domain.Question) (domain.SubmissionResult, error) {
	if len(answered) == 0 {
		return domain.SubmissionResult{}, fmt.Errorf("empty submission")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submits++

	var quiz domain.Quiz
	if answered[0].Quiz != nil {
		quiz = b.quizzes[answered[0].Quiz.ID]
	}
	key := make(map[int64]string)
	for _, q := range b.questions[quiz.ID] {
		key[q.ID] = q.Answer
	}

	var result domain.SubmissionResult
	review := domain.AttemptReview{ID: int64(b.submits), MaxMarks: quiz.MaxMarks}
	for _, q := range answered {
		given := strings.TrimSpace(q.GivenAnswer)
		if given != "" {
			result.Attempted++
		}
		if given != "" && given == key[q.ID] {
			result.CorrectAnswers++
		}
		review.Questions = append(review.Questions, domain.QuestionReview{
			ID:          q.ID,
			Content:     q.Content,
			GivenAnswer: q.GivenAnswer,
			Answer:      key[q.ID],
		})
	}
	if n := len(b.questions[quiz.ID]); n > 0 {
		result.MarksGot = quiz.MaxMarks / float64(n) * float64(result.CorrectAnswers)
	}
	review.MarksGot = result.MarksGot
	review.CorrectAnswers = result.CorrectAnswers
	review.Attempted = result.Attempted
	b.last[b.user.ID] = review
	return result, nil
}

// Submissions reports how many times SubmitQuiz was called.
func (b *StaticBackend) Submissions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submits
}

func (b *StaticBackend) ActiveQuizCounts(_ context.Context) ([]domain.CategoryQuizCount, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[int64]*domain.CategoryQuizCount)
	var order []int64
	for _, quiz := range b.quizzes {
		if !quiz.Active || quiz.Category == nil {
			continue
		}
		c, ok := counts[quiz.Category.ID]
		if !ok {
			c = &domain.CategoryQuizCount{CategoryID: quiz.Category.ID, CategoryTitle: quiz.Category.Title}
			counts[quiz.Category.ID] = c
			order = append(order, quiz.Category.ID)
		}
		c.QuizCount++
	}
	out := make([]domain.CategoryQuizCount, 0, len(order))
	for _, id := range order {
		out = append(out, *counts[id])
	}
	return out, nil
}

func (b *StaticBackend) ActiveQuizzes(_ context.Context, categoryID int64) ([]domain.Quiz, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Quiz
	for _, quiz := range b.quizzes {
		if quiz.Active && quiz.Category != nil && quiz.Category.ID == categoryID {
			out = append(out, quiz)
		}
	}
	return out, nil
}

func (b *StaticBackend) CurrentUser(_ context.Context) (domain.User, error) {
	return b.user, nil
}

func (b *StaticBackend) LastAttempt(_ context.Context, userID int64) (domain.AttemptReview, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	review, ok := b.last[userID]
	if !ok {
		return domain.AttemptReview{}, domain.ErrQuizNotFound
	}
	return review, nil
}
