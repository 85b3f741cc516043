package backend

import (
	"math"

	"exam-attempt-service/internal/domain"
	"github.com/jinzhu/copier"
)

// Wire shapes of the exam backend. Field names match the domain types so
// copier can map them; the JSON tags follow the backend's naming.

type categoryDTO struct {
	ID          int64  `json:"cid"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type quizDTO struct {
	ID                int64        `json:"qId"`
	Title             string       `json:"title"`
	Description       string       `json:"description"`
	MaxMarks          float64      `json:"maxMarks"`
	NumberOfQuestions int          `json:"numberOfQuestions"`
	Active            bool         `json:"active"`
	Category          *categoryDTO `json:"category,omitempty"`
}

type questionDTO struct {
	ID          int64    `json:"quesId"`
	Content     string   `json:"content"`
	Image       string   `json:"image"`
	Option1     string   `json:"option1"`
	Option2     string   `json:"option2"`
	Option3     string   `json:"option3"`
	Option4     string   `json:"option4"`
	Answer      string   `json:"answer"`
	GivenAnswer string   `json:"givenAnswer"`
	Quiz        *quizDTO `json:"quiz,omitempty"`
}

type categoryCountDTO struct {
	CategoryID    int64  `json:"categoryId"`
	CategoryTitle string `json:"categoryTitle"`
	QuizCount     int    `json:"quizCount"`
}

// evalResultDTO: the backend serialises counts as doubles.
type evalResultDTO struct {
	MarksGot       float64 `json:"marksGot"`
	CorrectAnswers float64 `json:"correctAnswers"`
	Attempted      float64 `json:"attempted"`
}

type questionAttemptDTO struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	GivenAnswer string `json:"givenAnswer"`
	Answer      string `json:"answer"`
	Image       string `json:"image"`
}

type quizAttemptDTO struct {
	ID             int64                `json:"id"`
	MarksGot       float64              `json:"marksGot"`
	CorrectAnswers float64              `json:"correctAnswers"`
	Attempted      float64              `json:"attempted"`
	AttemptDate    string               `json:"attemptDate"`
	MaxMarks       float64              `json:"maxMarks"`
	Questions      []questionAttemptDTO `json:"questions"`
}

type userDTO struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

var deep = copier.Option{DeepCopy: true}

func toQuiz(in quizDTO) (domain.Quiz, error) {
	var out domain.Quiz
	err := copier.CopyWithOption(&out, &in, deep)
	return out, err
}

func toQuizzes(in []quizDTO) ([]domain.Quiz, error) {
	out := make([]domain.Quiz, 0, len(in))
	err := copier.CopyWithOption(&out, &in, deep)
	return out, err
}

func toQuestions(in []questionDTO) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(in))
	err := copier.CopyWithOption(&out, &in, deep)
	return out, err
}

func fromQuestions(in []domain.Question) ([]questionDTO, error) {
	out := make([]questionDTO, 0, len(in))
	err := copier.CopyWithOption(&out, &in, deep)
	return out, err
}

func toCategoryCounts(in []categoryCountDTO) ([]domain.CategoryQuizCount, error) {
	out := make([]domain.CategoryQuizCount, 0, len(in))
	err := copier.Copy(&out, &in)
	return out, err
}

func toUser(in userDTO) (domain.User, error) {
	var out domain.User
	err := copier.Copy(&out, &in)
	return out, err
}

func toResult(in evalResultDTO) domain.SubmissionResult {
	return domain.SubmissionResult{
		MarksGot:       in.MarksGot,
		CorrectAnswers: int(math.Round(in.CorrectAnswers)),
		Attempted:      int(math.Round(in.Attempted)),
	}
}

func toReview(in quizAttemptDTO) (domain.AttemptReview, error) {
	out := domain.AttemptReview{
		ID:             in.ID,
		MarksGot:       in.MarksGot,
		CorrectAnswers: int(math.Round(in.CorrectAnswers)),
		Attempted:      int(math.Round(in.Attempted)),
		AttemptDate:    in.AttemptDate,
		MaxMarks:       in.MaxMarks,
	}
	out.Questions = make([]domain.QuestionReview, 0, len(in.Questions))
	err := copier.Copy(&out.Questions, &in.Questions)
	return out, err
}
