package domain

import "time"

// Category groups quizzes in the catalog.
type Category struct {
	ID          int64  `json:"cid"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CategoryQuizCount is a catalog entry with the number of active quizzes.
type CategoryQuizCount struct {
	CategoryID    int64  `json:"categoryId"`
	CategoryTitle string `json:"categoryTitle"`
	QuizCount     int    `json:"quizCount"`
}

// Quiz is the metadata of a quiz; questions travel separately.
type Quiz struct {
	ID                int64     `json:"qId"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	MaxMarks          float64   `json:"maxMarks"`
	NumberOfQuestions int       `json:"numberOfQuestions"`
	Active            bool      `json:"active"`
	Category          *Category `json:"category,omitempty"`
}

// Question models an MCQ question with four options as served to a test-taker.
type Question struct {
	ID          int64  `json:"quesId"`
	Content     string `json:"content"`
	Image       string `json:"image,omitempty"`
	Option1     string `json:"option1"`
	Option2     string `json:"option2"`
	Option3     string `json:"option3"`
	Option4     string `json:"option4"`
	Answer      string `json:"answer,omitempty"`
	GivenAnswer string `json:"givenAnswer"`
	Quiz        *Quiz  `json:"quiz,omitempty"`
}

// SubmissionResult is the backend's verdict on a submitted attempt.
type SubmissionResult struct {
	MarksGot       float64 `json:"marksGot"`
	CorrectAnswers int     `json:"correctAnswers"`
	Attempted      int     `json:"attempted"`
}

// User is the authenticated account as reported by the backend.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// QuestionReview is one graded question of a past attempt.
type QuestionReview struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	GivenAnswer string `json:"givenAnswer"`
	Answer      string `json:"answer"`
	Image       string `json:"image,omitempty"`
}

// AttemptReview is the backend's record of a user's last attempt.
type AttemptReview struct {
	ID             int64            `json:"id"`
	MarksGot       float64          `json:"marksGot"`
	CorrectAnswers int              `json:"correctAnswers"`
	Attempted      int              `json:"attempted"`
	AttemptDate    string           `json:"attemptDate"`
	MaxMarks       float64          `json:"maxMarks"`
	Questions      []QuestionReview `json:"questions"`
}

// Score scales marks to a 0..10 grade the way the review view shows it.
func (r AttemptReview) Score() float64 {
	if r.MaxMarks <= 0 {
		return 0
	}
	return r.MarksGot / r.MaxMarks * 10
}

// AttemptRecord is what the gateway archives locally after a submission.
type AttemptRecord struct {
	SessionID   string           `json:"sessionId"`
	Username    string           `json:"username"`
	QuizID      int64            `json:"quizId"`
	QuizTitle   string           `json:"quizTitle"`
	Result      SubmissionResult `json:"result"`
	Answers     map[int64]string `json:"answers"`
	Forced      bool             `json:"forced"`
	SubmittedAt time.Time        `json:"submittedAt"`
}
