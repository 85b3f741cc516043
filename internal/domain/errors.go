package domain

import "errors"

var (
	// ErrSessionClosed is returned once a session has been torn down.
	ErrSessionClosed = errors.New("attempt session closed")
	// ErrQuizNotFound indicates the quiz could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates an answer targets a question outside the session.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestions is returned when a quiz has nothing to attempt.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrNotReady is returned for operations that need loaded questions.
	ErrNotReady = errors.New("attempt session not ready")
	// ErrLoadInFlight rejects a load while another one is pending.
	ErrLoadInFlight = errors.New("question load already in progress")
	// ErrSubmitInFlight rejects a submit while another one is pending.
	ErrSubmitInFlight = errors.New("submission already in progress")
	// ErrSubmitDeclined is returned when the test-taker cancels the confirmation prompt.
	ErrSubmitDeclined = errors.New("submission declined")
	// ErrAlreadySubmitted is returned after the session has been graded.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrTimeExpired rejects answer changes after the countdown ran out.
	ErrTimeExpired = errors.New("attempt time expired")
	// ErrUnauthorized indicates a missing, expired or rejected token.
	ErrUnauthorized = errors.New("unauthorized")
)
