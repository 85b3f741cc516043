package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"exam-attempt-service/internal/domain"
)

// StatusError is a non-2xx reply from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: backend returned %d", e.Method, e.Path, e.Code)
}

// Unwrap lets callers match auth failures with errors.Is(err, domain.ErrUnauthorized).
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden {
		return domain.ErrUnauthorized
	}
	return nil
}

// Client talks to the exam backend's REST API. The bearer token travels in
// the request context, see WithToken.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// GenerateToken exchanges credentials for a bearer token.
func (c *Client) GenerateToken(ctx context.Context, username, password string) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/generate-token", tokenRequest{Username: username, Password: password}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("generate token: %w", domain.ErrUnauthorized)
	}
	return resp.Token, nil
}

func (c *Client) CurrentUser(ctx context.Context) (domain.User, error) {
	var resp userDTO
	if err := c.do(ctx, http.MethodGet, "/current-user", nil, &resp); err != nil {
		return domain.User{}, err
	}
	return toUser(resp)
}

// LoadQuiz returns quiz metadata; it satisfies the quiz caches' loader.
func (c *Client) LoadQuiz(ctx context.Context, quizID int64) (domain.Quiz, error) {
	var resp quizDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/quiz/%d", quizID), nil, &resp); err != nil {
		return domain.Quiz{}, notFound(err, domain.ErrQuizNotFound)
	}
	return toQuiz(resp)
}

// ActiveQuizCounts lists categories with their number of active quizzes.
func (c *Client) ActiveQuizCounts(ctx context.Context) ([]domain.CategoryQuizCount, error) {
	var resp []categoryCountDTO
	if err := c.do(ctx, http.MethodGet, "/category/quizzes/count/active", nil, &resp); err != nil {
		return nil, err
	}
	return toCategoryCounts(resp)
}

// ActiveQuizzes lists the active quizzes of a category.
func (c *Client) ActiveQuizzes(ctx context.Context, categoryID int64) ([]domain.Quiz, error) {
	var resp []quizDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/category/quizzes/active/%d", categoryID), nil, &resp); err != nil {
		return nil, err
	}
	return toQuizzes(resp)
}

// QuestionsOfQuiz fetches the question set served for an attempt.
func (c *Client) QuestionsOfQuiz(ctx context.Context, quizID int64) ([]domain.Question, error) {
	var resp []questionDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/question/quiz/%d", quizID), nil, &resp); err != nil {
		return nil, notFound(err, domain.ErrQuizNotFound)
	}
	return toQuestions(resp)
}

// SubmitQuiz sends the answered questions for grading.
func (c *Client) SubmitQuiz(ctx context.Context, answered []domain.Question) (domain.SubmissionResult, error) {
	body, err := fromQuestions(answered)
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("encode answers: %w", err)
	}
	var resp evalResultDTO
	if err := c.do(ctx, http.MethodPost, "/question/eval-quiz", body, &resp); err != nil {
		return domain.SubmissionResult{}, err
	}
	return toResult(resp), nil
}

// LastAttempt returns the backend's review of the user's latest attempt.
func (c *Client) LastAttempt(ctx context.Context, userID int64) (domain.AttemptReview, error) {
	var resp quizAttemptDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/quiz-attempts/last/%d", userID), nil, &resp); err != nil {
		return domain.AttemptReview{}, err
	}
	return toReview(resp)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(snippet)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func notFound(err error, sentinel error) error {
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	return err
}
