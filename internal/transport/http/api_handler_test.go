package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/attempt"
	"exam-attempt-service/internal/domain"
	"exam-attempt-service/internal/infra/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestCatalogRoutes(t *testing.T) {
	server, _, _ := newTestServer(t)
	defer server.Close()
	token := signToken(t, "alice")

	var counts []domain.CategoryQuizCount
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/categories", token, &counts))
	require.Equal(t, []domain.CategoryQuizCount{{CategoryID: 3, CategoryTitle: "Go", QuizCount: 1}}, counts)

	var quizzes []domain.Quiz
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/categories/3/quizzes", token, &quizzes))
	require.Len(t, quizzes, 1)
	require.Equal(t, int64(9), quizzes[0].ID)

	var quiz domain.Quiz
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/quizzes/9", token, &quiz))
	require.Equal(t, "Go basics", quiz.Title)
	require.Equal(t, 3, quiz.NumberOfQuestions)

	require.Equal(t, http.StatusNotFound, getJSON(t, server.URL+"/api/quizzes/404", token, nil))
	require.Equal(t, http.StatusBadRequest, getJSON(t, server.URL+"/api/quizzes/abc", token, nil))
}

func TestRoutesRequireToken(t *testing.T) {
	server, _, _ := newTestServer(t)
	defer server.Close()

	require.Equal(t, http.StatusUnauthorized, getJSON(t, server.URL+"/api/categories", "", nil))

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, getJSON(t, server.URL+"/api/categories", expired, nil))

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthzReportsLiveAttempts(t *testing.T) {
	backend := sampleBackend()
	service := app.NewAttemptService(memory.NewSessionStore(), memory.NewQuizRepository(backend, time.Minute), backend, attempt.Settings{})

	live := httptest.NewServer(NewRouter(service, RouterOptions{
		LiveAttempts: func(context.Context) (int, error) { return 4, nil },
	}))
	defer live.Close()
	var health map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, live.URL+"/healthz", "", &health))
	require.Equal(t, "ok", health["status"])
	require.Equal(t, float64(4), health["liveAttempts"])

	down := httptest.NewServer(NewRouter(service, RouterOptions{
		LiveAttempts: func(context.Context) (int, error) { return 0, errors.New("redis down") },
	}))
	defer down.Close()
	require.Equal(t, http.StatusServiceUnavailable, getJSON(t, down.URL+"/healthz", "", nil))
}

func TestAttemptRoutes(t *testing.T) {
	server, _, _ := newTestServer(t)
	defer server.Close()
	token := signToken(t, "alice")

	// no attempt yet and no archive configured
	require.Equal(t, http.StatusNotFound, getJSON(t, server.URL+"/api/attempts/last", token, nil))
	require.Equal(t, http.StatusNotImplemented, getJSON(t, server.URL+"/api/attempts/history", token, nil))
}

func TestLastAttemptIncludesScore(t *testing.T) {
	backend := sampleBackend()
	service := app.NewAttemptService(memory.NewSessionStore(), memory.NewQuizRepository(backend, time.Minute), backend, attempt.Settings{})
	server := httptest.NewServer(NewRouter(service, RouterOptions{}))
	defer server.Close()

	qs, err := backend.QuestionsOfQuiz(context.Background(), 9)
	require.NoError(t, err)
	qs[0].GivenAnswer = "4"
	_, err = backend.SubmitQuiz(context.Background(), qs)
	require.NoError(t, err)

	var body struct {
		MarksGot float64 `json:"marksGot"`
		Score    float64 `json:"score"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/attempts/last", signToken(t, "alice"), &body))
	require.Equal(t, 10.0, body.MarksGot)
	require.InDelta(t, 3.33, body.Score, 0.01)
}

func getJSON(t *testing.T, url, token string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func sampleBackend() *memory.StaticBackend {
	b := memory.NewStaticBackend(domain.User{ID: 5, Username: "alice"})
	b.AddQuiz(domain.Quiz{ID: 9, Title: "Go basics", MaxMarks: 30, Active: true, Category: &domain.Category{ID: 3, Title: "Go"}},
		[]domain.Question{
			{ID: 1, Content: "2+2?", Option1: "3", Option2: "4", Option3: "5", Option4: "6", Answer: "4"},
			{ID: 2, Content: "len(\"go\")?", Option1: "1", Option2: "2", Option3: "3", Option4: "4", Answer: "2"},
			{ID: 3, Content: "zero value of int?", Option1: "0", Option2: "nil", Option3: "1", Option4: "-1", Answer: "0"},
		})
	return b
}

type manualClock struct{ ch chan time.Time }

func newManualClock() *manualClock { return &manualClock{ch: make(chan time.Time)} }

func (c *manualClock) NewTicker(time.Duration) attempt.Ticker { return manualTicker{ch: c.ch} }

type manualTicker struct{ ch chan time.Time }

func (t manualTicker) C() <-chan time.Time { return t.ch }
func (t manualTicker) Stop() {}
