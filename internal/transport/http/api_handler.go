package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// APIHandler proxies the read-only catalog the quiz pages need.
type APIHandler struct {
	service *app.AttemptService
}

func NewAPIHandler(service *app.AttemptService) *APIHandler {
	return &APIHandler{service: service}
}

// GET /api/categories
func (h *APIHandler) Categories(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// GET /api/categories/{categoryID}/quizzes
func (h *APIHandler) QuizzesOfCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "categoryID")
	if !ok {
		return
	}
	quizzes, err := h.service.QuizzesOfCategory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

// GET /api/quizzes/{quizID}
func (h *APIHandler) Quiz(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "quizID")
	if !ok {
		return
	}
	quiz, err := h.service.Quiz(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

// GET /api/attempts/last
func (h *APIHandler) LastAttempt(w http.ResponseWriter, r *http.Request) {
	review, err := h.service.LastReview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		domain.AttemptReview
		Score float64 `json:"score"`
	}{review, review.Score()})
}

// GET /api/attempts/history?limit=20
func (h *APIHandler) History(w http.ResponseWriter, r *http.Request) {
	identity, err := IdentityFrom(r.Context())
	if err != nil {
		writeError(w, domain.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.service.History(r.Context(), identity.Subject, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.AttemptRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrQuizNotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrNoArchive):
		status = http.StatusNotImplemented
	default:
		log.Error().Err(err).Msg("backend request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
