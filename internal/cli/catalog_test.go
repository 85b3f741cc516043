package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exam-attempt-service/internal/backend"
	"github.com/stretchr/testify/require"
)

func TestPrintCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/generate-token":
			_, _ = w.Write([]byte(`{"token": "tok"}`))
		case "/category/quizzes/count/active":
			require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`[{"categoryId": 3, "categoryTitle": "Go", "quizCount": 1}]`))
		case "/category/quizzes/active/3":
			_, _ = w.Write([]byte(`[{"qId": 9, "title": "Go basics", "maxMarks": 30, "numberOfQuestions": 3, "active": true}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := printCatalog(context.Background(), backend.NewClient(srv.URL, time.Second), "alice", "pw", &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Go basics")
	require.Contains(t, out.String(), "CATEGORY")
}
