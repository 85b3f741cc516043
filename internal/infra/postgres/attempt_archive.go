package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"exam-attempt-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptArchive stores graded attempts in Postgres.
type AttemptArchive struct {
	pool *pgxpool.Pool
}

func NewAttemptArchive(pool *pgxpool.Pool) *AttemptArchive {
	return &AttemptArchive{pool: pool}
}

// SaveAttempt inserts record. Saving the same session twice keeps the first row.
func (a *AttemptArchive) SaveAttempt(ctx context.Context, record domain.AttemptRecord) error {
	answers, err := json.Marshal(record.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO attempt_results
			(session_id, username, quiz_id, quiz_title, marks_got, correct_answers, attempted, forced, answers, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO NOTHING`,
		record.SessionID, record.Username, record.QuizID, record.QuizTitle,
		record.Result.MarksGot, record.Result.CorrectAnswers, record.Result.Attempted,
		record.Forced, answers, record.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	return nil
}

// ListAttempts returns up to limit attempts of username, newest first.
func (a *AttemptArchive) ListAttempts(ctx context.Context, username string, limit int) ([]domain.AttemptRecord, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT session_id, username, quiz_id, quiz_title, marks_got, correct_answers, attempted, forced, answers, submitted_at
		FROM attempt_results
		WHERE username = $1
		ORDER BY submitted_at DESC
		LIMIT $2`, username, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.AttemptRecord
	for rows.Next() {
		var (
			rec domain.AttemptRecord
			raw []byte
		)
		if err := rows.Scan(
			&rec.SessionID, &rec.Username, &rec.QuizID, &rec.QuizTitle,
			&rec.Result.MarksGot, &rec.Result.CorrectAnswers, &rec.Result.Attempted,
			&rec.Forced, &raw, &rec.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		if err := json.Unmarshal(raw, &rec.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
