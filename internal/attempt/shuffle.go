package attempt

import (
	"math/rand"

	"exam-attempt-service/internal/domain"
)

// Shuffle returns a uniformly permuted copy of questions using a single
// Fisher-Yates pass. The input slice is left untouched.
func Shuffle(questions []domain.Question, rnd *rand.Rand) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	for i := len(out) - 1; i > 0; i-- {
		j := rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
