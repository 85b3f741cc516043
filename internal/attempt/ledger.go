package attempt

import "sync"

// Ledger maps question IDs to the test-taker's current answer. It is the
// only record used to assemble a submission.
type Ledger struct {
	mu      sync.RWMutex
	answers map[int64]string
}

func NewLedger() *Ledger {
	return &Ledger{answers: make(map[int64]string)}
}

// Record sets or overwrites the answer for a question. Last write wins.
func (l *Ledger) Record(questionID int64, answer string) {
	l.mu.Lock()
	l.answers[questionID] = answer
	l.mu.Unlock()
}

// Touch creates an empty entry for a question that has none yet.
func (l *Ledger) Touch(questionID int64) {
	l.mu.Lock()
	if _, ok := l.answers[questionID]; !ok {
		l.answers[questionID] = ""
	}
	l.mu.Unlock()
}

// Answer returns the recorded answer and whether an entry exists.
func (l *Ledger) Answer(questionID int64) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	answer, ok := l.answers[questionID]
	return answer, ok
}

// Seed loads previously journaled answers without overwriting newer ones.
func (l *Ledger) Seed(answers map[int64]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, answer := range answers {
		if _, ok := l.answers[id]; !ok {
			l.answers[id] = answer
		}
	}
}

// Snapshot returns a copy of all entries.
func (l *Ledger) Snapshot() map[int64]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[int64]string, len(l.answers))
	for id, answer := range l.answers {
		out[id] = answer
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.answers)
}
