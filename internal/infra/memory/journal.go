package memory

import (
	"context"
	"sync"

	"exam-attempt-service/internal/attempt"
)

// Journal keeps answer journals in process memory. Journals survive a
// dropped connection but not a restart.
type Journal struct {
	mu      sync.Mutex
	entries map[string]*journalEntry
}

type journalEntry struct {
	answers    map[int64]string
	remaining  int
	timerSaved bool
}

func NewJournal() *Journal {
	return &Journal{entries: make(map[string]*journalEntry)}
}

func (j *Journal) Restore(_ context.Context, key string) (attempt.Progress, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.entries[key]
	if !ok {
		return attempt.Progress{Answers: map[int64]string{}}, nil
	}
	out := make(map[int64]string, len(entry.answers))
	for id, answer := range entry.answers {
		out[id] = answer
	}
	return attempt.Progress{Answers: out, Remaining: entry.remaining, TimerSaved: entry.timerSaved}, nil
}

func (j *Journal) Record(_ context.Context, key string, questionID int64, answer string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entryLocked(key).answers[questionID] = answer
	return nil
}

func (j *Journal) RecordRemaining(_ context.Context, key string, seconds int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry := j.entryLocked(key)
	entry.remaining = seconds
	entry.timerSaved = true
	return nil
}

func (j *Journal) Clear(_ context.Context, key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.entries, key)
	return nil
}

func (j *Journal) entryLocked(key string) *journalEntry {
	entry, ok := j.entries[key]
	if !ok {
		entry = &journalEntry{answers: make(map[int64]string)}
		j.entries[key] = entry
	}
	return entry
}
