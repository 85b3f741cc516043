package redis

import (
	"context"
	"sync"
	"time"

	"exam-attempt-service/internal/attempt"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions own a live countdown, so the session itself stays in a local map.
//   - Redis marks liveness as attempt:session:{id} -> quizId, letting operators
//     see open attempts across instances. The key outlives the attempt's total
//     time by ttl.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*attempt.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*attempt.Session),
	}
}

func (s *SessionStore) Put(session *attempt.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	// best-effort liveness marker
	ttl := s.ttl + time.Duration(session.TotalTime())*time.Second
	if err := s.client.Set(context.Background(), s.key(session.ID()), session.QuizID(), ttl).Err(); err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID()).Msg("mark session live")
	}
}

func (s *SessionStore) Get(sessionID string) (*attempt.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

// Live counts attempts marked live in Redis, across all instances.
func (s *SessionStore) Live(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "attempt:session:*", 100).Result()
		if err != nil {
			return 0, err
		}
		total += len(keys)
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

func (s *SessionStore) key(sessionID string) string {
	return "attempt:session:" + sessionID
}
