package attempt

import "exam-attempt-service/internal/domain"

// EventType tags what changed in a session.
type EventType string

const (
	EventReady   EventType = "ready"
	EventTick    EventType = "tick"
	EventExpired EventType = "expired"
	EventResult  EventType = "result"
	EventError   EventType = "error"
)

// Event is pushed to subscribers; Payload is one of the *Payload types below.
type Event struct {
	Type    EventType
	Payload any
}

type ReadyPayload struct {
	SessionID string   `json:"sessionId"`
	QuizID    int64    `json:"quizId"`
	TotalTime int      `json:"totalTime"`
	Remaining int      `json:"remaining"`
	Display   string   `json:"display"`
	Page      PageView `json:"page"`
}

type TickPayload struct {
	Remaining int    `json:"remaining"`
	Display   string `json:"display"`
}

type ResultPayload struct {
	Result domain.SubmissionResult `json:"result"`
	Forced bool                    `json:"forced"`
}

// ErrorPayload carries translation keys only; the browser resolves the text.
type ErrorPayload struct {
	MessageKey string `json:"messageKey"`
	TitleKey   string `json:"titleKey"`
}

// Subscribe returns a channel of session events. The caller must invoke the
// returned cancel function to avoid leaks. The channel is closed when the
// session closes.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) publishLocked(ev Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop the oldest event to make room
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

func errorEvent(messageKey string) Event {
	return Event{Type: EventError, Payload: ErrorPayload{MessageKey: messageKey, TitleKey: domain.TitleError}}
}
