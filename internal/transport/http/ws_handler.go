package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/attempt"
	"exam-attempt-service/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type WSHandler struct {
	service  *app.AttemptService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AttemptService, allowedOrigins []string) *WSHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := origins["*"]; ok {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID int64  `json:"questionId"`
	Answer     string `json:"answer"`
}

type pagePayload struct {
	Number int `json:"number"`
}

type confirmReply struct {
	OK bool `json:"ok"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type readyPayload struct {
	attempt.ReadyPayload
	Quiz domain.Quiz `json:"quiz"`
}

type confirmPayload struct {
	MessageKey string `json:"messageKey"`
	TitleKey   string `json:"titleKey"`
}

type errorPayload struct {
	MessageKey string `json:"messageKey"`
	TitleKey   string `json:"titleKey"`
	Message    string `json:"message,omitempty"`
}

func errorMessage(messageKey string, err error) outboundMessage {
	p := errorPayload{MessageKey: messageKey, TitleKey: domain.TitleError}
	if err != nil {
		p.Message = err.Error()
	}
	return outboundMessage{Type: "error", Payload: p}
}

// ServeWS upgrades HTTP requests to websockets and runs one attempt session per connection.
// Closing the socket closes the session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID, err := strconv.ParseInt(r.URL.Query().Get("quizId"), 10, 64)
	if err != nil || quizID <= 0 {
		http.Error(w, "missing or invalid quizId", http.StatusBadRequest)
		return
	}
	identity, err := IdentityFrom(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := newWSConn(conn)
	go out.writeLoop()
	confirmer := &wsConfirmer{out: out}

	var (
		session     *attempt.Session
		unsubscribe = func() {}
		background  sync.WaitGroup
	)
	start := func() {
		started, err := h.service.Start(ctx, identity.Subject, quizID, confirmer)
		if err != nil {
			key := domain.MsgQuestionsLoadError
			var loadErr *app.LoadError
			if errors.As(err, &loadErr) {
				key = loadErr.MessageKey
			}
			log.Warn().Err(err).Str("user", identity.Subject).Int64("quizId", quizID).Msg("start attempt")
			out.push(errorMessage(key, err))
			return
		}
		session = started.Session
		events, cancelEvents := session.Subscribe()
		unsubscribe = cancelEvents
		remaining := session.Remaining()
		out.push(outboundMessage{Type: "ready", Payload: readyPayload{
			ReadyPayload: attempt.ReadyPayload{
				SessionID: session.ID(),
				QuizID:    quizID,
				TotalTime: session.TotalTime(),
				Remaining: remaining,
				Display:   attempt.FormatRemaining(remaining),
				Page:      started.Page,
			},
			Quiz: started.Quiz,
		}})
		background.Add(1)
		go func() {
			defer background.Done()
			forwardEvents(events, out, confirmer)
		}()
	}
	start()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "retry":
			if session == nil {
				start()
			}
			continue
		case "confirm":
			var reply confirmReply
			if err := json.Unmarshal(inbound.Payload, &reply); err != nil {
				out.push(errorMessage(domain.MsgInvalidMessage, errors.New("invalid confirm payload")))
				continue
			}
			confirmer.resolve(reply.OK)
			continue
		}
		if session == nil {
			out.push(errorMessage(domain.MsgQuestionsLoadError, domain.ErrNotReady))
			continue
		}

		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out.push(errorMessage(domain.MsgInvalidMessage, errors.New("invalid answer payload")))
				continue
			}
			if err := session.Answer(ctx, payload.QuestionID, payload.Answer); err != nil {
				out.push(errorMessage(domain.MsgAnswerError, err))
				continue
			}
			out.push(outboundMessage{Type: "answered", Payload: payload})
		case "page":
			var payload pagePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out.push(errorMessage(domain.MsgInvalidMessage, errors.New("invalid page payload")))
				continue
			}
			view, err := session.GoToPage(payload.Number)
			pushPage(out, view, err)
		case "next":
			view, err := session.NextPage()
			pushPage(out, view, err)
		case "prev":
			view, err := session.PrevPage()
			pushPage(out, view, err)
		case "submit":
			background.Add(1)
			go func(s *attempt.Session) {
				defer background.Done()
				submit(ctx, s, out)
			}(session)
		default:
			out.push(errorMessage(domain.MsgInvalidMessage, errors.New("unsupported message type")))
		}
	}

	out.close()
	cancel()
	if session != nil {
		unsubscribe()
		h.service.End(session.ID())
	}
	background.Wait()
	<-out.writerDone
}

func pushPage(out *wsConn, view attempt.PageView, err error) {
	if err != nil {
		out.push(errorMessage(domain.MsgPageError, err))
		return
	}
	out.push(outboundMessage{Type: "page", Payload: view})
}

// submit runs off the read loop so the confirmation reply can be delivered.
// Results and backend failures reach the client as session events.
func submit(ctx context.Context, session *attempt.Session, out *wsConn) {
	_, err := session.Submit(ctx)
	switch {
	case err == nil, errors.Is(err, domain.ErrSubmitDeclined), errors.Is(err, domain.ErrSessionClosed):
	case errors.Is(err, domain.ErrSubmitInFlight), errors.Is(err, domain.ErrAlreadySubmitted), errors.Is(err, domain.ErrNotReady):
		out.push(errorMessage(domain.MsgSubmitQuizError, err))
	default:
		log.Debug().Err(err).Str("sessionId", session.ID()).Msg("manual submission failed")
	}
}

func forwardEvents(events <-chan attempt.Event, out *wsConn, confirmer *wsConfirmer) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type == attempt.EventExpired || ev.Type == attempt.EventResult {
				// an open prompt is moot once time ran out or the attempt is graded
				confirmer.resolve(false)
			}
			if !out.push(outboundMessage{Type: string(ev.Type), Payload: ev.Payload}) {
				return
			}
		case <-out.done:
			return
		}
	}
}

// wsConn serialises writes: gorilla connections allow one concurrent writer.
type wsConn struct {
	conn       *websocket.Conn
	send       chan outboundMessage
	done       chan struct{}
	writerDone chan struct{}
	once       sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		conn:       conn,
		send:       make(chan outboundMessage, 32),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (c *wsConn) push(msg outboundMessage) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	}
}

func (c *wsConn) writeLoop() {
	defer close(c.writerDone)
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Warn().Err(err).Msg("ws write error")
				c.close()
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.done) })
}

// wsConfirmer asks the browser to confirm and waits for its confirm reply.
type wsConfirmer struct {
	out *wsConn

	mu    sync.Mutex
	reply chan bool
}

func (w *wsConfirmer) Confirm(ctx context.Context, messageKey, titleKey string) (bool, error) {
	reply := make(chan bool, 1)
	w.mu.Lock()
	if w.reply != nil {
		w.mu.Unlock()
		return false, domain.ErrSubmitInFlight
	}
	w.reply = reply
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.reply = nil
		w.mu.Unlock()
	}()

	if !w.out.push(outboundMessage{Type: "confirm", Payload: confirmPayload{MessageKey: messageKey, TitleKey: titleKey}}) {
		return false, domain.ErrSessionClosed
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	case <-w.out.done:
		return false, domain.ErrSessionClosed
	}
}

// resolve answers the open prompt, if any.
func (w *wsConfirmer) resolve(ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reply == nil {
		return
	}
	select {
	case w.reply <- ok:
	default:
	}
}
