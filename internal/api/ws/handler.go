package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/CodePrep/backend/internal/api/view"
	"github.com/GriffinCanCode/CodePrep/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/CodePrep/backend/internal/playground"
	"github.com/GriffinCanCode/CodePrep/backend/internal/sandbox"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512 << 10
	sendBuffer     = 2048
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS policy is applied by middleware
	},
}

// Message types
const (
	TypeSnapshot = "snapshot"
	TypeOutput   = "output"
	TypeState    = "state"
	TypeError    = "error"
	TypePong     = "pong"

	TypeRun   = "run"
	TypeReset = "reset"
	TypeEdit  = "edit"
	TypePing  = "ping"
)

// Incoming is a client command
type Incoming struct {
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
}

// Outgoing is a server message
type Outgoing struct {
	Type       string                `json:"type"`
	Generation uint64                `json:"generation,omitempty"`
	Snapshot   *playground.Snapshot  `json:"snapshot,omitempty"`
	Record     *sandbox.OutputRecord `json:"record,omitempty"`
	State      playground.State      `json:"state,omitempty"`
	Fault      *sandbox.FaultRecord  `json:"fault,omitempty"`
	Message    string                `json:"message,omitempty"`
}

// Metrics observes stream traffic
type Metrics interface {
	IncWSConnections()
	DecWSConnections()
	RecordWSMessage(direction, msgType string)
}

type nopMetrics struct{}

func (nopMetrics) IncWSConnections()              {}
func (nopMetrics) DecWSConnections()              {}
func (nopMetrics) RecordWSMessage(string, string) {}

// Handler streams one playground per connection
type Handler struct {
	playgrounds *playground.Manager
	policy      *bluemonday.Policy
	metrics     Metrics
	log         *logging.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(playgrounds *playground.Manager, metrics Metrics, logger *logging.Logger) *Handler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		playgrounds: playgrounds,
		policy:      view.Policy(),
		metrics:     metrics,
		log:         logger.Component("ws"),
	}
}

// HandleStream handles GET /playgrounds/:id/stream
func (h *Handler) HandleStream(c *gin.Context) {
	p, err := h.playgrounds.Get(c.Param("id"))
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, playground.ErrInvalidID) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &session{
		id:      uuid.NewString(),
		conn:    conn,
		pg:      p,
		handler: h,
		send:    make(chan Outgoing, sendBuffer),
		done:    make(chan struct{}),
	}
	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	s.serve(c.Request.Context())
}

type session struct {
	id      string
	conn    *websocket.Conn
	pg      *playground.Playground
	handler *Handler
	send    chan Outgoing
	done    chan struct{}
	once    sync.Once
	runs    sync.WaitGroup
}

func (s *session) serve(ctx context.Context) {
	log := s.handler.log.With(zap.String("conn_id", s.id), zap.String("playground_id", s.pg.ID()))
	log.Debug("stream opened")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := s.pg.Subscribe(s.forward)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()

	s.push(s.snapshot())
	s.readLoop(ctx)

	unsubscribe()
	cancel()
	s.runs.Wait()
	s.close()
	<-writerDone
	_ = s.conn.Close()
	log.Debug("stream closed")
}

// forward turns playground events into messages
func (s *session) forward(ev playground.Event) {
	switch ev.Type {
	case playground.EventOutput:
		s.push(Outgoing{Type: TypeOutput, Generation: ev.Generation, Record: ev.Record})
	case playground.EventState:
		s.push(Outgoing{Type: TypeState, Generation: ev.Generation, State: ev.State, Fault: ev.Fault})
	}
}

// push queues msg without blocking the caller. A client that cannot keep
// up is disconnected.
func (s *session) push(msg Outgoing) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.send <- msg:
	default:
		s.handler.log.Warn("stream client too slow, disconnecting", zap.String("conn_id", s.id))
		s.close()
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		// unblock the reader
		_ = s.conn.SetReadDeadline(time.Now())
	})
}

func (s *session) snapshot() Outgoing {
	snap := view.Snapshot(s.handler.policy, s.pg.Snapshot())
	return Outgoing{Type: TypeSnapshot, Generation: snap.Generation, Snapshot: &snap}
}

func (s *session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.handler.log.Debug("stream read error", zap.String("conn_id", s.id), zap.Error(err))
			}
			return
		}
		select {
		case <-s.done:
			return
		default:
		}

		var msg Incoming
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			s.push(Outgoing{Type: TypeError, Message: "malformed message"})
			continue
		}
		s.handler.metrics.RecordWSMessage("in", msg.Type)
		s.handle(ctx, msg)
	}
}

func (s *session) handle(ctx context.Context, msg Incoming) {
	switch msg.Type {
	case TypeRun:
		s.runs.Add(1)
		go func() {
			defer s.runs.Done()
			if _, err := s.pg.Run(ctx); err != nil {
				s.fail(err)
				return
			}
			s.push(s.snapshot())
		}()
	case TypeReset:
		s.runs.Add(1)
		go func() {
			defer s.runs.Done()
			if err := s.pg.Reset(); err != nil {
				s.fail(err)
				return
			}
			s.push(s.snapshot())
		}()
	case TypeEdit:
		if err := s.pg.Edit(msg.Source); err != nil {
			s.fail(err)
			return
		}
		s.push(s.snapshot())
	case TypePing:
		s.push(Outgoing{Type: TypePong})
	default:
		s.push(Outgoing{Type: TypeError, Message: "unknown message type"})
	}
}

func (s *session) fail(err error) {
	msg := err.Error()
	if errors.Is(err, playground.ErrClosed) {
		msg = "playground closed"
	}
	s.push(Outgoing{Type: TypeError, Message: msg})
}

func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.send:
			if err := s.write(msg); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			// drain what was queued before the close
			for {
				select {
				case msg := <-s.send:
					if s.write(msg) != nil {
						return
					}
				default:
					_ = s.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(writeWait))
					return
				}
			}
		}
	}
}

func (s *session) write(msg Outgoing) error {
	raw, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return err
	}
	s.handler.metrics.RecordWSMessage("out", msg.Type)
	return nil
}
