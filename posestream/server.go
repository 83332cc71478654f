package posestream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phanxgames/tinsel"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 10 * time.Second
	writeTimeout     = 5 * time.Second

	// maxMessageSize bounds a single producer message. A two-hand
	// LANDMARKS frame is a few hundred bytes.
	maxMessageSize = 4 * 1024
)

// Server accepts pose producers over WebSocket and publishes their frames
// into a mailbox. Each connection must open with HELLO; the server answers
// WELCOME and then reads POSE or LANDMARKS messages until the producer
// goes away. When the last producer disconnects the mailbox is cleared so
// the field falls back to idle behaviour.
type Server struct {
	mbox       *tinsel.PoseMailbox
	log        *log.Logger
	schemas    *Schemas
	staleAfter time.Duration

	upgrader websocket.Upgrader

	rec       atomic.Pointer[Recorder]
	producers atomic.Int32
	sessions  atomic.Uint64
	dropped   atomic.Uint64
}

// NewServer creates a server publishing into mbox. staleAfter is echoed
// to producers in WELCOME. A nil logger discards output.
func NewServer(mbox *tinsel.PoseMailbox, staleAfter time.Duration, logger *log.Logger) (*Server, error) {
	schemas, err := CompileSchemas()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		mbox:       mbox,
		log:        logger,
		schemas:    schemas,
		staleAfter: staleAfter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // local producers
		},
	}, nil
}

// SetRecorder tees every accepted frame into r. Pass nil to stop.
func (s *Server) SetRecorder(r *Recorder) {
	s.rec.Store(r)
}

// Producers returns the number of connected producers.
func (s *Server) Producers() int {
	return int(s.producers.Load())
}

// Dropped returns how many messages were discarded as malformed.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

// Handler returns the HTTP handler that upgrades producers to WebSocket.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxMessageSize)

		id, ok := s.handshake(conn)
		if !ok {
			return
		}
		s.producers.Add(1)
		s.log.Printf("producer %d connected from %s", id, r.RemoteAddr)
		defer func() {
			if s.producers.Add(-1) == 0 {
				s.mbox.Clear()
			}
			s.log.Printf("producer %d disconnected", id)
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			<-ctx.Done()
			_ = conn.SetReadDeadline(time.Now())
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame, err := s.decode(msg)
			if err != nil {
				s.dropped.Add(1)
				continue
			}
			if err := s.mbox.Publish(frame); err != nil {
				if errors.Is(err, tinsel.ErrStreamClosed) {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"),
						time.Now().Add(time.Second))
					return
				}
				s.dropped.Add(1)
				continue
			}
			if rec := s.rec.Load(); rec != nil {
				if err := rec.Write(frame); err != nil {
					s.log.Printf("record: %v", err)
					s.rec.CompareAndSwap(rec, nil)
				}
			}
		}
	}
}

func (s *Server) decode(msg []byte) (tinsel.PoseFrame, error) {
	base, err := DecodeBase(msg)
	if err != nil {
		return tinsel.PoseFrame{}, err
	}
	if err := s.schemas.Validate(base.Type, msg); err != nil {
		return tinsel.PoseFrame{}, err
	}
	switch base.Type {
	case TypePose:
		var m PoseMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return tinsel.PoseFrame{}, err
		}
		return m.PoseFrame, nil
	case TypeLandmarks:
		var m LandmarksMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return tinsel.PoseFrame{}, err
		}
		return m.Frame(), nil
	}
	return tinsel.PoseFrame{}, errUnknownType
}

func (s *Server) handshake(conn *websocket.Conn) (uint64, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return 0, false
	}

	reject := func(reason string) (uint64, bool) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
			time.Now().Add(time.Second))
		return 0, false
	}

	base, err := DecodeBase(msg)
	if err != nil || base.Type != TypeHello {
		return reject("expected HELLO")
	}
	if err := s.schemas.Validate(TypeHello, msg); err != nil {
		return reject("malformed HELLO")
	}
	var hello HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return reject("malformed HELLO")
	}
	if hello.ProtocolVersion != ProtocolVersion {
		return reject("bad protocol_version")
	}

	id := s.sessions.Add(1)
	welcome := WelcomeMsg{
		Type:            TypeWelcome,
		ProtocolVersion: ProtocolVersion,
		SessionID:       id,
		StaleAfterMS:    s.staleAfter.Milliseconds(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return 0, false
	}
	return id, true
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
