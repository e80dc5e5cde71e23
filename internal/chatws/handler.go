package chatws

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"rently/relay/internal/config"
	"rently/relay/internal/relay"
	"rently/relay/internal/types"

	ws "nhooyr.io/websocket"
)

// Server upgrades chat connections and pumps events between the socket
// and the dispatcher. Each connection gets its own read loop, so events
// from one session are applied in arrival order while different
// sessions proceed concurrently.
type Server struct {
	Cfg  config.Config
	Disp *relay.Dispatcher
}

func NewServer(cfg config.Config, d *relay.Dispatcher) *Server {
	return &Server{Cfg: cfg, Disp: d}
}

func (s *Server) HandleChatWS(w http.ResponseWriter, r *http.Request) {
	c, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: s.Cfg.Relay.OriginPatterns})
	if err != nil {
		log.Printf("ws accept: %v", err)
		return
	}

	sessionID := uuid.New().String()
	out := s.Disp.Connect(sessionID)
	log.Printf("[chatws] connected session=%s", sessionID)

	ctx := r.Context()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-out.Events():
				if err := c.Write(ctx, ws.MessageText, mustJSON(ev)); err != nil {
					return
				}
			}
		}
	}()

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		var ev types.ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.Disp.Reject(sessionID, "invalid event")
			continue
		}
		s.dispatch(sessionID, ev)
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	s.Disp.Disconnect(sessionID)
	log.Printf("[chatws] disconnected session=%s", sessionID)
}

func (s *Server) dispatch(sessionID string, ev types.ClientEvent) {
	switch ev.Type {
	case types.EvJoinRoom:
		var p types.JoinRoom
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			s.Disp.Reject(sessionID, "invalid join-room payload")
			return
		}
		s.Disp.Join(sessionID, p.RoomID, p.Username)
	case types.EvSendMessage:
		var p types.SendMessage
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			s.Disp.Reject(sessionID, "invalid send-message payload")
			return
		}
		s.Disp.Send(sessionID, p.RoomID, p.Body)
	case types.EvLeaveRoom:
		s.Disp.Leave(sessionID)
	case types.EvGetRoomInfo:
		var p types.GetRoomInfo
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			s.Disp.Reject(sessionID, "invalid get-room-info payload")
			return
		}
		s.Disp.RoomInfo(sessionID, p.RoomID)
	default:
		// Ignore unknown events for forward compatibility
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
