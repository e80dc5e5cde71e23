package relay

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"rently/relay/internal/registry"
	"rently/relay/internal/types"
)

// Outbox is a session's outbound event queue. Delivery into it is
// non-blocking; a full queue drops the event rather than stalling the
// sender's fan-out.
type Outbox struct {
	sessionID string
	ch        chan types.ServerEvent
}

// Events is drained by the session's transport writer.
func (o *Outbox) Events() <-chan types.ServerEvent { return o.ch }

func (o *Outbox) trySend(ev types.ServerEvent) bool {
	select {
	case o.ch <- ev:
		return true
	default:
		return false
	}
}

// Dispatcher applies session events against the room registry and fans
// the resulting notifications out to member outboxes. Calls for one
// session are serialized by its transport read loop; calls for
// different sessions may run concurrently.
type Dispatcher struct {
	reg     *registry.Registry
	sendBuf int

	mu   sync.Mutex
	outs map[string]*Outbox
}

func New(reg *registry.Registry, sendBuf int) *Dispatcher {
	if sendBuf <= 0 {
		sendBuf = 32
	}
	return &Dispatcher{reg: reg, sendBuf: sendBuf, outs: make(map[string]*Outbox)}
}

// Connect registers a roomless session and returns its outbox.
func (d *Dispatcher) Connect(sessionID string) *Outbox {
	out := &Outbox{sessionID: sessionID, ch: make(chan types.ServerEvent, d.sendBuf)}
	d.mu.Lock()
	d.outs[sessionID] = out
	d.mu.Unlock()
	d.reg.Register(sessionID)
	d.updateGauges()
	return out
}

// Join moves the session into roomID and announces it. Empty room id or
// username (after trimming) is rejected back to the requester only.
func (d *Dispatcher) Join(sessionID, roomID, username string) {
	roomID = strings.TrimSpace(roomID)
	username = strings.TrimSpace(username)
	if roomID == "" || username == "" {
		metricClientErrors.WithLabelValues("invalid_request").Inc()
		d.unicast(sessionID, errorEvent("room id and username are required"))
		return
	}

	res := d.reg.RecordJoin(sessionID, roomID, username)
	metricJoins.Inc()
	d.updateGauges()

	if res.PrevRoom != "" {
		d.broadcast(res.PrevRemaining, types.ServerEvent{
			Type: types.EvUserLeft,
			Payload: types.UserLeft{
				SessionID: sessionID,
				Username:  res.PrevUsername,
				Message:   res.PrevUsername + " left the room",
			},
		})
	}

	d.unicast(sessionID, types.ServerEvent{
		Type: types.EvRoomJoined,
		Payload: types.RoomJoined{
			RoomID:  roomID,
			Members: res.Members,
			Message: fmt.Sprintf("Welcome to room %s!", roomID),
		},
	})
	d.broadcastExcept(res.Members, sessionID, types.ServerEvent{
		Type: types.EvUserJoined,
		Payload: types.UserJoined{
			SessionID: sessionID,
			Username:  username,
			Message:   username + " joined the room",
		},
	})
	log.Printf("[relay] %s joined room %s", username, roomID)
}

// Send broadcasts a message to every member of roomID, the sender
// included, so the sender's view matches what everyone else received.
// The sender must currently be in roomID.
func (d *Dispatcher) Send(sessionID, roomID, body string) {
	username, current, ok := d.reg.Lookup(sessionID)
	if !ok || current == "" || current != roomID {
		metricClientErrors.WithLabelValues("not_in_room").Inc()
		d.unicast(sessionID, errorEvent("You are not in this room"))
		return
	}

	msg := types.NewMessage{
		ID:         newMessageID(),
		SenderID:   sessionID,
		SenderName: username,
		Body:       body,
		SentAt:     time.Now().UTC(),
	}
	d.broadcast(d.reg.MembersOf(roomID), types.ServerEvent{Type: types.EvNewMessage, Payload: msg})
	metricMessages.Inc()
}

// Leave takes the session out of its current room and acknowledges it.
// No-op for a roomless session.
func (d *Dispatcher) Leave(sessionID string) {
	res := d.reg.RecordLeave(sessionID)
	if res.Room == "" {
		return
	}
	d.updateGauges()

	d.broadcast(res.Remaining, types.ServerEvent{
		Type: types.EvUserLeft,
		Payload: types.UserLeft{
			SessionID: sessionID,
			Username:  res.Username,
			Message:   res.Username + " left the room",
		},
	})
	d.unicast(sessionID, types.ServerEvent{
		Type:    types.EvRoomLeft,
		Payload: types.RoomLeft{Message: "You left the room"},
	})
	log.Printf("[relay] %s left room %s", res.Username, res.Room)
}

// Disconnect purges the session. Remaining members of its room are
// notified; no acknowledgment is sent since the transport is gone.
func (d *Dispatcher) Disconnect(sessionID string) {
	d.mu.Lock()
	delete(d.outs, sessionID)
	d.mu.Unlock()

	res := d.reg.Remove(sessionID)
	d.updateGauges()
	if res.Room == "" {
		return
	}
	d.broadcast(res.Remaining, types.ServerEvent{
		Type: types.EvUserLeft,
		Payload: types.UserLeft{
			SessionID: sessionID,
			Username:  res.Username,
			Message:   res.Username + " disconnected",
		},
	})
	log.Printf("[relay] %s disconnected from room %s", res.Username, res.Room)
}

// Reject reports a malformed request back to the requester only.
func (d *Dispatcher) Reject(sessionID, message string) {
	metricClientErrors.WithLabelValues("invalid_request").Inc()
	d.unicast(sessionID, errorEvent(message))
}

// RoomInfo answers the requester with the room's member snapshot, empty
// for an unknown room.
func (d *Dispatcher) RoomInfo(sessionID, roomID string) {
	d.unicast(sessionID, types.ServerEvent{
		Type:    types.EvRoomInfo,
		Payload: types.RoomInfo{RoomID: roomID, Members: d.reg.MembersOf(roomID)},
	})
}

// LogStatus writes one active-rooms summary line.
func (d *Dispatcher) LogStatus() {
	snap := d.reg.Snapshot()
	parts := make([]string, 0, len(snap))
	for _, room := range snap {
		names := make([]string, 0, len(room.Members))
		for _, m := range room.Members {
			names = append(names, m.Username)
		}
		parts = append(parts, fmt.Sprintf("%s(%d: %s)", room.RoomID, len(room.Members), strings.Join(names, ", ")))
	}
	log.Printf("[relay] active rooms: %d [%s]", len(snap), strings.Join(parts, " "))
}

func (d *Dispatcher) unicast(sessionID string, ev types.ServerEvent) {
	d.mu.Lock()
	out := d.outs[sessionID]
	d.mu.Unlock()
	if out == nil || !out.trySend(ev) {
		metricDeliveryFailures.Inc()
		log.Printf("[relay] dropped %s event for session %s", ev.Type, sessionID)
	}
}

func (d *Dispatcher) broadcast(members []types.Member, ev types.ServerEvent) {
	for _, m := range members {
		d.unicast(m.SessionID, ev)
	}
}

func (d *Dispatcher) broadcastExcept(members []types.Member, exceptID string, ev types.ServerEvent) {
	for _, m := range members {
		if m.SessionID == exceptID {
			continue
		}
		d.unicast(m.SessionID, ev)
	}
}

func (d *Dispatcher) updateGauges() {
	sessions, rooms := d.reg.Counts()
	metricSessionsActive.Set(float64(sessions))
	metricRoomsActive.Set(float64(rooms))
}

func errorEvent(message string) types.ServerEvent {
	return types.ServerEvent{Type: types.EvError, Payload: types.ErrorInfo{Message: message}}
}

// Message ids are display keys only, never dedup keys, so millis plus a
// short random suffix is unique enough.
func newMessageID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + uuid.NewString()[:8]
}
