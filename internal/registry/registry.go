package registry

import (
	"sort"
	"sync"

	"rently/relay/internal/types"
)

// Registry is the authoritative in-memory mapping of rooms to members
// and sessions to their current room. A room exists iff its member set
// is non-empty, and a session id appears in at most one room.
//
// Mutating methods return the membership snapshots the caller needs for
// any immediately-following fan-out, computed inside the same critical
// section as the mutation, so a concurrent join/leave can never observe
// a half-applied member set.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
	rooms    map[string]map[string]string // room id -> session id -> username
}

type session struct {
	username string
	room     string
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		rooms:    make(map[string]map[string]string),
	}
}

// Register creates a roomless session record. Called once per accepted
// connection; the transport guarantees id uniqueness.
func (r *Registry) Register(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = &session{}
}

// Lookup returns the session's display name and current room.
func (r *Registry) Lookup(sessionID string) (username, room string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.sessions[sessionID]
	if s == nil {
		return "", "", false
	}
	return s.username, s.room, true
}

// JoinResult describes the registry state right after a join.
type JoinResult struct {
	// Members is the target room's full member set including the joiner.
	Members []types.Member
	// PrevRoom is the different room the session was in before the join,
	// empty if it was roomless or already in the target room.
	PrevRoom string
	// PrevUsername is the display name the session had in PrevRoom.
	PrevUsername string
	// PrevRemaining is who is still in PrevRoom after the session left it.
	PrevRemaining []types.Member
}

// RecordJoin moves the session into roomID under displayName username.
// Any membership in a different room is removed first; that room is
// deleted if it becomes empty. Rejoining the current room only updates
// the display name and never duplicates the member entry.
func (r *Registry) RecordJoin(sessionID, roomID, username string) JoinResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[sessionID]
	if s == nil {
		s = &session{}
		r.sessions[sessionID] = s
	}

	var res JoinResult
	if s.room != "" && s.room != roomID {
		res.PrevRoom = s.room
		res.PrevUsername = s.username
		r.dropMemberLocked(s.room, sessionID)
		res.PrevRemaining = r.membersLocked(res.PrevRoom)
	}

	members := r.rooms[roomID]
	if members == nil {
		members = make(map[string]string)
		r.rooms[roomID] = members
	}
	members[sessionID] = username
	s.username = username
	s.room = roomID

	res.Members = r.membersLocked(roomID)
	return res
}

// LeaveResult describes the registry state right after a leave or removal.
type LeaveResult struct {
	// Room is the room the session was in, empty if it was roomless.
	Room     string
	Username string
	// Remaining is who is still in Room after the session left.
	Remaining []types.Member
}

// RecordLeave removes the session from its current room, deleting the
// room if it becomes empty. No-op for a roomless session.
func (r *Registry) RecordLeave(sessionID string) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(sessionID)
}

// Remove runs RecordLeave and then purges the session record entirely.
// Used on disconnect.
func (r *Registry) Remove(sessionID string) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.leaveLocked(sessionID)
	delete(r.sessions, sessionID)
	return res
}

func (r *Registry) leaveLocked(sessionID string) LeaveResult {
	s := r.sessions[sessionID]
	if s == nil || s.room == "" {
		return LeaveResult{}
	}
	res := LeaveResult{Room: s.room, Username: s.username}
	r.dropMemberLocked(s.room, sessionID)
	res.Remaining = r.membersLocked(res.Room)
	s.room = ""
	return res
}

func (r *Registry) dropMemberLocked(roomID, sessionID string) {
	members := r.rooms[roomID]
	if members == nil {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// MembersOf returns a snapshot of the room's members, empty (not an
// error) for an unknown room.
func (r *Registry) MembersOf(roomID string) []types.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(roomID)
}

func (r *Registry) membersLocked(roomID string) []types.Member {
	members := r.rooms[roomID]
	out := make([]types.Member, 0, len(members))
	for id, name := range members {
		out = append(out, types.Member{SessionID: id, Username: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Counts returns the number of live sessions and non-empty rooms.
func (r *Registry) Counts() (sessions, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions), len(r.rooms)
}

// RoomStatus is one room's occupancy snapshot.
type RoomStatus struct {
	RoomID  string         `json:"room_id"`
	Members []types.Member `json:"members"`
}

// Snapshot returns all rooms and their members, sorted by room id.
func (r *Registry) Snapshot() []RoomStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomStatus, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, RoomStatus{RoomID: id, Members: r.membersLocked(id)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}
