package api

import (
	"encoding/json"
	"net/http"

	"rently/relay/internal/config"
	"rently/relay/internal/registry"
)

type Handlers struct {
	cfg config.Config
	reg *registry.Registry
}

func NewHandlers(cfg config.Config, reg *registry.Registry) *Handlers {
	return &Handlers{cfg: cfg, reg: reg}
}

// HandleListRooms returns every active room with its occupancy.
func (h *Handlers) HandleListRooms(w http.ResponseWriter, r *http.Request) {
	snap := h.reg.Snapshot()
	rooms := make([]map[string]any, 0, len(snap))
	for _, room := range snap {
		rooms = append(rooms, map[string]any{
			"room_id":      room.RoomID,
			"member_count": len(room.Members),
			"members":      room.Members,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"rooms": rooms})
}

// HandleRoomInfo returns one room's member snapshot. Unknown rooms are
// not an error; they report an empty member list.
func (h *Handlers) HandleRoomInfo(w http.ResponseWriter, r *http.Request, id string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"room_id": id,
		"members": h.reg.MembersOf(id),
	})
}
