package rooms

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/palafeltre/matchcast/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// Handler upgrades HTTP requests to room subscriptions. The endpoint is
// unauthenticated by design: public scoreboard displays attach here.
type Handler struct {
	reg *Registry
}

func NewHandler(reg *Registry) *Handler {
	return &Handler{reg: reg}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/{room}", h.handleWS)
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	if room == "" {
		http.Error(w, "missing room name", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		telemetry.Warnf("rooms: upgrade failed: %v", err)
		return
	}

	c := newWSClient(h.reg, room, conn)
	h.reg.Subscribe(room, c)
	telemetry.Metrics.ActiveConnections.Inc()

	go c.writePump()
	go c.readPump()
}
