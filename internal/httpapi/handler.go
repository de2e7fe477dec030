package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/palafeltre/matchcast/internal/match"
	"github.com/palafeltre/matchcast/internal/rooms"
	"github.com/palafeltre/matchcast/internal/settings"
	"github.com/palafeltre/matchcast/internal/telemetry"
	"github.com/palafeltre/matchcast/internal/wire"
)

// Rooms the generic command broker may address. The "game" room is reserved
// for controller snapshots and pulses.
var commandRooms = map[string]bool{
	"player":  true,
	"display": true,
	"control": true,
}

// Handler exposes the match-control command surface plus the operational
// endpoints (command broker, notifications, settings, audit, skating
// sessions). The snapshot query and the overlays are public; everything
// mutating sits behind the game-control capability.
type Handler struct {
	ctrl  *match.Controller
	reg   *rooms.Registry
	store *settings.Store
	token string
}

func NewHandler(ctrl *match.Controller, reg *rooms.Registry, store *settings.Store, controlToken string) *Handler {
	return &Handler{ctrl: ctrl, reg: reg, store: store, token: controlToken}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/v1/game/state", h.handleState)

	mux.HandleFunc("POST /api/v1/game/setup", h.control(h.handleSetup))
	mux.HandleFunc("PATCH /api/v1/game/config", h.control(h.handleConfig))
	mux.HandleFunc("POST /api/v1/game/score", h.control(h.handleScore))
	mux.HandleFunc("POST /api/v1/game/shots", h.control(h.handleShots))
	mux.HandleFunc("POST /api/v1/game/timer/start", h.control(h.command("game.timer.start", h.ctrl.TimerStart)))
	mux.HandleFunc("POST /api/v1/game/timer/stop", h.control(h.command("game.timer.stop", h.ctrl.TimerStop)))
	mux.HandleFunc("POST /api/v1/game/timer/reset", h.control(h.command("game.timer.reset", h.ctrl.TimerReset)))
	mux.HandleFunc("POST /api/v1/game/timer/set", h.control(h.handleTimerSet))
	mux.HandleFunc("POST /api/v1/game/timeout/start", h.control(h.command("game.timeout.start", h.ctrl.TimeoutStart)))
	mux.HandleFunc("POST /api/v1/game/timeout/stop", h.control(h.command("game.timeout.stop", h.ctrl.TimeoutStop)))
	mux.HandleFunc("POST /api/v1/game/interval/start", h.control(h.command("game.interval.start", h.ctrl.IntervalStart)))
	mux.HandleFunc("POST /api/v1/game/period/next", h.control(h.command("game.period.next", h.ctrl.PeriodNext)))
	mux.HandleFunc("POST /api/v1/game/penalties", h.control(h.handleAddPenalty))
	mux.HandleFunc("DELETE /api/v1/game/penalties/{id}", h.control(h.handleRemovePenalty))
	mux.HandleFunc("POST /api/v1/game/siren", h.control(h.handleSiren))
	mux.HandleFunc("POST /api/v1/game/obs", h.control(h.handleOBS))

	mux.HandleFunc("POST /api/v1/command/{room}", h.control(h.handleCommand))
	mux.HandleFunc("POST /api/v1/notifications/broadcast", h.control(h.handleNotify))

	mux.HandleFunc("GET /api/v1/admin/settings", h.control(h.handleSettingsList))
	mux.HandleFunc("PUT /api/v1/admin/settings/{key}", h.control(h.handleSettingsPut))
	mux.HandleFunc("GET /api/v1/admin/audit", h.control(h.handleAudit))

	mux.HandleFunc("GET /api/v1/skating/sessions", h.control(h.handleSessionsList))
	mux.HandleFunc("POST /api/v1/skating/sessions", h.control(h.handleSessionsAdd))
	mux.HandleFunc("DELETE /api/v1/skating/sessions/{id}", h.control(h.handleSessionsDelete))

	h.registerOverlays(mux)
}

// control gates a handler behind the game-control capability. An empty
// configured token leaves the surface open (single-operator dev setups).
func (h *Handler) control(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
			telemetry.Metrics.CommandsRejected.Inc()
			writeError(w, http.StatusUnauthorized, "game-control capability required")
			return
		}
		next(w, r)
	}
}

// command wraps a no-argument controller operation.
func (h *Handler) command(action string, op func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op()
		h.audit(r, action, "")
		telemetry.Metrics.CommandsProcessed.Inc()
		writeOK(w)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"lastTick":    telemetry.Metrics.LastTickUnix.Value(),
		"connections": telemetry.Metrics.ActiveConnections.Value(),
	})
}

// handleState is the public synchronous snapshot query used by display
// clients on first contact.
func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	var p match.SetupParams
	if !decode(w, r, &p) {
		return
	}
	if err := h.ctrl.Setup(p); err != nil {
		h.reject(w, err)
		return
	}
	h.audit(r, "game.setup", fmt.Sprintf("%s vs %s", p.HomeName, p.AwayName))
	telemetry.Metrics.CommandsProcessed.Inc()
	writeOK(w)
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	var p match.ConfigPatch
	if !decode(w, r, &p) {
		return
	}
	if err := h.ctrl.PatchConfig(p); err != nil {
		h.reject(w, err)
		return
	}
	h.audit(r, "game.config", "")
	telemetry.Metrics.CommandsProcessed.Inc()
	writeOK(w)
}

type deltaRequest struct {
	Team  string `json:"team"`
	Delta int    `json:"delta"`
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	var p deltaRequest
	if !decode(w, r, &p) {
		return
	}
	if err := h.ctrl.UpdateScore(p.Team, p.Delta); err != nil {
		h.reject(w, err)
		return
	}
	h.audit(r, "game.score", fmt.Sprintf("%s %+d", p.Team, p.Delta))
	telemetry.Metrics.CommandsProcessed.Inc()
	writeOK(w)
}

func (h *Handler) handleShots(w http.ResponseWriter, r *http.Request) {
	var p deltaRequest
	if !decode(w, r, &p) {
		return
	}
	if err := h.ctrl.UpdateShots(p.Team, p.Delta); err != nil {
		h.reject(w, err)
		return
	}
	h.audit(r, "game.shots", fmt.Sprintf("%s %+d", p.Team, p.Delta))
	telemetry.Metrics.CommandsProcessed.Inc()
	writeOK(w)
}

func (h *Handler) handleTimerSet(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Seconds int   `json:"seconds"`
		Running *bool `json:"running,omitempty"`
	}
	if !decode(w, r, &p) {
		return
	}
	h.ctrl.TimerSet(p.Seconds, p.Running)
	h.audit(r, "game.timer.set", strconv.Itoa(p.Seconds))
	telemetry.Metrics.CommandsProcessed.Inc()
	writeOK(w)
}

func (h *Handler) handleAddPenalty(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Team         string `json:"team"`
		PlayerNumber string `json:"player_number"`
		Minutes      int    `json:"minutes"`
	}
	if !decode(w, r, &p) {
		return
	}
	id, err := h.ctrl.AddPenalty(p.Team, p.PlayerNumber, p.Minutes)
	if err != nil {
		h.reject(w, err)
		return
	}
	h.audit(r, "game.penalty.add", fmt.Sprintf("%s #%s %dm", p.Team, p.PlayerNumber, p.Minutes))
	telemetry.Metrics.CommandsProcessed.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (h *Handler) handleRemovePenalty(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid penalty id")
		return
	}
	h.ctrl.RemovePenalty(id)
	h.audit(r, "game.penalty.remove", strconv.Itoa(id))
	telemetry.Metrics.CommandsProcessed.Inc()
	writeOK(w)
}

func (h *Handler) handleSiren(w http.ResponseWriter, r *http.Request) {
	var p struct {
		On bool `json:"on"`
	}
	if !decode(w, r, &p) {
		return
	}
	h.ctrl.SetSiren(p.On)
	h.audit(r, "game.siren", strconv.FormatBool(p.On))
	telemetry.Metrics.CommandsProcessed.Inc()
	writeOK(w)
}

func (h *Handler) handleOBS(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Visible bool `json:"visible"`
	}
	if !decode(w, r, &p) {
		return
	}
	h.ctrl.SetOBSVisible(p.Visible)
	h.audit(r, "game.obs", strconv.FormatBool(p.Visible))
	telemetry.Metrics.CommandsProcessed.Inc()
	writeOK(w)
}

// handleCommand pushes an arbitrary typed envelope to one of the
// operational rooms (audio player, public display, AV console).
func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	room := r.PathValue("room")
	if !commandRooms[room] {
		writeError(w, http.StatusBadRequest, "invalid target room")
		return
	}
	var p struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if !decode(w, r, &p) {
		return
	}
	data, err := wire.Marshal(p.Type, p.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.reg.Broadcast(room, data)
	h.audit(r, "command."+room, p.Type)
	telemetry.Metrics.CommandsProcessed.Inc()
	writeOK(w)
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Message string `json:"message"`
		Kind    string `json:"notification_type"`
		UserID  *int64 `json:"user_id,omitempty"`
	}
	if !decode(w, r, &p) {
		return
	}
	if p.Kind == "" {
		p.Kind = "info"
	}
	data, err := wire.Marshal(wire.TypeNotification, wire.Notification{Kind: p.Kind, Message: p.Message})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	room := "notifications_all"
	if p.UserID != nil {
		room = fmt.Sprintf("notifications_user_%d", *p.UserID)
	}
	h.reg.Broadcast(room, data)
	telemetry.Metrics.CommandsProcessed.Inc()
	writeOK(w)
}

func (h *Handler) handleSettingsList(w http.ResponseWriter, _ *http.Request) {
	items, err := h.store.ListSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var p struct {
		Value string `json:"value"`
	}
	if !decode(w, r, &p) {
		return
	}
	if err := h.store.PutSetting(key, p.Value); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.audit(r, "settings.put", key)
	writeOK(w)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	entries, err := h.store.RecentAudit(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleSessionsList(w http.ResponseWriter, _ *http.Request) {
	sessions, err := h.store.ListSessions(time.Now().Add(-24 * time.Hour))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleSessionsAdd(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Title string    `json:"title"`
		Start time.Time `json:"start"`
	}
	if !decode(w, r, &p) {
		return
	}
	if p.Start.IsZero() {
		writeError(w, http.StatusBadRequest, "start is required")
		return
	}
	id, err := h.store.AddSession(p.Title, p.Start)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.audit(r, "skating.session.add", p.Title)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (h *Handler) handleSessionsDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if err := h.store.DeleteSession(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.audit(r, "skating.session.delete", strconv.FormatInt(id, 10))
	writeOK(w)
}

// reject maps a controller error to the HTTP surface. Validation failures
// are the caller's problem; anything else is ours.
func (h *Handler) reject(w http.ResponseWriter, err error) {
	telemetry.Metrics.CommandsRejected.Inc()
	if errors.Is(err, match.ErrInvalidTeam) || errors.Is(err, match.ErrInvalidDuration) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// audit records an accepted command. Best effort: a failed write is logged,
// never surfaced to the operator.
func (h *Handler) audit(r *http.Request, action, detail string) {
	actor := r.Header.Get("X-Actor")
	if actor == "" {
		actor = "operator"
	}
	if err := h.store.RecordAudit(actor, action, detail); err != nil {
		telemetry.Warnf("httpapi: audit write failed: %v", err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		telemetry.Metrics.CommandsRejected.Inc()
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		telemetry.Warnf("httpapi: response encode: %v", err)
	}
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
