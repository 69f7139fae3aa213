// Package api exposes the engine over HTTP JSON. The same snapshot payload
// serves the web dashboard, the desktop overlay, and anything else that
// polls instead of subscribing to the websocket.
package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/ZehenForever/eqrespawn/internal/command"
	"github.com/ZehenForever/eqrespawn/internal/countdown"
	"github.com/ZehenForever/eqrespawn/internal/hub"
	"github.com/ZehenForever/eqrespawn/internal/timeparse"
	"github.com/ZehenForever/eqrespawn/internal/window"
)

// errCouldNotParseTime is user-visible: a ToD with an unparsable time must
// be rejected loudly, never silently defaulted to now.
const errCouldNotParseTime = "could not parse that time"

type Handler struct {
	engine *window.Engine
	timers *countdown.Engine
	hub    *hub.Hub
	log    zerolog.Logger
}

func NewHandler(engine *window.Engine, timers *countdown.Engine, h *hub.Hub, log zerolog.Logger) *Handler {
	return &Handler{engine: engine, timers: timers, hub: h, log: log}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/snapshot", h.Snapshot)
		r.Get("/mobs", h.Mobs)
		r.Post("/mobs/{mobID}/kill", h.RecordKill)
		r.Delete("/mobs/{mobID}/kill", h.ClearKill)
		r.Post("/tod", h.FreeTextToD)
		r.Post("/quake", h.Quake)
		r.Get("/timers", h.Timers)
		r.Get("/ws", h.hub.ServeWS)
	})
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": h.hub.ClientCount()})
}

func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ComputeSnapshot(time.Now()))
}

type mobView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Aliases        []string `json:"aliases,omitempty"`
	Zone           string   `json:"zone,omitempty"`
	Expansion      string   `json:"expansion,omitempty"`
	RespawnDisplay string   `json:"respawnDisplay,omitempty"`
	MinMinutes     int      `json:"minRespawnMinutes"`
	MaxMinutes     int      `json:"maxRespawnMinutes"`
}

func (h *Handler) Mobs(w http.ResponseWriter, r *http.Request) {
	defs := h.engine.Definitions()
	out := make([]mobView, 0, len(defs))
	for _, d := range defs {
		out = append(out, mobView{
			ID:             d.ID,
			Name:           d.Name,
			Aliases:        d.Aliases,
			Zone:           d.Zone,
			Expansion:      d.Expansion,
			RespawnDisplay: d.RespawnDisplay,
			MinMinutes:     int(d.MinRespawn.Minutes()),
			MaxMinutes:     int(d.MaxRespawn.Minutes()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"mobs": out})
}

type killRequest struct {
	// Timestamp is an ISO timestamp; Expression is a free-text time
	// expression. At most one; neither means now.
	Timestamp  string `json:"timestamp,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// resolveTime turns a kill request into an absolute timestamp.
func resolveTime(req killRequest, now time.Time) (time.Time, bool) {
	if req.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if req.Expression != "" {
		return timeparse.Resolve(req.Expression, now, now)
	}
	return now, true
}

func (h *Handler) RecordKill(w http.ResponseWriter, r *http.Request) {
	mobID := chi.URLParam(r, "mobID")
	if _, ok := h.engine.Definition(mobID); !ok {
		writeError(w, http.StatusNotFound, "unknown mob: "+mobID)
		return
	}

	var req killRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ts, ok := resolveTime(req, time.Now())
	if !ok {
		writeError(w, http.StatusBadRequest, errCouldNotParseTime)
		return
	}

	recorded := h.engine.RecordKill(mobID, ts)
	writeJSON(w, http.StatusOK, map[string]any{
		"mobId":     mobID,
		"recorded":  recorded,
		"timestamp": ts.UTC().Truncate(time.Second).Format(time.RFC3339),
	})
}

func (h *Handler) ClearKill(w http.ResponseWriter, r *http.Request) {
	mobID := chi.URLParam(r, "mobID")
	existed := h.engine.ClearKill(mobID)
	writeJSON(w, http.StatusOK, map[string]any{"mobId": mobID, "cleared": existed})
}

type todRequest struct {
	Text string `json:"text"`
}

// FreeTextToD accepts the same command text as Discord and in-game chat:
// "!tod Lord Nagafen 2 hours ago", "tod quake now", "tod Naggy|yesterday at
// 9pm".
func (h *Handler) FreeTextToD(w http.ResponseWriter, r *http.Request) {
	var req todRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	cmd, ok := command.Extract(req.Text, h.engine.Aliases())
	if !ok {
		writeError(w, http.StatusBadRequest, "no ToD command found")
		return
	}

	now := time.Now()
	ts := now
	if !cmd.ExplicitNow {
		resolved, ok := timeparse.Resolve(cmd.TimeText, now, now)
		if !ok {
			writeError(w, http.StatusBadRequest, errCouldNotParseTime)
			return
		}
		ts = resolved
	}

	if cmd.Kind == command.KindQuake {
		n := h.engine.ApplyQuake(ts)
		writeJSON(w, http.StatusOK, map[string]any{"quake": true, "updated": n})
		return
	}
	if cmd.MobID == "" {
		writeError(w, http.StatusNotFound, "unknown mob: "+cmd.Target)
		return
	}

	recorded := h.engine.RecordKill(cmd.MobID, ts)
	writeJSON(w, http.StatusOK, map[string]any{
		"mobId":     cmd.MobID,
		"recorded":  recorded,
		"timestamp": ts.UTC().Truncate(time.Second).Format(time.RFC3339),
	})
}

func (h *Handler) Quake(w http.ResponseWriter, r *http.Request) {
	var req killRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ts, ok := resolveTime(req, time.Now())
	if !ok {
		writeError(w, http.StatusBadRequest, errCouldNotParseTime)
		return
	}
	n := h.engine.ApplyQuake(ts)
	writeJSON(w, http.StatusOK, map[string]any{"quake": true, "updated": n})
}

func (h *Handler) Timers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"timers": h.timers.Active(time.Now())})
}

// decodeBody tolerates an absent or empty body but rejects malformed JSON,
// so a mangled timestamp payload is reported instead of silently becoming
// a zero request.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
