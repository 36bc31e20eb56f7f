package fermata

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	Fp "github.com/corveau/fermata/plugin"
	Ft "github.com/corveau/fermata/types"
)

// SetupMux handles all data serving:
// - Prometheus metric endpoint
// - Websocket streaming animation frames
// - Version for programmatic use
// - Control API for the breathing session
func (v *View) SetupMux() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", v.Stats.Handler())
	r.HandleFunc("/ws", v.WebsocketHandler)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(v.StatsMiddleware)
	api.HandleFunc("/version", v.VersionHandler)
	api.HandleFunc("/state", v.StateHandler)
	api.HandleFunc("/patterns", v.PatternsHandler)
	api.HandleFunc("/stats", v.SessionStatsHandler)
	api.HandleFunc("/session/toggle", v.SessionToggleHandler)
	api.HandleFunc("/pattern", v.PatternSelectHandler)
	api.HandleFunc("/duration", v.DurationHandler)
	api.HandleFunc("/minutes", v.MinutesHandler)
	api.HandleFunc("/interact", v.InteractHandler)
	api.HandleFunc("/zen", v.ZenModeHandler)
	api.HandleFunc("/mute", v.MuteHandler)
	api.HandleFunc("/haptics", v.HapticsHandler)
	api.PathPrefix("/plugin").HandlerFunc(v.PluginControlHandler)
	api.PathPrefix("/curve").HandlerFunc(v.CurveSelectHandler)

	// Static files for the web frontend
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./web/")))

	return r
}

var Version = "dev"

func (v *View) VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": Version})
}

// StateHandler reports the same frame the websocket streams,
// for hosts that poll instead of holding a connection
func (v *View) StateHandler(w http.ResponseWriter, r *http.Request) {
	v.writeFrame(w)
}

// PatternsHandler lists the catalog in registration order
func (v *View) PatternsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v.Engine.Catalog.List())
}

// SessionStatsHandler reports the practice ledger
func (v *View) SessionStatsHandler(w http.ResponseWriter, r *http.Request) {
	type StatsData struct {
		WeekMinutes int            `json:"weekMinutes"`
		Streak      int            `json:"streak"`
		Days        map[string]int `json:"days"`
	}

	now := time.Now()

	v.Engine.MU.RLock()
	data := StatsData{
		WeekMinutes: v.Engine.Stats.WeekMinutes(now),
		Streak:      v.Engine.Stats.DisplayStreak(now),
		Days:        make(map[string]int, len(v.Engine.Stats.Days)),
	}
	for day, minutes := range v.Engine.Stats.Days {
		data.Days[day] = minutes
	}
	v.Engine.MU.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

// SessionToggleHandler is the start/stop control
func (v *View) SessionToggleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	v.Engine.Toggle(time.Now())
	v.writeFrame(w)
}

// PatternSelectHandler switches the active breathing pattern.
// An unknown id falls back to the catalog default inside the engine.
func (v *View) PatternSelectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "invalid pattern request", http.StatusBadRequest)
		return
	}

	v.Engine.SetPattern(req.ID, time.Now())
	v.writeFrame(w)
}

// DurationHandler is the breath-length slider
func (v *View) DurationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Seconds <= 0 {
		http.Error(w, "invalid duration request", http.StatusBadRequest)
		return
	}

	v.Engine.SetBaseDuration(req.Seconds, time.Now())
	v.writeFrame(w)
}

// MinutesHandler moves the session length by a signed delta
func (v *View) MinutesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid minutes request", http.StatusBadRequest)
		return
	}

	v.Engine.AdjustSessionMinutes(req.Delta, time.Now())
	v.writeFrame(w)
}

// InteractHandler applies the tap gesture policy:
// a tap while the display is fading or hidden only reveals it,
// a tap on a visible zen session stops the session,
// any other tap re-arms the idle countdown.
func (v *View) InteractHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	snap := v.Engine.Snapshot(now)

	switch {
	case snap.ZenState != Ft.ZenVisible:
		v.Engine.ResetZenIdle()
	case snap.Running && snap.ZenEnabled:
		v.Engine.Stop(now)
	default:
		v.Engine.ResetZenIdle()
	}

	v.writeFrame(w)
}

// ZenModeHandler sets the zen fade preference
func (v *View) ZenModeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid zen request", http.StatusBadRequest)
		return
	}

	v.Engine.SetZen(req.Enabled)
	v.writeFrame(w)
}

// MuteHandler sets audio cue gating
func (v *View) MuteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Muted bool `json:"muted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid mute request", http.StatusBadRequest)
		return
	}

	v.Engine.SetMuted(req.Muted)
	v.writeFrame(w)
}

// HapticsHandler sets vibration gating
func (v *View) HapticsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid haptics request", http.StatusBadRequest)
		return
	}

	v.Engine.SetHaptics(req.Enabled)
	v.writeFrame(w)
}

// PluginControlHandler drives the feedback sink over HTTP.
// The path carries the control verb: /api/plugin/{type|flush|close}
func (v *View) PluginControlHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		http.Error(w, "invalid plugin path", http.StatusBadRequest)
		return
	}

	v.Engine.MU.RLock()
	sink := v.Engine.Sink
	v.Engine.MU.RUnlock()

	if sink == nil {
		http.Error(w, "no sink configured", http.StatusInternalServerError)
		return
	}

	switch parts[2] {
	case "type":
		fmt.Fprintf(w, "Sink: %s", sink.Type())
	case "flush":
		if err := sink.Flush(); err != nil {
			slog.Error("Sink flush failed", slog.Any("Error", err))
			http.Error(w, "flush failed", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "FLUSHED")
	case "close":
		if err := sink.Close(); err != nil {
			slog.Error("Sink close failed", slog.Any("Error", err))
			http.Error(w, "close failed", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "CLOSED")
	default:
		http.Error(w, "invalid control", http.StatusBadRequest)
	}
}

// CurveSelectHandler swaps the orb's progress curve at runtime.
// The path carries the curve name: /api/curve/{name}
func (v *View) CurveSelectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		http.Error(w, "invalid curve path", http.StatusBadRequest)
		return
	}

	curve, err := Fp.CurveLookup(parts[2])
	if err != nil {
		http.Error(w, "invalid curve", http.StatusBadRequest)
		return
	}

	v.MU.Lock()
	v.Curve = curve
	v.MU.Unlock()

	slog.Info("Progress curve selected", slog.String("curve", parts[2]))
	v.writeFrame(w)
}

func (v *View) writeFrame(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v.BuildFrame(time.Now()))
}
