package fermata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	Fe "github.com/corveau/fermata/engine"
	Fo "github.com/corveau/fermata/obvy"
	Fp "github.com/corveau/fermata/plugin"
)

// View is the host surface wrapped around the engine
type View struct {
	MU         sync.Mutex         // State lock for swapping the curve
	Engine     *Fe.Engine         // Breathing cycle state machine
	Stats      *Fo.StatsInternal  // Internal status for prometheus
	Curve      Fp.ProgressCurve   // Shapes orb motion for the frontend
	Supervisor *TickSupervisor    // Frame clock driving the engine
	server     *http.Server       // Control API and metrics server
}

// StepEngine advances the breathing clock one frame.
// The supervisor calls this on every tick.
func (v *View) StepEngine(now time.Time) {
	start := time.Now()
	v.Engine.Advance(now)
	v.Stats.RecTick(time.Since(start).Seconds())
}

// The View is the engine's host notifier,
// feeding engine events into the prometheus counters.

func (v *View) OnPhaseChanged(label string, index int) {
	slog.Debug("Phase entered", slog.String("label", label), slog.Int("index", index))
	v.Stats.RecPhase()
}

func (v *View) OnCycleReset() {
	v.Stats.RecCycle()
}

func (v *View) OnSessionComplete() {
	slog.Info("Session complete")
	v.Stats.RecSession()
}

func (v *View) OnPatternChanged(id string) {
	slog.Info("Pattern selected", slog.String("pattern", id))
	v.Stats.RecPattern(id)
}

// RespWriter is a wrapper with StatsMiddleware, used for Prometheus
type RespWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

func (v *View) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &RespWriter{
			ResponseWriter: w,
			Status:         200,
		}
		next.ServeHTTP(wrapped, r)

		v.Stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
	})
}

// NewView binds an engine to its host surface.
// The View registers itself as the engine's notifier so
// phase, cycle, completion and pattern events reach prometheus.
func NewView(e *Fe.Engine) (*View, error) {
	if e == nil {
		slog.Error("Could not get an engine for display")
		return nil, errors.New("breathing engine not found")
	}

	// create an attached prometheus registry
	stats := Fo.NewStatsInternal()

	view := &View{
		Engine: e,
		Stats:  stats,
		Curve:  &Fp.SineCurve{},
	}
	e.Notify = view

	return view, nil
}

// StartFermata is called by main to run the program.
// This also starts up the /metrics endpoint that is populated by prometheus.
func StartFermata(cf *Fe.ConfigFile, e *Fe.Engine) error {
	if cf == nil {
		cf = Fe.DefaultConfig()
	}

	view, err := NewView(e)
	if err != nil {
		slog.Error("Could not start Fermata", slog.Any("Error", err))
		return err
	}

	if curve, err := Fp.CurveLookup(cf.Curve); err != nil {
		slog.Error("Unknown progress curve, keeping default",
			slog.String("curve", cf.Curve), slog.Any("Error", err))
	} else {
		view.Curve = curve
	}

	// Server for the control API and stats endpoint
	view.server = &http.Server{
		Addr:    cf.Listen,
		Handler: otelhttp.NewHandler(view.SetupMux(), "fermata-http"),
	}

	// Start the frame clock
	sup := view.NewTickSupervisor()
	sup.Start()
	defer sup.Stop()

	// Run control API (blocks)
	slog.Info("Starting Fermata web server...", slog.String("Port", cf.Listen))
	if err := view.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Could not start control API", slog.Any("Error", err))
		return err
	}

	return nil
}
