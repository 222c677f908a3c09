package api

import (
	"net/http"
	"sync"
	"time"

	"trafficviewer/pkg/core"
	"trafficviewer/pkg/logging"
	"trafficviewer/pkg/relay"
	"trafficviewer/pkg/sim"
	"trafficviewer/pkg/tracker"
	"trafficviewer/pkg/version"
	"trafficviewer/pkg/worker"
)

// StatusSource reports the orchestrator state.
type StatusSource interface {
	Status() core.Status
}

// WorkerStats reports the data worker history.
type WorkerStats interface {
	Stats() worker.Stats
}

// StatusResponse is the /api/status body.
type StatusResponse struct {
	Version      string                      `json:"version"`
	Uptime       string                      `json:"uptime"`
	State        relay.State                 `json:"state"`
	Simulator    sim.VersionInfo             `json:"simulator"`
	Orchestrator *core.Status                `json:"orchestrator,omitempty"`
	Worker       *worker.Stats               `json:"worker,omitempty"`
	Providers    map[string]tracker.Snapshot `json:"providers"`
	LastWarning  string                      `json:"last_warning,omitempty"`
}

// StatusHandler serves the relay status. Components are attached as they start.
type StatusHandler struct {
	tracker *tracker.Tracker
	started time.Time

	mu     sync.RWMutex
	simVer sim.VersionInfo
	worker WorkerStats
	orch   StatusSource
}

func NewStatusHandler(t *tracker.Tracker) *StatusHandler {
	return &StatusHandler{tracker: t, started: time.Now()}
}

// SetSimulator records the connected simulator.
func (h *StatusHandler) SetSimulator(v sim.VersionInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.simVer = v
}

// SetWorker attaches the data worker.
func (h *StatusHandler) SetWorker(w WorkerStats) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.worker = w
}

// SetOrchestrator attaches the orchestrator once a controller is connected.
func (h *StatusHandler) SetOrchestrator(o StatusSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.orch = o
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	resp := StatusResponse{
		Version:     version.Version,
		Uptime:      time.Since(h.started).Truncate(time.Second).String(),
		State:       relay.AwaitingClient,
		Simulator:   h.simVer,
		Providers:   map[string]tracker.Snapshot{},
		LastWarning: summarizeLogLine(logging.GlobalLogCapture.GetLastLine()),
	}
	if h.orch != nil {
		st := h.orch.Status()
		resp.Orchestrator = &st
		resp.State = st.State
	}
	if h.worker != nil {
		ws := h.worker.Stats()
		resp.Worker = &ws
	}
	h.mu.RUnlock()

	if h.tracker != nil {
		resp.Providers = h.tracker.Snapshot()
	}
	writeJSON(w, resp)
}
