// Package core drives the relay: it answers the controller, keeps the data
// worker on schedule and turns simulator traffic into position reports.
package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"trafficviewer/pkg/cache"
	"trafficviewer/pkg/fsd"
	"trafficviewer/pkg/relay"
	"trafficviewer/pkg/sim"
)

// ErrClientGone is returned by Run once the controller connection is closed.
var ErrClientGone = errors.New("controller connection closed")

// DefaultWelcome is sent to a controller after it registers.
const DefaultWelcome = "Connected to Traffic Viewer. Welcome!"

// Config holds the orchestrator timing.
type Config struct {
	Interval        time.Duration
	SyncEvery       int
	MaxSendFailures int
	Welcome         string
}

// Orchestrator owns the tick loop. All relay and simulator calls happen on
// the goroutine running Run.
type Orchestrator struct {
	cfg     Config
	relay   Relay
	worker  Refresher
	src     sim.Source
	weather *cache.WeatherCache
	flights *cache.FlightCache
	sink    TrafficSink
	jobs    []Job
	logger  *slog.Logger

	tick    uint64
	pending []Traffic

	mu     sync.RWMutex
	status Status
}

// New creates an orchestrator for an accepted controller connection.
func New(cfg Config, r Relay, w Refresher, src sim.Source, c *cache.Cache) *Orchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.SyncEvery < 1 {
		cfg.SyncEvery = 4
	}
	if cfg.MaxSendFailures < 1 {
		cfg.MaxSendFailures = 5
	}
	if cfg.Welcome == "" {
		cfg.Welcome = DefaultWelcome
	}

	o := &Orchestrator{
		cfg:     cfg,
		relay:   r,
		worker:  w,
		src:     src,
		weather: c.Weather,
		flights: c.Flights,
		logger:  slog.With("component", "orchestrator"),
		status:  Status{State: relay.Connected, Sim: sim.StateConnected},
	}
	o.AddJob(NewCycleJob("TrafficSync", cfg.SyncEvery, o.syncTraffic))
	o.AddJob(NewCycleJob("OwnAircraftSync", cfg.SyncEvery, o.syncOwnAircraft))
	return o
}

// AddJob registers a job. Jobs run in registration order.
func (o *Orchestrator) AddJob(j Job) {
	o.jobs = append(o.jobs, j)
}

// SetSink registers the receiver of traffic snapshots. Call before Run.
func (o *Orchestrator) SetSink(s TrafficSink) {
	o.sink = s
}

// Status returns a copy of the current status.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// Run ticks until the controller connection closes, returning ErrClientGone,
// or until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	o.logger.Info("Orchestrator started", "interval", o.cfg.Interval, "sync_every", o.cfg.SyncEvery)

	for {
		if o.step(ctx) {
			return ErrClientGone
		}
		select {
		case <-ctx.Done():
			o.logger.Info("Orchestrator stopped")
			return ctx.Err()
		case <-o.relay.Done():
		case <-ticker.C:
		}
	}
}

// step runs one tick and reports whether the connection is closed.
func (o *Orchestrator) step(ctx context.Context) bool {
	if o.closed() {
		return true
	}

	o.worker.Tick()

	for _, msg := range o.relay.Poll() {
		o.dispatch(msg)
	}

	fired := false
	for _, job := range o.jobs {
		if job.ShouldFire(o.tick) {
			job.Run(ctx)
			fired = true
		}
	}
	if fired {
		o.publish()
	}

	o.tick++
	o.update(func(s *Status) { s.Ticks = o.tick })
	return o.closed()
}

func (o *Orchestrator) closed() bool {
	reason := ""
	select {
	case <-o.relay.Done():
		reason = "reader terminated"
	default:
		if n := o.relay.Failures(); n >= o.cfg.MaxSendFailures {
			reason = "too many failed sends"
		}
	}
	if reason == "" {
		return false
	}

	o.mu.Lock()
	first := o.status.State != relay.Closed
	o.status.State = relay.Closed
	o.mu.Unlock()
	if first {
		o.logger.Info("Controller connection closed", "reason", reason)
	}
	return true
}

func (o *Orchestrator) dispatch(msg fsd.Message) {
	switch m := msg.(type) {
	case *fsd.AtcRegister:
		o.update(func(s *Status) { s.Controller = m.From })
		o.logger.Info("Controller registered", "callsign", m.From, "name", m.RealName, "rating", m.Rating)
		o.relay.Send(fsd.NewTextMessage(fsd.ServerCallsign, m.From, o.cfg.Welcome))

	case *fsd.MetarRequest:
		report, ok := o.weather.Get(m.Station)
		if !ok {
			o.logger.Debug("No METAR for station", "station", m.Station)
			return
		}
		sent := o.relay.Send(&fsd.MetarResponse{From: fsd.MetarSender, To: m.From, Report: report})
		if sent {
			o.update(func(s *Status) { s.MetarsSent++ })
		}
		o.logger.Debug("Sent METAR", "station", m.Station, "ok", sent)

	case *fsd.AtcDeregister:
		o.logger.Info("Controller deregistered", "callsign", m.From)

	default:
		o.logger.Debug("Ignoring message", "kind", msg.Kind())
	}
}

func (o *Orchestrator) controller() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status.Controller
}

func (o *Orchestrator) update(fn func(*Status)) {
	o.mu.Lock()
	fn(&o.status)
	o.mu.Unlock()
}

func (o *Orchestrator) publish() {
	traffic := o.pending
	o.pending = nil
	now := time.Now()
	o.update(func(s *Status) {
		s.Syncs++
		s.LastSync = now
	})
	if o.sink == nil {
		return
	}
	o.sink.UpdateTraffic(Snapshot{
		Time:       now,
		Controller: o.controller(),
		Aircraft:   traffic,
	})
}
