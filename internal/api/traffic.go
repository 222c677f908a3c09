package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"trafficviewer/pkg/core"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamPingInterval = 30 * time.Second
)

// TrafficHandler keeps the latest traffic picture and streams updates.
// It implements core.TrafficSink.
type TrafficHandler struct {
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	latest core.Snapshot
	subs   map[chan core.Snapshot]struct{}
}

func NewTrafficHandler() *TrafficHandler {
	return &TrafficHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		subs: make(map[chan core.Snapshot]struct{}),
	}
}

// UpdateTraffic implements core.TrafficSink. Slow subscribers only see the newest snapshot.
func (h *TrafficHandler) UpdateTraffic(s core.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = s
	for ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// Latest returns the most recent snapshot.
func (h *TrafficHandler) Latest() core.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// HandleTraffic returns the latest snapshot as a GeoJSON FeatureCollection.
func (h *TrafficHandler) HandleTraffic(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(FeatureCollection(h.Latest())); err != nil {
		slog.Error("Failed to encode traffic response", "error", err)
	}
}

// HandleStream upgrades to a websocket and pushes every snapshot.
func (h *TrafficHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Traffic stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// The reader only exists to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	if err := writeSnapshot(conn, h.Latest()); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case s := <-ch:
			if err := writeSnapshot(conn, s); err != nil {
				slog.Debug("Traffic stream closed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *TrafficHandler) subscribe() chan core.Snapshot {
	ch := make(chan core.Snapshot, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *TrafficHandler) unsubscribe(ch chan core.Snapshot) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *TrafficHandler) subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func writeSnapshot(conn *websocket.Conn, s core.Snapshot) error {
	b, err := json.Marshal(FeatureCollection(s))
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// FeatureCollection renders a snapshot as GeoJSON points.
func FeatureCollection(s core.Snapshot) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, a := range s.Aircraft {
		f := geojson.NewFeature(orb.Point{a.Lon, a.Lat})
		f.ID = a.Callsign
		f.Properties["callsign"] = a.Callsign
		f.Properties["altitude"] = a.Altitude
		f.Properties["pressure_altitude"] = a.PressureAlt
		f.Properties["heading"] = a.Heading
		f.Properties["groundspeed"] = a.GroundSpeed
		f.Properties["on_ground"] = a.OnGround
		f.Properties["matched"] = a.Matched
		if a.Own {
			f.Properties["own"] = true
		}
		if a.Squawk != "" {
			f.Properties["squawk"] = a.Squawk
		}
		if a.Departure != "" || a.Arrival != "" {
			f.Properties["departure"] = a.Departure
			f.Properties["arrival"] = a.Arrival
			f.Properties["aircraft"] = a.AircraftFAA
		}
		fc.Append(f)
	}
	if !s.Time.IsZero() {
		fc.ExtraMembers = geojson.Properties{
			"time":       s.Time.UTC().Format(time.RFC3339),
			"controller": s.Controller,
		}
	}
	return fc
}
