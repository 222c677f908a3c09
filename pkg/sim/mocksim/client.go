// Package mocksim provides a deterministic simulator for development and tests.
package mocksim

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"trafficviewer/pkg/sim"
)

const (
	metresPerNM    = 1852.0
	fieldElevation = 83.0 // feet

	groundRadiusNM = 0.3
	groundSpeedKT  = 12

	ownRadiusNM = 8.0
	ownSpeedKT  = 140.0
	ownAltFT    = 2500.0
)

// Config holds the mock scenario.
type Config struct {
	CenterLat float64
	CenterLon float64
	// Traffic lists the callsigns of the simulated AI aircraft.
	Traffic []string
	// Transponder is the own aircraft squawk.
	Transponder string
	// ConnectFailures answers Connect with "not running" this many times first.
	ConnectFailures int
	// ConnectErr, when set, is returned after ConnectFailures instead of connecting.
	ConnectErr error
}

// Client implements sim.Source. Every third aircraft taxies around the
// center point, the rest orbit it at increasing range and altitude.
// Positions are a pure function of the time since Connect.
type Client struct {
	cfg    Config
	center orb.Point
	now    func() time.Time
	logger *slog.Logger

	mu          sync.Mutex
	connected   bool
	attempts    int
	start       time.Time
	transponder string
}

var _ sim.Source = (*Client)(nil)

// NewClient creates a mock simulator.
func NewClient(cfg Config) *Client {
	return newClient(cfg, time.Now)
}

func newClient(cfg Config, now func() time.Time) *Client {
	xpdr := cfg.Transponder
	if xpdr == "" {
		xpdr = "7000"
	}
	return &Client{
		cfg:         cfg,
		center:      orb.Point{cfg.CenterLon, cfg.CenterLat},
		now:         now,
		logger:      slog.With("component", "mocksim"),
		transponder: xpdr,
	}
}

// Connect succeeds once the scripted failures are used up.
func (c *Client) Connect(ctx context.Context) (sim.VersionInfo, error) {
	if err := ctx.Err(); err != nil {
		return sim.VersionInfo{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return sim.VersionInfo{}, &sim.LinkError{Code: sim.CodeOpen}
	}
	c.attempts++
	if c.attempts <= c.cfg.ConnectFailures {
		return sim.VersionInfo{}, &sim.LinkError{Code: sim.CodeNoSimConnection}
	}
	if c.cfg.ConnectErr != nil {
		return sim.VersionInfo{}, c.cfg.ConnectErr
	}

	c.connected = true
	c.start = c.now()
	c.logger.Info("Mock simulator connected", "traffic", len(c.cfg.Traffic))
	return sim.VersionInfo{Link: "mock", Simulator: "Mock Simulator", Library: 1}, nil
}

// Attempts returns the number of Connect calls so far.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Aircraft returns the ground or airborne subset of the scenario.
func (c *Client) Aircraft(ctx context.Context, onGround bool) ([]sim.AircraftSnapshot, error) {
	elapsed, err := c.elapsed(ctx)
	if err != nil {
		return nil, err
	}

	var out []sim.AircraftSnapshot
	for i, callsign := range c.cfg.Traffic {
		ground := i%3 == 0
		if ground != onGround {
			continue
		}
		out = append(out, c.snapshot(i, callsign, elapsed))
	}
	return out, nil
}

// OwnAircraft returns the user aircraft flying a wide orbit.
func (c *Client) OwnAircraft(ctx context.Context) (sim.OwnAircraft, error) {
	elapsed, err := c.elapsed(ctx)
	if err != nil {
		return sim.OwnAircraft{}, err
	}
	c.mu.Lock()
	xpdr := c.transponder
	c.mu.Unlock()

	pos, hdg := orbit(c.center, ownRadiusNM, ownSpeedKT, 180, elapsed)
	return sim.OwnAircraft{
		Lat:         pos.Lat(),
		Lon:         pos.Lon(),
		Alt:         ownAltFT,
		TrueHeading: hdg,
		GroundSpeed: ownSpeedKT,
		Transponder: xpdr,
	}, nil
}

// SetTransponder updates the own aircraft squawk.
func (c *Client) SetTransponder(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transponder = code
}

// Close disconnects. A later Connect starts the scenario over.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

func (c *Client) elapsed(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return 0, &sim.LinkError{Code: sim.CodeNotOpen}
	}
	return c.now().Sub(c.start), nil
}

func (c *Client) snapshot(i int, callsign string, elapsed time.Duration) sim.AircraftSnapshot {
	phase := float64(i) * 360 / float64(len(c.cfg.Traffic))
	a := sim.AircraftSnapshot{
		ID:       uint32(i + 1),
		Callsign: sim.PutCallsign(callsign),
	}

	if i%3 == 0 {
		pos, hdg := orbit(c.center, groundRadiusNM, groundSpeedKT, phase, elapsed)
		a.Lat, a.Lon = float32(pos.Lat()), float32(pos.Lon())
		a.Alt = fieldElevation
		a.Heading = rawHeading(hdg)
		a.GroundSpeed = groundSpeedKT
		a.State = sim.AircraftTaxiingOut
		return a
	}

	radius := 3 + 2*float64(i)
	speed := 160 + 20*float64(i)
	pos, hdg := orbit(c.center, radius, speed, phase, elapsed)
	a.Lat, a.Lon = float32(pos.Lat()), float32(pos.Lon())
	a.Alt = float32(2000 + 1000*i)
	a.Heading = rawHeading(hdg)
	a.GroundSpeed = uint16(speed)
	a.State = sim.AircraftEnroute
	return a
}

// orbit returns the position on a clockwise circle around center and the
// tangent heading.
func orbit(center orb.Point, radiusNM, speedKT, phase float64, elapsed time.Duration) (orb.Point, float64) {
	travelled := speedKT * elapsed.Hours()
	swept := travelled / (2 * math.Pi * radiusNM) * 360
	bearing := math.Mod(phase+swept, 360)
	pos := geo.PointAtBearingAndDistance(center, bearing, radiusNM*metresPerNM)
	return pos, math.Mod(bearing+90, 360)
}

func rawHeading(deg float64) uint16 {
	return uint16(math.Mod(deg, 360) * 65536 / 360)
}
