// Package cache holds the remote data shared between the data worker
// (sole writer) and the orchestrator (reader and only dirty-flag resetter).
package cache

import (
	"sort"
	"strings"
	"sync"

	"trafficviewer/pkg/vatsim"
)

// Cache bundles the weather and flight caches.
type Cache struct {
	Weather *WeatherCache
	Flights *FlightCache
}

// New creates an empty Cache.
func New() *Cache {
	return &Cache{
		Weather: NewWeatherCache(),
		Flights: NewFlightCache(),
	}
}

// WeatherCache maps a station to its latest raw METAR line.
// Stations are case-insensitive.
type WeatherCache struct {
	mu      sync.RWMutex
	reports map[string]string
}

// NewWeatherCache creates an empty WeatherCache.
func NewWeatherCache() *WeatherCache {
	return &WeatherCache{reports: make(map[string]string)}
}

// Set replaces the report of a station.
func (c *WeatherCache) Set(station, line string) {
	key := strings.ToUpper(station)
	c.mu.Lock()
	c.reports[key] = line
	c.mu.Unlock()
}

// Get returns the report of a station.
func (c *WeatherCache) Get(station string) (string, bool) {
	key := strings.ToUpper(station)
	c.mu.RLock()
	defer c.mu.RUnlock()
	line, ok := c.reports[key]
	return line, ok
}

// Len returns the number of stations.
func (c *WeatherCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.reports)
}

// Stations returns the sorted station keys.
func (c *WeatherCache) Stations() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.reports))
	for k := range c.reports {
		out = append(out, k)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Entry is a flight record together with its dirty flag.
// Dirty means the flight plan has to be (re)sent.
type Entry struct {
	Pilot vatsim.Pilot
	Dirty bool
}

// FlightCache maps a callsign to its latest flight record.
// Callsigns are case-insensitive.
type FlightCache struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewFlightCache creates an empty FlightCache.
func NewFlightCache() *FlightCache {
	return &FlightCache{entries: make(map[string]*Entry)}
}

// Merge stores p and reports whether its callsign was new.
// The entry stays clean only when both the stored and the new record carry
// a flight plan with the same revision; every other case marks it dirty.
func (c *FlightCache) Merge(p vatsim.Pilot) (inserted bool) {
	key := strings.ToUpper(p.Callsign)

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.entries[key]
	if !ok {
		c.entries[key] = &Entry{Pilot: p, Dirty: true}
		return true
	}

	dirty := true
	if prev.Pilot.FlightPlan != nil && p.FlightPlan != nil &&
		prev.Pilot.FlightPlan.RevisionID == p.FlightPlan.RevisionID {
		dirty = false
	}
	prev.Pilot = p
	prev.Dirty = dirty
	return false
}

// Take returns the entry for callsign and clears its dirty flag.
// The returned entry carries the flag as it was before the call.
func (c *FlightCache) Take(callsign string) (Entry, bool) {
	key := strings.ToUpper(callsign)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	out := *e
	e.Dirty = false
	return out, true
}

// Peek returns the entry for callsign without touching its dirty flag.
func (c *FlightCache) Peek(callsign string) (Entry, bool) {
	key := strings.ToUpper(callsign)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of known callsigns.
func (c *FlightCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
