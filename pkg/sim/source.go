// Package sim provides the telemetry source interface and snapshot types.
package sim

import (
	"bytes"
	"context"
	"math"
	"unicode/utf8"
)

// Source reads traffic and own-aircraft state from a running simulator.
// A Source is used from a single goroutine.
type Source interface {
	// Connect opens the link and reports the versions on the other side.
	Connect(ctx context.Context) (VersionInfo, error)
	// Aircraft returns the AI traffic table for ground or airborne aircraft.
	Aircraft(ctx context.Context, onGround bool) ([]AircraftSnapshot, error)
	// OwnAircraft returns the user aircraft state.
	OwnAircraft(ctx context.Context) (OwnAircraft, error)
	// Close releases the link.
	Close() error
}

// CallsignSize is the fixed callsign buffer length of a traffic slot.
const CallsignSize = 15

// AircraftSnapshot is one traffic slot as read from the simulator.
type AircraftSnapshot struct {
	ID            uint32
	Lat           float32
	Lon           float32
	Alt           float32 // feet
	Heading       uint16  // 65536 units per turn
	GroundSpeed   uint16  // knots
	VerticalSpeed int16   // feet per minute
	Callsign      [CallsignSize]byte
	State         AircraftState
	Com1          uint16 // BCD, without the leading 1
}

// OwnAircraft is the user aircraft state.
type OwnAircraft struct {
	Lat         float64
	Lon         float64
	Alt         float64 // feet
	TrueHeading float64 // degrees
	GroundSpeed float64 // knots
	Transponder string
}

// VersionInfo describes the connected link.
type VersionInfo struct {
	Link      string `json:"link"`
	Simulator string `json:"simulator"`
	Library   uint32 `json:"library"`
}

// headingUnitsPerDegree converts the 16-bit heading to degrees.
const headingUnitsPerDegree = 182.044444444

// HeadingDegrees converts a raw heading to whole degrees, rounding down.
func HeadingDegrees(raw uint16) float64 {
	return math.Floor(float64(raw) / headingUnitsPerDegree)
}

// DecodeCallsign reads a NUL-terminated callsign. It reports false when the
// buffer has no terminator, is not valid UTF-8 or is empty.
func DecodeCallsign(b []byte) (string, bool) {
	idx := bytes.IndexByte(b, 0)
	if idx < 0 {
		return "", false
	}
	b = b[:idx]
	if len(b) == 0 || !utf8.Valid(b) {
		return "", false
	}
	return string(b), true
}

// CallsignOf decodes the callsign of a snapshot.
func (a AircraftSnapshot) CallsignOf() (string, bool) {
	return DecodeCallsign(a.Callsign[:])
}

// PutCallsign stores s into a callsign buffer, truncated to leave room for the terminator.
func PutCallsign(s string) [CallsignSize]byte {
	var b [CallsignSize]byte
	copy(b[:CallsignSize-1], s)
	return b
}
