// Package vatsim holds the remote data model of the VATSIM network feeds
// and the parsers that turn feed responses into it.
package vatsim

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoPilots is returned when a data feed response has no "pilots" array.
var ErrNoPilots = errors.New("data feed has no pilots array")

// Pilot is one connected pilot as reported by the data feed.
type Pilot struct {
	CID         int         `json:"cid"`
	Name        string      `json:"name"`
	Callsign    string      `json:"callsign"`
	Transponder string      `json:"transponder"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Altitude    int         `json:"altitude"`
	Groundspeed int         `json:"groundspeed"`
	Heading     int         `json:"heading"`
	QNHInHg     float64     `json:"qnh_i_hg"`
	QNHMb       int         `json:"qnh_mb"`
	FlightPlan  *FlightPlan `json:"flight_plan"`
}

// FlightRules is the filed flight rules of a flight plan.
type FlightRules int

const (
	IFR FlightRules = iota
	VFR
	DVFR
	SVFR
)

var rulesLetters = map[string]FlightRules{
	"I": IFR,
	"V": VFR,
	"D": DVFR,
	"S": SVFR,
}

// Letter returns the single-letter form used by the data feed and FSD.
func (r FlightRules) Letter() string {
	switch r {
	case VFR:
		return "V"
	case DVFR:
		return "D"
	case SVFR:
		return "S"
	default:
		return "I"
	}
}

func (r FlightRules) String() string {
	switch r {
	case VFR:
		return "VFR"
	case DVFR:
		return "DVFR"
	case SVFR:
		return "SVFR"
	default:
		return "IFR"
	}
}

// UnmarshalJSON accepts the feed letters V, D, S and I.
func (r *FlightRules) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, ok := rulesLetters[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return fmt.Errorf("unknown flight rules %q", s)
	}
	*r = v
	return nil
}

// MarshalJSON writes the feed letter.
func (r FlightRules) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Letter())
}

// FlightPlan is a filed flight plan. Values are immutable once decoded.
type FlightPlan struct {
	FlightRules         FlightRules `json:"flight_rules"`
	AircraftFAA         string      `json:"aircraft_faa"`
	AircraftShort       string      `json:"aircraft_short"`
	Aircraft            string      `json:"aircraft"`
	Departure           string      `json:"departure"`
	Arrival             string      `json:"arrival"`
	Alternate           string      `json:"alternate"`
	CruiseTAS           string      `json:"cruise_tas"`
	RawAltitude         string      `json:"altitude"`
	Deptime             string      `json:"deptime"`
	RawEnrouteTime      string      `json:"enroute_time"`
	RawFuelTime         string      `json:"fuel_time"`
	Remarks             string      `json:"remarks"`
	Route               string      `json:"route"`
	RevisionID          int         `json:"revision_id"`
	AssignedTransponder string      `json:"assigned_transponder"`
}

// Altitude returns the filed cruise altitude in feet.
// "350" is 350, "FL350" is 35000, anything unparsable is 0.
func (fp *FlightPlan) Altitude() int {
	s := strings.TrimSpace(fp.RawAltitude)
	if alt, err := strconv.Atoi(s); err == nil {
		return alt
	}
	if len(s) > 2 && strings.HasPrefix(strings.ToUpper(s), "FL") {
		if fl, err := strconv.Atoi(s[2:]); err == nil {
			return fl * 100
		}
	}
	return 0
}

// CruiseSpeed returns the filed true airspeed in knots.
// Knots may carry an N prefix ("N0450"); Mach numbers and garbage give 0.
func (fp *FlightPlan) CruiseSpeed() int {
	s := strings.TrimSpace(fp.CruiseTAS)
	if len(s) > 1 && (s[0] == 'N' || s[0] == 'n') {
		s = s[1:]
	}
	tas, err := strconv.Atoi(s)
	if err != nil || tas < 0 {
		return 0
	}
	return tas
}

// DepartureTime returns the filed departure time.
func (fp *FlightPlan) DepartureTime() (hours, minutes int) {
	return hhmm(fp.Deptime)
}

// EnrouteTime returns the filed time en route.
func (fp *FlightPlan) EnrouteTime() (hours, minutes int) {
	return hhmm(fp.RawEnrouteTime)
}

// FuelTime returns the filed endurance.
func (fp *FlightPlan) FuelTime() (hours, minutes int) {
	return hhmm(fp.RawFuelTime)
}

// hhmm splits a four-digit "HHMM" string. Short or malformed input gives (0, 0).
func hhmm(s string) (hours, minutes int) {
	if len(s) < 4 {
		return 0, 0
	}
	h, err := strconv.ParseUint(s[0:2], 10, 8)
	if err != nil {
		return 0, 0
	}
	m, err := strconv.ParseUint(s[2:4], 10, 8)
	if err != nil {
		return 0, 0
	}
	return int(h), int(m)
}

// DecodePilots parses a data feed response.
// Entries that fail to decode are skipped and counted; only a missing or
// malformed top-level "pilots" array is an error.
func DecodePilots(body []byte) (pilots []Pilot, skipped int, err error) {
	var feed struct {
		Pilots *[]json.RawMessage `json:"pilots"`
	}
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, 0, fmt.Errorf("decode data feed: %w", err)
	}
	if feed.Pilots == nil {
		return nil, 0, ErrNoPilots
	}

	pilots = make([]Pilot, 0, len(*feed.Pilots))
	for _, raw := range *feed.Pilots {
		var p Pilot
		if err := json.Unmarshal(raw, &p); err != nil || p.Callsign == "" {
			skipped++
			continue
		}
		pilots = append(pilots, p)
	}
	return pilots, skipped, nil
}
