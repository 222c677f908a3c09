package core

import (
	"context"
	"math"
	"strconv"
	"strings"

	"trafficviewer/pkg/cache"
	"trafficviewer/pkg/fsd"
	"trafficviewer/pkg/sim"
	"trafficviewer/pkg/vatsim"
)

// standardPressure is the altimeter setting of the standard atmosphere.
const standardPressure = 29.92

// position is where the simulator shows an aircraft.
type position struct {
	lat, lon    float64
	alt         float64
	heading     float64
	groundSpeed int
	onGround    bool
}

func (o *Orchestrator) syncTraffic(ctx context.Context) {
	var all []sim.AircraftSnapshot
	failed := false
	for _, onGround := range []bool{true, false} {
		list, err := o.src.Aircraft(ctx, onGround)
		if err != nil {
			o.logger.Warn("Traffic read failed", "ground", onGround, "error", err)
			failed = true
			continue
		}
		all = append(all, list...)
	}
	o.setSimState(failed)

	matched := 0
	for _, a := range all {
		if a.ID == 0 {
			continue
		}
		callsign, ok := a.CallsignOf()
		if !ok {
			continue
		}

		pos := position{
			lat:         float64(a.Lat),
			lon:         float64(a.Lon),
			alt:         float64(a.Alt),
			heading:     sim.HeadingDegrees(a.Heading),
			groundSpeed: int(a.GroundSpeed),
			onGround:    a.State.OnGround(),
		}

		entry, ok := o.flights.Take(callsign)
		if !ok {
			o.pending = append(o.pending, Traffic{
				Callsign:    callsign,
				Lat:         pos.lat,
				Lon:         pos.lon,
				Altitude:    pos.alt,
				PressureAlt: pos.alt,
				Heading:     pos.heading,
				GroundSpeed: pos.groundSpeed,
				OnGround:    pos.onGround,
			})
			continue
		}
		matched++
		o.emit(callsign, entry, pos, entry.Pilot.Transponder, false)
	}
	o.logger.Debug("Traffic synchronized", "seen", len(all), "matched", matched)
}

func (o *Orchestrator) syncOwnAircraft(ctx context.Context) {
	callsign := o.controller()
	if callsign == "" {
		return
	}
	own, err := o.src.OwnAircraft(ctx)
	if err != nil {
		o.logger.Warn("Own aircraft read failed", "error", err)
		o.setSimState(true)
		return
	}
	entry, ok := o.flights.Take(callsign)
	if !ok {
		return
	}
	pos := position{
		lat:         own.Lat,
		lon:         own.Lon,
		alt:         own.Alt,
		heading:     own.TrueHeading,
		groundSpeed: int(math.Floor(own.GroundSpeed)),
	}
	o.emit(callsign, entry, pos, own.Transponder, true)
}

// emit sends the flight plan when it changed, then the position.
func (o *Orchestrator) emit(callsign string, e cache.Entry, pos position, squawk string, own bool) {
	fp := e.Pilot.FlightPlan
	if e.Dirty && fp != nil {
		if o.relay.Send(flightPlanMessage(callsign, o.addressee(), fp)) {
			o.update(func(s *Status) { s.PlansSent++ })
		}
	}

	code := parseSquawk(squawk)
	pressureAlt := pos.alt - altitudeCorrection(e.Pilot.QNHInHg)
	msg := &fsd.PilotPosition{
		Mode:        fsd.ModeC,
		Callsign:    callsign,
		Squawk:      code,
		Rating:      fsd.RatingStudent,
		Lat:         pos.lat,
		Lon:         pos.lon,
		TrueAlt:     pos.alt,
		PressureAlt: pressureAlt,
		GroundSpeed: pos.groundSpeed,
		PBH:         fsd.PBH{Heading: pos.heading},
	}
	if o.relay.Send(msg) {
		o.update(func(s *Status) { s.PositionsSent++ })
	}

	t := Traffic{
		Callsign:    callsign,
		Lat:         pos.lat,
		Lon:         pos.lon,
		Altitude:    pos.alt,
		PressureAlt: pressureAlt,
		Heading:     pos.heading,
		GroundSpeed: pos.groundSpeed,
		Squawk:      code.String(),
		OnGround:    pos.onGround,
		Own:         own,
		Matched:     true,
	}
	if fp != nil {
		t.Departure, t.Arrival, t.AircraftFAA = fp.Departure, fp.Arrival, fp.AircraftFAA
	}
	o.pending = append(o.pending, t)
}

// addressee is the registered controller, or every controller before registration.
func (o *Orchestrator) addressee() string {
	if cs := o.controller(); cs != "" {
		return cs
	}
	return fsd.BroadcastATC
}

func (o *Orchestrator) setSimState(failed bool) {
	state := sim.StateConnected
	if failed {
		state = sim.StateDegraded
	}
	o.update(func(s *Status) { s.Sim = state })
}

// altitudeCorrection is the pressure altitude offset in feet for an
// altimeter setting in inches of mercury, rounded to 0.01 inHg.
func altitudeCorrection(qnh float64) float64 {
	return math.Round((qnh-standardPressure)*100) / 100 * 1000
}

// parseSquawk reads a decimal transponder string. Anything that is not a
// valid code gives 0000.
func parseSquawk(s string) fsd.TransponderCode {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	code, err := fsd.NewTransponderCode(v)
	if err != nil {
		return 0
	}
	return code
}

func flightPlanMessage(callsign, to string, fp *vatsim.FlightPlan) *fsd.FlightPlan {
	hEnroute, mEnroute := fp.EnrouteTime()
	hFuel, mFuel := fp.FuelTime()
	etd := atoiOrZero(fp.Deptime)
	return &fsd.FlightPlan{
		Callsign:     callsign,
		To:           to,
		Rules:        fp.FlightRules.Letter(),
		AircraftType: fp.AircraftFAA,
		FiledTAS:     fp.CruiseSpeed(),
		Origin:       fp.Departure,
		ETD:          etd,
		ATD:          etd,
		CruiseLevel:  fp.Altitude(),
		Destination:  fp.Arrival,
		HoursEnroute: hEnroute,
		MinsEnroute:  mEnroute,
		HoursFuel:    hFuel,
		MinsFuel:     mFuel,
		Alternate:    fp.Alternate,
		Remarks:      fp.Remarks,
		Route:        fp.Route,
	}
}

func atoiOrZero(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
