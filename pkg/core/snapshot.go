package core

import (
	"time"

	"trafficviewer/pkg/relay"
	"trafficviewer/pkg/sim"
)

// Traffic is one aircraft seen during a synchronization.
type Traffic struct {
	Callsign    string  `json:"callsign"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Altitude    float64 `json:"altitude"`
	PressureAlt float64 `json:"pressure_altitude"`
	Heading     float64 `json:"heading"`
	GroundSpeed int     `json:"groundspeed"`
	Squawk      string  `json:"squawk,omitempty"`
	OnGround    bool    `json:"on_ground"`
	Own         bool    `json:"own,omitempty"`
	// Matched is set when the network knows the callsign.
	Matched     bool   `json:"matched"`
	Departure   string `json:"departure,omitempty"`
	Arrival     string `json:"arrival,omitempty"`
	AircraftFAA string `json:"aircraft,omitempty"`
}

// Snapshot is the traffic picture of one synchronization.
type Snapshot struct {
	Time       time.Time `json:"time"`
	Controller string    `json:"controller,omitempty"`
	Aircraft   []Traffic `json:"aircraft"`
}

// Status summarizes the orchestrator for the status API.
type Status struct {
	State         relay.State `json:"state"`
	Sim           sim.State   `json:"sim"`
	Controller    string      `json:"controller,omitempty"`
	Ticks         uint64      `json:"ticks"`
	Syncs         uint64      `json:"syncs"`
	PositionsSent uint64      `json:"positions_sent"`
	PlansSent     uint64      `json:"plans_sent"`
	MetarsSent    uint64      `json:"metars_sent"`
	LastSync      time.Time   `json:"last_sync,omitzero"`
}
