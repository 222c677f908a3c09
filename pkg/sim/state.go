package sim

// State is the connection state of the telemetry link.
type State string

const (
	// StateDisconnected indicates no link to the simulator.
	StateDisconnected State = "disconnected"
	// StateConnected indicates an open link.
	StateConnected State = "connected"
	// StateDegraded indicates an open link whose last read failed.
	StateDegraded State = "degraded"
)

// AircraftState is the AI traffic state code of a traffic slot.
type AircraftState uint8

const (
	AircraftInitialising AircraftState = iota + 128
	AircraftSleeping
	AircraftFilingFlightPlan
	AircraftObtainingClearance
	AircraftPushBack
	AircraftPushBackTurning
	AircraftStartingUp
	AircraftPreparingToTaxi
	AircraftTaxiingOut
	AircraftLiningUp
	AircraftTakingOff
	AircraftDeparting
	AircraftEnroute
	AircraftInCircuit
	AircraftLanding
	AircraftRollingOut
	AircraftGoingAround
	AircraftTaxiingIn
	AircraftShuttingDown
)

var aircraftStateNames = [...]string{
	"initialising",
	"sleeping",
	"filing_flight_plan",
	"obtaining_clearance",
	"push_back",
	"push_back_turning",
	"starting_up",
	"preparing_to_taxi",
	"taxiing_out",
	"lining_up",
	"taking_off",
	"departing",
	"enroute",
	"in_circuit",
	"landing",
	"rolling_out",
	"going_around",
	"taxiing_in",
	"shutting_down",
}

func (s AircraftState) String() string {
	idx := int(s) - int(AircraftInitialising)
	if idx < 0 || idx >= len(aircraftStateNames) {
		return "unknown"
	}
	return aircraftStateNames[idx]
}

// OnGround reports whether the state is a ground phase.
func (s AircraftState) OnGround() bool {
	switch s {
	case AircraftInitialising, AircraftSleeping, AircraftFilingFlightPlan,
		AircraftObtainingClearance, AircraftPushBack, AircraftPushBackTurning,
		AircraftStartingUp, AircraftPreparingToTaxi, AircraftTaxiingOut,
		AircraftLiningUp, AircraftRollingOut, AircraftTaxiingIn, AircraftShuttingDown:
		return true
	}
	return false
}
