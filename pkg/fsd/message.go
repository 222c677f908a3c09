// Package fsd encodes and parses the text lines of the FSD ATC protocol.
package fsd

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// ServerCallsign is the sender of server-originated text messages.
	ServerCallsign = "SERVER"
	// MetarSender is the sender of weather responses.
	MetarSender = "server"
	// BroadcastATC addresses every connected controller.
	BroadcastATC = "*A"
)

// Message is a single protocol line without its terminator.
type Message interface {
	fmt.Stringer
	Kind() Kind
}

// Kind identifies a message type.
type Kind int

const (
	KindAtcRegister Kind = iota
	KindAtcDeregister
	KindMetarRequest
	KindMetarResponse
	KindTextMessage
	KindFlightPlan
	KindPilotPosition
)

func (k Kind) String() string {
	switch k {
	case KindAtcRegister:
		return "AtcRegister"
	case KindAtcDeregister:
		return "AtcDeregister"
	case KindMetarRequest:
		return "MetarRequest"
	case KindMetarResponse:
		return "MetarResponse"
	case KindTextMessage:
		return "TextMessage"
	case KindFlightPlan:
		return "FlightPlan"
	case KindPilotPosition:
		return "PilotPosition"
	default:
		return "Unknown"
	}
}

// AtcRegister is sent by a controller client when it logs on.
type AtcRegister struct {
	From            string
	To              string
	RealName        string
	CID             string
	Password        string
	Rating          int
	ProtocolVersion string // optional
}

func (m *AtcRegister) Kind() Kind { return KindAtcRegister }

func (m *AtcRegister) String() string {
	s := "#AA" + join(m.From, m.To, m.RealName, m.CID, m.Password, strconv.Itoa(m.Rating))
	if m.ProtocolVersion != "" {
		s += ":" + m.ProtocolVersion
	}
	return s
}

// AtcDeregister is sent by a controller client when it logs off.
type AtcDeregister struct {
	From string
	CID  string // optional
}

func (m *AtcDeregister) Kind() Kind { return KindAtcDeregister }

func (m *AtcDeregister) String() string {
	if m.CID == "" {
		return "#DA" + m.From
	}
	return "#DA" + join(m.From, m.CID)
}

// MetarRequest asks for the current report of a station.
type MetarRequest struct {
	From    string
	To      string
	Station string
}

func (m *MetarRequest) Kind() Kind { return KindMetarRequest }

func (m *MetarRequest) String() string {
	return "$AX" + join(m.From, m.To, "METAR", m.Station)
}

// MetarResponse carries a raw METAR report.
type MetarResponse struct {
	From   string
	To     string
	Report string
}

func (m *MetarResponse) Kind() Kind { return KindMetarResponse }

func (m *MetarResponse) String() string {
	return "$AR" + join(m.From, m.To, "METAR", m.Report)
}

// TextMessage is a private or broadcast text.
type TextMessage struct {
	From string
	To   string
	Text string
}

func (m *TextMessage) Kind() Kind { return KindTextMessage }

func (m *TextMessage) String() string {
	return "#TM" + join(m.From, m.To, m.Text)
}

// NewTextMessage builds a text message.
func NewTextMessage(from, to, text string) *TextMessage {
	return &TextMessage{From: from, To: to, Text: text}
}

// FlightRules letters as used on the wire.
const (
	RulesIFR  = "I"
	RulesVFR  = "V"
	RulesDVFR = "D"
	RulesSVFR = "S"
)

// FlightPlan is a filed flight plan as sent to controllers.
type FlightPlan struct {
	Callsign     string
	To           string
	Rules        string
	AircraftType string
	FiledTAS     int
	Origin       string
	ETD          int
	ATD          int
	CruiseLevel  int
	Destination  string
	HoursEnroute int
	MinsEnroute  int
	HoursFuel    int
	MinsFuel     int
	Alternate    string
	Remarks      string
	Route        string
}

func (m *FlightPlan) Kind() Kind { return KindFlightPlan }

func (m *FlightPlan) String() string {
	return "$FP" + join(
		m.Callsign,
		m.To,
		m.Rules,
		m.AircraftType,
		strconv.Itoa(m.FiledTAS),
		m.Origin,
		strconv.Itoa(m.ETD),
		strconv.Itoa(m.ATD),
		strconv.Itoa(m.CruiseLevel),
		m.Destination,
		strconv.Itoa(m.HoursEnroute),
		strconv.Itoa(m.MinsEnroute),
		strconv.Itoa(m.HoursFuel),
		strconv.Itoa(m.MinsFuel),
		m.Alternate,
		m.Remarks,
		m.Route,
	)
}

// TransponderMode is the first field of a pilot position.
type TransponderMode string

const (
	ModeStandby TransponderMode = "S"
	ModeC       TransponderMode = "N"
	ModeIdent   TransponderMode = "Y"
)

// PilotRating values.
const (
	RatingStudent = 1
)

// PilotPosition is a pilot position update.
type PilotPosition struct {
	Mode        TransponderMode
	Callsign    string
	Squawk      TransponderCode
	Rating      int
	Lat         float64
	Lon         float64
	TrueAlt     float64
	PressureAlt float64
	GroundSpeed int
	PBH         PBH
}

func (m *PilotPosition) Kind() Kind { return KindPilotPosition }

// String encodes the position. The last field is the pressure altitude
// minus the true altitude.
func (m *PilotPosition) String() string {
	return "@" + join(
		string(m.Mode),
		m.Callsign,
		m.Squawk.String(),
		strconv.Itoa(m.Rating),
		strconv.FormatFloat(m.Lat, 'f', 5, 64),
		strconv.FormatFloat(m.Lon, 'f', 5, 64),
		strconv.FormatFloat(m.TrueAlt, 'f', 0, 64),
		strconv.Itoa(m.GroundSpeed),
		strconv.FormatUint(uint64(m.PBH.Pack()), 10),
		strconv.FormatFloat(m.PressureAlt-m.TrueAlt, 'f', 0, 64),
	)
}

func join(fields ...string) string {
	return strings.Join(fields, ":")
}
