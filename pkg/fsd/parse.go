package fsd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformed is returned for a known message type with bad fields.
	ErrMalformed = errors.New("malformed fsd message")
	// ErrUnknown is returned for a message type this relay does not handle.
	ErrUnknown = errors.New("unknown fsd message")
)

// Parse decodes one protocol line. Surrounding whitespace, including the
// CR LF terminator, is ignored.
func Parse(line string) (Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("%w: empty line", ErrMalformed)
	}

	if strings.HasPrefix(line, "@") {
		return parsePilotPosition(line[1:])
	}
	if len(line) < 3 {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, line)
	}

	body := line[3:]
	switch line[:3] {
	case "#AA":
		return parseAtcRegister(body)
	case "#DA":
		return parseAtcDeregister(body)
	case "#TM":
		return parseTextMessage(body)
	case "$AX":
		return parseMetarRequest(body)
	case "$AR":
		return parseMetarResponse(body)
	case "$FP":
		return parseFlightPlan(body)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknown, line[:3])
	}
}

func malformed(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, kind, fmt.Sprintf(format, args...))
}

func parseAtcRegister(body string) (Message, error) {
	f := strings.Split(body, ":")
	if len(f) < 6 {
		return nil, malformed(KindAtcRegister, "want at least 6 fields, got %d", len(f))
	}
	if f[0] == "" {
		return nil, malformed(KindAtcRegister, "empty callsign")
	}
	rating, err := strconv.Atoi(f[5])
	if err != nil {
		return nil, malformed(KindAtcRegister, "rating %q", f[5])
	}
	m := &AtcRegister{
		From:     f[0],
		To:       f[1],
		RealName: f[2],
		CID:      f[3],
		Password: f[4],
		Rating:   rating,
	}
	if len(f) > 6 {
		m.ProtocolVersion = f[6]
	}
	return m, nil
}

func parseAtcDeregister(body string) (Message, error) {
	f := strings.Split(body, ":")
	if f[0] == "" {
		return nil, malformed(KindAtcDeregister, "empty callsign")
	}
	m := &AtcDeregister{From: f[0]}
	if len(f) > 1 {
		m.CID = f[1]
	}
	return m, nil
}

func parseTextMessage(body string) (Message, error) {
	f := strings.SplitN(body, ":", 3)
	if len(f) < 3 || f[0] == "" || f[1] == "" {
		return nil, malformed(KindTextMessage, "want from:to:text")
	}
	return &TextMessage{From: f[0], To: f[1], Text: f[2]}, nil
}

func parseMetarRequest(body string) (Message, error) {
	f := strings.Split(body, ":")
	if len(f) < 3 {
		return nil, malformed(KindMetarRequest, "want at least 3 fields, got %d", len(f))
	}
	// $AX also carries other requests; only METAR is handled.
	if !strings.EqualFold(f[2], "METAR") {
		return nil, fmt.Errorf("%w: $AX %s", ErrUnknown, f[2])
	}
	if len(f) < 4 || f[0] == "" || f[3] == "" {
		return nil, malformed(KindMetarRequest, "missing sender or station")
	}
	return &MetarRequest{From: f[0], To: f[1], Station: f[3]}, nil
}

func parseMetarResponse(body string) (Message, error) {
	f := strings.SplitN(body, ":", 4)
	if len(f) < 4 || !strings.EqualFold(f[2], "METAR") {
		return nil, malformed(KindMetarResponse, "want from:to:METAR:report")
	}
	return &MetarResponse{From: f[0], To: f[1], Report: f[3]}, nil
}

func parseFlightPlan(body string) (Message, error) {
	// Route is last and keeps any colons.
	f := strings.SplitN(body, ":", 17)
	if len(f) < 17 {
		return nil, malformed(KindFlightPlan, "want 17 fields, got %d", len(f))
	}
	ints := make([]int, 0, 8)
	for _, idx := range []int{4, 6, 7, 8, 10, 11, 12, 13} {
		v, err := atoiDefault(f[idx])
		if err != nil {
			return nil, malformed(KindFlightPlan, "field %d %q", idx, f[idx])
		}
		ints = append(ints, v)
	}
	return &FlightPlan{
		Callsign:     f[0],
		To:           f[1],
		Rules:        f[2],
		AircraftType: f[3],
		FiledTAS:     ints[0],
		Origin:       f[5],
		ETD:          ints[1],
		ATD:          ints[2],
		CruiseLevel:  ints[3],
		Destination:  f[9],
		HoursEnroute: ints[4],
		MinsEnroute:  ints[5],
		HoursFuel:    ints[6],
		MinsFuel:     ints[7],
		Alternate:    f[14],
		Remarks:      f[15],
		Route:        f[16],
	}, nil
}

func parsePilotPosition(body string) (Message, error) {
	f := strings.Split(body, ":")
	if len(f) < 10 {
		return nil, malformed(KindPilotPosition, "want 10 fields, got %d", len(f))
	}

	mode := TransponderMode(f[0])
	switch mode {
	case ModeStandby, ModeC, ModeIdent:
	default:
		return nil, malformed(KindPilotPosition, "mode %q", f[0])
	}

	sq, err := strconv.Atoi(f[2])
	if err != nil {
		return nil, malformed(KindPilotPosition, "squawk %q", f[2])
	}
	code, err := NewTransponderCode(sq)
	if err != nil {
		return nil, err
	}

	rating, err1 := strconv.Atoi(f[3])
	lat, err2 := strconv.ParseFloat(f[4], 64)
	lon, err3 := strconv.ParseFloat(f[5], 64)
	alt, err4 := strconv.ParseFloat(f[6], 64)
	gs, err5 := strconv.Atoi(f[7])
	pbh, err6 := strconv.ParseUint(f[8], 10, 32)
	delta, err7 := strconv.ParseFloat(f[9], 64)
	if err := errors.Join(err1, err2, err3, err4, err5, err6, err7); err != nil {
		return nil, malformed(KindPilotPosition, "%v", err)
	}

	return &PilotPosition{
		Mode:        mode,
		Callsign:    f[1],
		Squawk:      code,
		Rating:      rating,
		Lat:         lat,
		Lon:         lon,
		TrueAlt:     alt,
		PressureAlt: alt + delta,
		GroundSpeed: gs,
		PBH:         UnpackPBH(uint32(pbh)),
	}, nil
}

func atoiDefault(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
