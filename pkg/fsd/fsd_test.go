package fsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "welcome text",
			msg:  NewTextMessage(ServerCallsign, "EGLL_TWR", "Connected to Traffic Viewer. Welcome!"),
			want: "#TMSERVER:EGLL_TWR:Connected to Traffic Viewer. Welcome!",
		},
		{
			name: "metar response",
			msg:  &MetarResponse{From: MetarSender, To: "EGLL_TWR", Report: "EGLL 121250Z 24012KT 9999 FEW030 14/08 Q1012"},
			want: "$ARserver:EGLL_TWR:METAR:EGLL 121250Z 24012KT 9999 FEW030 14/08 Q1012",
		},
		{
			name: "metar request",
			msg:  &MetarRequest{From: "EGLL_TWR", To: "SERVER", Station: "EGKK"},
			want: "$AXEGLL_TWR:SERVER:METAR:EGKK",
		},
		{
			name: "register",
			msg:  &AtcRegister{From: "EGLL_TWR", To: "SERVER", RealName: "Jane", CID: "1234567", Password: "pw", Rating: 5, ProtocolVersion: "100"},
			want: "#AAEGLL_TWR:SERVER:Jane:1234567:pw:5:100",
		},
		{
			name: "deregister",
			msg:  &AtcDeregister{From: "EGLL_TWR", CID: "1234567"},
			want: "#DAEGLL_TWR:1234567",
		},
		{
			name: "flight plan",
			msg: &FlightPlan{
				Callsign: "BAW123", To: "EGLL_TWR", Rules: RulesIFR, AircraftType: "H/B772/L",
				FiledTAS: 488, Origin: "EGLL", ETD: 1430, ATD: 1430, CruiseLevel: 35000,
				Destination: "KJFK", HoursEnroute: 7, MinsEnroute: 45, HoursFuel: 9, MinsFuel: 30,
				Alternate: "KBOS", Remarks: "/v/", Route: "CPT3F CPT UL9 KENET",
			},
			want: "$FPBAW123:EGLL_TWR:I:H/B772/L:488:EGLL:1430:1430:35000:KJFK:7:45:9:30:KBOS:/v/:CPT3F CPT UL9 KENET",
		},
		{
			name: "pilot position",
			msg: &PilotPosition{
				Mode: ModeC, Callsign: "BAW123", Squawk: 4521, Rating: RatingStudent,
				Lat: 51.47, Lon: -0.4543, TrueAlt: 3000, PressureAlt: 2970, GroundSpeed: 160,
				PBH: PBH{Heading: 270},
			},
			want: "@N:BAW123:4521:1:51.47000:-0.45430:3000:160:3072:-30",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.String())
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	lines := []string{
		"#AAEGLL_TWR:SERVER:Jane Doe:1234567:secret:5:100",
		"#AAEGLL_TWR:SERVER:Jane Doe:1234567:secret:5",
		"#DAEGLL_TWR:1234567",
		"#DAEGLL_TWR",
		"$AXEGLL_TWR:SERVER:METAR:EGKK",
		"$ARserver:EGLL_TWR:METAR:EGLL 121250Z 24012KT 9999 FEW030 14/08 Q1012",
		"#TMEGLL_TWR:BAW123:hello: with a colon",
		"$FPBAW123:EGLL_TWR:I:H/B772/L:488:EGLL:1430:1430:35000:KJFK:7:45:9:30:KBOS:/v/:CPT3F CPT UL9 KENET",
		"@N:BAW123:4521:1:51.47000:-0.45430:3000:160:3072:-30",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			msg, err := Parse(line + "\r\n")
			require.NoError(t, err)
			assert.Equal(t, line, msg.String())
		})
	}
}

func TestParse_Kinds(t *testing.T) {
	msg, err := Parse("#AAEGLL_TWR:SERVER:Jane:1234567:pw:5:100\n")
	require.NoError(t, err)
	reg, ok := msg.(*AtcRegister)
	require.True(t, ok)
	assert.Equal(t, KindAtcRegister, reg.Kind())
	assert.Equal(t, "EGLL_TWR", reg.From)
	assert.Equal(t, 5, reg.Rating)

	msg, err = Parse("  #DAEGLL_TWR:1234567 \t\r\n")
	require.NoError(t, err)
	assert.Equal(t, "1234567", msg.(*AtcDeregister).CID)

	msg, err = Parse("$AXEGLL_TWR:SERVER:METAR:egkk")
	require.NoError(t, err)
	req, ok := msg.(*MetarRequest)
	require.True(t, ok)
	assert.Equal(t, "egkk", req.Station)
	assert.Equal(t, "EGLL_TWR", req.From)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"#AAFROM:SERVER::text\r\n", ErrMalformed},
		{"#AAEGLL_TWR:SERVER:Jane:123:pw:five", ErrMalformed},
		{"#AA:SERVER:Jane:123:pw:5", ErrMalformed},
		{"", ErrMalformed},
		{"\r\n", ErrMalformed},
		{"#DA", ErrMalformed},
		{"#TMEGLL_TWR", ErrMalformed},
		{"$AXEGLL_TWR:SERVER:METAR", ErrMalformed},
		{"$AXEGLL_TWR:BAW123:ATIS", ErrUnknown},
		{"$FPBAW123:EGLL_TWR:I", ErrMalformed},
		{"@N:BAW123:4581:1:51.4:-0.4:3000:160:0:0", ErrMalformed},
		{"@Q:BAW123:4521:1:51.4:-0.4:3000:160:0:0", ErrMalformed},
		{"@N:BAW123:4521:1:north:-0.4:3000:160:0:0", ErrMalformed},
		{"%EGLL_TWR:29430:3:100:7:51.47:-0.45:0", ErrUnknown},
		{"#A", ErrUnknown},
		{"garbage", ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			msg, err := Parse(tt.line)
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTransponderCode(t *testing.T) {
	tests := []struct {
		in      int
		want    string
		wantErr bool
	}{
		{0, "0000", false},
		{1200, "1200", false},
		{7700, "7700", false},
		{7777, "7777", false},
		{17, "0017", false},
		{7778, "", true},
		{8000, "", true},
		{1280, "", true},
		{-1, "", true},
		{10000, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			code, err := NewTransponderCode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, code.String())
		})
	}
}

func TestPBH(t *testing.T) {
	tests := []struct {
		name string
		in   PBH
	}{
		{"level north", PBH{}},
		{"heading 270", PBH{Heading: 270}},
		{"climbing left turn", PBH{Pitch: 5, Bank: -20, Heading: 93}},
		{"on ground", PBH{Heading: 180, OnGround: true}},
	}
	const res = 360.0 / 1024.0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnpackPBH(tt.in.Pack())
			assert.InDelta(t, tt.in.Pitch, got.Pitch, res)
			assert.InDelta(t, tt.in.Bank, got.Bank, res)
			assert.InDelta(t, tt.in.Heading, got.Heading, res)
			assert.Equal(t, tt.in.OnGround, got.OnGround)
		})
	}

	assert.Equal(t, uint32(768<<2), PBH{Heading: 270}.Pack())
	assert.Equal(t, uint32(1<<1), PBH{OnGround: true}.Pack())
}

func TestWireCharset(t *testing.T) {
	raw := []byte{'#', 'T', 'M', 'A', ':', 'B', ':', 'M', 0xFC, 'n', 'c', 'h', 'e', 'n'}
	s := DecodeWire(raw)
	assert.Equal(t, "#TMA:B:München", s)
	assert.Equal(t, raw, EncodeWire(s))

	// Outside latin-1 is replaced, never dropped
	out := EncodeWire("a€b")
	assert.Len(t, out, 3)
	assert.Equal(t, byte('a'), out[0])
	assert.Equal(t, byte('b'), out[2])
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "AtcRegister", KindAtcRegister.String())
	assert.Equal(t, "PilotPosition", KindPilotPosition.String())
	assert.Equal(t, "Unknown", Kind(99).String())
}
