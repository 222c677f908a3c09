package vatsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMETARs(t *testing.T) {
	body := "EGLL 121250Z 24012KT 9999 FEW030 14/08 Q1012\r\n" +
		"\n" +
		"ABC short station line\n" +
		"   \n" +
		"KJFK 121251Z 31015G25KT 10SM SCT050 08/M03 A3004\n"

	got := ParseMETARs([]byte(body))

	assert.Equal(t, []Report{
		{Station: "EGLL", Raw: "EGLL 121250Z 24012KT 9999 FEW030 14/08 Q1012"},
		{Station: "KJFK", Raw: "KJFK 121251Z 31015G25KT 10SM SCT050 08/M03 A3004"},
	}, got)
}

func TestParseMETARs_Empty(t *testing.T) {
	assert.Empty(t, ParseMETARs(nil))
	assert.Empty(t, ParseMETARs([]byte("\n\n")))
}
