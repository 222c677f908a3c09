package vatsim

import (
	"bufio"
	"bytes"
	"strings"
)

// Report is one raw METAR line keyed by its station.
type Report struct {
	Station string
	Raw     string
}

// ParseMETARs splits a METAR feed response into reports.
// The station is the first whitespace-separated token of each line; lines
// whose station is shorter than four characters are dropped.
func ParseMETARs(body []byte) []Report {
	var out []Report
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		fields := strings.Fields(line)
		if len(fields) == 0 || len(fields[0]) < 4 {
			continue
		}
		out = append(out, Report{Station: fields[0], Raw: line})
	}
	return out
}
