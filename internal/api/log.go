package api

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// slog text records: key=value or key="quoted value".
var logAttr = regexp.MustCompile(`([\w.\-]+)=(?:"((?:[^"\\]|\\.)*)"|(\S+))`)

// maxAttrLen drops attributes too long for a one-line status.
const maxAttrLen = 40

// summarizeLogLine turns a captured slog text record into
// "15:04:05 LEVEL message (key=value, ...)" with attributes sorted by key.
// Lines that are not slog records are returned unchanged.
func summarizeLogLine(raw string) string {
	var stamp, level, msg string
	var attrs []string
	for _, m := range logAttr.FindAllStringSubmatch(raw, -1) {
		val := m[3]
		if m[2] != "" {
			val = m[2]
		}
		switch m[1] {
		case "time":
			if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
				stamp = t.Format("15:04:05")
			}
		case "level":
			level = val
		case "msg":
			msg = val
		case "source":
		default:
			if len(val) <= maxAttrLen {
				attrs = append(attrs, m[1]+"="+val)
			}
		}
	}
	if msg == "" {
		return raw
	}

	out := strings.TrimSpace(strings.Join([]string{stamp, level, msg}, " "))
	if len(attrs) == 0 {
		return out
	}
	sort.Strings(attrs)
	return fmt.Sprintf("%s (%s)", out, strings.Join(attrs, ", "))
}
