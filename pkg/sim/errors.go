package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSimConnection means the simulator is not running or not reachable yet.
	ErrNoSimConnection = errors.New("unable to connect to simulator")
	// ErrUnknown is the fallback for link codes outside the known table.
	ErrUnknown = errors.New("unknown telemetry error")
	// ErrUnsupported is returned by links that cannot run on this platform.
	ErrUnsupported = errors.New("telemetry link not supported on this platform")
)

// Link result codes.
const (
	CodeOK uint32 = iota
	CodeOpen
	CodeNoSimConnection
	CodeRegisterMessage
	CodeAtom
	CodeMap
	CodeView
	CodeVersion
	CodeWrongSimVersion
	CodeNotOpen
	CodeNoData
	CodeTimedOut
	CodeSendMessage
	CodeBadData
	CodeRunning
	CodeSize
)

var linkMessages = map[uint32]string{
	CodeOpen:            "already connected to simulator",
	CodeNoSimConnection: "unable to connect to simulator",
	CodeRegisterMessage: "failed to register common message with Windows",
	CodeAtom:            "failed to create atom for mapping filename",
	CodeMap:             "failed to create a file mapping object",
	CodeView:            "failed to open a view to the file map",
	CodeVersion:         "incorrect version of FSUIPC, or not FSUIPC",
	CodeWrongSimVersion: "simulator is not the version requested",
	CodeNotOpen:         "call cannot execute, link not open",
	CodeNoData:          "call cannot execute, no requests accumulated",
	CodeTimedOut:        "IPC timed out all retries",
	CodeSendMessage:     "IPC SendMessage failed all retries",
	CodeBadData:         "IPC request contains bad data",
	CodeRunning:         "maybe running on WideClient, but simulator not running on server, or wrong FSUIPC",
	CodeSize:            "read or write request cannot be added, memory for Process is full",
}

// LinkError is a result code reported by the telemetry link.
type LinkError struct {
	Code uint32
}

// NewLinkError returns nil for CodeOK.
func NewLinkError(code uint32) error {
	if code == CodeOK {
		return nil
	}
	return &LinkError{Code: code}
}

func (e *LinkError) Error() string {
	if msg, ok := linkMessages[e.Code]; ok {
		return msg
	}
	return fmt.Sprintf("%s (code %d)", ErrUnknown, e.Code)
}

// Unwrap maps the code onto the sentinel callers branch on.
func (e *LinkError) Unwrap() error {
	if e.Code == CodeNoSimConnection {
		return ErrNoSimConnection
	}
	if _, ok := linkMessages[e.Code]; !ok {
		return ErrUnknown
	}
	return nil
}

// Retryable reports whether err may clear by waiting for the simulator.
func Retryable(err error) bool {
	return errors.Is(err, ErrNoSimConnection)
}
