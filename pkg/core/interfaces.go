package core

import (
	"trafficviewer/pkg/fsd"
)

// Relay is the controller connection driven by the orchestrator.
type Relay interface {
	Poll() []fsd.Message
	Send(msg fsd.Message) bool
	Failures() int
	Done() <-chan struct{}
}

// Refresher is the data worker self-check hook.
type Refresher interface {
	Tick()
}

// TrafficSink receives the traffic picture after every synchronization.
type TrafficSink interface {
	UpdateTraffic(s Snapshot)
}
