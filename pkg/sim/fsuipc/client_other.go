//go:build !windows

package fsuipc

import (
	"fmt"
	"runtime"

	"trafficviewer/pkg/sim"
)

// NewClient reports sim.ErrUnsupported outside Windows.
func NewClient(opts Options) (*Client, error) {
	return nil, fmt.Errorf("fsuipc on %s: %w", runtime.GOOS, sim.ErrUnsupported)
}
