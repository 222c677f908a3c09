package main

import (
	"fmt"
	"log/slog"
	"strings"

	"trafficviewer/pkg/config"
	"trafficviewer/pkg/sim"
	"trafficviewer/pkg/sim/fsuipc"
	"trafficviewer/pkg/sim/mocksim"
)

func newSimSource(cfg *config.Config) (sim.Source, error) {
	if strings.EqualFold(cfg.Sim.Provider, "mock") {
		slog.Info("Sim Source: Mock", "traffic", len(cfg.Sim.Mock.Traffic))
		m := cfg.Sim.Mock
		return mocksim.NewClient(mocksim.Config{
			CenterLat:       m.CenterLat,
			CenterLon:       m.CenterLon,
			Traffic:         m.Traffic,
			Transponder:     m.Transponder,
			ConnectFailures: m.ConnectFailures,
		}), nil
	}

	slog.Info("Sim Source: FSUIPC (Default)")
	c, err := fsuipc.NewClient(fsuipc.Options{})
	if err != nil {
		return nil, fmt.Errorf("fsuipc client: %w", err)
	}
	return c, nil
}

func retryPolicy(cfg *config.Config) sim.RetryPolicy {
	return sim.RetryPolicy{
		BaseDelay:   cfg.Sim.Connect.BaseDelay.Std(),
		MaxDelay:    cfg.Sim.Connect.MaxDelay.Std(),
		MaxAttempts: cfg.Sim.Connect.MaxAttempts,
	}
}
