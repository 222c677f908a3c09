package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment keys that override file values at load time.
const (
	EnvDataURL  = "TRAFFICVIEWER_DATA_URL"
	EnvMetarURL = "TRAFFICVIEWER_METAR_URL"
	EnvListen   = "TRAFFICVIEWER_LISTEN"
	EnvAPI      = "TRAFFICVIEWER_API"
	EnvSim      = "TRAFFICVIEWER_SIM"
)

// applyEnv overlays values from the dotenv file and the process environment.
// The process environment wins over the file.
func applyEnv(cfg *Config, envPath string) error {
	vars, err := godotenv.Read(envPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", envPath, err)
		}
		vars = map[string]string{}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := vars[key]
		return v, ok
	}

	targets := []struct {
		key string
		dst *string
	}{
		{EnvDataURL, &cfg.Feeds.DataURL},
		{EnvMetarURL, &cfg.Feeds.MetarURL},
		{EnvListen, &cfg.Relay.Listen},
		{EnvAPI, &cfg.API.Address},
		{EnvSim, &cfg.Sim.Provider},
	}
	for _, t := range targets {
		if v, ok := lookup(t.key); ok {
			*t.dst = v
		}
	}
	return nil
}
