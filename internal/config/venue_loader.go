package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// VenueDefaults seeds the initial match state before any setup command arrives.
// Durations are MM:SS strings, parsed by the match package.
type VenueDefaults struct {
	HomeName         string `yaml:"home_name"`
	AwayName         string `yaml:"away_name"`
	ColorHome        string `yaml:"color_home"`
	ColorAway        string `yaml:"color_away"`
	PeriodDuration   string `yaml:"period_duration"`
	IntervalDuration string `yaml:"interval_duration"`
}

type Venue struct {
	Name           string        `yaml:"name"`
	Rooms          []string      `yaml:"rooms"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Defaults       VenueDefaults `yaml:"defaults"`
}

// DefaultVenue is used when no venue file is present.
func DefaultVenue() Venue {
	return Venue{
		Name:           "arena",
		Rooms:          []string{"game", "control", "player", "display"},
		TimeoutSeconds: 30,
		Defaults: VenueDefaults{
			HomeName:         "Casa",
			AwayName:         "Ospiti",
			ColorHome:        "#ff4444",
			ColorAway:        "#44aaff",
			PeriodDuration:   "20:00",
			IntervalDuration: "15:00",
		},
	}
}

// LoadVenue reads the venue YAML. Missing fields fall back to DefaultVenue values.
func LoadVenue(path string) (Venue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Venue{}, fmt.Errorf("read venue config: %w", err)
	}

	v := DefaultVenue()
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Venue{}, fmt.Errorf("parse venue config: %w", err)
	}
	if v.TimeoutSeconds <= 0 {
		v.TimeoutSeconds = 30
	}
	if len(v.Rooms) == 0 {
		v.Rooms = DefaultVenue().Rooms
	}
	return v, nil
}
