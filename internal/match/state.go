package match

import (
	"fmt"

	"github.com/palafeltre/matchcast/internal/wire"
)

// Team is one side of the match.
type Team string

const (
	TeamHome Team = "home"
	TeamAway Team = "away"
)

// ParseTeam validates a team identifier from client input.
func ParseTeam(s string) (Team, error) {
	switch Team(s) {
	case TeamHome, TeamAway:
		return Team(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTeam, s)
}

// Penalty is a timed sin-bin entry. It counts down only while the main clock
// runs outside interval and is removed when remaining reaches zero.
type Penalty struct {
	ID           int
	Team         Team
	PlayerNumber string
	Remaining    int // seconds
}

// State is the single live-match record. It is owned by the Controller:
// nothing outside this package touches it directly, every reader gets a
// Snapshot instead.
type State struct {
	HomeName         string
	AwayName         string
	ColorHome        string
	ColorAway        string
	PeriodDuration   int // seconds
	IntervalDuration int // seconds

	PeriodIndex  int // 1..4, 4 is overtime and the ceiling
	InInterval   bool
	TimerRunning bool
	TimerRemain  int // seconds, never negative

	ScoreHome int
	ScoreAway int
	ShotsHome int
	ShotsAway int

	TimeoutRemain    int // seconds, 0 when no timeout running
	SirenOn          bool
	SirenEveryMinute bool
	OBSVisible       bool

	Penalties []Penalty
}

func (s *State) periodLabel() string {
	if s.PeriodIndex >= 4 {
		return "OT"
	}
	return fmt.Sprintf("%d°", s.PeriodIndex)
}

// snapshot serializes the state for the wire. Callers must hold the match lock.
func (s *State) snapshot() wire.Snapshot {
	pens := make([]wire.PenaltyEntry, 0, len(s.Penalties))
	for _, p := range s.Penalties {
		pens = append(pens, wire.PenaltyEntry{
			ID:           p.ID,
			Team:         string(p.Team),
			PlayerNumber: p.PlayerNumber,
			Remaining:    p.Remaining,
		})
	}
	return wire.Snapshot{
		HomeName:         s.HomeName,
		AwayName:         s.AwayName,
		ColorHome:        s.ColorHome,
		ColorAway:        s.ColorAway,
		ScoreHome:        s.ScoreHome,
		ScoreAway:        s.ScoreAway,
		ShotsHome:        s.ShotsHome,
		ShotsAway:        s.ShotsAway,
		Period:           s.periodLabel(),
		PeriodIndex:      s.PeriodIndex,
		TimerRunning:     s.TimerRunning,
		TimerRemaining:   s.TimerRemain,
		InInterval:       s.InInterval,
		PeriodDuration:   s.PeriodDuration,
		IntervalDuration: s.IntervalDuration,
		TimeoutRemaining: s.TimeoutRemain,
		SirenOn:          s.SirenOn,
		SirenEveryMinute: s.SirenEveryMinute,
		OBSVisible:       s.OBSVisible,
		Penalties:        pens,
	}
}
