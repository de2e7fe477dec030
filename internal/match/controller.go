package match

import (
	"sync"
	"time"

	"github.com/palafeltre/matchcast/internal/telemetry"
	"github.com/palafeltre/matchcast/internal/wire"
)

// GameRoom is the topic every snapshot and siren pulse goes to.
const GameRoom = "game"

// Broadcaster fans a message out to a named room.
type Broadcaster interface {
	Broadcast(room string, message []byte)
}

// Defaults seeds the match state at boot, before the first setup command.
type Defaults struct {
	HomeName        string
	AwayName        string
	ColorHome       string
	ColorAway       string
	PeriodSeconds   int
	IntervalSeconds int
	TimeoutSeconds  int
}

// Controller is the single writer of the match state. Every command
// validates its input, mutates under the match lock, then broadcasts the
// resulting snapshot to the "game" room after the lock is released, so a
// slow subscriber never extends the critical section.
type Controller struct {
	mu         sync.Mutex
	state      State
	penaltySeq int
	timeoutSec int
	bc         Broadcaster
}

func NewController(bc Broadcaster, d Defaults) *Controller {
	timeoutSec := d.TimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 30
	}
	return &Controller{
		timeoutSec: timeoutSec,
		bc:         bc,
		state: State{
			HomeName:         d.HomeName,
			AwayName:         d.AwayName,
			ColorHome:        d.ColorHome,
			ColorAway:        d.ColorAway,
			PeriodDuration:   d.PeriodSeconds,
			IntervalDuration: d.IntervalSeconds,
			PeriodIndex:      1,
			TimerRemain:      d.PeriodSeconds,
			OBSVisible:       true,
		},
	}
}

// Snapshot returns the current state for the synchronous public query.
func (c *Controller) Snapshot() wire.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot()
}

// SetupParams configures a new match. Durations are MM:SS strings.
type SetupParams struct {
	HomeName         string `json:"home_name"`
	AwayName         string `json:"away_name"`
	PeriodDuration   string `json:"period_duration"`
	IntervalDuration string `json:"interval_duration,omitempty"`
	ColorHome        string `json:"color_home,omitempty"`
	ColorAway        string `json:"color_away,omitempty"`
	SirenEveryMinute *bool  `json:"siren_every_minute,omitempty"`
}

// Setup resets the match: period 1, scores, shots and penalties cleared,
// clock stopped and loaded with the new period duration. Invalid durations
// reject the command before anything is touched.
func (c *Controller) Setup(p SetupParams) error {
	periodSec, err := ParseClock(p.PeriodDuration)
	if err != nil {
		return err
	}
	intervalSec := -1
	if p.IntervalDuration != "" {
		if intervalSec, err = ParseClock(p.IntervalDuration); err != nil {
			return err
		}
	}

	c.mu.Lock()
	st := &c.state
	st.HomeName = p.HomeName
	st.AwayName = p.AwayName
	st.PeriodDuration = periodSec
	if intervalSec >= 0 {
		st.IntervalDuration = intervalSec
	}
	if p.ColorHome != "" {
		st.ColorHome = p.ColorHome
	}
	if p.ColorAway != "" {
		st.ColorAway = p.ColorAway
	}
	if p.SirenEveryMinute != nil {
		st.SirenEveryMinute = *p.SirenEveryMinute
	}
	st.PeriodIndex = 1
	st.ScoreHome, st.ScoreAway = 0, 0
	st.ShotsHome, st.ShotsAway = 0, 0
	st.TimerRunning = false
	st.InInterval = false
	st.TimerRemain = periodSec
	st.Penalties = nil
	snap := st.snapshot()
	c.mu.Unlock()

	c.publish(snap)
	telemetry.Infof("match: setup %s vs %s, period %ds", p.HomeName, p.AwayName, periodSec)
	return nil
}

// ConfigPatch updates identity/config fields without touching progress.
// Nil fields are left alone.
type ConfigPatch struct {
	HomeName         *string `json:"home_name,omitempty"`
	AwayName         *string `json:"away_name,omitempty"`
	ColorHome        *string `json:"color_home,omitempty"`
	ColorAway        *string `json:"color_away,omitempty"`
	PeriodDuration   *string `json:"period_duration,omitempty"`
	IntervalDuration *string `json:"interval_duration,omitempty"`
	SirenEveryMinute *bool   `json:"siren_every_minute,omitempty"`
}

func (c *Controller) PatchConfig(p ConfigPatch) error {
	periodSec, intervalSec := -1, -1
	var err error
	if p.PeriodDuration != nil {
		if periodSec, err = ParseClock(*p.PeriodDuration); err != nil {
			return err
		}
	}
	if p.IntervalDuration != nil {
		if intervalSec, err = ParseClock(*p.IntervalDuration); err != nil {
			return err
		}
	}

	c.mu.Lock()
	st := &c.state
	if p.HomeName != nil {
		st.HomeName = *p.HomeName
	}
	if p.AwayName != nil {
		st.AwayName = *p.AwayName
	}
	if p.ColorHome != nil {
		st.ColorHome = *p.ColorHome
	}
	if p.ColorAway != nil {
		st.ColorAway = *p.ColorAway
	}
	if periodSec >= 0 {
		st.PeriodDuration = periodSec
	}
	if intervalSec >= 0 {
		st.IntervalDuration = intervalSec
	}
	if p.SirenEveryMinute != nil {
		st.SirenEveryMinute = *p.SirenEveryMinute
	}
	snap := st.snapshot()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// UpdateScore applies a delta to one team's score, clamped at zero.
func (c *Controller) UpdateScore(team string, delta int) error {
	t, err := ParseTeam(team)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if t == TeamHome {
		c.state.ScoreHome = max(0, c.state.ScoreHome+delta)
	} else {
		c.state.ScoreAway = max(0, c.state.ScoreAway+delta)
	}
	snap := c.state.snapshot()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// UpdateShots applies a delta to one team's shot count, clamped at zero.
func (c *Controller) UpdateShots(team string, delta int) error {
	t, err := ParseTeam(team)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if t == TeamHome {
		c.state.ShotsHome = max(0, c.state.ShotsHome+delta)
	} else {
		c.state.ShotsAway = max(0, c.state.ShotsAway+delta)
	}
	snap := c.state.snapshot()
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

func (c *Controller) TimerStart() {
	c.mu.Lock()
	c.state.TimerRunning = true
	snap := c.state.snapshot()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Controller) TimerStop() {
	c.mu.Lock()
	c.state.TimerRunning = false
	snap := c.state.snapshot()
	c.mu.Unlock()
	c.publish(snap)
}

// TimerSet overrides the remaining time (clamped at zero) and optionally the
// running flag.
func (c *Controller) TimerSet(seconds int, running *bool) {
	c.mu.Lock()
	c.state.TimerRemain = max(0, seconds)
	if running != nil {
		c.state.TimerRunning = *running
	}
	snap := c.state.snapshot()
	c.mu.Unlock()
	c.publish(snap)
}

// TimerReset stops the clock, leaves any interval, and reloads the period
// duration.
func (c *Controller) TimerReset() {
	c.mu.Lock()
	c.state.TimerRunning = false
	c.state.InInterval = false
	c.state.TimerRemain = c.state.PeriodDuration
	snap := c.state.snapshot()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Controller) TimeoutStart() {
	c.mu.Lock()
	c.state.TimeoutRemain = c.timeoutSec
	snap := c.state.snapshot()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Controller) TimeoutStop() {
	c.mu.Lock()
	c.state.TimeoutRemain = 0
	snap := c.state.snapshot()
	c.mu.Unlock()
	c.publish(snap)
}

// IntervalStart forces the interval phase with the clock running. The
// remaining time is pre-loaded to the interval duration unless a sensible
// value is already on the clock, so calling it again is harmless.
func (c *Controller) IntervalStart() {
	c.mu.Lock()
	st := &c.state
	st.InInterval = true
	st.TimerRunning = true
	if st.TimerRemain <= 0 || st.TimerRemain > st.IntervalDuration {
		st.TimerRemain = st.IntervalDuration
	}
	snap := st.snapshot()
	c.mu.Unlock()
	c.publish(snap)
}

// PeriodNext advances to the next period (overtime, index 4, is the
// ceiling), stops the clock and reloads the period duration.
func (c *Controller) PeriodNext() {
	c.mu.Lock()
	st := &c.state
	st.PeriodIndex = min(4, st.PeriodIndex+1)
	st.TimerRunning = false
	st.InInterval = false
	st.TimerRemain = st.PeriodDuration
	snap := st.snapshot()
	c.mu.Unlock()
	c.publish(snap)
}

// AddPenalty appends a penalty for the team and returns its id. Ids are
// monotonic for the lifetime of the process.
func (c *Controller) AddPenalty(team, playerNumber string, minutes int) (int, error) {
	t, err := ParseTeam(team)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.penaltySeq++
	id := c.penaltySeq
	c.state.Penalties = append(c.state.Penalties, Penalty{
		ID:           id,
		Team:         t,
		PlayerNumber: playerNumber,
		Remaining:    minutes * 60,
	})
	snap := c.state.snapshot()
	c.mu.Unlock()

	c.publish(snap)
	return id, nil
}

// RemovePenalty deletes a penalty by id. Removing an unknown id is a benign
// no-op so client retries stay idempotent.
func (c *Controller) RemovePenalty(id int) {
	c.mu.Lock()
	kept := c.state.Penalties[:0]
	for _, p := range c.state.Penalties {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	c.state.Penalties = kept
	snap := c.state.snapshot()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Controller) SetSiren(on bool) {
	c.mu.Lock()
	c.state.SirenOn = on
	snap := c.state.snapshot()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Controller) SetOBSVisible(visible bool) {
	c.mu.Lock()
	c.state.OBSVisible = visible
	snap := c.state.snapshot()
	c.mu.Unlock()
	c.publish(snap)
}

// Tick advances all time-derived fields by one second: the main clock with
// its period→interval transition, the timeout countdown, and active
// penalties. Broadcasts happen outside the lock, the snapshot before any
// siren pulse.
func (c *Controller) Tick(now time.Time) {
	changed := false
	pulse := false
	var snap wire.Snapshot

	c.mu.Lock()
	st := &c.state

	if st.TimerRunning && st.TimerRemain > 0 {
		st.TimerRemain--
		changed = true
		if st.TimerRemain <= 0 {
			st.TimerRemain = 0
			st.TimerRunning = false
			if !st.InInterval {
				// period over: pre-load the interval, horn sounds
				st.InInterval = true
				st.TimerRemain = st.IntervalDuration
				pulse = true
			}
			// interval over: pinned at 0 until period_next arrives
		} else if st.SirenEveryMinute && !st.InInterval && st.TimerRemain%60 == 0 {
			pulse = true
		}
	}

	if st.TimeoutRemain > 0 {
		st.TimeoutRemain--
		changed = true
	}

	// penalties count down only while the main clock runs outside interval
	if st.TimerRunning && !st.InInterval {
		kept := st.Penalties[:0]
		for _, p := range st.Penalties {
			if p.Remaining > 0 {
				p.Remaining--
				changed = true
			}
			if p.Remaining > 0 {
				kept = append(kept, p)
			}
		}
		st.Penalties = kept
	}

	if changed {
		snap = st.snapshot()
	}
	c.mu.Unlock()

	if changed {
		c.publish(snap)
	}
	if pulse {
		c.pulse(now)
	}
}

func (c *Controller) publish(snap wire.Snapshot) {
	data, err := wire.Marshal(wire.TypeState, snap)
	if err != nil {
		telemetry.Errorf("match: snapshot marshal: %v", err)
		return
	}
	c.bc.Broadcast(GameRoom, data)
}

func (c *Controller) pulse(now time.Time) {
	data, err := wire.Marshal(wire.TypeSirenPulse, wire.SirenPulse{At: now.Unix()})
	if err != nil {
		telemetry.Errorf("match: pulse marshal: %v", err)
		return
	}
	c.bc.Broadcast(GameRoom, data)
}
