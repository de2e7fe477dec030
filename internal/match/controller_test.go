package match

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palafeltre/matchcast/internal/wire"
)

type captureBC struct {
	mu   sync.Mutex
	msgs []capturedMsg
}

type capturedMsg struct {
	room string
	data []byte
}

func (b *captureBC) Broadcast(room string, message []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, capturedMsg{room: room, data: message})
}

func (b *captureBC) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

func (b *captureBC) last(t *testing.T) wire.Message {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.msgs)
	msg, err := wire.Decode(b.msgs[len(b.msgs)-1].data)
	require.NoError(t, err)
	return msg
}

func (b *captureBC) lastState(t *testing.T) wire.Snapshot {
	t.Helper()
	msg := b.last(t)
	require.Equal(t, wire.TypeState, msg.Type)
	return msg.Payload.(wire.Snapshot)
}

func testDefaults() Defaults {
	return Defaults{
		HomeName:        "Casa",
		AwayName:        "Ospiti",
		ColorHome:       "#ff4444",
		ColorAway:       "#44aaff",
		PeriodSeconds:   1200,
		IntervalSeconds: 900,
		TimeoutSeconds:  30,
	}
}

func newTestController() (*Controller, *captureBC) {
	bc := &captureBC{}
	return NewController(bc, testDefaults()), bc
}

func TestSetup_DurationRoundTrip(t *testing.T) {
	c, bc := newTestController()

	require.NoError(t, c.Setup(SetupParams{
		HomeName:       "Feltre",
		AwayName:       "Asiago",
		PeriodDuration: "20:00",
	}))

	snap := bc.lastState(t)
	assert.Equal(t, 1200, snap.TimerRemaining)
	assert.Equal(t, 1200, snap.PeriodDuration)
	assert.Equal(t, "Feltre", snap.HomeName)

	require.NoError(t, c.Setup(SetupParams{
		HomeName:       "Feltre",
		AwayName:       "Asiago",
		PeriodDuration: "05:30",
	}))
	assert.Equal(t, 330, bc.lastState(t).TimerRemaining)
}

func TestSetup_InvalidDurationIsFullNoop(t *testing.T) {
	c, bc := newTestController()
	before := c.Snapshot()
	sent := bc.count()

	err := c.Setup(SetupParams{HomeName: "A", AwayName: "B", PeriodDuration: "twenty"})
	assert.ErrorIs(t, err, ErrInvalidDuration)
	assert.Equal(t, before, c.Snapshot())
	assert.Equal(t, sent, bc.count(), "rejected command must not broadcast")
}

func TestSetup_OverwritesAllProgress(t *testing.T) {
	c, bc := newTestController()

	require.NoError(t, c.Setup(SetupParams{HomeName: "A", AwayName: "B", PeriodDuration: "20:00"}))
	require.NoError(t, c.UpdateScore("home", 3))
	require.NoError(t, c.UpdateShots("away", 7))
	_, err := c.AddPenalty("home", "17", 2)
	require.NoError(t, err)
	c.PeriodNext()
	c.PeriodNext()

	require.NoError(t, c.Setup(SetupParams{HomeName: "C", AwayName: "D", PeriodDuration: "15:00"}))

	snap := bc.lastState(t)
	assert.Equal(t, "C", snap.HomeName)
	assert.Equal(t, "D", snap.AwayName)
	assert.Equal(t, 1, snap.PeriodIndex)
	assert.Zero(t, snap.ScoreHome)
	assert.Zero(t, snap.ShotsAway)
	assert.Empty(t, snap.Penalties)
	assert.False(t, snap.TimerRunning)
	assert.False(t, snap.InInterval)
	assert.Equal(t, 900, snap.TimerRemaining)
}

func TestUpdateScore_ClampsAtZero(t *testing.T) {
	c, bc := newTestController()

	require.NoError(t, c.UpdateScore("home", -1))
	assert.Zero(t, bc.lastState(t).ScoreHome, "lone -1 on a fresh match stays 0")

	require.NoError(t, c.UpdateScore("home", 2))
	require.NoError(t, c.UpdateScore("home", -5))
	assert.Zero(t, bc.lastState(t).ScoreHome)

	require.NoError(t, c.UpdateShots("away", -3))
	assert.Zero(t, bc.lastState(t).ShotsAway)
}

func TestUpdateScore_InvalidTeam(t *testing.T) {
	c, bc := newTestController()
	sent := bc.count()

	assert.ErrorIs(t, c.UpdateScore("draw", 1), ErrInvalidTeam)
	assert.ErrorIs(t, c.UpdateShots("", 1), ErrInvalidTeam)
	assert.Equal(t, sent, bc.count())
	assert.Zero(t, c.Snapshot().ScoreHome)
}

func TestPeriodNext_CeilingAtOvertime(t *testing.T) {
	c, bc := newTestController()

	c.PeriodNext()
	assert.Equal(t, 2, bc.lastState(t).PeriodIndex)
	c.PeriodNext()
	assert.Equal(t, 3, bc.lastState(t).PeriodIndex)
	c.PeriodNext()
	snap := bc.lastState(t)
	assert.Equal(t, 4, snap.PeriodIndex)
	assert.Equal(t, "OT", snap.Period)
	c.PeriodNext()
	assert.Equal(t, 4, bc.lastState(t).PeriodIndex, "overtime is the ceiling")
}

func TestPeriodNext_ReloadsPeriodClock(t *testing.T) {
	c, bc := newTestController()

	c.IntervalStart()
	c.PeriodNext()

	snap := bc.lastState(t)
	assert.False(t, snap.TimerRunning)
	assert.False(t, snap.InInterval)
	assert.Equal(t, 1200, snap.TimerRemaining)
}

func TestIntervalStart_PreloadIsIdempotent(t *testing.T) {
	c, bc := newTestController()

	c.TimerSet(0, nil)
	c.IntervalStart()
	snap := bc.lastState(t)
	assert.True(t, snap.InInterval)
	assert.True(t, snap.TimerRunning)
	assert.Equal(t, 900, snap.TimerRemaining)

	// a sane value already on the clock is kept
	c.TimerSet(450, nil)
	c.IntervalStart()
	assert.Equal(t, 450, bc.lastState(t).TimerRemaining)

	// anything above the interval duration is pre-loaded again
	c.TimerSet(1200, nil)
	c.IntervalStart()
	assert.Equal(t, 900, bc.lastState(t).TimerRemaining)
}

func TestTimerSetAndReset(t *testing.T) {
	c, bc := newTestController()

	running := true
	c.TimerSet(-5, &running)
	snap := bc.lastState(t)
	assert.Zero(t, snap.TimerRemaining, "negative seconds clamp to 0")
	assert.True(t, snap.TimerRunning)

	c.IntervalStart()
	c.TimerReset()
	snap = bc.lastState(t)
	assert.False(t, snap.TimerRunning)
	assert.False(t, snap.InInterval)
	assert.Equal(t, 1200, snap.TimerRemaining)
}

func TestTimeoutStartStop(t *testing.T) {
	c, bc := newTestController()

	c.TimeoutStart()
	assert.Equal(t, 30, bc.lastState(t).TimeoutRemaining)
	c.TimeoutStop()
	assert.Zero(t, bc.lastState(t).TimeoutRemaining)
}

func TestPenalties_MonotonicIDsAndRemoval(t *testing.T) {
	c, bc := newTestController()

	id1, err := c.AddPenalty("home", "17", 2)
	require.NoError(t, err)
	id2, err := c.AddPenalty("away", "4", 5)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	snap := bc.lastState(t)
	require.Len(t, snap.Penalties, 2)
	assert.Equal(t, 120, snap.Penalties[0].Remaining)
	assert.Equal(t, "17", snap.Penalties[0].PlayerNumber)
	assert.Equal(t, 300, snap.Penalties[1].Remaining)

	c.RemovePenalty(id1)
	snap = bc.lastState(t)
	require.Len(t, snap.Penalties, 1)
	assert.Equal(t, id2, snap.Penalties[0].ID)

	// unknown id is a benign no-op
	c.RemovePenalty(9999)
	assert.Len(t, bc.lastState(t).Penalties, 1)

	_, err = c.AddPenalty("neutral", "9", 2)
	assert.ErrorIs(t, err, ErrInvalidTeam)
}

func TestPatchConfig_KeepsProgress(t *testing.T) {
	c, bc := newTestController()

	require.NoError(t, c.UpdateScore("home", 2))
	c.PeriodNext()

	name := "Cortina"
	dur := "10:00"
	require.NoError(t, c.PatchConfig(ConfigPatch{AwayName: &name, PeriodDuration: &dur}))

	snap := bc.lastState(t)
	assert.Equal(t, "Cortina", snap.AwayName)
	assert.Equal(t, 600, snap.PeriodDuration)
	assert.Equal(t, 2, snap.ScoreHome)
	assert.Equal(t, 2, snap.PeriodIndex)

	bad := "later"
	assert.ErrorIs(t, c.PatchConfig(ConfigPatch{PeriodDuration: &bad}), ErrInvalidDuration)
}

func TestFlagSetters(t *testing.T) {
	c, bc := newTestController()

	c.SetSiren(true)
	assert.True(t, bc.lastState(t).SirenOn)
	c.SetSiren(false)
	assert.False(t, bc.lastState(t).SirenOn)

	assert.True(t, c.Snapshot().OBSVisible, "overlay starts visible")
	c.SetOBSVisible(false)
	assert.False(t, bc.lastState(t).OBSVisible)
}

func TestSnapshot_BroadcastReflectsMutation(t *testing.T) {
	c, bc := newTestController()

	require.NoError(t, c.UpdateScore("away", 1))
	snap := bc.lastState(t)
	assert.Equal(t, 1, snap.ScoreAway)
	assert.Equal(t, snap, c.Snapshot())
	assert.Equal(t, GameRoom, bc.msgs[len(bc.msgs)-1].room)
}
