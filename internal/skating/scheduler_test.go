package skating

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palafeltre/matchcast/internal/settings"
	"github.com/palafeltre/matchcast/internal/wire"
)

type captureBC struct {
	mu   sync.Mutex
	msgs map[string][]wire.Message
}

func newCaptureBC() *captureBC {
	return &captureBC{msgs: make(map[string][]wire.Message)}
}

func (b *captureBC) Broadcast(room string, message []byte) {
	msg, err := wire.Decode(message)
	if err != nil {
		panic(err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs[room] = append(b.msgs[room], msg)
}

func (b *captureBC) room(name string) []wire.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]wire.Message(nil), b.msgs[name]...)
}

func newTestScheduler(t *testing.T) (*Scheduler, *settings.Store, *captureBC) {
	t.Helper()
	store, err := settings.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	bc := newCaptureBC()
	return NewScheduler(store, bc), store, bc
}

func TestSweep_FiresAllThreeCuesOnce(t *testing.T) {
	sched, store, bc := newTestScheduler(t)
	now := time.Now().Truncate(time.Second)

	id, err := store.AddSession("open skate", now.Add(10*time.Minute))
	require.NoError(t, err)

	sched.sweep(now)

	player := bc.room(RoomPlayer)
	require.Len(t, player, 1)
	assert.Equal(t, wire.TypePlayJingle, player[0].Type)
	assert.Equal(t, id, player[0].Payload.(wire.PlayJingle).SessionID)

	control := bc.room(RoomControl)
	require.Len(t, control, 1)
	assert.Equal(t, wire.TypeObsScene, control[0].Type)
	assert.Equal(t, "Live", control[0].Payload.(wire.ObsScene).Scene)

	display := bc.room(RoomDisplay)
	require.Len(t, display, 1)
	assert.Equal(t, wire.TypeShowView, display[0].Type)
	view := display[0].Payload.(wire.ShowView)
	assert.Equal(t, "timer", view.View)
	assert.Equal(t, 600, view.Seconds)

	// second sweep: every cue is already marked
	sched.sweep(now)
	assert.Len(t, bc.room(RoomPlayer), 1)
	assert.Len(t, bc.room(RoomControl), 1)
	assert.Len(t, bc.room(RoomDisplay), 1)
}

func TestSweep_IgnoresSessionsOutsideLeadTime(t *testing.T) {
	sched, store, bc := newTestScheduler(t)
	now := time.Now().Truncate(time.Second)

	_, err := store.AddSession("tonight", now.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = store.AddSession("already started", now.Add(-time.Minute))
	require.NoError(t, err)

	sched.sweep(now)

	assert.Empty(t, bc.room(RoomPlayer))
	assert.Empty(t, bc.room(RoomControl))
	assert.Empty(t, bc.room(RoomDisplay))
}

func TestSweep_ResumesPartiallySentSession(t *testing.T) {
	sched, store, bc := newTestScheduler(t)
	now := time.Now().Truncate(time.Second)

	id, err := store.AddSession("open skate", now.Add(5*time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.MarkCueSent(id, settings.CueJingle))

	sched.sweep(now)

	assert.Empty(t, bc.room(RoomPlayer), "jingle already fired before a restart")
	assert.Len(t, bc.room(RoomControl), 1)
	assert.Len(t, bc.room(RoomDisplay), 1)
}
