package skating

import (
	"context"
	"time"

	"github.com/palafeltre/matchcast/internal/settings"
	"github.com/palafeltre/matchcast/internal/telemetry"
	"github.com/palafeltre/matchcast/internal/wire"
)

const (
	leadTime     = 15 * time.Minute
	pollInterval = time.Minute
)

// Rooms the cues go to.
const (
	RoomPlayer  = "player"
	RoomControl = "control"
	RoomDisplay = "display"
)

// Broadcaster fans a message out to a named room.
type Broadcaster interface {
	Broadcast(room string, message []byte)
}

// Scheduler wakes once a minute and fires one-shot cues for public-skating
// sessions starting within the lead time: the jingle on the audio player,
// the OBS scene switch on the AV console, and a countdown view on the
// public display. Each cue is marked in the store so it fires at most once.
type Scheduler struct {
	store *settings.Store
	bc    Broadcaster
}

func NewScheduler(store *settings.Store, bc Broadcaster) *Scheduler {
	return &Scheduler{store: store, bc: bc}
}

// Run blocks until ctx is cancelled. A failed sweep is logged and retried on
// the next minute; the loop never dies.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *Scheduler) sweep(now time.Time) {
	sessions, err := s.store.UpcomingSessions(now, now.Add(leadTime))
	if err != nil {
		telemetry.Warnf("skating: sweep failed: %v", err)
		return
	}

	for _, sess := range sessions {
		if !sess.JingleSent {
			s.send(RoomPlayer, wire.TypePlayJingle, wire.PlayJingle{SessionID: sess.ID})
			s.mark(sess.ID, settings.CueJingle)
		}
		if !sess.ObsSent {
			s.send(RoomControl, wire.TypeObsScene, wire.ObsScene{Scene: "Live"})
			s.mark(sess.ID, settings.CueObs)
		}
		if !sess.DisplaySent {
			remaining := int(sess.Start.Sub(now).Seconds())
			s.send(RoomDisplay, wire.TypeShowView, wire.ShowView{View: "timer", Seconds: remaining})
			s.mark(sess.ID, settings.CueDisplay)
		}
	}
}

func (s *Scheduler) send(room, typ string, payload any) {
	data, err := wire.Marshal(typ, payload)
	if err != nil {
		telemetry.Warnf("skating: marshal %s: %v", typ, err)
		return
	}
	s.bc.Broadcast(room, data)
	telemetry.Metrics.CuesSent.Inc()
}

func (s *Scheduler) mark(id int64, cue string) {
	if err := s.store.MarkCueSent(id, cue); err != nil {
		telemetry.Warnf("skating: %v", err)
	}
}
