package rooms

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/palafeltre/matchcast/internal/telemetry"
)

const channelPrefix = "room:"

// Bridge relays room broadcasts through Redis pub/sub so that every broker
// instance delivers to its own local subscribers. With a bridge attached,
// Broadcast publishes to "room:<name>" and local delivery happens when the
// message comes back on the subscription.
type Bridge struct {
	rdb *redis.Client
	reg *Registry
}

func NewBridge(addr, password string, reg *Registry) *Bridge {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &Bridge{rdb: rdb, reg: reg}
}

// Publish pushes a room message into Redis. On publish failure the message
// is delivered locally so a Redis outage degrades to single-instance mode
// instead of dropping broadcasts.
func (b *Bridge) Publish(room string, message []byte) {
	if err := b.rdb.Publish(context.Background(), channelPrefix+room, message).Err(); err != nil {
		telemetry.Warnf("bridge: publish failed room=%s: %v, delivering locally", room, err)
		b.reg.deliver(room, message)
	}
}

// Run consumes the room pattern subscription and fans messages out to local
// members. Blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	ps := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()

	telemetry.Infof("bridge: relaying rooms via redis %s", b.rdb.Options().Addr)

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ps.Channel():
			if !ok {
				return
			}
			room := strings.TrimPrefix(m.Channel, channelPrefix)
			b.reg.deliver(room, []byte(m.Payload))
		}
	}
}

// Close releases the Redis connection.
func (b *Bridge) Close() error {
	return b.rdb.Close()
}
