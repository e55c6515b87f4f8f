package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

const relayPublishTimeout = 3 * time.Second

// PubSub is the broker surface the relay needs; *redis.Client satisfies it.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, fn func([]byte)) error
}

type relayMessage struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Relay mirrors local bus events to a broker channel and replays events
// from other instances onto the local bus.
type Relay struct {
	ps      PubSub
	channel string
	origin  string
}

// NewRelay creates a relay with a fresh instance id.
func NewRelay(ps PubSub, channel string) *Relay {
	return &Relay{ps: ps, channel: channel, origin: uuid.NewString()}
}

// Origin returns the instance id stamped on outgoing events.
func (r *Relay) Origin() string {
	return r.origin
}

// Attach forwards every local event published on bus. The returned func detaches.
func (r *Relay) Attach(bus *Bus) func() {
	return bus.Subscribe(func(ev Event) {
		if ev.Origin != "" {
			return
		}
		payload, err := json.Marshal(relayMessage{Origin: r.origin, Event: ev})
		if err != nil {
			log.Printf("event relay marshal failed: %v", err)
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
			defer cancel()
			if err := r.ps.Publish(ctx, r.channel, payload); err != nil {
				log.Printf("event relay publish failed: %v", err)
			}
		}()
	})
}

// Listen replays events from other instances onto bus until ctx is done.
func (r *Relay) Listen(ctx context.Context, bus *Bus) error {
	return r.ps.Subscribe(ctx, r.channel, func(payload []byte) {
		var msg relayMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Printf("event relay decode failed: %v", err)
			return
		}
		if msg.Origin == "" || msg.Origin == r.origin {
			return
		}
		ev := msg.Event
		ev.Seq = 0
		ev.Origin = msg.Origin
		bus.Publish(ev)
	})
}
