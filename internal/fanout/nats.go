package fanout

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/incuverse/presence/internal/config"
	"github.com/incuverse/presence/internal/protocol"
)

// NATSRelay publishes presence events to NATS and applies events from
// other instances through a LocalBroadcast callback.
//
// Subjects are one per space, "<prefix>.space.<spaceID>", and every
// instance subscribes to the whole prefix with a wildcard. Events
// carrying this instance's own ID are dropped on receipt; the local
// occupants already saw them.
type NATSRelay struct {
	logger   *zap.Logger
	conn     *nats.Conn
	sub      *nats.Subscription
	prefix   string
	instance string
	local    LocalBroadcast
}

// NewNATSRelay connects to NATS and subscribes to the relay subjects.
//
// Precondition: cfg.URL must be set; local and logger must be non-nil.
// Postcondition: Returns a connected relay, or a non-nil error.
func NewNATSRelay(cfg config.FanoutConfig, local LocalBroadcast, logger *zap.Logger) (*NATSRelay, error) {
	instance := cfg.InstanceID
	if instance == "" {
		instance = uuid.NewString()
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("presence-"+instance),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}

	r := &NATSRelay{
		logger:   logger,
		conn:     conn,
		prefix:   cfg.SubjectPrefix,
		instance: instance,
		local:    local,
	}

	sub, err := conn.Subscribe(r.prefix+".space.>", func(msg *nats.Msg) {
		r.dispatch(msg.Data)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing to relay subjects: %w", err)
	}
	r.sub = sub

	logger.Info("fanout relay connected",
		zap.String("url", conn.ConnectedUrl()),
		zap.String("instance", instance),
	)
	return r, nil
}

// Publish relays a locally produced event to the other instances.
func (r *NATSRelay) Publish(spaceID string, msg protocol.Message) error {
	data, err := json.Marshal(Event{
		Instance: r.instance,
		SpaceID:  spaceID,
		Message:  msg,
	})
	if err != nil {
		return fmt.Errorf("encoding relay event: %w", err)
	}
	return r.conn.Publish(r.subject(spaceID), data)
}

// dispatch applies one received relay payload to the local instance.
func (r *NATSRelay) dispatch(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.Warn("malformed relay event", zap.Error(err))
		return
	}
	if ev.Instance == r.instance {
		return
	}
	r.local(ev.SpaceID, ev.Message)
}

// Close drains the subscription and closes the connection. In-flight
// events are delivered before the connection drops.
func (r *NATSRelay) Close() {
	if err := r.conn.Drain(); err != nil {
		r.logger.Warn("draining NATS connection", zap.Error(err))
	}
}

func (r *NATSRelay) subject(spaceID string) string {
	return r.prefix + ".space." + spaceID
}
