package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/gasflow/ops-console/pkg/logger"
)

// Source feeds a Hub from an external push transport until ctx is done.
type Source interface {
	Run(ctx context.Context, hub *Hub) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// PubSubSource reads the order room from a Pub/Sub subscription. The event name
// travels in the `event` attribute and the body is the JSON payload.
type PubSubSource struct {
	subscription receiver
	logg         *logger.Logger
}

func NewPubSubSource(sub *pubsub.Subscriber, logg *logger.Logger) (*PubSubSource, error) {
	if sub == nil {
		return nil, errors.New("orders subscription required")
	}
	return newPubSubSource(sub, logg), nil
}

func newPubSubSource(sub receiver, logg *logger.Logger) *PubSubSource {
	if logg == nil {
		logg = logger.Nop()
	}
	return &PubSubSource{subscription: sub, logg: logg}
}

func (s *PubSubSource) Run(ctx context.Context, hub *Hub) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		event := strings.TrimSpace(msg.Attributes["event"])
		if event == "" {
			event = strings.TrimSpace(msg.Attributes["event_type"])
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"message_id": msg.ID,
			"event":      event,
		})
		if event == "" {
			s.logg.Warn(logCtx, "pubsub message without event attribute")
			msg.Ack()
			return
		}

		eventID := msg.Attributes["eventId"]
		if eventID == "" {
			eventID = msg.ID
		}
		hub.Publish(ctx, Message{
			Event:   enums.LiveEvent(event),
			EventID: eventID,
			Data:    msg.Data,
		})
		// Live updates are best effort; a failed apply is healed by the next refresh.
		msg.Ack()
	})
}

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
}

// RedisSource reads `{event, eventId, data}` frames from a redis channel.
type RedisSource struct {
	client  subscriber
	channel string
	logg    *logger.Logger
}

func NewRedisSource(client subscriber, channel string, logg *logger.Logger) (*RedisSource, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if strings.TrimSpace(channel) == "" {
		return nil, errors.New("redis channel required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &RedisSource{client: client, channel: channel, logg: logg}, nil
}

func (s *RedisSource) Run(ctx context.Context, hub *Hub) error {
	ps, err := s.client.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.channel, err)
	}
	defer ps.Close()

	s.logg.Info(s.logg.WithField(ctx, "channel", s.channel), "live channel subscribed")
	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-messages:
			if !ok {
				return errors.New("redis subscription closed")
			}
			msg, err := ParseFrame([]byte(raw.Payload))
			if err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "channel", raw.Channel), "dropping malformed frame: "+err.Error())
				continue
			}
			hub.Publish(ctx, msg)
		}
	}
}

type frame struct {
	Event   string          `json:"event"`
	EventID string          `json:"eventId"`
	Data    json.RawMessage `json:"data"`
}

// ParseFrame decodes a redis frame into a Message.
func ParseFrame(payload []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return Message{}, err
	}
	if strings.TrimSpace(f.Event) == "" {
		return Message{}, errors.New("frame has no event")
	}
	if len(f.Data) == 0 {
		return Message{}, errors.New("frame has no data")
	}
	return Message{Event: enums.LiveEvent(f.Event), EventID: f.EventID, Data: f.Data}, nil
}

// EncodeFrame is the inverse of ParseFrame, used by publishers and tests.
func EncodeFrame(msg Message) ([]byte, error) {
	return json.Marshal(frame{Event: msg.Event.String(), EventID: msg.EventID, Data: msg.Data})
}
