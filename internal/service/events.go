package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"SpinApi/pkg/logger"
	"SpinApi/pkg/redis"
)

const (
	EventWheelCreated      = "wheelCreated"
	EventParticipantJoined = "participantJoined"
	EventWheelStarted      = "wheelStarted"
	EventUserEliminated    = "userEliminated"
	EventWheelFinished     = "wheelFinished"
	EventWheelAborted      = "wheelAborted"
)

// Event is a lifecycle notification published to observers. The payload
// never carries the secret seed before reveal.
type Event struct {
	Type      string                 `json:"type"`
	WheelID   int64                  `json:"wheel_id"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Broadcaster receives engine events for fan-out to subscribers.
// Fire-and-forget: publish failures are logged, never returned.
type Broadcaster interface {
	Publish(ctx context.Context, event Event)
}

const eventKeyTTL = 1 * time.Hour

// RedisBroadcaster stores events under timestamped keys for the websocket
// feed and the recent-events endpoint to pick up.
type RedisBroadcaster struct {
	redisService *redis.RedisService
}

func NewRedisBroadcaster(redisService *redis.RedisService) *RedisBroadcaster {
	return &RedisBroadcaster{redisService: redisService}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixNano()
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal %s event for wheel %d: %v", event.Type, event.WheelID, err)
		return
	}

	key := fmt.Sprintf("wheel:event:%d", event.Timestamp)
	if err := b.redisService.SetKey(ctx, key, string(data), eventKeyTTL); err != nil {
		logger.Error("%v", err)
	}
}
