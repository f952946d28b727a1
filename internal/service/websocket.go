package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"SpinApi/pkg/logger"
	"SpinApi/pkg/redis"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WheelEventsWebsocketService is responsible for handling WebSocket
// connections streaming live wheel events.
type WheelEventsWebsocketService struct {
	redisService *redis.RedisService
}

// NewWheelEventsWebsocketService creates a new instance of WheelEventsWebsocketService.
func NewWheelEventsWebsocketService(redisService *redis.RedisService) *WheelEventsWebsocketService {
	return &WheelEventsWebsocketService{
		redisService: redisService,
	}
}

// GetRecentEvents handles GET requests to fetch recent wheel events.
func (w *WheelEventsWebsocketService) GetRecentEvents(c *gin.Context) {
	events, err := w.fetchRecentEvents(c.Request.Context(), 20)
	if err != nil {
		logger.Error("%v", err)
		c.Status(500)
		return
	}
	if len(events) < 1 {
		c.String(404, "[]")
		return
	}
	c.JSON(200, events)
}

// LiveEventsWebsocketHandler handles the WebSocket connection for live wheel
// events.
func (w *WheelEventsWebsocketService) LiveEventsWebsocketHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("%v", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var lastTimestamp int64

	for range ticker.C { // Continuously fetch and send the latest events
		events, err := w.fetchRecentEvents(c.Request.Context(), 10)
		if err != nil {
			logger.Error("%v", err)
			return
		}

		for _, event := range events {
			if event.Timestamp <= lastTimestamp {
				continue
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Error("%v", err)
				return
			}
			lastTimestamp = event.Timestamp
		}
	}
}

// fetchRecentEvents retrieves recent wheel events from Redis.
func (w *WheelEventsWebsocketService) fetchRecentEvents(ctx context.Context, limit int) ([]Event, error) {
	keys, err := w.fetchSortedKeys(ctx)
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	if len(keys) > limit {
		keys = keys[len(keys)-limit:]
	}

	return w.fetchEventData(ctx, keys)
}

// fetchSortedKeys retrieves and sorts all wheel event keys from Redis.
func (w *WheelEventsWebsocketService) fetchSortedKeys(ctx context.Context) ([]string, error) {
	keys, err := w.redisService.Client().Keys(ctx, "wheel:event:*").Result()
	if err != nil {
		return nil, logger.WrapError(err, "")
	}

	sort.Strings(keys)
	return keys, nil
}

// fetchEventData fetches the event payloads for the given keys from Redis.
func (w *WheelEventsWebsocketService) fetchEventData(ctx context.Context, keys []string) ([]Event, error) {
	var events []Event

	for _, key := range keys {
		data, err := w.redisService.GetKey(ctx, key)
		if err != nil {
			return nil, logger.WrapError(err, "")
		}

		var event Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return nil, logger.WrapError(err, "")
		}

		events = append(events, event)
	}

	return events, nil
}
