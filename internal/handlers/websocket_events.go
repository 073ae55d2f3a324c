package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/docintel/internal/common"
	"github.com/ternarybob/docintel/internal/interfaces"
	"golang.org/x/time/rate"
)

// EventSubscriber bridges the event service to WebSocket broadcasts
type EventSubscriber struct {
	handler       *WebSocketHandler
	eventService  interfaces.EventService
	logger        arbor.ILogger
	allowedEvents map[string]bool          // Whitelist of events to broadcast (empty = allow all)
	throttlers    map[string]*rate.Limiter // Rate limiters for high-frequency events

	mu         sync.Mutex
	subscribed map[interfaces.EventType]interfaces.EventHandler
}

// NewEventSubscriber creates and initializes an event subscriber
// Automatically subscribes to every notification event with config-driven filtering and throttling
func NewEventSubscriber(handler *WebSocketHandler, eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *EventSubscriber {
	s := &EventSubscriber{
		handler:      handler,
		eventService: eventService,
		logger:       logger,
		subscribed:   make(map[interfaces.EventType]interfaces.EventHandler),
	}

	// Initialize allowedEvents map (whitelist pattern)
	// Empty list means allow all events
	s.allowedEvents = make(map[string]bool)
	if config != nil && len(config.AllowedEvents) > 0 {
		for _, eventType := range config.AllowedEvents {
			s.allowedEvents[eventType] = true
		}
	}

	// Initialize throttlers for high-frequency events
	s.throttlers = make(map[string]*rate.Limiter)
	if config != nil && len(config.ThrottleIntervals) > 0 {
		for eventType, intervalStr := range config.ThrottleIntervals {
			if duration, err := time.ParseDuration(intervalStr); err == nil && duration > 0 {
				// Create rate limiter: 1 event per interval (burst=1)
				s.throttlers[eventType] = rate.NewLimiter(rate.Every(duration), 1)
				logger.Debug().
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Throttler initialized for event type")
			} else {
				logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Failed to parse throttle interval - skipping throttler")
			}
		}
	}

	if eventService == nil {
		logger.Warn().Msg("EventSubscriber created with nil eventService - subscriptions will be skipped")
		return s
	}

	s.SubscribeAll()

	return s
}

// SubscribeAll registers a broadcast handler for every notification event type
func (s *EventSubscriber) SubscribeAll() {
	if s.eventService == nil {
		s.logger.Warn().Msg("Cannot subscribe to events - eventService is nil")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, eventType := range interfaces.AllEventTypes {
		if _, ok := s.subscribed[eventType]; ok {
			continue
		}
		handler := s.handleEvent
		if err := s.eventService.Subscribe(eventType, handler); err != nil {
			s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to subscribe to event")
			continue
		}
		s.subscribed[eventType] = handler
	}

	s.logger.Debug().Int("event_types", len(s.subscribed)).Msg("EventSubscriber registered for notification events")
}

// Close removes every subscription registered by SubscribeAll
func (s *EventSubscriber) Close() {
	if s.eventService == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for eventType, handler := range s.subscribed {
		if err := s.eventService.Unsubscribe(eventType, handler); err != nil {
			s.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("Failed to unsubscribe")
		}
		delete(s.subscribed, eventType)
	}
}

func (s *EventSubscriber) handleEvent(ctx context.Context, event interfaces.Event) error {
	eventType := string(event.Type)
	if !s.shouldBroadcastEvent(eventType) {
		return nil
	}

	s.handler.Broadcast(eventType, event.Payload)
	return nil
}

// shouldBroadcastEvent checks if an event should be broadcast based on whitelist and throttling
func (s *EventSubscriber) shouldBroadcastEvent(eventType string) bool {
	// Check whitelist (empty allowedEvents = allow all)
	if len(s.allowedEvents) > 0 && !s.allowedEvents[eventType] {
		return false
	}

	if limiter, ok := s.throttlers[eventType]; ok {
		if !limiter.Allow() {
			s.logger.Debug().
				Str("event_type", eventType).
				Msg("Event throttled - rate limit exceeded")
			return false
		}
	}

	return true
}
