package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vendor-booking/logger"
	"vendor-booking/models/notification"

	"gorm.io/gorm"
)

// Dispatcher consumes lifecycle events and fans them out to the affected
// parties: an in-app notification row per recipient, plus an AMQP publish
// when a publisher is configured. Delivery is best-effort; a failure here
// never reaches the caller of a state transition.
type Dispatcher struct {
	db        *gorm.DB
	publisher *Publisher // nil when AMQP is not configured
	channel   chan Event
}

func NewDispatcher(db *gorm.DB, publisher *Publisher) *Dispatcher {
	return &Dispatcher{
		db:        db,
		publisher: publisher,
		channel:   make(chan Event, 100), // Buffered channel to hold pending events
	}
}

// Dispatch queues events without blocking. If the buffer is full the event
// is dropped and logged, keeping the state transition path free of
// notification back-pressure.
func (d *Dispatcher) Dispatch(events ...Event) {
	for _, event := range events {
		select {
		case d.channel <- event:
		default:
			logger.Warning(fmt.Sprintf("Notification buffer full, dropping %s for recipient %d", event.Type, event.RecipientID))
		}
	}
}

// Process drains the event channel. Run as a goroutine.
func (d *Dispatcher) Process() {
	logger.Info("Starting notification dispatcher...")

	for event := range d.channel {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	payload := ""
	if event.Payload != nil {
		raw, err := json.Marshal(event.Payload)
		if err != nil {
			logger.Error("Failed to marshal notification payload", err)
		} else {
			payload = string(raw)
		}
	}

	row := notification.Notification{
		RecipientID: event.RecipientID,
		Type:        event.Type,
		Title:       event.Title,
		Payload:     payload,
		BookingID:   event.BookingID,
	}
	if err := d.db.Create(&row).Error; err != nil {
		logger.Error(fmt.Sprintf("Failed to store notification %s for recipient %d", event.Type, event.RecipientID), err)
	}

	if d.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.publisher.PublishJSON(ctx, event.RoutingKey, event); err != nil {
			logger.Error(fmt.Sprintf("Failed to publish notification %s", event.RoutingKey), err)
		}
		cancel()
	}
}
