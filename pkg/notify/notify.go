// Package notify defines the job event boundary.
//
// The spool publishes an Event whenever a job enters or leaves a queue.
// Notifiers deliver events to downstream systems; delivery is best-effort
// and never blocks or fails an LPD exchange.
package notify

import (
	"context"
	"time"
)

// EventType names what happened to a job or queue.
type EventType string

const (
	EventJobReceived   EventType = "job_received"
	EventJobRemoved    EventType = "job_removed"
	EventQueueStarted  EventType = "queue_started"
	EventQueueLocked   EventType = "queue_locked"
	EventQueueUnlocked EventType = "queue_unlocked"
)

// Event is the payload published for job and queue changes.
type Event struct {
	Type      EventType `json:"type"`
	JobID     string    `json:"job_id,omitempty"`
	Queue     string    `json:"queue"`
	Number    int       `json:"number,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Bytes     int64     `json:"bytes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier publishes events to a downstream system.
type Notifier interface {
	// Publish sends one event. Must respect context cancellation and
	// deadlines.
	Publish(ctx context.Context, event *Event) error

	// Close releases notifier resources.
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, *Event) error { return nil }
func (Noop) Close() error                          { return nil }

var _ Notifier = Noop{}
