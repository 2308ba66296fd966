package mirror

import (
	"context"
	"time"
)

// EventType names a walk event.
type EventType string

const (
	EventFolderCreated  EventType = "folder_created"
	EventFileDownloaded EventType = "file_downloaded"
	EventFileSkipped    EventType = "file_skipped"
	EventListFailed     EventType = "list_failed"
	EventMalformedItem  EventType = "malformed_item"
	EventUnknownKind    EventType = "unknown_kind"
	EventRunComplete    EventType = "run_complete"
)

// Event is emitted for every notable step of a walk.
type Event struct {
	Type   EventType `json:"type"`
	Time   time.Time `json:"time"`
	RunID  string    `json:"run_id,omitempty"`
	ItemID string    `json:"item_id,omitempty"`
	Name   string    `json:"name,omitempty"`
	Path   string    `json:"path,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Bytes  int       `json:"bytes,omitempty"`
	Error  string    `json:"error,omitempty"`
	// Counts is set on run_complete.
	Counts *Counts `json:"counts,omitempty"`
}

// Observer receives walk events. Implementations must not block the walk.
type Observer interface {
	OnEvent(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) OnEvent(ctx context.Context, e Event) { f(ctx, e) }

// Observers fans an event out to each member in order.
type Observers []Observer

func (o Observers) OnEvent(ctx context.Context, e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnEvent(ctx, e)
		}
	}
}

type nopObserver struct{}

func (nopObserver) OnEvent(context.Context, Event) {}
