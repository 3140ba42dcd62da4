package queue

import (
	"context"
	"sync"
	"time"

	"github.com/emrgen/identity/internal/model"
	"github.com/google/uuid"
)

type EventType string

const (
	EventContactCreated  EventType = "contact.created"
	EventContactAttached EventType = "contact.attached"
	EventContactMerged   EventType = "contact.merged"
)

// ContactEvent announces a committed change to a cluster. Contact is nil
// when the view could not be read back after commit.
type ContactEvent struct {
	ID               uuid.UUID          `json:"id"`
	Type             EventType          `json:"type"`
	PrimaryContactID uint               `json:"primaryContactId"`
	MergedPrimaryIDs []uint             `json:"mergedPrimaryIds,omitempty"`
	Contact          *model.ContactView `json:"contact,omitempty"`
	OccurredAt       time.Time          `json:"occurredAt"`
}

func NewContactEvent(kind EventType, primaryID uint, view *model.ContactView, merged []uint) *ContactEvent {
	return &ContactEvent{
		ID:               uuid.New(),
		Type:             kind,
		PrimaryContactID: primaryID,
		MergedPrimaryIDs: merged,
		Contact:          view,
		OccurredAt:       time.Now().UTC(),
	}
}

type ContactQueue interface {
	// Publish appends a contact event to the queue.
	Publish(ctx context.Context, event *ContactEvent) error
	Close() error
}

var _ ContactQueue = (*NopQueue)(nil)

type NopQueue struct{}

func NewNopQueue() *NopQueue {
	return &NopQueue{}
}

func (n *NopQueue) Publish(ctx context.Context, event *ContactEvent) error {
	return nil
}

func (n *NopQueue) Close() error {
	return nil
}

var _ ContactQueue = (*MemoryQueue)(nil)

// MemoryQueue keeps published events in process.
type MemoryQueue struct {
	mu     sync.Mutex
	events []*ContactEvent
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (m *MemoryQueue) Publish(ctx context.Context, event *ContactEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (m *MemoryQueue) Events() []*ContactEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ContactEvent(nil), m.events...)
}

func (m *MemoryQueue) Close() error {
	return nil
}
