package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate types recorded on ledger events.
const (
	AggregateIdentity = "identity"
	AggregateBlock    = "block"
	AggregatePartner  = "partner"
	AggregateTreasury = "treasury"
)

// Entry is a pending ledger event. It is written in the same transaction as
// the balance movement it describes and published to Kafka afterwards.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte // JSON
	CreatedAt     time.Time
	ProcessedAt   *time.Time // nil while pending
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry creates an outbox entry with a generated ID.
func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, now time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}
}
