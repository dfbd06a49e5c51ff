package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines outbox persistence. Implementations must be safe for
// concurrent use.
type Store interface {
	// Append adds an entry. When ctx carries a transaction the entry joins it.
	Append(ctx context.Context, entry *Entry) error

	// FetchUnprocessed returns up to limit pending entries, oldest first.
	// Postgres uses FOR UPDATE SKIP LOCKED so workers never block each other.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)

	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)

	// DeleteProcessedBefore removes published entries older than before.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}
