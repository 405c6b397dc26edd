package queue

import "context"

// Repository is the persistence contract for queue entries. All mutating
// methods are single transactional units; partial writes are never visible.
// Every method is scoped to today's queue-day partition unless it takes an id.
type Repository interface {
	// InsertBatch persists the given entries atomically, assigning each a
	// queue_position contiguous and strictly greater than today's current
	// maximum, in slice order. The stored entries are returned in order.
	InsertBatch(ctx context.Context, entries []*Entry) ([]*Entry, error)

	// Get returns the entry with the given id or ErrNotFound.
	Get(ctx context.Context, id int64) (*Entry, error)

	// UpdateStatus moves the entry to the target status if and only if its
	// current status is in from. The check and the write are one atomic
	// statement; completed_time is set on the edge into completed. Returns
	// ErrNotFound if the id does not exist and ErrInvalidTransition if the
	// entry exists but its status is not in from.
	UpdateStatus(ctx context.Context, id int64, from []Status, to Status) (*Entry, error)

	// CallNext atomically promotes the smallest-position approved entry of
	// today's partition to in_progress, provided no entry is in_progress.
	// Concurrent calls are serialized per queue-day: exactly one succeeds.
	// Returns ErrQueueBusy or ErrQueueEmpty when the precondition fails.
	CallNext(ctx context.Context) (*Entry, error)

	// ListToday returns today's entries ordered by queue_position, enriched
	// with patient and appointment attributes.
	ListToday(ctx context.Context) ([]*RosterEntry, error)

	// NextApproved returns the entry the next CallNext would select, or
	// ErrQueueEmpty when none is approved.
	NextApproved(ctx context.Context) (*Entry, error)

	// CurrentInProgress returns today's unique in_progress entry, or
	// ErrNotFound when no patient is being served.
	CurrentInProgress(ctx context.Context) (*Entry, error)

	// Stats aggregates today's entries by status.
	Stats(ctx context.Context) (*Stats, error)
}
