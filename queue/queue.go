// Package queue buffers newly extracted listings until the engine flushes
// them into the dataset.
package queue

import (
	"sync"

	"listing_ledger/models"
)

// ListingQueue is safe for concurrent Enqueue calls. Order is not preserved
// across concurrent producers and callers must not rely on it.
type ListingQueue struct {
	mu    sync.Mutex
	items []models.StructuredListing
}

func New() *ListingQueue {
	return &ListingQueue{}
}

func (q *ListingQueue) Enqueue(listings ...models.StructuredListing) {
	if len(listings) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, listings...)
}

// Flush returns everything enqueued since the previous Flush and leaves the
// queue empty.
func (q *ListingQueue) Flush() []models.StructuredListing {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := q.items
	q.items = nil
	return batch
}

func (q *ListingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
