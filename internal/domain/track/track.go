// Package track provides the Track domain entity.
package track

import "time"

// Track represents resolved media metadata.
// Metadata is fetched once when the request is resolved and never re-fetched.
type Track struct {
	URL          string        // Canonical watch URL
	Title        string        // Video title
	Duration     time.Duration // Zero when the source does not report one
	ThumbnailURL string        // Thumbnail image URL
}

// Requester identifies the user who asked for a track.
type Requester struct {
	ID          string // Platform user ID
	DisplayName string // Display name at request time
}

// QueuedRequest is a track waiting in a session's play queue.
// Immutable once enqueued; consumed exactly once, in insertion order.
type QueuedRequest struct {
	Track     Track
	Requester Requester
	AddedAt   time.Time
}

// NewQueuedRequest creates a queued request stamped with the current time.
func NewQueuedRequest(t Track, r Requester) QueuedRequest {
	return QueuedRequest{
		Track:     t,
		Requester: r,
		AddedAt:   time.Now(),
	}
}
