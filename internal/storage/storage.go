package storage

import (
	"context"
	"errors"
	"time"

	"clipd/pkg/types"
)

// ErrNotFound reports a clip id with no row behind it.
var ErrNotFound = errors.New("storage: clip not found")

// Store is the durable clipboard history log. All mutating operations are
// atomic with respect to each other; ordering is always newest-first by
// capture time, ties broken by descending id.
type Store interface {
	// Insert persists a clip and returns its store-assigned id.
	Insert(ctx context.Context, clip *types.Clip) (int64, error)

	// GetByID returns a single clip, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*types.Clip, error)

	// List returns clips matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*types.Clip, error)

	// MostRecent returns the newest clip by capture time, or ErrNotFound on
	// an empty store. Used for duplicate suppression.
	MostRecent(ctx context.Context) (*types.Clip, error)

	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error

	// DeleteOldestUnpinned removes up to n non-pinned clips, oldest first.
	// Pinned clips are never touched regardless of age.
	DeleteOldestUnpinned(ctx context.Context, n int) error

	// DeleteUnpinnedBefore removes non-pinned clips captured before cutoff
	// and reports how many went.
	DeleteUnpinnedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	SetPinned(ctx context.Context, id int64, pinned bool) error

	Count(ctx context.Context) (int64, error)
	CountUnpinned(ctx context.Context) (int64, error)

	// ImageRefs returns the blob addresses of every image clip, for orphan
	// reaping.
	ImageRefs(ctx context.Context) ([]string, error)

	Close() error
}

// ListFilter defines criteria for listing clips.
type ListFilter struct {
	// Query restricts results to clips whose preview, full text or link ref
	// contains the substring, case-insensitively.
	Query string

	// PinnedOnly restricts results to pinned clips.
	PinnedOnly bool

	Limit  int
	Offset int
}

// Config holds storage configuration.
type Config struct {
	DBPath string // path to the SQLite database
}
