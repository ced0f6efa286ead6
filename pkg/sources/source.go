// Package sources defines the contract every data source adapter
// implements, plus shared record validation. Adapters are pure producers
// of timeline items; their transient failures degrade to an empty
// contribution at the aggregation boundary.
package sources

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/luminalab/mindloom/pkg/timeline"
)

// Adapter is one origin of timeline items.
type Adapter interface {
	// Name returns the source identifier
	Name() string
	// Fetch returns items whose effective time falls in [start, end]
	Fetch(ctx context.Context, start, end time.Time) ([]timeline.Item, error)
}

// Searcher is implemented by adapters that can match items by substring at
// the source, beyond whatever the last aggregation run cached.
type Searcher interface {
	Search(ctx context.Context, query string) ([]timeline.Item, error)
}

// ErrMalformedRecord marks a source record missing required fields. Such a
// record is skipped with a warning; it never aborts the batch.
var ErrMalformedRecord = errors.New("malformed source record")

// ValidateRecord checks the fields every source record must carry before
// conversion. Fails closed: callers skip the record on error rather than
// producing a partially-populated item.
func ValidateRecord(sourceID string, timestamp time.Time) error {
	if sourceID == "" {
		return errors.Wrap(ErrMalformedRecord, "missing source id")
	}
	if timestamp.IsZero() {
		return errors.Wrap(ErrMalformedRecord, "missing timestamp")
	}
	return nil
}

// InRange reports whether ts falls inside the inclusive fetch bound.
func InRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}
