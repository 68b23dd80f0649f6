// Package connectors implements the Source Connectors (C7): each exposes a
// flat asynchronous sequence of ItemRef, pagination handled internally, the
// way a single enumerate(filter) generator would (§4.7).
package connectors

import (
	"context"
	"io"
	"time"
)

// Download opens an item's binary content, its content-type, and its length.
type Download func(ctx context.Context) (io.ReadCloser, string, int64, error)

// ItemRef is one discoverable unit of work from a source.
type ItemRef struct {
	ID           string
	DisplayName  string
	ParentPath   string
	LastModified time.Time
	Download     Download
	UserIDs      []string
	GroupIDs     []string
}

// Connector streams ItemRefs for one source. Enumerate must close the
// returned channel when discovery completes or ctx is cancelled, and must
// send at most one error before closing.
type Connector interface {
	Enumerate(ctx context.Context) (<-chan ItemRef, <-chan error)
}
