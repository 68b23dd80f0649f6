package connectors

import (
	"context"
	"io"
	"path"
	"strings"

	"ingestpipe/internal/objectstore"
)

// NL2SQLKind is one of the three NL2SQL source subtrees (§4.7).
type NL2SQLKind int

const (
	NL2SQLQueries NL2SQLKind = iota
	NL2SQLTables
	NL2SQLMeasures
)

func (k NL2SQLKind) subtree() string {
	switch k {
	case NL2SQLTables:
		return "tables/"
	case NL2SQLMeasures:
		return "measures/"
	default:
		return "queries/"
	}
}

// NL2SQLConnector enumerates JSON files under one of the queries/, tables/,
// measures/ subtrees of the NL2SQL storage container (§4.7).
type NL2SQLConnector struct {
	store objectstore.ObjectStore
	kind  NL2SQLKind
}

// NewNL2SQLConnector constructs an NL2SQLConnector for one subtree.
func NewNL2SQLConnector(store objectstore.ObjectStore, kind NL2SQLKind) *NL2SQLConnector {
	return &NL2SQLConnector{store: store, kind: kind}
}

// Kind reports which subtree this connector enumerates, letting callers pick
// the matching chunker.NL2SQLSubtree / searchgateway index.
func (c *NL2SQLConnector) Kind() NL2SQLKind {
	return c.kind
}

func (c *NL2SQLConnector) Enumerate(ctx context.Context) (<-chan ItemRef, <-chan error) {
	items := make(chan ItemRef)
	errs := make(chan error, 1)

	go func() {
		defer close(items)
		defer close(errs)

		prefix := c.kind.subtree()
		token := ""
		for {
			res, err := c.store.List(ctx, objectstore.ListOptions{Prefix: prefix, ContinuationToken: token})
			if err != nil {
				select {
				case errs <- err:
				default:
				}
				return
			}
			for _, obj := range res.Objects {
				if obj.IsPrefix || !strings.HasSuffix(obj.Key, ".json") {
					continue
				}
				key := obj.Key
				ref := ItemRef{
					ID:           key,
					DisplayName:  path.Base(key),
					ParentPath:   prefix,
					LastModified: obj.LastModified,
					Download: func(ctx context.Context) (io.ReadCloser, string, int64, error) {
						rc, attrs, err := c.store.Get(ctx, key)
						if err != nil {
							return nil, "", 0, err
						}
						return rc, attrs.ContentType, attrs.Size, nil
					},
				}
				select {
				case items <- ref:
				case <-ctx.Done():
					return
				}
			}
			if !res.IsTruncated {
				return
			}
			token = res.NextContinuationToken
		}
	}()

	return items, errs
}

var _ Connector = (*NL2SQLConnector)(nil)
