package connectors

import (
	"context"
	"io"
	"path"
	"strings"

	"ingestpipe/internal/objectstore"
)

// permissionsMetadataKey is the blob-metadata key connectors read for
// index-time security trimming, per §4.7.
const permissionsMetadataKey = "permissions"

// BlobConnector enumerates a prefix-scanned object-store container,
// skipping zero-byte directory markers, with content-type and permissions
// read from blob properties/metadata (§4.7 "Object store").
type BlobConnector struct {
	store     objectstore.ObjectStore
	prefix    string
	batchSize int
}

// NewBlobConnector constructs a BlobConnector with its prefix and store
// captured at construction.
func NewBlobConnector(store objectstore.ObjectStore, prefix string) *BlobConnector {
	return &BlobConnector{store: store, prefix: prefix, batchSize: 1000}
}

func (c *BlobConnector) Enumerate(ctx context.Context) (<-chan ItemRef, <-chan error) {
	items := make(chan ItemRef)
	errs := make(chan error, 1)

	go func() {
		defer close(items)
		defer close(errs)

		token := ""
		for {
			res, err := c.store.List(ctx, objectstore.ListOptions{
				Prefix:            c.prefix,
				MaxKeys:           c.batchSize,
				ContinuationToken: token,
			})
			if err != nil {
				select {
				case errs <- err:
				default:
				}
				return
			}
			for _, obj := range res.Objects {
				if obj.IsPrefix || isDirectoryMarker(obj) {
					continue
				}
				item := c.toItemRef(ctx, obj)
				select {
				case items <- item:
				case <-ctx.Done():
					return
				}
			}
			if !res.IsTruncated {
				return
			}
			token = res.NextContinuationToken
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()

	return items, errs
}

func isDirectoryMarker(obj objectstore.ObjectAttrs) bool {
	return obj.Size == 0 && strings.HasSuffix(obj.Key, "/")
}

// toItemRef builds an ItemRef from a listed object, reading the
// permissions blob-metadata key via a Head call so security trimming is
// available before the item is ever downloaded (§4.7). A Head failure is
// non-fatal: the item is still enumerated, just without security IDs.
func (c *BlobConnector) toItemRef(ctx context.Context, obj objectstore.ObjectAttrs) ItemRef {
	key := obj.Key
	ref := ItemRef{
		ID:           key,
		DisplayName:  path.Base(key),
		ParentPath:   path.Dir(key),
		LastModified: obj.LastModified,
		Download: func(ctx context.Context) (io.ReadCloser, string, int64, error) {
			rc, attrs, err := c.store.Get(ctx, key)
			if err != nil {
				return nil, "", 0, err
			}
			return rc, attrs.ContentType, attrs.Size, nil
		},
	}
	if attrs, err := c.store.Head(ctx, key); err == nil {
		if raw, ok := attrs.Metadata[permissionsMetadataKey]; ok {
			ref.UserIDs = ParsePermissionList(raw)
		}
	}
	return ref
}
