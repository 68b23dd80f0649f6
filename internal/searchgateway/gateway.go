package searchgateway

import "context"

// Gateway is the Search Gateway contract. All operations are safe for
// concurrent callers; implementations apply the back-off policy of §4.3
// internally so callers never see a retriable error.
type Gateway interface {
	// UploadDocuments upserts a batch of index documents, internally split
	// into batches of at most batchSize, and returns a per-document outcome.
	UploadDocuments(ctx context.Context, docs []Document) ([]UploadResult, error)

	// DeleteDocuments deletes by primary key, internally batched.
	DeleteDocuments(ctx context.Context, keys []string) error

	// Search runs one page of a paged scan matching filter. opts.Select names
	// the fields the caller reads; QdrantGateway and FakeGateway do not
	// project on it and return every stored field.
	Search(ctx context.Context, filter Filter, opts SearchOptions) (Page, error)

	// GetDocument is a point fetch by primary key. Returns ErrNotFound if
	// absent.
	GetDocument(ctx context.Context, key string) (Document, error)
}
