package searchgateway

import (
	"context"
	"sort"
	"sync"
)

// FakeGateway is an in-memory Gateway used by engine tests in place of a
// live Qdrant collection, mirroring the role objectstore.MemoryStore plays
// for the Object Store Gateway.
type FakeGateway struct {
	mu   sync.Mutex
	docs map[string]Document
}

// NewFake returns an empty FakeGateway.
func NewFake() *FakeGateway {
	return &FakeGateway{docs: make(map[string]Document)}
}

func (f *FakeGateway) UploadDocuments(ctx context.Context, docs []Document) ([]UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]UploadResult, 0, len(docs))
	for _, d := range docs {
		f.docs[d.ID] = d
		results = append(results, UploadResult{Key: d.ID, Success: true})
	}
	return results, nil
}

func (f *FakeGateway) DeleteDocuments(ctx context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.docs, k)
	}
	return nil
}

func (f *FakeGateway) GetDocument(ctx context.Context, key string) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[key]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d, nil
}

func (f *FakeGateway) Search(ctx context.Context, filter Filter, opts SearchOptions) (Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.docs))
	for k := range f.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var matched []Document
	for _, k := range keys {
		d := f.docs[k]
		if matches(d, filter) {
			matched = append(matched, d)
		}
	}
	return Page{Documents: matched}, nil
}

// Len reports the number of documents currently held, for test assertions.
func (f *FakeGateway) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

func matches(d Document, filter Filter) bool {
	field := func(name string) string {
		switch name {
		case fieldParentID:
			return d.ParentID
		case fieldSource:
			return d.Source
		case payloadIDField:
			return d.ID
		default:
			return ""
		}
	}
	for k, v := range filter.Eq {
		if field(k) != v {
			return false
		}
	}
	for k, v := range filter.Ne {
		if field(k) == v {
			return false
		}
	}
	return true
}

var _ Gateway = (*FakeGateway)(nil)
