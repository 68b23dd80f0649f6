// Package searchgateway implements the Search Gateway (C3): a thin contract
// over the vector search index backed by Qdrant, the way
// persistence/databases/qdrant_vector.go wires the same client for
// retrieval-serving use. Here it serves the indexer/purger engines instead:
// batch upload, batch delete, point-get by key, and paged filtered scan.
package searchgateway

import (
	"errors"
	"time"
)

// ErrNotFound is returned by GetDocument when no record exists for the key.
var ErrNotFound = errors.New("search gateway: document not found")

// Document is one search-engine record (§3 Index Document).
type Document struct {
	ID                          string
	ParentID                    string
	MetadataStoragePath         string
	MetadataStorageName         string
	MetadataStorageLastModified time.Time
	MetadataSecurityUserIDs     []string
	MetadataSecurityGroupIDs    []string
	Source                      string
	ChunkID                     int
	Content                     string
	ContentVector               []float32
	CaptionVector               []float32
	Title                       string
	Page                        int
	Offset                      int
	Length                      int
	URL                         string
	Category                    string
	Summary                     string
	RelatedImages               []string
	RelatedFiles                []string
	ImageCaptions               string
	Filepath                    string
}

// UploadResult is the per-document outcome of an UploadDocuments batch call.
type UploadResult struct {
	Key     string
	Success bool
	Err     error
}

// Filter is the index's filter grammar, supporting at minimum equality and
// not-equal on named fields (§4.3).
type Filter struct {
	Eq map[string]string
	Ne map[string]string
}

// EqFilter is a convenience constructor for a single-field equality filter.
func EqFilter(field, value string) Filter {
	return Filter{Eq: map[string]string{field: value}}
}

// SearchOptions configures one page of a paged scan.
type SearchOptions struct {
	Select    []string
	PageSize  int
	PageToken string
}

// Page is one page of a paged scan.
type Page struct {
	Documents     []Document
	NextPageToken string
}
