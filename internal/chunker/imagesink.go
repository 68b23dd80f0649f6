package chunker

import (
	"bytes"
	"context"
	"path"
	"strings"

	"ingestpipe/internal/chunkkey"
	"ingestpipe/internal/objectstore"
)

// BlobImageSink uploads multimodal figure images to the figures container,
// keyed so the purger's figures pass can recover the owning chunk-0 key
// without a reverse index: <prefix>/<sanitized(parentID)>/<figureID>.<ext>.
type BlobImageSink struct {
	store  objectstore.ObjectStore
	prefix string
}

// NewBlobImageSink constructs a BlobImageSink writing under prefix (the
// FiguresContainer setting).
func NewBlobImageSink(store objectstore.ObjectStore, prefix string) *BlobImageSink {
	return &BlobImageSink{store: store, prefix: strings.Trim(prefix, "/")}
}

func (s *BlobImageSink) Put(ctx context.Context, parentID, figureID string, imageBytes []byte) (string, error) {
	dir := chunkkey.Sanitize(strings.TrimPrefix(parentID, "/"))
	ext := imageExtension(imageBytes)
	key := path.Join(s.prefix, dir, chunkkey.Sanitize(figureID)+ext)
	if _, err := s.store.Put(ctx, key, bytes.NewReader(imageBytes), objectstore.PutOptions{ContentType: detectImageMediaType(imageBytes)}); err != nil {
		return "", err
	}
	return key, nil
}

func imageExtension(data []byte) string {
	switch detectImageMediaType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}

var _ ImageSink = (*BlobImageSink)(nil)
