package searchgateway

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"ingestpipe/internal/errkind"
	"ingestpipe/internal/retry"
)

// payloadIDField stores the original string key in the point payload.
// Qdrant only allows UUIDs and positive integers as point IDs, so point IDs
// are a deterministic UUID derived from the key and the original key is
// round-tripped through the payload.
const payloadIDField = "_original_id"

// QdrantGateway implements Gateway against a Qdrant collection.
type QdrantGateway struct {
	client     *qdrant.Client
	collection string
	batchSize  int
}

// Open connects to Qdrant at dsn (its gRPC port, 6334 by default) and
// ensures the collection exists with the configured vector size and
// distance metric.
func Open(ctx context.Context, dsn, collection string, dimensions int, metric string, batchSize int) (*QdrantGateway, error) {
	if collection == "" {
		return nil, fmt.Errorf("searchgateway: collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("searchgateway: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("searchgateway: invalid port in dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("searchgateway: create qdrant client: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	g := &QdrantGateway{client: client, collection: collection, batchSize: batchSize}
	if err := g.ensureCollection(ctx, dimensions, metric); err != nil {
		client.Close()
		return nil, fmt.Errorf("searchgateway: ensure collection: %w", err)
	}
	return g, nil
}

func (g *QdrantGateway) ensureCollection(ctx context.Context, dimensions int, metric string) error {
	exists, err := g.client.CollectionExists(ctx, g.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch strings.ToLower(strings.TrimSpace(metric)) {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	if dimensions <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	return g.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: g.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: distance,
		}),
	})
}

func pointID(key string) *qdrant.PointId {
	id := key
	if _, err := uuid.Parse(key); err != nil {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
	}
	return qdrant.NewIDUUID(id)
}

func (g *QdrantGateway) UploadDocuments(ctx context.Context, docs []Document) ([]UploadResult, error) {
	results := make([]UploadResult, 0, len(docs))
	for start := 0; start < len(docs); start += g.batchSize {
		end := start + g.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		points := make([]*qdrant.PointStruct, 0, len(batch))
		for _, d := range batch {
			points = append(points, toPoint(d))
		}
		policy := retry.SearchPolicy()
		_, err := retry.Do(ctx, policy, "searchgateway.upload", func(ctx context.Context, attempt int) (struct{}, error) {
			_, err := g.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: g.collection, Points: points})
			return struct{}{}, classifyQdrantErr(err)
		})
		for _, d := range batch {
			results = append(results, UploadResult{Key: d.ID, Success: err == nil, Err: err})
		}
	}
	return results, nil
}

func (g *QdrantGateway) DeleteDocuments(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += g.batchSize {
		end := start + g.batchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]
		ids := make([]*qdrant.PointId, 0, len(batch))
		for _, k := range batch {
			ids = append(ids, pointID(k))
		}
		policy := retry.SearchPolicy()
		_, err := retry.Do(ctx, policy, "searchgateway.delete", func(ctx context.Context, attempt int) (struct{}, error) {
			_, err := g.client.Delete(ctx, &qdrant.DeletePoints{
				CollectionName: g.collection,
				Points:         qdrant.NewPointsSelectorIDs(ids),
			})
			return struct{}{}, classifyQdrantErr(err)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *QdrantGateway) GetDocument(ctx context.Context, key string) (Document, error) {
	policy := retry.SearchPolicy()
	points, err := retry.Do(ctx, policy, "searchgateway.get", func(ctx context.Context, attempt int) ([]*qdrant.RetrievedPoint, error) {
		pts, err := g.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: g.collection,
			Ids:            []*qdrant.PointId{pointID(key)},
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		return pts, classifyQdrantErr(err)
	})
	if err != nil {
		return Document{}, err
	}
	if len(points) == 0 {
		return Document{}, ErrNotFound
	}
	return fromRetrievedPoint(key, points[0]), nil
}

func (g *QdrantGateway) Search(ctx context.Context, filter Filter, opts SearchOptions) (Page, error) {
	limit := uint32(opts.PageSize)
	if limit == 0 {
		limit = 100
	}
	req := &qdrant.ScrollPoints{
		CollectionName: g.collection,
		Filter:         toQdrantFilter(filter),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if opts.PageToken != "" {
		req.Offset = qdrant.NewIDUUID(opts.PageToken)
	}
	policy := retry.SearchPolicy()
	points, err := retry.Do(ctx, policy, "searchgateway.search", func(ctx context.Context, attempt int) ([]*qdrant.RetrievedPoint, error) {
		pts, err := g.client.Scroll(ctx, req)
		return pts, classifyQdrantErr(err)
	})
	if err != nil {
		return Page{}, err
	}
	page := Page{Documents: make([]Document, 0, len(points))}
	for _, p := range points {
		page.Documents = append(page.Documents, fromRetrievedPoint("", p))
	}
	if uint32(len(points)) == limit && len(points) > 0 {
		last := points[len(points)-1]
		if last.Id != nil && last.Id.GetUuid() != "" {
			page.NextPageToken = last.Id.GetUuid()
		}
	}
	return page, nil
}

func (g *QdrantGateway) Close() error { return g.client.Close() }

func classifyQdrantErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "resourceexhausted") || strings.Contains(msg, "too many requests"):
		return errkind.New(errkind.RateLimited, "qdrant", err)
	case strings.Contains(msg, "unavailable") || strings.Contains(msg, "deadlineexceeded") || strings.Contains(msg, "timeout"):
		return errkind.New(errkind.Transient, "qdrant", err)
	case strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "permissiondenied"):
		return errkind.New(errkind.Auth, "qdrant", err)
	default:
		return errkind.New(errkind.NonRetriable4xx, "qdrant", err)
	}
}

var _ Gateway = (*QdrantGateway)(nil)
