// Package indexer implements the Indexer Engine (C8): per-run discovery,
// freshness gating, chunking, embedding, and replace-by-parent against the
// Search Gateway, with bounded item concurrency and best-effort run/item
// logging.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ingestpipe/internal/chunker"
	"ingestpipe/internal/chunkkey"
	"ingestpipe/internal/connectors"
	"ingestpipe/internal/embedding"
	"ingestpipe/internal/errkind"
	"ingestpipe/internal/runlog"
	"ingestpipe/internal/searchgateway"
)

const maxSecurityIDs = 32

// Engine runs one indexer pass for a single connector/source-tag pair
// (§4.8). Construct one Engine per source; Run is safe to call repeatedly
// (e.g. once per cron tick) but not concurrently with itself.
type Engine struct {
	IndexerType string
	SourceTag   string
	Source      connectors.Connector
	Search      searchgateway.Gateway
	Embed       *embedding.Client
	ChunkerFor  func(item connectors.ItemRef) chunker.Chunker
	ParentKeyFor func(item connectors.ItemRef) string
	Logger      *runlog.Logger

	MaxConcurrency    int
	BatchSize         int
	ItemTimeout       time.Duration
	FreshnessSkew     time.Duration
	ListGatherTimeout time.Duration
}

// counters holds the run's atomic tallies (§8 "Run counters").
type counters struct {
	itemsDiscovered     atomic.Int64
	candidateItems      atomic.Int64
	indexedItems        atomic.Int64
	skippedNoChange     atomic.Int64
	failed              atomic.Int64
	totalChunksUploaded atomic.Int64

	// preCandidateFailed counts items that errored before candidacy was
	// determined (the freshness check itself failing). §8's invariant
	// `indexedItems + failed ≤ candidateItems` is about failures of items
	// that became candidates; these never did, so they are tracked apart
	// from failed rather than folded into it (§4.8 step 11's
	// "not-candidate-but-failed" term).
	preCandidateFailed atomic.Int64
}

func (c *counters) summary(indexerType, runID string, startedAt time.Time) runlog.RunSummary {
	return runlog.RunSummary{
		IndexerType:         indexerType,
		RunID:               runID,
		RunStartedAt:        startedAt,
		ItemsDiscovered:     int(c.itemsDiscovered.Load()),
		CandidateItems:      int(c.candidateItems.Load()),
		IndexedItems:        int(c.indexedItems.Load()),
		SkippedNoChange:     int(c.skippedNoChange.Load()),
		Failed:              int(c.failed.Load()),
		TotalChunksUploaded: int(c.totalChunksUploaded.Load()),
	}
}

func (e *Engine) defaults() {
	if e.MaxConcurrency <= 0 {
		e.MaxConcurrency = 8
	}
	if e.BatchSize <= 0 {
		e.BatchSize = 500
	}
	if e.ItemTimeout <= 0 {
		e.ItemTimeout = 600 * time.Second
	}
	if e.FreshnessSkew <= 0 {
		e.FreshnessSkew = time.Second
	}
	if e.ListGatherTimeout <= 0 {
		e.ListGatherTimeout = 7200 * time.Second
	}
	if e.ParentKeyFor == nil {
		e.ParentKeyFor = func(item connectors.ItemRef) string {
			return chunkkey.ParentKey(e.SourceTag, item.ID)
		}
	}
}

// Run executes one indexer pass (§4.8 steps 1-11).
func (e *Engine) Run(ctx context.Context, runID string) (runlog.RunSummary, error) {
	e.defaults()
	startedAt := time.Now().UTC()
	var cnt counters

	e.writeSummary(ctx, cnt.summary(e.IndexerType, runID, startedAt), runlog.StatusStarted)

	gctx, cancel := context.WithTimeout(ctx, e.ListGatherTimeout)
	defer cancel()

	items, sourceErrs := e.Source.Enumerate(gctx)

	g, gCtx := errgroup.WithContext(gctx)
	g.SetLimit(e.MaxConcurrency)

	var runErr error
loop:
	for {
		select {
		case item, ok := <-items:
			if !ok {
				break loop
			}
			cnt.itemsDiscovered.Add(1)
			item := item
			g.Go(func() error {
				e.processItem(gCtx, runID, item, &cnt)
				return nil
			})
		case err, ok := <-sourceErrs:
			if ok && err != nil {
				runErr = err
			}
		case <-gCtx.Done():
			break loop
		}
	}

	_ = g.Wait()

	finishedAt := time.Now().UTC()
	final := cnt.summary(e.IndexerType, runID, startedAt)
	final.RunFinishedAt = &finishedAt

	status := runlog.StatusFinished
	switch {
	case runErr != nil:
		status = runlog.StatusFailed
	case errors.Is(ctx.Err(), context.Canceled):
		status = runlog.StatusCancelled
	}
	final.Status = runlog.StatusFinishing
	e.writeSummary(ctx, final, runlog.StatusFinishing)
	final.Status = status
	e.writeSummary(ctx, final, status)

	if runErr != nil {
		return final, fmt.Errorf("indexer: run failed: %w", runErr)
	}
	if status == runlog.StatusCancelled {
		return final, ctx.Err()
	}
	return final, nil
}

func (e *Engine) writeSummary(ctx context.Context, summary runlog.RunSummary, status string) {
	summary.Status = status
	if e.Logger == nil {
		return
	}
	if err := e.Logger.WriteRunSummary(ctx, summary); err != nil {
		e.Logger.LogEvent("warn", "run_summary_write_failed", summary.RunID, map[string]any{"error": err.Error()})
	}
}

// processItem implements the per-item state machine (§4.8 steps 3-10).
// Item-scoped errors are recorded and never propagated to the run.
func (e *Engine) processItem(ctx context.Context, runID string, item connectors.ItemRef, cnt *counters) {
	parentID := e.ParentKeyFor(item)

	reindex, existing, err := e.needsReindex(ctx, parentID, item)
	if err != nil {
		cnt.preCandidateFailed.Add(1)
		e.logItem(ctx, runID, parentID, "error", err, 0)
		return
	}
	if !reindex {
		cnt.skippedNoChange.Add(1)
		e.logItem(ctx, runID, parentID, "skipped-no-change", nil, 0)
		return
	}
	cnt.candidateItems.Add(1)

	itemCtx, cancel := context.WithTimeout(ctx, e.ItemTimeout)
	defer cancel()

	rc, contentType, _, err := item.Download(itemCtx)
	if err != nil {
		if errors.Is(itemCtx.Err(), context.DeadlineExceeded) {
			e.fail(ctx, runID, parentID, cnt, "timeout", err)
			return
		}
		e.fail(ctx, runID, parentID, cnt, "error", err)
		return
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		e.fail(ctx, runID, parentID, cnt, "error", err)
		return
	}

	chnk := e.ChunkerFor(item)
	chunks, err := chnk.Chunk(itemCtx, chunker.Input{Filename: item.DisplayName, ContentType: contentType, Bytes: data})
	if err != nil {
		e.fail(ctx, runID, parentID, cnt, "error", errkind.New(errkind.Chunker, "indexer.chunk", err))
		return
	}
	if len(chunks) == 0 {
		e.logItem(ctx, runID, parentID, "success", nil, 0)
		cnt.indexedItems.Add(1)
		return
	}

	docs := make([]searchgateway.Document, 0, len(chunks))
	for _, ch := range chunks {
		doc, err := e.buildDocument(itemCtx, runID, parentID, item, ch)
		if err != nil {
			e.fail(ctx, runID, parentID, cnt, "error", err)
			return
		}
		docs = append(docs, doc)
	}

	if err := e.replace(ctx, parentID, existing, docs); err != nil {
		e.fail(ctx, runID, parentID, cnt, "error", err)
		return
	}

	cnt.indexedItems.Add(1)
	cnt.totalChunksUploaded.Add(int64(len(chunks)))
	e.logItem(ctx, runID, parentID, "success", nil, len(chunks))
}

func (e *Engine) fail(ctx context.Context, runID, parentID string, cnt *counters, outcome string, err error) {
	cnt.failed.Add(1)
	e.logItem(ctx, runID, parentID, outcome, err, 0)
}

func (e *Engine) logItem(ctx context.Context, runID, parentID, outcome string, err error, chunkCount int) {
	if e.Logger == nil {
		return
	}
	rec := runlog.ItemLogRecord{RunID: runID, ParentID: parentID, Outcome: outcome, ChunkCount: chunkCount, Timestamp: time.Now().UTC()}
	if err != nil {
		rec.Error = err.Error()
	}
	_ = e.Logger.WriteItemLog(ctx, parentID, rec)
}

// needsReindex implements the freshness gate (§4.8 step 4): reindex if the
// chunk-0 record is absent or incoming.LastModified is strictly newer than
// the existing record by more than FreshnessSkew.
func (e *Engine) needsReindex(ctx context.Context, parentID string, item connectors.ItemRef) (bool, searchgateway.Document, error) {
	key0 := chunkkey.ChunkKey(parentID, 0)
	existing, err := e.Search.GetDocument(ctx, key0)
	if errors.Is(err, searchgateway.ErrNotFound) {
		return true, searchgateway.Document{}, nil
	}
	if err != nil {
		return false, searchgateway.Document{}, err
	}
	if item.LastModified.Sub(existing.MetadataStorageLastModified) > e.FreshnessSkew {
		return true, existing, nil
	}
	return false, existing, nil
}

// buildDocument maps one chunker.Chunk into an index document, embedding its
// text and trimming security ID lists to at most 32 entries (§8).
func (e *Engine) buildDocument(ctx context.Context, runID, parentID string, item connectors.ItemRef, ch chunker.Chunk) (searchgateway.Document, error) {
	text := ch.EmbeddingText
	if text == "" {
		text = ch.Content
	}
	var vector []float32
	if e.Embed != nil {
		v, err := e.Embed.Embed(ctx, text)
		if err != nil {
			return searchgateway.Document{}, err
		}
		vector = v
	}

	return searchgateway.Document{
		ID:                          chunkkey.ChunkKey(parentID, ch.Index),
		ParentID:                    parentID,
		MetadataStoragePath:         item.ID,
		MetadataStorageName:         item.DisplayName,
		MetadataStorageLastModified: item.LastModified,
		MetadataSecurityUserIDs:     e.capSecurityIDs(runID, parentID, "user_ids", item.UserIDs),
		MetadataSecurityGroupIDs:    e.capSecurityIDs(runID, parentID, "group_ids", item.GroupIDs),
		Source:                      e.SourceTag,
		ChunkID:                     ch.Index,
		Content:                     ch.Content,
		ContentVector:               vector,
		CaptionVector:               ch.CaptionVector,
		Title:                       ch.Title,
		Page:                        ch.Page,
		Offset:                      ch.Offset,
		Length:                      ch.Length,
		Category:                    ch.Category,
		Summary:                     ch.Summary,
		RelatedImages:               ch.RelatedImages,
		RelatedFiles:                ch.RelatedFiles,
		ImageCaptions:               ch.ImageCaptions,
		Filepath:                    ch.Filepath,
	}, nil
}

// replace implements step 9: paginated-scan by parent_id, delete the
// existing chunk set in batches, then upload the new set in batches. Delete
// strictly precedes upload within one document (§5 "Ordering guarantees").
func (e *Engine) replace(ctx context.Context, parentID string, existing searchgateway.Document, docs []searchgateway.Document) error {
	var staleKeys []string
	token := ""
	for {
		page, err := e.Search.Search(ctx, searchgateway.EqFilter("parent_id", parentID), searchgateway.SearchOptions{PageSize: e.BatchSize, PageToken: token})
		if err != nil {
			return err
		}
		for _, d := range page.Documents {
			staleKeys = append(staleKeys, d.ID)
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	for i := 0; i < len(staleKeys); i += e.BatchSize {
		end := min(i+e.BatchSize, len(staleKeys))
		if err := e.Search.DeleteDocuments(ctx, staleKeys[i:end]); err != nil {
			return err
		}
	}

	for i := 0; i < len(docs); i += e.BatchSize {
		end := min(i+e.BatchSize, len(docs))
		if _, err := e.Search.UploadDocuments(ctx, docs[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// capSecurityIDs dedupes and truncates a permission list to at most 32
// entries, the boundary behavior §8 specifies, logging a warning whenever
// truncation actually drops entries.
func (e *Engine) capSecurityIDs(runID, parentID, field string, ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > maxSecurityIDs {
		dropped := len(out) - maxSecurityIDs
		out = out[:maxSecurityIDs]
		if e.Logger != nil {
			e.Logger.LogEvent("warn", "security_ids_truncated", runID, map[string]any{
				"parent_id": parentID,
				"field":     field,
				"kept":      maxSecurityIDs,
				"dropped":   dropped,
			})
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
