// Package purger implements the Purger Engine (C9): reconciles index
// contents against upstream truth for one source tag and deletes orphans in
// batches, the way internal/indexer replaces-by-parent but in reverse.
package purger

import (
	"context"
	"fmt"

	"ingestpipe/internal/chunkkey"
	"ingestpipe/internal/connectors"
	"ingestpipe/internal/runlog"
	"ingestpipe/internal/searchgateway"
)

// Summary is the per-run reconciliation outcome (§4.9).
type Summary struct {
	SourceTag        string
	RunID            string
	PagesScanned     int
	DocsScanned      int
	DocsDeleted      int
	DocsFailedDelete int
}

// Engine reconciles one source tag's index partition against upstream truth.
// ParentKeyFor must derive the same parent_id the indexer uses for this
// source, so truth-set membership lines up with Document.ParentID.
type Engine struct {
	SourceTag    string
	Source       connectors.Connector
	ParentKeyFor func(item connectors.ItemRef) string
	Search       searchgateway.Gateway
	BatchSize    int
	Logger       *runlog.Logger
}

// NewEngine constructs an Engine with a default ParentKeyFor matching the
// indexer's default derivation (chunkkey.ParentKey(sourceTag, item.ID)).
// Sources whose indexer uses a different derivation must set ParentKeyFor
// explicitly after construction.
func NewEngine(sourceTag string, source connectors.Connector, search searchgateway.Gateway, logger *runlog.Logger) *Engine {
	return &Engine{
		SourceTag: sourceTag,
		Source:    source,
		Search:    search,
		Logger:    logger,
		ParentKeyFor: func(item connectors.ItemRef) string {
			return chunkkey.ParentKey(sourceTag, item.ID)
		},
	}
}

func (e *Engine) batchSize() int {
	if e.BatchSize <= 0 {
		return 500
	}
	return e.BatchSize
}

// Run performs one reconciliation pass (§4.9 steps 1-4). Only documents
// whose source equals e.SourceTag are ever read or deleted.
func (e *Engine) Run(ctx context.Context, runID string) (Summary, error) {
	summary := Summary{SourceTag: e.SourceTag, RunID: runID}

	truth, err := e.loadUpstreamTruth(ctx)
	if err != nil {
		return summary, fmt.Errorf("purger: load upstream truth for %s: %w", e.SourceTag, err)
	}

	var stale []string
	token := ""
	for {
		page, err := e.Search.Search(ctx, searchgateway.EqFilter("source", e.SourceTag), searchgateway.SearchOptions{
			Select:    []string{"id", "parent_id", "metadata_storage_path"},
			PageSize:  e.batchSize(),
			PageToken: token,
		})
		if err != nil {
			return summary, fmt.Errorf("purger: scan index for %s: %w", e.SourceTag, err)
		}
		summary.PagesScanned++
		for _, doc := range page.Documents {
			summary.DocsScanned++
			if _, ok := truth[doc.ParentID]; !ok {
				stale = append(stale, doc.ID)
			}
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	for i := 0; i < len(stale); i += e.batchSize() {
		end := i + e.batchSize()
		if end > len(stale) {
			end = len(stale)
		}
		batch := stale[i:end]
		if err := e.Search.DeleteDocuments(ctx, batch); err != nil {
			summary.DocsFailedDelete += len(batch)
			if e.Logger != nil {
				e.Logger.LogEvent("warn", "purge_batch_delete_failed", runID, map[string]any{"source": e.SourceTag, "count": len(batch), "error": err.Error()})
			}
			continue
		}
		summary.DocsDeleted += len(batch)
	}

	if e.Logger != nil {
		e.Logger.LogEvent("info", "purge_run_summary", runID, map[string]any{
			"source":           e.SourceTag,
			"pagesScanned":     summary.PagesScanned,
			"docsScanned":      summary.DocsScanned,
			"docsDeleted":      summary.DocsDeleted,
			"docsFailedDelete": summary.DocsFailedDelete,
		})
	}
	return summary, nil
}

// loadUpstreamTruth enumerates the source connector and derives the set of
// parent_ids it currently claims to own.
func (e *Engine) loadUpstreamTruth(ctx context.Context) (map[string]struct{}, error) {
	items, errs := e.Source.Enumerate(ctx)
	truth := make(map[string]struct{})
	for item := range items {
		truth[e.ParentKeyFor(item)] = struct{}{}
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return truth, nil
}
