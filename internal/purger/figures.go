package purger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ingestpipe/internal/chunkkey"
	"ingestpipe/internal/objectstore"
	"ingestpipe/internal/runlog"
	"ingestpipe/internal/searchgateway"
)

// FiguresPurger reconciles the multimodal figures container against the
// index: any figure directory whose chunk-0 record no longer exists is
// orphaned and deleted. Gated by the MULTIMODAL setting (SPEC_FULL §C.6).
type FiguresPurger struct {
	Store     objectstore.ObjectStore
	Prefix    string
	Search    searchgateway.Gateway
	BatchSize int
	Logger    *runlog.Logger
}

func (p *FiguresPurger) batchSize() int {
	if p.BatchSize <= 0 {
		return 1000
	}
	return p.BatchSize
}

// Run lists the figures container one directory (one source parent) at a
// time and deletes every blob under directories whose owning document was
// removed from the index.
func (p *FiguresPurger) Run(ctx context.Context, runID string) (Summary, error) {
	summary := Summary{SourceTag: "figures", RunID: runID}
	prefix := strings.Trim(p.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	dirs, err := p.listDirectories(ctx, prefix)
	if err != nil {
		return summary, fmt.Errorf("purger: list figures container: %w", err)
	}

	for _, dir := range dirs {
		summary.DocsScanned++
		chunk0 := dir + "-c00000"
		_, err := p.Search.GetDocument(ctx, chunk0)
		if err == nil {
			continue
		}
		if !errors.Is(err, searchgateway.ErrNotFound) {
			summary.DocsFailedDelete++
			continue
		}
		if derr := p.deleteDirectory(ctx, prefix+dir); derr != nil {
			summary.DocsFailedDelete++
			if p.Logger != nil {
				p.Logger.LogEvent("warn", "figures_purge_dir_failed", runID, map[string]any{"dir": dir, "error": derr.Error()})
			}
			continue
		}
		summary.DocsDeleted++
	}

	if p.Logger != nil {
		p.Logger.LogEvent("info", "figures_purge_summary", runID, map[string]any{
			"docsScanned":      summary.DocsScanned,
			"docsDeleted":      summary.DocsDeleted,
			"docsFailedDelete": summary.DocsFailedDelete,
		})
	}
	return summary, nil
}

// listDirectories returns the distinct sanitized-parent directory names
// found directly under prefix.
func (p *FiguresPurger) listDirectories(ctx context.Context, prefix string) ([]string, error) {
	seen := make(map[string]struct{})
	var dirs []string
	token := ""
	for {
		res, err := p.Store.List(ctx, objectstore.ListOptions{Prefix: prefix, Delimiter: "/", MaxKeys: p.batchSize(), ContinuationToken: token})
		if err != nil {
			return nil, err
		}
		for _, cp := range res.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(cp, prefix), "/")
			name = chunkkey.Sanitize(name)
			if _, ok := seen[name]; ok || name == "" {
				continue
			}
			seen[name] = struct{}{}
			dirs = append(dirs, name)
		}
		if !res.IsTruncated {
			break
		}
		token = res.NextContinuationToken
	}
	return dirs, nil
}

func (p *FiguresPurger) deleteDirectory(ctx context.Context, dirPrefix string) error {
	token := ""
	for {
		res, err := p.Store.List(ctx, objectstore.ListOptions{Prefix: dirPrefix + "/", MaxKeys: p.batchSize(), ContinuationToken: token})
		if err != nil {
			return err
		}
		for _, obj := range res.Objects {
			if obj.IsPrefix {
				continue
			}
			if err := p.Store.Delete(ctx, obj.Key); err != nil {
				return err
			}
		}
		if !res.IsTruncated {
			return nil
		}
		token = res.NextContinuationToken
	}
}
