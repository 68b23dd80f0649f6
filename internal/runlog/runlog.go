// Package runlog implements the Run Logger (C10): best-effort run-summary
// and per-item artifacts written to the logs container, with read-back
// verification and graceful degradation if storage writes are unavailable.
package runlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"ingestpipe/internal/chunkkey"
	"ingestpipe/internal/errkind"
	"ingestpipe/internal/objectstore"
)

// RunSummary is the run-level artifact written at each stage transition,
// matching the minimal schema of §6.
type RunSummary struct {
	IndexerType         string     `json:"indexerType"`
	RunID               string     `json:"runId"`
	RunStartedAt        time.Time  `json:"runStartedAt"`
	RunFinishedAt       *time.Time `json:"runFinishedAt"`
	Status              string     `json:"status"`
	ItemsDiscovered     int        `json:"itemsDiscovered"`
	CandidateItems      int        `json:"candidateItems"`
	IndexedItems        int        `json:"indexedItems"`
	SkippedNoChange     int        `json:"skippedNoChange"`
	Failed              int        `json:"failed"`
	TotalChunksUploaded int        `json:"totalChunksUploaded"`
}

// Run-summary statuses, in the order they're written within one run (§5).
const (
	StatusStarted   = "started"
	StatusFinishing = "finishing"
	StatusFinished  = "finished"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// ItemLogRecord is the per-item artifact written at `<engine>/files/...json`.
type ItemLogRecord struct {
	RunID     string    `json:"runId"`
	ParentID  string    `json:"parentId"`
	Outcome   string    `json:"outcome"` // success|error|timeout|skipped-no-change
	Error     string    `json:"error,omitempty"`
	ChunkCount int      `json:"chunkCount"`
	Timestamp time.Time `json:"timestamp"`
}

type pointerBlob struct {
	RunID          string `json:"runId"`
	AuthoritativeBlob string `json:"authoritativeBlob"`
}

// Logger writes run-summary and per-item artifacts to a logs container for
// one engine ("blob-indexer", "lists-purger", ...). A one-shot storage-write
// probe gates all subsequent writes; once it fails, every write is a no-op
// returning an errkind.LoggingDegraded error the engine logs but does not
// fail the run over (§4.10).
type Logger struct {
	store        objectstore.ObjectStore
	engine       string
	totalTimeout time.Duration
	writable     atomic.Bool
}

// NewLogger constructs a Logger; call Probe once at engine startup before
// using it.
func NewLogger(store objectstore.ObjectStore, engine string, totalTimeout time.Duration) *Logger {
	if totalTimeout <= 0 {
		totalTimeout = 90 * time.Second
	}
	l := &Logger{store: store, engine: engine, totalTimeout: totalTimeout}
	l.writable.Store(true)
	return l
}

// Probe performs a one-shot Put+Get round trip against the logs container.
// On failure it disables all subsequent writes (graceful degradation).
func (l *Logger) Probe(ctx context.Context) error {
	key := fmt.Sprintf("%s/.probe", l.engine)
	if _, err := l.store.Put(ctx, key, bytes.NewReader([]byte("ok")), objectstore.PutOptions{ContentType: "text/plain"}); err != nil {
		l.writable.Store(false)
		return errkind.New(errkind.LoggingDegraded, "runlog.probe", err)
	}
	rc, _, err := l.store.Get(ctx, key)
	if err != nil {
		l.writable.Store(false)
		return errkind.New(errkind.LoggingDegraded, "runlog.probe", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil || string(body) != "ok" {
		l.writable.Store(false)
		return errkind.New(errkind.LoggingDegraded, "runlog.probe", fmt.Errorf("probe read-back mismatch"))
	}
	l.writable.Store(true)
	return nil
}

// WriteRunSummary writes three artifacts best-effort: a stage-qualified blob
// (authoritative for this status), the canonical `<runId>.json` blob, and
// `latest.json`, plus a pointer blob naming the authoritative snapshot. It
// verifies the write by reading back runId/status/counters, bounded by
// totalTimeout so the engine never blocks on logging (§4.10).
func (l *Logger) WriteRunSummary(ctx context.Context, summary RunSummary) error {
	if !l.writable.Load() {
		return errkind.New(errkind.LoggingDegraded, "runlog.write_run_summary", fmt.Errorf("storage writes disabled"))
	}
	cctx, cancel := context.WithTimeout(ctx, l.totalTimeout)
	defer cancel()

	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("runlog: marshal run summary: %w", err)
	}

	stageKey := fmt.Sprintf("%s/runs/%s.%s.json", l.engine, summary.RunID, summary.Status)
	canonicalKey := fmt.Sprintf("%s/runs/%s.json", l.engine, summary.RunID)
	latestKey := fmt.Sprintf("%s/runs/latest.json", l.engine)
	pointerKey := fmt.Sprintf("%s/runs/%s.pointer.json", l.engine, summary.RunID)

	const maxAttempts = 3
	writeOne := func(key string, data []byte) error {
		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			if _, err := l.store.Put(cctx, key, bytes.NewReader(data), objectstore.PutOptions{ContentType: "application/json"}); err != nil {
				lastErr = err
				select {
				case <-cctx.Done():
					return cctx.Err()
				case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
				}
				continue
			}
			return nil
		}
		return lastErr
	}

	if err := writeOne(stageKey, body); err != nil {
		log.Warn().Err(err).Str("event", "run_summary_write_failed").Str("runId", summary.RunID).Msg("stage blob write failed")
		return errkind.New(errkind.LoggingDegraded, "runlog.write_run_summary", err)
	}
	_ = writeOne(canonicalKey, body)
	_ = writeOne(latestKey, body)

	ptr, _ := json.Marshal(pointerBlob{RunID: summary.RunID, AuthoritativeBlob: stageKey})
	_ = writeOne(pointerKey, ptr)

	return l.verifyReadBack(cctx, stageKey, summary)
}

func (l *Logger) verifyReadBack(ctx context.Context, key string, want RunSummary) error {
	rc, _, err := l.store.Get(ctx, key)
	if err != nil {
		return errkind.New(errkind.LoggingDegraded, "runlog.verify", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return errkind.New(errkind.LoggingDegraded, "runlog.verify", err)
	}
	var got RunSummary
	if err := json.Unmarshal(body, &got); err != nil {
		return errkind.New(errkind.LoggingDegraded, "runlog.verify", err)
	}
	if got.RunID != want.RunID || got.Status != want.Status ||
		got.ItemsDiscovered != want.ItemsDiscovered || got.CandidateItems != want.CandidateItems ||
		got.IndexedItems != want.IndexedItems || got.SkippedNoChange != want.SkippedNoChange ||
		got.Failed != want.Failed || got.TotalChunksUploaded != want.TotalChunksUploaded {
		return errkind.New(errkind.LoggingDegraded, "runlog.verify", fmt.Errorf("read-back mismatch for run %s", want.RunID))
	}
	return nil
}

// WriteItemLog writes a per-item outcome artifact keyed by the sanitized
// parent_id, at `<engine>/files/<sanitized(parent_id)>.json`.
func (l *Logger) WriteItemLog(ctx context.Context, parentID string, record ItemLogRecord) error {
	if !l.writable.Load() {
		return errkind.New(errkind.LoggingDegraded, "runlog.write_item_log", fmt.Errorf("storage writes disabled"))
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("runlog: marshal item log: %w", err)
	}
	key := fmt.Sprintf("%s/files/%s.json", l.engine, chunkkey.Sanitize(strings.TrimPrefix(parentID, "/")))
	if _, err := l.store.Put(ctx, key, bytes.NewReader(body), objectstore.PutOptions{ContentType: "application/json"}); err != nil {
		return errkind.New(errkind.LoggingDegraded, "runlog.write_item_log", err)
	}
	return nil
}

// LogEvent emits a structured JSON line via zerolog with event/runId/indexer
// fields, the way the source project's structured-logging convention does.
func (l *Logger) LogEvent(level, event, runID string, fields map[string]any) {
	evt := log.Info()
	switch level {
	case "warn":
		evt = log.Warn()
	case "error":
		evt = log.Error()
	case "debug":
		evt = log.Debug()
	}
	evt = evt.Str("event", event).Str("runId", runID).Str("indexer", l.engine)
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg(event)
}
