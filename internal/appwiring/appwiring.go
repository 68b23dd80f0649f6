// Package appwiring builds the concrete engines from Config, shared by
// cmd/ingestiond (the scheduled daemon) and cmd/ingestctl (one-shot runs),
// the way a single constructor wires dependencies for more than one
// entrypoint.
package appwiring

import (
	"context"
	"fmt"

	"ingestpipe/internal/chunker"
	"ingestpipe/internal/config"
	"ingestpipe/internal/connectors"
	"ingestpipe/internal/embedding"
	"ingestpipe/internal/indexer"
	"ingestpipe/internal/objectstore"
	"ingestpipe/internal/purger"
	"ingestpipe/internal/runlog"
	"ingestpipe/internal/searchgateway"
)

// App bundles every engine this process can run, keyed by name, plus the
// shared collaborators they were built from (ingestctl runs a single pass
// through these prebuilt engines without registering every job).
type App struct {
	Cfg config.Config

	SourceStore objectstore.ObjectStore
	NL2SQLStore objectstore.ObjectStore
	LogStore    objectstore.ObjectStore
	ImageStore  objectstore.ObjectStore

	Embed *embedding.Client
	Chat  *embedding.ChatClient

	RAGGateway      searchgateway.Gateway
	QueriesGateway  searchgateway.Gateway
	TablesGateway   searchgateway.Gateway
	MeasuresGateway searchgateway.Gateway

	BlobIndexer     *indexer.Engine
	QueriesIndexer  *indexer.Engine
	TablesIndexer   *indexer.Engine
	MeasuresIndexer *indexer.Engine

	BlobPurger     *purger.Engine
	QueriesPurger  *purger.Engine
	TablesPurger   *purger.Engine
	MeasuresPurger *purger.Engine
	FiguresPurger  *purger.FiguresPurger
}

// Build connects to every upstream collaborator and constructs the engines
// for the blob and NL2SQL sources. The collaboration-platform (SharePoint
// lists/document-library) source is specified at the contract level only
// (§4.7) — no concrete GraphClient ships here, so its engines are left for
// a deployment to register once it supplies one.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	sourceStore, err := objectstore.NewS3Store(ctx, withBucket(cfg.S3, cfg.Source.SourceContainer))
	if err != nil {
		return nil, fmt.Errorf("appwiring: source store: %w", err)
	}
	nl2sqlStore, err := objectstore.NewS3Store(ctx, withBucket(cfg.S3, cfg.Source.NL2SQLContainer))
	if err != nil {
		return nil, fmt.Errorf("appwiring: nl2sql store: %w", err)
	}
	logStore, err := objectstore.NewS3Store(ctx, withBucket(cfg.S3, cfg.Source.JobsLogContainer))
	if err != nil {
		return nil, fmt.Errorf("appwiring: log store: %w", err)
	}
	imageStore, err := objectstore.NewS3Store(ctx, withBucket(cfg.S3, cfg.Chunker.FiguresContainer))
	if err != nil {
		return nil, fmt.Errorf("appwiring: image store: %w", err)
	}

	ragGateway, err := searchgateway.Open(ctx, cfg.Source.SearchEndpoint, cfg.Source.RAGIndexName, cfg.Qdrant.Dimensions, cfg.Qdrant.Metric, cfg.IndexerBatchSize)
	if err != nil {
		return nil, fmt.Errorf("appwiring: rag gateway: %w", err)
	}
	queriesGateway, err := searchgateway.Open(ctx, cfg.Source.SearchEndpoint, cfg.Source.QueriesIndexName, cfg.Qdrant.Dimensions, cfg.Qdrant.Metric, cfg.IndexerBatchSize)
	if err != nil {
		return nil, fmt.Errorf("appwiring: queries gateway: %w", err)
	}
	tablesGateway, err := searchgateway.Open(ctx, cfg.Source.SearchEndpoint, cfg.Source.TablesIndexName, cfg.Qdrant.Dimensions, cfg.Qdrant.Metric, cfg.IndexerBatchSize)
	if err != nil {
		return nil, fmt.Errorf("appwiring: tables gateway: %w", err)
	}
	measuresGateway, err := searchgateway.Open(ctx, cfg.Source.SearchEndpoint, cfg.Source.MeasuresIndexName, cfg.Qdrant.Dimensions, cfg.Qdrant.Metric, cfg.IndexerBatchSize)
	if err != nil {
		return nil, fmt.Errorf("appwiring: measures gateway: %w", err)
	}

	embed := embedding.New(cfg.Embed)
	chat := embedding.NewChat(cfg.Chat)

	params := chunker.Params{
		MaxChunkSize:                  cfg.Chunker.MaxChunkSize,
		MinChunkSize:                  cfg.Chunker.MinChunkSize,
		TokenOverlap:                  cfg.Chunker.TokenOverlap,
		Multimodal:                    cfg.Chunker.Multimodal,
		SpreadsheetByRow:              cfg.Chunker.SpreadsheetChunkByRow,
		SpreadsheetByRowIncludeHeader: cfg.Chunker.SpreadsheetChunkByRowIncludeHeader,
		SpreadsheetNumTokens:          cfg.Chunker.SpreadsheetNumTokens,
		MinimumFigureAreaPercentage:   cfg.Chunker.MinimumFigureAreaPercentage,
		FiguresContainer:              cfg.Chunker.FiguresContainer,
	}
	deps := chunker.Deps{
		Chat:   chat,
		Embed:  embed,
		Layout: chunker.FallbackLayoutAnalyzer{},
		Images: chunker.NewBlobImageSink(imageStore, cfg.Chunker.FiguresContainer),
	}
	chunkerFor := func(item connectors.ItemRef) chunker.Chunker {
		return chunker.ForFile(item.DisplayName, params, deps)
	}

	blobLogger := runlog.NewLogger(logStore, "blob-indexer", cfg.Timeouts.RunSummaryTotalTimeout)
	queriesLogger := runlog.NewLogger(logStore, "nl2sql-queries-indexer", cfg.Timeouts.RunSummaryTotalTimeout)
	tablesLogger := runlog.NewLogger(logStore, "nl2sql-tables-indexer", cfg.Timeouts.RunSummaryTotalTimeout)
	measuresLogger := runlog.NewLogger(logStore, "nl2sql-measures-indexer", cfg.Timeouts.RunSummaryTotalTimeout)
	for _, l := range []*runlog.Logger{blobLogger, queriesLogger, tablesLogger, measuresLogger} {
		_ = l.Probe(ctx)
	}

	blobConnector := connectors.NewBlobConnector(sourceStore, cfg.Source.BlobPrefix)
	queriesConnector := connectors.NewNL2SQLConnector(nl2sqlStore, connectors.NL2SQLQueries)
	tablesConnector := connectors.NewNL2SQLConnector(nl2sqlStore, connectors.NL2SQLTables)
	measuresConnector := connectors.NewNL2SQLConnector(nl2sqlStore, connectors.NL2SQLMeasures)

	blobIndexer := &indexer.Engine{
		IndexerType: "blob-indexer", SourceTag: "blob",
		Source: blobConnector, Search: ragGateway, Embed: embed, ChunkerFor: chunkerFor, Logger: blobLogger,
		MaxConcurrency: cfg.IndexerMaxConcurrency, BatchSize: cfg.IndexerBatchSize,
		ItemTimeout: cfg.Timeouts.ItemTimeout, FreshnessSkew: cfg.FreshnessSkew, ListGatherTimeout: cfg.Timeouts.ListGatherTimeout,
	}
	queriesIndexer := &indexer.Engine{
		IndexerType: "nl2sql-queries-indexer", SourceTag: "nl2sql-queries",
		Source: queriesConnector, Search: queriesGateway, Embed: embed,
		ChunkerFor:     func(connectors.ItemRef) chunker.Chunker { return chunker.NewNL2SQLChunkerForSubtree(params, chunker.SubtreeQueries) },
		Logger:         queriesLogger,
		MaxConcurrency: cfg.IndexerMaxConcurrency, BatchSize: cfg.IndexerBatchSize,
		ItemTimeout: cfg.Timeouts.ItemTimeout, FreshnessSkew: cfg.FreshnessSkew, ListGatherTimeout: cfg.Timeouts.ListGatherTimeout,
	}
	tablesIndexer := &indexer.Engine{
		IndexerType: "nl2sql-tables-indexer", SourceTag: "nl2sql-tables",
		Source: tablesConnector, Search: tablesGateway, Embed: embed,
		ChunkerFor:     func(connectors.ItemRef) chunker.Chunker { return chunker.NewNL2SQLChunkerForSubtree(params, chunker.SubtreeTables) },
		Logger:         tablesLogger,
		MaxConcurrency: cfg.IndexerMaxConcurrency, BatchSize: cfg.IndexerBatchSize,
		ItemTimeout: cfg.Timeouts.ItemTimeout, FreshnessSkew: cfg.FreshnessSkew, ListGatherTimeout: cfg.Timeouts.ListGatherTimeout,
	}
	measuresIndexer := &indexer.Engine{
		IndexerType: "nl2sql-measures-indexer", SourceTag: "nl2sql-measures",
		Source: measuresConnector, Search: measuresGateway, Embed: embed,
		ChunkerFor:     func(connectors.ItemRef) chunker.Chunker { return chunker.NewNL2SQLChunkerForSubtree(params, chunker.SubtreeMeasures) },
		Logger:         measuresLogger,
		MaxConcurrency: cfg.IndexerMaxConcurrency, BatchSize: cfg.IndexerBatchSize,
		ItemTimeout: cfg.Timeouts.ItemTimeout, FreshnessSkew: cfg.FreshnessSkew, ListGatherTimeout: cfg.Timeouts.ListGatherTimeout,
	}

	app := &App{
		Cfg:             cfg,
		SourceStore:     sourceStore,
		NL2SQLStore:     nl2sqlStore,
		LogStore:        logStore,
		ImageStore:      imageStore,
		Embed:           embed,
		Chat:            chat,
		RAGGateway:      ragGateway,
		QueriesGateway:  queriesGateway,
		TablesGateway:   tablesGateway,
		MeasuresGateway: measuresGateway,
		BlobIndexer:     blobIndexer,
		QueriesIndexer:  queriesIndexer,
		TablesIndexer:   tablesIndexer,
		MeasuresIndexer: measuresIndexer,
		BlobPurger:      purger.NewEngine("blob", blobConnector, ragGateway, blobLogger),
		QueriesPurger:   purger.NewEngine("nl2sql-queries", queriesConnector, queriesGateway, queriesLogger),
		TablesPurger:    purger.NewEngine("nl2sql-tables", tablesConnector, tablesGateway, tablesLogger),
		MeasuresPurger:  purger.NewEngine("nl2sql-measures", measuresConnector, measuresGateway, measuresLogger),
	}
	if cfg.Chunker.Multimodal {
		app.FiguresPurger = &purger.FiguresPurger{Store: imageStore, Prefix: cfg.Chunker.FiguresContainer, Search: ragGateway, Logger: blobLogger}
	}
	return app, nil
}

func withBucket(base config.S3Config, bucket string) config.S3Config {
	cfg := base
	if bucket != "" {
		cfg.Bucket = bucket
	}
	return cfg
}
