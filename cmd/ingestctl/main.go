// Command ingestctl runs a single indexer or purger pass immediately and
// exits, for ad-hoc and ops-triggered runs outside the scheduler, the way
// cmd/embedctl offers a one-shot path alongside the long-running daemon.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"ingestpipe/internal/appwiring"
	"ingestpipe/internal/config"
	"ingestpipe/internal/logging"
)

func main() {
	log.SetFlags(0)
	engine := flag.String("engine", "", "engine to run once: blob, nl2sql-queries, nl2sql-tables, nl2sql-measures, purge-blob, purge-nl2sql-queries, purge-nl2sql-tables, purge-nl2sql-measures, purge-figures")
	flag.Parse()
	if *engine == "" {
		log.Fatal("no -engine given")
	}

	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Init(cfg.LogPath, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ListGatherTimeout)
	defer cancel()

	app, err := appwiring.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("build engines: %v", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	summary, err := run(ctx, app, *engine, runID)
	if err != nil {
		log.Fatalf("engine %q failed: %v", *engine, err)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))
}

func run(ctx context.Context, app *appwiring.App, engine, runID string) (any, error) {
	switch engine {
	case "blob":
		return app.BlobIndexer.Run(ctx, runID)
	case "nl2sql-queries":
		return app.QueriesIndexer.Run(ctx, runID)
	case "nl2sql-tables":
		return app.TablesIndexer.Run(ctx, runID)
	case "nl2sql-measures":
		return app.MeasuresIndexer.Run(ctx, runID)
	case "purge-blob":
		return app.BlobPurger.Run(ctx, runID)
	case "purge-nl2sql-queries":
		return app.QueriesPurger.Run(ctx, runID)
	case "purge-nl2sql-tables":
		return app.TablesPurger.Run(ctx, runID)
	case "purge-nl2sql-measures":
		return app.MeasuresPurger.Run(ctx, runID)
	case "purge-figures":
		if app.FiguresPurger == nil {
			return nil, fmt.Errorf("figures purger disabled (MULTIMODAL is off)")
		}
		return app.FiguresPurger.Run(ctx, runID)
	default:
		return nil, fmt.Errorf("unknown engine %q", engine)
	}
}
