// Package main contains the entrypoint for the channel ingestion pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ethiomart/telepipe/internal/amharic"
	"github.com/ethiomart/telepipe/internal/config"
	"github.com/ethiomart/telepipe/internal/extract"
	"github.com/ethiomart/telepipe/internal/ingest"
	"github.com/ethiomart/telepipe/internal/labeling"
	"github.com/ethiomart/telepipe/internal/logger"
	"github.com/ethiomart/telepipe/internal/pipeline"
	"github.com/ethiomart/telepipe/internal/storage"
	"github.com/ethiomart/telepipe/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components, executes the selected task, and returns an
// exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	task := flag.String("task", "ingest", "Task to run: ingest, label, or conll")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	switch *task {
	case "ingest":
		return runIngest(ctx, cfg, log)
	case "label":
		n, err := labeling.ExportForLabeling(cfg.Paths.StructuredFile, cfg.Paths.LabelingFile, cfg.Labeling.Limit, log)
		if err != nil {
			log.Error("Labeling export failed", "error", err)
			return 1
		}
		log.Info("Labeling export complete", "messages", n, "path", cfg.Paths.LabelingFile)
		return 0
	case "conll":
		if err := labeling.ConvertToCoNLL(cfg.Paths.LabeledFile, cfg.Paths.CoNLLFile, log); err != nil {
			log.Error("CoNLL conversion failed", "error", err)
			return 1
		}
		return 0
	default:
		log.Error("Unknown task", "task", *task)
		return 1
	}
}

// runIngest wires the transport, ingestion core, and pipeline together and
// executes a single run, or keeps re-running on a cron schedule when
// configured.
func runIngest(ctx context.Context, cfg *config.Config, log *slog.Logger) int {
	normalizer, err := amharic.New(amharic.Rules{
		RemovalClass:    cfg.Preprocess.CharsToRemove,
		Stopwords:       cfg.Preprocess.Stopwords,
		RemoveStopwords: cfg.Preprocess.RemoveStopwords,
	})
	if err != nil {
		log.Error("Failed to build text normalizer", "error", err)
		return 1
	}

	extractor, err := extract.New(cfg.Extract.PricePattern, cfg.Extract.PhonePattern)
	if err != nil {
		log.Error("Failed to build entity extractor", "error", err)
		return 1
	}

	var archive *storage.Archive
	if cfg.Archive.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Archive.Path), 0o755); err != nil {
			log.Error("Failed to create archive directory", "path", cfg.Archive.Path, "error", err)
			return 1
		}
		archive, err = storage.OpenArchive(cfg.Archive.Path, log)
		if err != nil {
			log.Error("Failed to open run archive", "path", cfg.Archive.Path, "error", err)
			return 1
		}
		defer archive.Close()
	}

	client, err := telegram.NewClient(telegram.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		Phone:       cfg.Telegram.Phone,
		SessionFile: cfg.Telegram.SessionFile,
	}, log)
	if err != nil {
		log.Error("Failed to create Telegram client", "error", err)
		return 1
	}

	store := storage.NewJSONLStore(cfg.Paths.RawFile, cfg.Paths.StructuredFile, log)
	materializer := ingest.NewMaterializer(cfg.Paths.ImagesDir, cfg.Paths.DocumentsDir, client, log)
	messages := ingest.NewMessageNormalizer(materializer)
	ingestor := ingest.NewChannelIngestor(client, messages, cfg.Ingest.FetchLimit, log)

	pl := pipeline.New(pipeline.Options{
		Channels:     cfg.Telegram.Channels,
		ImagesDir:    cfg.Paths.ImagesDir,
		DocumentsDir: cfg.Paths.DocumentsDir,
	}, ingestor, normalizer, extractor, store, archive, log)

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gCtx)
	defer cancel()

	g.Go(func() error {
		return client.Run(runCtx)
	})
	g.Go(func() error {
		// The transport authenticates asynchronously; wait before ingesting.
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case <-client.Ready():
		}

		defer cancel()
		if cfg.Schedule.Enabled {
			sched, err := pipeline.NewScheduler(pl, cfg.Schedule.Cron, log)
			if err != nil {
				return err
			}
			return sched.Run(runCtx)
		}
		return pl.Run(runCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Ingestion failed", "error", err)
		return 1
	}
	log.Info("Ingestion finished")
	return 0
}
