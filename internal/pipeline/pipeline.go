// Package pipeline drives a full ingestion run: directory setup, sequential
// channel ingestion, raw persistence, and the normalization/extraction stage
// producing the structured store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ethiomart/telepipe/internal/amharic"
	"github.com/ethiomart/telepipe/internal/extract"
	"github.com/ethiomart/telepipe/internal/ingest"
	"github.com/ethiomart/telepipe/internal/storage"
)

// Options configures a pipeline run.
type Options struct {
	Channels     []string
	ImagesDir    string
	DocumentsDir string
}

// Pipeline owns the raw and structured record sets for the lifetime of a
// run. Channels are processed strictly sequentially; both stores are written
// by full overwrite so reruns never mix configurations.
type Pipeline struct {
	opts       Options
	ingestor   *ingest.ChannelIngestor
	normalizer *amharic.Normalizer
	extractor  *extract.Extractor
	store      *storage.JSONLStore
	archive    *storage.Archive
	logger     *slog.Logger
}

// New assembles a Pipeline. archive may be nil to skip run bookkeeping.
func New(
	opts Options,
	ingestor *ingest.ChannelIngestor,
	normalizer *amharic.Normalizer,
	extractor *extract.Extractor,
	store *storage.JSONLStore,
	archive *storage.Archive,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		opts:       opts,
		ingestor:   ingestor,
		normalizer: normalizer,
		extractor:  extractor,
		store:      store,
		archive:    archive,
		logger:     logger.With("component", "pipeline"),
	}
}

// Run executes one full ingestion: ensure directories, ingest every
// configured channel in listed order, overwrite the raw store, then derive
// and overwrite the structured store. Resolution, fetch, media, and
// malformed-record failures are absorbed per channel or per record; only
// environment failures (unwritable directories, store I/O) abort the run.
func (p *Pipeline) Run(ctx context.Context) error {
	if len(p.opts.Channels) == 0 {
		return errors.New("no channels configured")
	}

	startedAt := time.Now().UTC()
	if err := p.ensureDirectories(); err != nil {
		return err
	}

	results := p.ingestor.IngestAll(ctx, p.opts.Channels)

	var raw []storage.RawMessageRecord
	for _, res := range results {
		raw = append(raw, res.Records...)
	}
	if err := p.store.WriteRaw(raw); err != nil {
		return err
	}

	records, err := p.store.ReadRaw()
	if err != nil {
		return err
	}
	structured := make([]storage.StructuredMessageRecord, 0, len(records))
	for _, rec := range records {
		structured = append(structured, p.Structure(rec))
	}
	if err := p.store.WriteStructured(structured); err != nil {
		return err
	}

	p.recordRun(ctx, startedAt, results, raw)
	p.logger.Info("Pipeline run finished",
		"channels", len(results), "raw_records", len(raw), "structured_records", len(structured),
		"duration", time.Since(startedAt))
	return nil
}

// Structure derives the structured record from a raw one. Extraction runs
// against the original text; normalization produces cleaned_text. A nil or
// empty text field propagates nil derived fields without invoking either
// stage.
func (p *Pipeline) Structure(rec storage.RawMessageRecord) storage.StructuredMessageRecord {
	out := storage.StructuredMessageRecord{RawMessageRecord: rec}
	if rec.Text == nil || *rec.Text == "" {
		return out
	}

	if price, ok := p.extractor.Price(*rec.Text); ok {
		out.ExtractedPrice = &price
	}
	if phone, ok := p.extractor.Phone(*rec.Text); ok {
		out.ExtractedPhone = &phone
	}
	cleaned := p.normalizer.Normalize(*rec.Text)
	out.CleanedText = &cleaned
	return out
}

func (p *Pipeline) ensureDirectories() error {
	dirs := []string{
		filepath.Dir(p.store.RawPath()),
		filepath.Dir(p.store.StructuredPath()),
		p.opts.ImagesDir,
		p.opts.DocumentsDir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// recordRun writes the run summary to the archive. Bookkeeping failures are
// logged, not fatal: the stores on disk are already complete.
func (p *Pipeline) recordRun(ctx context.Context, startedAt time.Time, results []ingest.ChannelResult, raw []storage.RawMessageRecord) {
	if p.archive == nil {
		return
	}

	run := storage.RunSummary{
		ID:         storage.NewRunID(),
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Channels:   len(results),
		Messages:   len(raw),
	}
	for _, rec := range raw {
		if rec.MediaDownloadError {
			run.MediaFailures++
		}
	}

	outcomes := make([]storage.ChannelOutcome, 0, len(results))
	for _, res := range results {
		oc := storage.ChannelOutcome{
			Ref:      res.Ref,
			State:    res.State.String(),
			Messages: len(res.Records),
		}
		if res.Handle != nil {
			oc.Title = res.Handle.Title
		}
		if res.Err != nil {
			oc.Error = res.Err.Error()
		}
		switch res.State {
		case ingest.StatePartial:
			run.ChannelsPartial++
		case ingest.StateUnresolved:
			run.ChannelsFailed++
		}
		outcomes = append(outcomes, oc)
	}

	if err := p.archive.RecordRun(ctx, run, outcomes); err != nil {
		p.logger.Error("Failed to record run in archive", "run_id", run.ID, "error", err)
	}
}
