package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ethiomart/telepipe/internal/storage"
)

// ChannelResult is the outcome of ingesting one configured channel
// reference. Records are populated even when State is StatePartial: messages
// retrieved before a mid-stream failure are never discarded.
type ChannelResult struct {
	Ref     string
	Handle  *ChannelHandle
	State   ChannelState
	Records []storage.RawMessageRecord
	Err     error
}

// ChannelIngestor resolves channel references and pages through their
// message history up to a per-channel cap. Channels are processed strictly
// sequentially; a failure on one channel never halts the batch.
type ChannelIngestor struct {
	transport Transport
	messages  *MessageNormalizer
	limit     int
	logger    *slog.Logger
}

// NewChannelIngestor creates a ChannelIngestor fetching at most limit
// messages per channel.
func NewChannelIngestor(transport Transport, messages *MessageNormalizer, limit int, logger *slog.Logger) *ChannelIngestor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ChannelIngestor{
		transport: transport,
		messages:  messages,
		limit:     limit,
		logger:    logger.With("component", "ingestor"),
	}
}

// Resolve maps a channel reference to a live handle.
func (ci *ChannelIngestor) Resolve(ctx context.Context, ref string) (*ChannelHandle, error) {
	handle, err := ci.transport.Resolve(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channel %s: %w", ref, err)
	}
	ci.logger.Info("Resolved channel", "ref", ref, "channel_id", handle.ID, "title", handle.Title)
	return handle, nil
}

// FetchMessages pages through the channel's history oldest-first up to the
// configured cap, normalizing each message. When the transport fails
// mid-iteration the partially collected records are returned with
// StatePartial; otherwise StateComplete.
func (ci *ChannelIngestor) FetchMessages(ctx context.Context, handle *ChannelHandle) ([]storage.RawMessageRecord, ChannelState, error) {
	ci.logger.Info("Fetching channel history", "channel_id", handle.ID, "title", handle.Title, "limit", ci.limit)

	records := make([]storage.RawMessageRecord, 0, ci.limit)
	it := ci.transport.Messages(ctx, handle, ci.limit)
	for it.Next(ctx) {
		records = append(records, ci.messages.Normalize(ctx, it.Message()))
	}
	if err := it.Err(); err != nil {
		ci.logger.Warn("Channel fetch failed mid-stream, keeping partial results",
			"channel_id", handle.ID, "title", handle.Title, "fetched", len(records), "error", err)
		return records, StatePartial, fmt.Errorf("fetch for channel %d ended early: %w", handle.ID, err)
	}

	ci.logger.Info("Channel fetch complete", "channel_id", handle.ID, "title", handle.Title, "fetched", len(records))
	return records, StateComplete, nil
}

// IngestAll runs resolution and fetching over the configured references in
// listed order. A reference that fails to resolve is reported and skipped;
// subsequent references still run.
func (ci *ChannelIngestor) IngestAll(ctx context.Context, refs []string) []ChannelResult {
	results := make([]ChannelResult, 0, len(refs))
	for _, ref := range refs {
		handle, err := ci.Resolve(ctx, ref)
		if err != nil {
			ci.logger.Warn("Skipping unresolvable channel", "ref", ref, "error", err)
			results = append(results, ChannelResult{Ref: ref, State: StateUnresolved, Err: err})
			continue
		}

		records, state, err := ci.FetchMessages(ctx, handle)
		results = append(results, ChannelResult{Ref: ref, Handle: handle, State: state, Records: records, Err: err})
	}
	return results
}
