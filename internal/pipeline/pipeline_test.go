package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethiomart/telepipe/internal/amharic"
	"github.com/ethiomart/telepipe/internal/extract"
	"github.com/ethiomart/telepipe/internal/ingest"
	"github.com/ethiomart/telepipe/internal/pipeline"
	"github.com/ethiomart/telepipe/internal/storage"
)

type fakeTransport struct {
	channels map[string]*ingest.ChannelHandle
	messages map[int64][]ingest.Message
}

func (f *fakeTransport) Resolve(_ context.Context, ref string) (*ingest.ChannelHandle, error) {
	handle, ok := f.channels[ref]
	if !ok {
		return nil, fmt.Errorf("no such channel: %s", ref)
	}
	return handle, nil
}

func (f *fakeTransport) Messages(_ context.Context, handle *ingest.ChannelHandle, limit int) ingest.MessageIter {
	msgs := f.messages[handle.ID]
	if limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return &fakeIter{msgs: msgs}
}

func (f *fakeTransport) Download(_ context.Context, _ *ingest.Media, _ string) error {
	return errors.New("no media in these tests")
}

type fakeIter struct {
	msgs []ingest.Message
	pos  int
}

func (it *fakeIter) Next(_ context.Context) bool {
	if it.pos >= len(it.msgs) {
		return false
	}
	it.pos++
	return true
}

func (it *fakeIter) Message() ingest.Message { return it.msgs[it.pos-1] }
func (it *fakeIter) Err() error              { return nil }

type harness struct {
	pipeline *pipeline.Pipeline
	store    *storage.JSONLStore
	archive  *storage.Archive
}

func newHarness(t *testing.T, transport ingest.Transport, channels []string, withArchive bool) *harness {
	t.Helper()

	dir := t.TempDir()
	store := storage.NewJSONLStore(
		filepath.Join(dir, "raw", "telegram_messages.jsonl"),
		filepath.Join(dir, "structured", "structured_messages.jsonl"),
		nil,
	)

	var archive *storage.Archive
	if withArchive {
		var err error
		archive, err = storage.OpenArchive(filepath.Join(dir, "runs.db"), nil)
		if err != nil {
			t.Fatalf("OpenArchive failed: %v", err)
		}
		t.Cleanup(archive.Close)
	}

	normalizer, err := amharic.New(amharic.Rules{})
	if err != nil {
		t.Fatalf("amharic.New failed: %v", err)
	}
	extractor, err := extract.New("", "")
	if err != nil {
		t.Fatalf("extract.New failed: %v", err)
	}

	opts := pipeline.Options{
		Channels:     channels,
		ImagesDir:    filepath.Join(dir, "images"),
		DocumentsDir: filepath.Join(dir, "documents"),
	}
	materializer := ingest.NewMaterializer(opts.ImagesDir, opts.DocumentsDir, transport, nil)
	ingestor := ingest.NewChannelIngestor(transport, ingest.NewMessageNormalizer(materializer), 100, nil)

	return &harness{
		pipeline: pipeline.New(opts, ingestor, normalizer, extractor, store, archive, nil),
		store:    store,
		archive:  archive,
	}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	channelID := int64(1234)
	transport := &fakeTransport{
		channels: map[string]*ingest.ChannelHandle{"@shop": {ID: channelID, Title: "Shop"}},
		messages: map[int64][]ingest.Message{
			channelID: {
				{
					ChannelID: &channelID,
					ID:        1,
					Date:      time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
					Text:      "ዋጋ 500 ብር 0911111111",
				},
				{
					ChannelID: &channelID,
					ID:        2,
					Date:      time.Date(2026, 8, 1, 9, 1, 0, 0, time.UTC),
				},
			},
		},
	}

	h := newHarness(t, transport, []string{"@shop"}, true)
	if err := h.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	raw, err := h.store.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("raw store has %d records, want 2", len(raw))
	}

	structured := h.pipeline.Structure(raw[0])
	if structured.ExtractedPrice == nil || *structured.ExtractedPrice != "500" {
		t.Errorf("ExtractedPrice = %v, want \"500\"", structured.ExtractedPrice)
	}
	if structured.ExtractedPhone == nil || *structured.ExtractedPhone != "0911111111" {
		t.Errorf("ExtractedPhone = %v, want \"0911111111\"", structured.ExtractedPhone)
	}
	if structured.CleanedText == nil || *structured.CleanedText != "ዋጋ 500 ብር 0911111111" {
		t.Errorf("CleanedText = %v", structured.CleanedText)
	}

	run, err := h.archive.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if run == nil {
		t.Fatal("no run recorded in archive")
	}
	if run.Channels != 1 || run.Messages != 2 {
		t.Errorf("run = %+v, want 1 channel and 2 messages", run)
	}
}

func TestRunNoChannels(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeTransport{}, nil, false)
	if err := h.pipeline.Run(context.Background()); err == nil {
		t.Error("Run with no channels should fail")
	}
}

func TestRunKeepsGoingPastUnresolvableChannel(t *testing.T) {
	t.Parallel()

	channelID := int64(500)
	transport := &fakeTransport{
		channels: map[string]*ingest.ChannelHandle{"@good": {ID: channelID, Title: "Good"}},
		messages: map[int64][]ingest.Message{
			channelID: {{ChannelID: &channelID, ID: 1, Date: time.Now(), Text: "ሰላም"}},
		},
	}

	h := newHarness(t, transport, []string{"@missing", "@good"}, true)
	if err := h.pipeline.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	raw, err := h.store.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}
	if len(raw) != 1 {
		t.Errorf("raw store has %d records, want 1 from the resolvable channel", len(raw))
	}

	run, err := h.archive.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if run == nil {
		t.Fatal("no run recorded")
	}
	if run.Channels != 2 || run.ChannelsFailed != 1 {
		t.Errorf("run = %+v, want 2 channels with 1 failed", run)
	}
}

func TestStructureSkipsStagesForEmptyText(t *testing.T) {
	t.Parallel()

	// Nil collaborators prove that neither extraction nor normalization is
	// invoked when the text field is absent.
	p := pipeline.New(pipeline.Options{}, nil, nil, nil, nil, nil, nil)

	for _, rec := range []storage.RawMessageRecord{
		{MessageID: 1},
		{MessageID: 2, Text: new(string)},
	} {
		out := p.Structure(rec)
		if out.CleanedText != nil || out.ExtractedPrice != nil || out.ExtractedPhone != nil {
			t.Errorf("Structure(%+v) produced derived fields for empty text", rec)
		}
		if out.MessageID != rec.MessageID {
			t.Errorf("MessageID = %d, want %d", out.MessageID, rec.MessageID)
		}
	}
}

func TestStructurePreservesRawFields(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeTransport{}, []string{"@x"}, false)

	text := "ጫማ በ 1,250.50 ብር +251912345678"
	views := 9
	rec := storage.RawMessageRecord{
		MessageID:          10,
		Timestamp:          "2026-08-01T09:00:00Z",
		Text:               &text,
		ViewCount:          &views,
		HasPhoto:           true,
		MediaDownloadError: true,
	}

	out := h.pipeline.Structure(rec)
	if out.MessageID != 10 || out.Timestamp != rec.Timestamp {
		t.Error("identity fields not preserved")
	}
	if !out.HasPhoto || !out.MediaDownloadError {
		t.Error("media flags not preserved")
	}
	if out.ViewCount == nil || *out.ViewCount != 9 {
		t.Errorf("ViewCount = %v, want 9", out.ViewCount)
	}
	if out.ExtractedPrice == nil || *out.ExtractedPrice != "1250.50" {
		t.Errorf("ExtractedPrice = %v, want \"1250.50\"", out.ExtractedPrice)
	}
	if out.ExtractedPhone == nil || *out.ExtractedPhone != "251912345678" {
		t.Errorf("ExtractedPhone = %v, want \"251912345678\"", out.ExtractedPhone)
	}
}
