package storage_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethiomart/telepipe/internal/storage"
)

func newStore(t *testing.T) *storage.JSONLStore {
	t.Helper()
	dir := t.TempDir()
	return storage.NewJSONLStore(
		filepath.Join(dir, "raw.jsonl"),
		filepath.Join(dir, "structured.jsonl"),
		nil,
	)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestWriteReadRawRoundTrip(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	channelID := int64(1234)

	records := []storage.RawMessageRecord{
		{
			ChannelID:    &channelID,
			MessageID:    1,
			Timestamp:    "2026-08-01T10:30:00Z",
			Text:         strPtr("ዋጋ 500 ብር"),
			ViewCount:    intPtr(42),
			ForwardCount: intPtr(1),
			ReplyCount:   3,
			HasPhoto:     true,
			ImagePath:    strPtr("data/images/photo_1_1754044200.jpg"),
		},
		{
			MessageID:          2,
			Timestamp:          "2026-08-01T10:31:00Z",
			HasDocument:        true,
			MediaDownloadError: true,
		},
	}

	if err := store.WriteRaw(records); err != nil {
		t.Fatalf("WriteRaw failed: %v", err)
	}

	got, err := store.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}

	first := got[0]
	if first.ChannelID == nil || *first.ChannelID != 1234 {
		t.Errorf("ChannelID = %v, want 1234", first.ChannelID)
	}
	if first.Text == nil || *first.Text != "ዋጋ 500 ብር" {
		t.Errorf("Text = %v, want original", first.Text)
	}
	if first.ViewCount == nil || *first.ViewCount != 42 {
		t.Errorf("ViewCount = %v, want 42", first.ViewCount)
	}

	second := got[1]
	if second.ChannelID != nil || second.Text != nil || second.ViewCount != nil {
		t.Error("nil fields did not survive the round trip")
	}
	if !second.MediaDownloadError {
		t.Error("MediaDownloadError lost in round trip")
	}
}

func TestWriteRawFieldNames(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	if err := store.WriteRaw([]storage.RawMessageRecord{{MessageID: 1, Timestamp: "2026-08-01T00:00:00Z"}}); err != nil {
		t.Fatalf("WriteRaw failed: %v", err)
	}

	data, err := os.ReadFile(store.RawPath())
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("raw line is not valid JSON: %v", err)
	}
	for _, key := range []string{
		"channel_id", "message_id", "timestamp", "text", "view_count",
		"forward_count", "reply_count", "has_photo", "image_path",
		"has_document", "document_path", "media_download_error",
	} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("raw record missing field %q", key)
		}
	}
}

func TestWriteStructuredFieldNames(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	rec := storage.StructuredMessageRecord{
		RawMessageRecord: storage.RawMessageRecord{MessageID: 1, Timestamp: "2026-08-01T00:00:00Z"},
		CleanedText:      strPtr("ዋጋ 500 ብር"),
		ExtractedPrice:   strPtr("500"),
	}
	if err := store.WriteStructured([]storage.StructuredMessageRecord{rec}); err != nil {
		t.Fatalf("WriteStructured failed: %v", err)
	}

	data, err := os.ReadFile(store.StructuredPath())
	if err != nil {
		t.Fatal(err)
	}

	line := strings.TrimSpace(string(data))
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("structured line is not valid JSON: %v", err)
	}
	for _, key := range []string{"message_id", "cleaned_text", "extracted_price", "extracted_phone"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("structured record missing field %q", key)
		}
	}
	if decoded["extracted_phone"] != nil {
		t.Errorf("extracted_phone = %v, want JSON null", decoded["extracted_phone"])
	}
	if decoded["extracted_price"] != "500" {
		t.Errorf("extracted_price = %v, want \"500\"", decoded["extracted_price"])
	}
}

func TestWriteRawOverwrites(t *testing.T) {
	t.Parallel()

	store := newStore(t)

	many := []storage.RawMessageRecord{{MessageID: 1}, {MessageID: 2}, {MessageID: 3}}
	if err := store.WriteRaw(many); err != nil {
		t.Fatalf("WriteRaw failed: %v", err)
	}
	if err := store.WriteRaw([]storage.RawMessageRecord{{MessageID: 9}}); err != nil {
		t.Fatalf("second WriteRaw failed: %v", err)
	}

	got, err := store.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records after overwrite, want 1", len(got))
	}
	if got[0].MessageID != 9 {
		t.Errorf("MessageID = %d, want 9", got[0].MessageID)
	}
}

func TestReadRawSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	content := `{"message_id": 1, "timestamp": "2026-08-01T00:00:00Z"}
this is not json
{"message_id": 2, "timestamp": "2026-08-01T00:01:00Z"}

{"message_id": 3, "timestamp": "2026-08-01T00:02:00Z"}
`
	if err := os.WriteFile(store.RawPath(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := store.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3 with the malformed line skipped", len(got))
	}
	for i, want := range []int64{1, 2, 3} {
		if got[i].MessageID != want {
			t.Errorf("records[%d].MessageID = %d, want %d", i, got[i].MessageID, want)
		}
	}
}

func TestReadRawMissingFile(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	if _, err := store.ReadRaw(); err == nil {
		t.Error("ReadRaw on a missing file should fail")
	}
}
