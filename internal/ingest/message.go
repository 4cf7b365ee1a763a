package ingest

import (
	"context"
	"time"

	"github.com/ethiomart/telepipe/internal/storage"
)

// MessageNormalizer assembles the canonical raw record for a message,
// materializing any attached media along the way. It never fails for a
// well-formed message: media download errors are absorbed into the record's
// media_download_error flag.
type MessageNormalizer struct {
	media *Materializer
}

// NewMessageNormalizer creates a MessageNormalizer using the given
// materializer for media downloads.
func NewMessageNormalizer(media *Materializer) *MessageNormalizer {
	return &MessageNormalizer{media: media}
}

// Normalize builds the RawMessageRecord for msg.
func (n *MessageNormalizer) Normalize(ctx context.Context, msg Message) storage.RawMessageRecord {
	rec := storage.RawMessageRecord{
		ChannelID:    msg.ChannelID,
		MessageID:    msg.ID,
		Timestamp:    msg.Date.UTC().Format(time.RFC3339),
		ViewCount:    msg.Views,
		ForwardCount: msg.Forwards,
		ReplyCount:   msg.Replies,
	}
	if msg.Text != "" {
		text := msg.Text
		rec.Text = &text
	}

	if msg.Photo != nil {
		rec.HasPhoto = true
		if path, ok := n.media.Materialize(ctx, msg.Photo, msg.ID, msg.Date); ok {
			rec.ImagePath = &path
		} else {
			rec.MediaDownloadError = true
		}
	}

	if msg.Document != nil {
		rec.HasDocument = true
		if path, ok := n.media.Materialize(ctx, msg.Document, msg.ID, msg.Date); ok {
			rec.DocumentPath = &path
		} else {
			rec.MediaDownloadError = true
		}
	}

	return rec
}
