// Package storage provides the on-disk stores for the ingestion pipeline:
// the newline-delimited JSON raw and structured message stores, and a
// SQLite archive of ingestion run outcomes.
package storage

// RawMessageRecord is the canonical per-message record produced by ingestion:
// the message metadata verbatim plus the outcome of any media downloads.
// Records are immutable once written. MessageID is unique within a channel,
// not globally.
type RawMessageRecord struct {
	ChannelID    *int64  `json:"channel_id"`
	MessageID    int64   `json:"message_id"`
	Timestamp    string  `json:"timestamp"`
	Text         *string `json:"text"`
	ViewCount    *int    `json:"view_count"`
	ForwardCount *int    `json:"forward_count"`
	ReplyCount   int     `json:"reply_count"`
	HasPhoto     bool    `json:"has_photo"`
	ImagePath    *string `json:"image_path"`
	HasDocument  bool    `json:"has_document"`
	DocumentPath *string `json:"document_path"`

	// MediaDownloadError is set when a photo or document attached to this
	// message could not be downloaded. The record is still emitted.
	MediaDownloadError bool `json:"media_download_error"`
}

// StructuredMessageRecord is a RawMessageRecord augmented with normalized
// text and the entity fields extracted from the original text. Derivation is
// one-to-one; records are never merged or aggregated.
type StructuredMessageRecord struct {
	RawMessageRecord

	CleanedText    *string `json:"cleaned_text"`
	ExtractedPrice *string `json:"extracted_price"`
	ExtractedPhone *string `json:"extracted_phone"`
}
