// Package ingest implements the channel ingestion core: resolving channel
// references, paginating message history up to a per-channel cap,
// materializing attached media on disk, and assembling the canonical raw
// message records. The messaging platform itself is reached only through the
// Transport interface.
package ingest

import (
	"context"
	"time"
)

// ChannelHandle is a resolved channel: its numeric id plus display title.
type ChannelHandle struct {
	ID    int64
	Title string
}

// MediaKind distinguishes the two media types carried by messages.
type MediaKind int

const (
	MediaPhoto MediaKind = iota
	MediaDocument
)

// Media describes an attachment well enough to derive a deterministic file
// name and to hand back to the transport for download.
type Media struct {
	Kind MediaKind

	// FileName is the file name reported by the transport layer, if any.
	FileName string
	// AttrFileName is the file name embedded in the document's own
	// metadata attributes, if any. Takes priority over FileName.
	AttrFileName string
	// Video is set when the document is recognized as a video.
	Video bool
	// MimeType is the declared MIME type of a document, possibly empty.
	MimeType string

	// Ref is an opaque transport-private handle used to fetch the bytes.
	Ref any
}

// Message is a single channel message as surfaced by the transport.
type Message struct {
	ChannelID *int64
	ID        int64
	Date      time.Time
	Text      string
	Views     *int
	Forwards  *int
	Replies   int
	Photo     *Media
	Document  *Media
}

// MessageIter walks a channel's history lazily, oldest first. A mid-stream
// transport failure surfaces through Err after Next returns false; messages
// already yielded remain valid.
type MessageIter interface {
	// Next advances to the next message. It returns false when the
	// history is exhausted, the limit is reached, or an error occurred.
	Next(ctx context.Context) bool
	// Message returns the current message after a successful Next.
	Message() Message
	// Err returns the error that terminated iteration, if any.
	Err() error
}

// Transport is the external messaging-platform collaborator. Implementations
// own connection, authentication, session persistence, and rate limiting;
// the ingestion core never retries transport calls itself.
type Transport interface {
	// Resolve maps a configured channel reference (URL or handle) to a
	// live channel handle.
	Resolve(ctx context.Context, ref string) (*ChannelHandle, error)
	// Messages iterates the channel's history oldest-first, yielding at
	// most limit messages.
	Messages(ctx context.Context, handle *ChannelHandle, limit int) MessageIter
	// Download fetches the media's bytes into dest.
	Download(ctx context.Context, media *Media, dest string) error
}

// ChannelState tracks a channel's progress through an ingestion run.
// States never regress.
type ChannelState int

const (
	StateUnresolved ChannelState = iota
	StateResolved
	StateFetching
	StateComplete
	StatePartial
)

func (s ChannelState) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolved:
		return "resolved"
	case StateFetching:
		return "fetching"
	case StateComplete:
		return "complete"
	case StatePartial:
		return "partial"
	default:
		return "unknown"
	}
}
