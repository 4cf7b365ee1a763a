package telegram

import (
	"time"

	"github.com/gotd/td/tg"

	"github.com/ethiomart/telepipe/internal/ingest"
)

// mapMessage converts an MTProto message into the transport-neutral form
// consumed by the ingestion core, capturing download locations for any
// attached photo or document.
func mapMessage(m *tg.Message) ingest.Message {
	msg := ingest.Message{
		ID:   int64(m.ID),
		Date: time.Unix(int64(m.Date), 0).UTC(),
		Text: m.Message,
	}

	if peer, ok := m.PeerID.(*tg.PeerChannel); ok {
		id := peer.ChannelID
		msg.ChannelID = &id
	}
	if views, ok := m.GetViews(); ok {
		v := views
		msg.Views = &v
	}
	if forwards, ok := m.GetForwards(); ok {
		f := forwards
		msg.Forwards = &f
	}
	if replies, ok := m.GetReplies(); ok {
		msg.Replies = replies.Replies
	}

	switch media := m.Media.(type) {
	case *tg.MessageMediaPhoto:
		if photo, ok := media.GetPhoto(); ok {
			if p, ok := photo.(*tg.Photo); ok {
				msg.Photo = mapPhoto(p)
			}
		}
	case *tg.MessageMediaDocument:
		if document, ok := media.GetDocument(); ok {
			if d, ok := document.(*tg.Document); ok {
				msg.Document = mapDocument(d)
			}
		}
	}

	return msg
}

func mapPhoto(p *tg.Photo) *ingest.Media {
	return &ingest.Media{
		Kind: ingest.MediaPhoto,
		Ref: &tg.InputPhotoFileLocation{
			ID:            p.ID,
			AccessHash:    p.AccessHash,
			FileReference: p.FileReference,
			ThumbSize:     largestPhotoSize(p),
		},
	}
}

func mapDocument(d *tg.Document) *ingest.Media {
	media := &ingest.Media{
		Kind:     ingest.MediaDocument,
		MimeType: d.MimeType,
		Ref: &tg.InputDocumentFileLocation{
			ID:            d.ID,
			AccessHash:    d.AccessHash,
			FileReference: d.FileReference,
		},
	}
	for _, attr := range d.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeFilename:
			media.AttrFileName = a.FileName
			if media.FileName == "" {
				media.FileName = a.FileName
			}
		case *tg.DocumentAttributeVideo:
			media.Video = true
		}
	}
	return media
}

// largestPhotoSize picks the thumb type of the last, largest size entry.
func largestPhotoSize(p *tg.Photo) string {
	best := "x"
	for _, s := range p.Sizes {
		switch sz := s.(type) {
		case *tg.PhotoSize:
			best = sz.Type
		case *tg.PhotoSizeProgressive:
			best = sz.Type
		case *tg.PhotoCachedSize:
			best = sz.Type
		}
	}
	return best
}
