package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Downloader fetches media bytes into a destination path. Satisfied by
// Transport; narrowed here so the materializer can be tested with a fake.
type Downloader interface {
	Download(ctx context.Context, media *Media, dest string) error
}

// Materializer turns a message's media descriptor into a file on disk. File
// names are deterministic functions of the message id and timestamp, which
// makes downloads idempotent: if the target file already exists, the
// download is skipped and prior success is reported.
type Materializer struct {
	imagesDir    string
	documentsDir string
	dl           Downloader
	logger       *slog.Logger
}

// NewMaterializer creates a Materializer writing photos into imagesDir and
// documents into documentsDir.
func NewMaterializer(imagesDir, documentsDir string, dl Downloader, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Materializer{
		imagesDir:    imagesDir,
		documentsDir: documentsDir,
		dl:           dl,
		logger:       logger.With("component", "materializer"),
	}
}

// Materialize computes the deterministic path for the media and downloads it
// if not already present. It returns the path and whether the bytes are in
// place. A download failure is logged and absorbed: the message and the rest
// of the channel keep processing.
func (m *Materializer) Materialize(ctx context.Context, media *Media, messageID int64, ts time.Time) (string, bool) {
	var path string
	if media.Kind == MediaPhoto {
		path = filepath.Join(m.imagesDir, photoFileName(messageID, ts))
	} else {
		path = filepath.Join(m.documentsDir, documentFileName(media, messageID, ts))
	}

	if _, err := os.Stat(path); err == nil {
		m.logger.Debug("Media already materialized, skipping download", "path", path, "message_id", messageID)
		return path, true
	}

	if err := m.dl.Download(ctx, media, path); err != nil {
		m.logger.Warn("Media download failed",
			"message_id", messageID, "path", path, "error", err)
		return "", false
	}
	return path, true
}

func photoFileName(messageID int64, ts time.Time) string {
	return fmt.Sprintf("photo_%d_%d.jpg", messageID, ts.Unix())
}

// documentFileName resolves a document's file name through a priority chain:
// the name embedded in the document metadata, then the transport-reported
// name, then a generic video name for videos, and finally a name derived
// from the declared MIME type.
func documentFileName(media *Media, messageID int64, ts time.Time) string {
	if media.AttrFileName != "" {
		return filepath.Base(media.AttrFileName)
	}
	if media.FileName != "" {
		return filepath.Base(media.FileName)
	}
	if media.Video {
		return fmt.Sprintf("video_%d_%d.mp4", messageID, ts.Unix())
	}
	return fmt.Sprintf("doc_%d_%d.%s", messageID, ts.Unix(), mimeExtension(media.MimeType))
}

// mimeExtension guesses a file extension from a MIME type, falling back to
// "bin" when the type is absent or malformed.
func mimeExtension(mimeType string) string {
	if mimeType == "" {
		return "bin"
	}
	ext := mimeType[strings.LastIndex(mimeType, "/")+1:]
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.ContainsAny(ext, `\/:*?"<>|`) {
		return "bin"
	}
	return ext
}
