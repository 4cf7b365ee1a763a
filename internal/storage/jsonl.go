package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Scanner buffer large enough for long message texts on a single line.
const maxLineSize = 1 << 20

// JSONLStore reads and writes the newline-delimited JSON message stores.
// Writes are full overwrites: a fresh ingestion discards stale data so runs
// of different configurations never mix.
type JSONLStore struct {
	rawPath        string
	structuredPath string
	logger         *slog.Logger
}

// NewJSONLStore creates a store over the given raw and structured file paths.
func NewJSONLStore(rawPath, structuredPath string, logger *slog.Logger) *JSONLStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &JSONLStore{
		rawPath:        rawPath,
		structuredPath: structuredPath,
		logger:         logger.With("component", "jsonl_store"),
	}
}

// RawPath returns the path of the raw message store.
func (s *JSONLStore) RawPath() string { return s.rawPath }

// StructuredPath returns the path of the structured message store.
func (s *JSONLStore) StructuredPath() string { return s.structuredPath }

// WriteRaw overwrites the raw store with one JSON record per line.
func (s *JSONLStore) WriteRaw(records []RawMessageRecord) error {
	if err := writeLines(s.rawPath, len(records), func(enc *json.Encoder, i int) error {
		return enc.Encode(records[i])
	}); err != nil {
		return fmt.Errorf("failed to write raw store: %w", err)
	}
	s.logger.Info("Raw store written", "path", s.rawPath, "records", len(records))
	return nil
}

// WriteStructured overwrites the structured store with one JSON record per line.
func (s *JSONLStore) WriteStructured(records []StructuredMessageRecord) error {
	if err := writeLines(s.structuredPath, len(records), func(enc *json.Encoder, i int) error {
		return enc.Encode(records[i])
	}); err != nil {
		return fmt.Errorf("failed to write structured store: %w", err)
	}
	s.logger.Info("Structured store written", "path", s.structuredPath, "records", len(records))
	return nil
}

// ReadRaw streams the raw store back. Lines that fail to parse as JSON are
// skipped with a warning; the rest of the store is still processed.
func (s *JSONLStore) ReadRaw() ([]RawMessageRecord, error) {
	f, err := os.Open(s.rawPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw store: %w", err)
	}
	defer f.Close()

	var records []RawMessageRecord
	skipped := 0
	lineNo := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec RawMessageRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			s.logger.Warn("Skipping malformed raw record", "path", s.rawPath, "line", lineNo, "error", err)
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read raw store: %w", err)
	}

	if skipped > 0 {
		s.logger.Warn("Raw store contained malformed records", "path", s.rawPath, "skipped", skipped)
	}
	return records, nil
}

func writeLines(path string, n int, encode func(enc *json.Encoder, i int) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i := 0; i < n; i++ {
		if err := encode(enc, i); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
