// Package labeling prepares structured records for manual entity labeling
// and converts hand-labeled text back into strict CoNLL shape.
package labeling

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ethiomart/telepipe/internal/storage"
)

const maxLineSize = 1 << 20

// ExportForLabeling writes up to limit cleaned message texts from the
// structured store into a plain-text file, one block per message headed by
// its message id. Records without cleaned text are skipped, as are lines
// that fail to parse.
func ExportForLabeling(structuredPath, outPath string, limit int, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	in, err := os.Open(structuredPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open structured store: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create labeling file: %w", err)
	}

	w := bufio.NewWriter(out)
	exported := 0
	lineNo := 0

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() && exported < limit {
		lineNo++
		var rec storage.StructuredMessageRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			logger.Warn("Skipping invalid structured record", "line", lineNo, "error", err)
			continue
		}
		if rec.CleanedText == nil || *rec.CleanedText == "" {
			continue
		}
		fmt.Fprintf(w, "--- Message ID: %d ---\n%s\n\n", rec.MessageID, *rec.CleanedText)
		exported++
	}
	if err := scanner.Err(); err != nil {
		out.Close()
		return exported, fmt.Errorf("failed to read structured store: %w", err)
	}

	if err := w.Flush(); err != nil {
		out.Close()
		return exported, err
	}
	if err := out.Close(); err != nil {
		return exported, err
	}

	logger.Info("Exported messages for labeling", "path", outPath, "messages", exported)
	return exported, nil
}

// ConvertToCoNLL reads a hand-labeled text file and rewrites it in strict
// CoNLL form: one "token label" pair per line, messages separated by exactly
// one blank line, no leading or trailing blanks. Lines without a token-label
// pair are skipped with a warning.
func ConvertToCoNLL(inPath, outPath string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("failed to open labeled file: %w", err)
	}
	defer in.Close()

	var lines []string
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			lines = append(lines, "")
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			logger.Warn("Skipping malformed labeled line", "line", line)
			continue
		}
		// First field is the token, last is the label.
		lines = append(lines, parts[0]+" "+parts[len(parts)-1])
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read labeled file: %w", err)
	}

	lines = collapseBlanks(lines)

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create CoNLL file: %w", err)
	}
	w := bufio.NewWriter(out)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	logger.Info("Converted labeled data to CoNLL format", "path", outPath, "lines", len(lines))
	return nil
}

// collapseBlanks reduces runs of blank lines to one and trims blanks from
// both ends.
func collapseBlanks(lines []string) []string {
	var out []string
	prevBlank := false
	for _, line := range lines {
		if line == "" {
			if !prevBlank {
				out = append(out, "")
			}
			prevBlank = true
			continue
		}
		out = append(out, line)
		prevBlank = false
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}
