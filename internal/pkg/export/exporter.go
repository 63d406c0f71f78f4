// Package export writes canonical match records to JSON and CSV files.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

// JSONSink keeps one JSON object per output file keyed by match id.
// Records are merged into whatever the file already holds; new data wins on key collision.
type JSONSink struct {
	path    string
	logger  *slog.Logger
	pending map[string]*models.MatchRecord
	order   []string
}

func NewJSONSink(dir, fileName string, logger *slog.Logger) *JSONSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONSink{
		path:    filepath.Join(dir, fileName+".json"),
		logger:  logger,
		pending: make(map[string]*models.MatchRecord),
	}
}

func (s *JSONSink) Path() string { return s.path }

func (s *JSONSink) Add(_ context.Context, rec *models.MatchRecord) error {
	if _, ok := s.pending[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.pending[rec.ID] = rec
	return nil
}

// Flush merges buffered records into the file.
func (s *JSONSink) Flush(_ context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	merged := s.readExisting()
	for _, id := range s.order {
		data, err := json.Marshal(s.pending[id])
		if err != nil {
			return fmt.Errorf("failed to encode match %s: %w", id, err)
		}
		merged[id] = data
	}

	content, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.path, err)
	}
	if err := writeFileAtomic(s.path, content); err != nil {
		return err
	}

	s.logger.Debug("JSON export flushed", "path", s.path, "records", len(s.order), "total", len(merged))
	s.pending = make(map[string]*models.MatchRecord)
	s.order = nil
	return nil
}

// readExisting returns the top-level keys of the current file. A missing or
// unreadable file starts a fresh object.
func (s *JSONSink) readExisting() map[string]json.RawMessage {
	existing := make(map[string]json.RawMessage)
	data, err := os.ReadFile(s.path)
	if err != nil {
		return existing
	}
	if err := json.Unmarshal(data, &existing); err != nil {
		s.logger.Warn("Existing JSON export is not an object, starting fresh", "path", s.path, "error", err)
		return make(map[string]json.RawMessage)
	}
	return existing
}

func writeFileAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
