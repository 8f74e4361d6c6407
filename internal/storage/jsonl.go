package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"soulsdex/internal/model"
)

// JsonlStorage appends journal records and results to two JSONL files.
// An empty path disables that half.
type JsonlStorage struct {
	logsPath    string
	resultsPath string
	mu          sync.Mutex
}

func NewJsonlStorage(logsPath, resultsPath string) *JsonlStorage {
	return &JsonlStorage{logsPath: logsPath, resultsPath: resultsPath}
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(_ context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 || s.logsPath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.logsPath, logs)
}

// PutResultBatch appends a batch of operation results as JSON lines.
func (s *JsonlStorage) PutResultBatch(_ context.Context, results []model.OpResult) error {
	if len(results) == 0 || s.resultsPath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLines(s.resultsPath, results)
}

func appendLines[T any](path string, values []T) error {
	w, err := NewJSONLWriter(path, true)
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := w.Write(v); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

// JSONLWriter writes one JSON value per line through a buffered file.
type JSONLWriter struct {
	file   *os.File
	writer *bufio.Writer
}

// NewJSONLWriter opens path for writing, creating parent directories.
// appendMode keeps existing content; otherwise the file is truncated.
func NewJSONLWriter(path string, appendMode bool) (*JSONLWriter, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &JSONLWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *JSONLWriter) Write(value interface{}) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *JSONLWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flush: %w", err)
	}
	return w.file.Close()
}
