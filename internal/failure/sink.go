// Package failure records per-item reconciliation failures to a durable
// append-only log, and decides whether a run should continue in their presence.
package failure

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hbomb79/Curator/pkg/logger"
	"github.com/mitchellh/go-homedir"
)

var log = logger.Get("Failures")

type (
	Config struct {
		LogPath        string  `yaml:"log_path" env:"FAILURE_LOG_PATH" env-default:"~/.config/curator/failures.jsonl"`
		Mode           Mode    `yaml:"mode" env:"FAILURE_MODE" env-default:"continue" validate:"oneof=continue abort"`
		MaxFailureRate float64 `yaml:"max_failure_rate" env:"FAILURE_MAX_RATE" env-default:"0.25" validate:"gte=0,lte=1"`
		MinSamples     int     `yaml:"min_samples" env:"FAILURE_MIN_SAMPLES" env-default:"20" validate:"min=1"`
	}

	// Context describes the item (and the stage of its reconciliation) which failed.
	Context struct {
		RunID     string `json:"run_id,omitempty"`
		LibraryID string `json:"library_id"`
		ItemID    string `json:"item_id,omitempty"`
		Title     string `json:"title,omitempty"`
		Stage     string `json:"stage"`
	}

	// Record is a single line of the failure log.
	Record struct {
		Context
		Time  time.Time `json:"time"`
		Error string    `json:"error"`
	}

	Sink interface {
		Record(err error, ctx Context) error
	}

	// FileSink appends one JSON object per line to a file. Writes are
	// serialised and synced to disk before Record returns.
	FileSink struct {
		mu   sync.Mutex
		file *os.File
		path string
	}
)

func NewFileSink(path string) (*FileSink, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand failure log path %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create failure log directory: %w", err)
	}

	file, err := os.OpenFile(expanded, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open failure log %s: %w", expanded, err)
	}

	return &FileSink{file: file, path: expanded}, nil
}

func (sink *FileSink) Record(err error, ctx Context) error {
	record := Record{Context: ctx, Time: time.Now().UTC(), Error: err.Error()}
	line, marshalErr := json.Marshal(record)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal failure record: %w", marshalErr)
	}
	line = append(line, '\n')

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if _, err := sink.file.Write(line); err != nil {
		return fmt.Errorf("failed to write failure record: %w", err)
	}
	if err := sink.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync failure log: %w", err)
	}

	log.Warnf("Item %s (%s) failed during %s: %v\n", ctx.ItemID, ctx.Title, ctx.Stage, err)
	return nil
}

func (sink *FileSink) Path() string { return sink.path }

func (sink *FileSink) Close() error {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return sink.file.Close()
}
