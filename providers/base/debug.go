package base

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger returns the diagnostics logger for one provider, tagged with the
// provider and model names.
func (c *Config) NewLogger(provider, model string) zerolog.Logger {
	l := log.Logger
	if c.Logger != nil {
		l = *c.Logger
	}
	return l.With().Str("provider", provider).Str("model", model).Logger()
}

// DebugLogger writes JSONL debug records (one JSON object per line).
// It is safe for concurrent use. A nil *DebugLogger discards everything.
type DebugLogger struct {
	f   *os.File
	log zerolog.Logger
}

// NewDebugLogger creates a new debug logger that appends to the specified path.
// If path is empty, returns nil (debug logging disabled).
func NewDebugLogger(path, provider, model string) (*DebugLogger, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	l := zerolog.New(zerolog.SyncWriter(f)).With().
		Timestamp().
		Str("provider", provider).
		Str("model", model).
		Logger()
	return &DebugLogger{f: f, log: l}, nil
}

func (l *DebugLogger) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}

// Record writes a record whose data is v encoded as JSON.
func (l *DebugLogger) Record(recordType string, v any) {
	if l == nil {
		return
	}
	l.log.Log().Str("type", recordType).Interface("data", v).Send()
}

// RecordJSON writes a record whose data is already-encoded JSON.
func (l *DebugLogger) RecordJSON(recordType string, raw []byte) {
	if l == nil {
		return
	}
	l.log.Log().Str("type", recordType).RawJSON("data", raw).Send()
}
