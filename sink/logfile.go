package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arloliu/telemetry"
)

// LogFile appends one JSON line per trace to a file:
//
//	{"ts":"2026-01-02T15:04:05.000Z","trace":{"id":"...","spans":[...]}}
type LogFile struct {
	path string
	file *os.File
	core zapcore.Core
}

// NewLogFile opens path for appending, creating it if needed.
func NewLogFile(path string) (*LogFile, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", telemetry.ErrSinkDeviceNotFound, path, err)
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.NanosDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(f), zapcore.InfoLevel)

	return &LogFile{path: path, file: f, core: core}, nil
}

// Name implements Backend.
func (l *LogFile) Name() string { return "logfile" }

// Path returns the file being written.
func (l *LogFile) Path() string { return l.path }

// Process implements Backend.
func (l *LogFile) Process(_ context.Context, rec *telemetry.Record) error {
	data, err := rec.JSON()
	if err != nil {
		return fmt.Errorf("encode trace %s: %w", rec.ID, err)
	}
	ent := zapcore.Entry{Level: zapcore.InfoLevel, Time: time.Now()}

	return l.core.Write(ent, []zapcore.Field{zap.Any("trace", json.RawMessage(data))})
}

// Close implements Backend.
func (l *LogFile) Close(context.Context) error {
	if err := l.core.Sync(); err != nil {
		_ = l.file.Close()
		return err
	}

	return l.file.Close()
}
