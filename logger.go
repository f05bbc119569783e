package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewErrorLogger builds the logger that receives tracing-internal failures:
// override predicate errors, post-process task failures and sink errors.
// A nil cfg writes JSON at error level to stderr.
func NewErrorLogger(cfg *ErrorLogConfig) (*zap.Logger, error) {
	path := "stderr"
	level := zapcore.ErrorLevel
	encoding := "json"

	if cfg != nil {
		if cfg.Path != "" {
			path = cfg.Path
		}
		if cfg.Level != "" {
			if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
				return nil, err
			}
		}
		if cfg.Encoding != "" {
			encoding = cfg.Encoding
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{path},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: false,
	}

	return zapCfg.Build(zap.Fields(zap.String("component", "telemetry")))
}
