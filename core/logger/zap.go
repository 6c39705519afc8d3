package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a console logger writing entries at or above level to path,
// standard error if path is empty.
func New(level, path string) (*zap.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = "stderr"
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(lvl),
		Encoding:          "console",
		EncoderConfig:     encoderConfig(),
		OutputPaths:       []string{path},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}

	return zapCfg.Build()
}

// parseLevel converts string level to zapcore.Level.
func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.WarnLevel, err
	}
	return l, nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
