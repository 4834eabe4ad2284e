package config

import (
	"go.uber.org/zap"
)

// NewLogger builds the process logger. Development loggers are human
// readable, production loggers write JSON.
func NewLogger(l Logger) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if l.Level != "" {
		var err error
		level, err = zap.ParseAtomicLevel(l.Level)
		if err != nil {
			return nil, err
		}
	}

	cfg := zap.NewProductionConfig()
	if l.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level
	return cfg.Build()
}
