// Package zap adapts go.uber.org/zap to filtercache.Logger.
package zap

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/filtercache"
)

var _ filtercache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New builds a JSON production logger at level (debug, info, warn, error).
func New(level string) (Logger, *zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return Logger{}, nil, fmt.Errorf("zap level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return Logger{}, nil, err
	}
	return Logger{L: l.Named("filtercache")}, l, nil
}

func (z Logger) Debug(msg string, f filtercache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f filtercache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f filtercache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f filtercache.Fields) { z.L.Error(msg, fields(f)...) }

// fields keeps key order stable and gives errors and durations their typed encoders.
func fields(f filtercache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		switch v := f[k].(type) {
		case error:
			out = append(out, zap.NamedError(k, v))
		case time.Duration:
			out = append(out, zap.Duration(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}
