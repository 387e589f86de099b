// Package logrus adapts sirupsen/logrus to filtercache.Logger.
package logrus

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/filtercache"
)

var _ filtercache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New logs JSON to w at level (debug, info, warn, error).
func New(w io.Writer, level string) (Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return Logger{}, err
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.JSONFormatter{})
	return Logger{E: logrus.NewEntry(l).WithField("component", "filtercache")}, nil
}

func (l Logger) Debug(msg string, f filtercache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f filtercache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f filtercache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f filtercache.Fields) { l.with(f).Error(msg) }

// with moves an "err" field to logrus.ErrorKey so formatters treat it as the error.
func (l Logger) with(f filtercache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			out[logrus.ErrorKey] = err
			continue
		}
		out[k] = v
	}
	return l.E.WithFields(out)
}
