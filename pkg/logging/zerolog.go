// Package logging adapts github.com/rs/zerolog to the orchestrator's narrow
// Logger interface.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ZerologLogger wraps a zerolog.Logger behind the orchestrator's Logger
// interface (Debug/Info/Warn/Error with trailing key-value pairs).
type ZerologLogger struct {
	log zerolog.Logger
}

// New builds a console-pretty zerolog logger writing to w (os.Stdout when
// w is nil).
func New(w io.Writer) *ZerologLogger {
	if w == nil {
		w = os.Stdout
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return &ZerologLogger{log: zerolog.New(console).With().Timestamp().Logger()}
}

func (l *ZerologLogger) event(e *zerolog.Event, msg string, args ...interface{}) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}

func (l *ZerologLogger) Debug(msg string, args ...interface{}) { l.event(l.log.Debug(), msg, args...) }
func (l *ZerologLogger) Info(msg string, args ...interface{})  { l.event(l.log.Info(), msg, args...) }
func (l *ZerologLogger) Warn(msg string, args ...interface{})  { l.event(l.log.Warn(), msg, args...) }
func (l *ZerologLogger) Error(msg string, args ...interface{}) { l.event(l.log.Error(), msg, args...) }
