package logging

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// NewZerolog returns a JSON zerolog logger tagged with component. Unknown
// levels fall back to info.
func NewZerolog(w io.Writer, component, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("component", component).Logger()
}

// EventLogger lets the event dispatcher log through zerolog with slog-style
// key/value pairs.
type EventLogger struct {
	zl zerolog.Logger
}

func NewEventLogger(zl zerolog.Logger) *EventLogger {
	return &EventLogger{zl: zl}
}

func (l *EventLogger) Debug(msg string, kv ...any) { l.zl.Debug().Fields(pairs(kv)).Msg(msg) }
func (l *EventLogger) Info(msg string, kv ...any)  { l.zl.Info().Fields(pairs(kv)).Msg(msg) }
func (l *EventLogger) Error(msg string, kv ...any) { l.zl.Error().Fields(pairs(kv)).Msg(msg) }

// badKey holds a trailing value with no key, as slog does.
const badKey = "!BADKEY"

func pairs(kv []any) map[string]any {
	fields := make(map[string]any, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			fields[badKey] = kv[i]
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields[key] = kv[i+1]
	}
	return fields
}
