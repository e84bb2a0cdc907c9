package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/flowco/flowsync/pkg/config"
)

// newLogger writes leveled, timestamped records prefixed with the program name.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
		Prefix:          config.AppName,
	})
}

// stage times one step of a command (loading a graph, computing a layout,
// rendering a format) and logs it with its elapsed time.
type stage struct {
	logger *log.Logger
	name   string
	fields []any
	start  time.Time
}

func startStage(l *log.Logger, name string, keyvals ...any) *stage {
	l.Debug(name+" started", keyvals...)
	return &stage{logger: l, name: name, fields: keyvals, start: time.Now()}
}

func (s *stage) elapsed() time.Duration {
	return time.Since(s.start).Round(time.Millisecond)
}

// end logs a completed stage at info level.
func (s *stage) end(keyvals ...any) {
	kv := append(append(s.fields[:len(s.fields):len(s.fields)], keyvals...), "elapsed", s.elapsed())
	s.logger.Info(s.name, kv...)
}

// fail logs a failed stage at debug level; the error itself reaches the user
// through the command's return value.
func (s *stage) fail(err error) {
	kv := append(s.fields[:len(s.fields):len(s.fields)], "err", err, "elapsed", s.elapsed())
	s.logger.Debug(s.name+" failed", kv...)
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the command logger, or log.Default when none is attached.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
