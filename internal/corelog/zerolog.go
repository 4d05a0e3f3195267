package corelog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// zlog adapts zerolog to the Logger interface.
type zlog struct {
	l zerolog.Logger
}

// NewZerolog builds the default production Logger, writing structured
// JSON lines to w. Pass os.Stdout for plain JSON, or zerolog.
// ConsoleWriter{Out: os.Stdout} for human-readable output during
// development.
func NewZerolog(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &zlog{l: zerolog.New(w).With().Timestamp().Logger()}
}

func (z *zlog) event(lvl zerolog.Level, msg string, kv []any) {
	e := z.l.WithLevel(lvl)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}

func (z *zlog) Debug(msg string, kv ...any) { z.event(zerolog.DebugLevel, msg, kv) }
func (z *zlog) Info(msg string, kv ...any)  { z.event(zerolog.InfoLevel, msg, kv) }
func (z *zlog) Warn(msg string, kv ...any)  { z.event(zerolog.WarnLevel, msg, kv) }
func (z *zlog) Error(msg string, kv ...any) { z.event(zerolog.ErrorLevel, msg, kv) }
