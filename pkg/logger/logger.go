package logger

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New builds the process logger. Local runs get a human-readable console
// writer, everything else JSON lines.
func New(env string, w io.Writer) zerolog.Logger {
	switch env {
	case EnvProd:
		return zerolog.New(w).Level(zerolog.InfoLevel).With().Timestamp().Logger()
	case EnvDev:
		return zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	default:
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
		return zerolog.New(cw).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	}
}

// SetDefault installs l as the global logger used by Dedup and by contexts
// that carry no logger of their own.
func SetDefault(l zerolog.Logger) {
	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger

	dedup.mu.Lock()
	dedup.out = l
	dedup.mu.Unlock()
}

var dedup = &deduplicator{
	flushDelay: 2 * time.Second,
	out:        log.Logger,
}

type deduplicator struct {
	mu         sync.Mutex
	lastMsg    string
	lastLevel  zerolog.Level
	count      int
	flushDelay time.Duration
	timer      *time.Timer
	out        zerolog.Logger
}

func (d *deduplicator) flush() {
	if d.count == 0 {
		return
	}
	ev := d.out.WithLevel(d.lastLevel)
	if d.count > 1 {
		ev = ev.Int("repeated", d.count)
	}
	ev.Msg(d.lastMsg)
	d.count = 0
	d.lastMsg = ""
}

func (d *deduplicator) schedule() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.flushDelay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.flush()
	})
}

// Dedup logs a message, folding identical consecutive messages into one line
// with a repeat count once they stop arriving.
func Dedup(level zerolog.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	dedup.mu.Lock()
	defer dedup.mu.Unlock()

	if msg == dedup.lastMsg && level == dedup.lastLevel {
		dedup.count++
		dedup.schedule()
		return
	}

	dedup.flush()
	dedup.lastMsg = msg
	dedup.lastLevel = level
	dedup.count = 1
	dedup.schedule()
}

// Flush writes any pending deduplicated message immediately.
func Flush() {
	dedup.mu.Lock()
	defer dedup.mu.Unlock()
	if dedup.timer != nil {
		dedup.timer.Stop()
	}
	dedup.flush()
}
