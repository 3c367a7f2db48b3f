// Package devlog is a leveled development logger that can also keep selected
// messages in a tiercache, so they survive a restart of the process.
package devlog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/tiercache"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelDebug:
		return "debug"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel maps unknown names to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Setter is the slice of *tiercache.Cache devlog needs.
type Setter interface {
	Set(ctx context.Context, key string, value any, mode tiercache.StorageMode) error
}

type Options struct {
	Out   tiercache.Logger // nil => tiercache.NopLogger
	Cache Setter           // nil => SaveAs is ignored

	// ErrorKey, when set, also saves every Error line logged through the
	// tiercache.Logger methods under this key.
	ErrorKey string
}

// Logger writes to Out and optionally persists. It implements
// tiercache.Logger, so it can be handed to the stream consumer or a Cache.
type Logger struct {
	out      tiercache.Logger
	cache    Setter
	errorKey string
}

var _ tiercache.Logger = (*Logger)(nil)

func New(opts Options) *Logger {
	l := &Logger{out: opts.Out, cache: opts.Cache, errorKey: opts.ErrorKey}
	if l.out == nil {
		l.out = tiercache.NopLogger{}
	}
	return l
}

type entryOpts struct {
	saveAs string
	fields tiercache.Fields
}

type Option func(*entryOpts)

// SaveAs persists the message under key with tiercache.Disk mode.
func SaveAs(key string) Option { return func(o *entryOpts) { o.saveAs = key } }

// With attaches structured fields to the line.
func With(f tiercache.Fields) Option { return func(o *entryOpts) { o.fields = f } }

// Log writes message at level. A message that is not a string is formatted
// for the line but persisted as-is. Persistence failures are logged, never
// returned.
func (l *Logger) Log(ctx context.Context, level Level, message any, opts ...Option) {
	var eo entryOpts
	for _, o := range opts {
		o(&eo)
	}
	l.write(level, fmt.Sprint(message), eo.fields)
	if eo.saveAs != "" {
		l.persist(ctx, eo.saveAs, message)
	}
}

func (l *Logger) Infof(ctx context.Context, format string, args ...any) {
	l.Log(ctx, LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) write(level Level, msg string, f tiercache.Fields) {
	switch level {
	case LevelError:
		l.out.Error(msg, f)
	case LevelWarn:
		l.out.Warn(msg, f)
	case LevelDebug:
		l.out.Debug(msg, f)
	default:
		l.out.Info(msg, f)
	}
}

func (l *Logger) persist(ctx context.Context, key string, message any) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, key, message, tiercache.Disk); err != nil {
		l.out.Warn("devlog: persist failed", tiercache.Fields{"key": key, "err": err})
	}
}

// tiercache.Logger

func (l *Logger) Debug(msg string, f tiercache.Fields) { l.out.Debug(msg, f) }
func (l *Logger) Info(msg string, f tiercache.Fields)  { l.out.Info(msg, f) }
func (l *Logger) Warn(msg string, f tiercache.Fields)  { l.out.Warn(msg, f) }
func (l *Logger) Error(msg string, f tiercache.Fields) {
	l.out.Error(msg, f)
	if l.errorKey != "" {
		l.persist(context.Background(), l.errorKey, errorRecord(msg, f))
	}
}

func errorRecord(msg string, f tiercache.Fields) map[string]any {
	rec := map[string]any{"message": msg}
	for k, v := range f {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		rec[k] = v
	}
	return rec
}

// DefaultAssertMessage is used by Assert when msg is empty.
const DefaultAssertMessage = "Assertion failed"

// ErrAssertion is matched by every error Assert returns.
var ErrAssertion = errors.New("devlog: assertion failed")

type assertionError struct{ msg string }

func (e *assertionError) Error() string { return e.msg }
func (e *assertionError) Is(target error) bool {
	return target == ErrAssertion
}

// Assert returns nil when cond holds, otherwise an error carrying msg.
func Assert(cond bool, msg string) error {
	if cond {
		return nil
	}
	if msg == "" {
		msg = DefaultAssertMessage
	}
	return &assertionError{msg: msg}
}
