package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/tiercache"
)

var _ tiercache.Logger = LogrusLogger{}

// LogrusLogger adapts a *logrus.Entry. An error stored under "err" goes
// through WithError.
type LogrusLogger struct{ E *logrus.Entry }

func New(l *logrus.Logger) LogrusLogger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return LogrusLogger{E: logrus.NewEntry(l)}
}

func (l LogrusLogger) Debug(msg string, f tiercache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f tiercache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f tiercache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f tiercache.Fields) { l.with(f).Error(msg) }

func (l LogrusLogger) with(f tiercache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	e := l.E
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			e = e.WithError(err)
			continue
		}
		lf[k] = v
	}
	return e.WithFields(lf)
}
