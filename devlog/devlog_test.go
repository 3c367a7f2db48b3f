package devlog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/disk"
)

type line struct {
	level string
	msg   string
	f     tiercache.Fields
}

type captureLogger struct {
	mu    sync.Mutex
	lines []line
}

func (c *captureLogger) add(level, msg string, f tiercache.Fields) {
	c.mu.Lock()
	c.lines = append(c.lines, line{level, msg, f})
	c.mu.Unlock()
}
func (c *captureLogger) Debug(m string, f tiercache.Fields) { c.add("debug", m, f) }
func (c *captureLogger) Info(m string, f tiercache.Fields)  { c.add("info", m, f) }
func (c *captureLogger) Warn(m string, f tiercache.Fields)  { c.add("warn", m, f) }
func (c *captureLogger) Error(m string, f tiercache.Fields) { c.add("error", m, f) }

type failingSetter struct{ err error }

func (s failingSetter) Set(context.Context, string, any, tiercache.StorageMode) error { return s.err }

func newCache(t *testing.T, d disk.Store) *tiercache.Cache {
	t.Helper()
	cc, err := tiercache.New(tiercache.Options{Disk: d})
	if err != nil {
		t.Fatalf("tiercache.New: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(context.Background()) })
	return cc
}

func TestLogLevels(t *testing.T) {
	out := &captureLogger{}
	l := New(Options{Out: out})
	ctx := context.Background()

	l.Log(ctx, LevelInfo, "a")
	l.Log(ctx, LevelWarn, "b")
	l.Log(ctx, LevelError, "c")
	l.Log(ctx, LevelDebug, 42)
	l.Infof(ctx, "chunk %q", "Hel")

	want := []line{{"info", "a", nil}, {"warn", "b", nil}, {"error", "c", nil}, {"debug", "42", nil}, {"info", `chunk "Hel"`, nil}}
	if len(out.lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(out.lines), len(want))
	}
	for i, w := range want {
		if out.lines[i].level != w.level || out.lines[i].msg != w.msg {
			t.Fatalf("line %d = %+v, want %+v", i, out.lines[i], w)
		}
	}
}

func TestSaveAsPersistsToBothTiers(t *testing.T) {
	ctx := context.Background()
	cc := newCache(t, nil)
	l := New(Options{Cache: cc})

	l.Log(ctx, LevelError, "stream failed", SaveAs("last_error"))
	if v, ok := cc.GetMemory("last_error"); !ok || v != "stream failed" {
		t.Fatalf("memory: v=%v ok=%v", v, ok)
	}
	if v, ok := cc.GetDisk(ctx, "last_error"); !ok || v != "stream failed" {
		t.Fatalf("disk: v=%v ok=%v", v, ok)
	}
}

func TestWithoutSaveAsNothingPersists(t *testing.T) {
	ctx := context.Background()
	cc := newCache(t, nil)
	l := New(Options{Cache: cc})
	l.Log(ctx, LevelInfo, "hello", With(tiercache.Fields{"k": 1}))
	if cc.HasMemory("hello") {
		t.Fatalf("unexpected write")
	}
}

func TestPersistFailureIsLoggedNotReturned(t *testing.T) {
	out := &captureLogger{}
	l := New(Options{Out: out, Cache: failingSetter{err: disk.ErrQuotaExceeded}})
	l.Log(context.Background(), LevelInfo, "x", SaveAs("k"))

	if len(out.lines) != 2 || out.lines[1].level != "warn" {
		t.Fatalf("expected info line then warn, got %+v", out.lines)
	}
	if err, _ := out.lines[1].f["err"].(error); !errors.Is(err, disk.ErrQuotaExceeded) {
		t.Fatalf("expected quota error in fields, got %v", out.lines[1].f)
	}
}

func TestErrorKeyPersistsErrorLines(t *testing.T) {
	ctx := context.Background()
	cc := newCache(t, nil)
	var lg tiercache.Logger = New(Options{Cache: cc, ErrorKey: "devlog_error"})

	lg.Warn("not saved", nil)
	if cc.HasDisk(ctx, "devlog_error") {
		t.Fatalf("warn must not persist")
	}
	lg.Error("stream failed", tiercache.Fields{"err": errors.New("boom"), "status": 500})
	v, ok := cc.GetDisk(ctx, "devlog_error")
	if !ok {
		t.Fatalf("expected persisted error record")
	}
	rec, _ := v.(map[string]any)
	if rec["message"] != "stream failed" || rec["err"] != "boom" || rec["status"] != float64(500) {
		t.Fatalf("unexpected record %#v", v)
	}
}

func TestAssert(t *testing.T) {
	if err := Assert(true, "never"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	err := Assert(false, "")
	if err == nil || err.Error() != DefaultAssertMessage || !errors.Is(err, ErrAssertion) {
		t.Fatalf("unexpected default assertion error %v", err)
	}
	if err := Assert(false, "payload empty"); err.Error() != "payload empty" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"warn": LevelWarn, "ERROR": LevelError, "debug": LevelDebug, "x": LevelInfo} {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
