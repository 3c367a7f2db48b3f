package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/unkn0wn-root/tiercache"
)

const simulatedPrefix = "This is a simulated AI response to: "

// SimulatedOptions configure SimulatedHandler. Zero durations take the
// defaults; negative ones disable the wait.
type SimulatedOptions struct {
	Delay    time.Duration // before the first byte; 0 => 1s
	Interval time.Duration // between runes; 0 => 20ms
	Logger   tiercache.Logger
}

// SimulatedHandler answers a Payload POST by echoing the last message back
// one rune at a time, flushing after each, so clients can be exercised
// without a model behind the endpoint.
func SimulatedHandler(opts SimulatedOptions) http.Handler {
	delay := opts.Delay
	if delay == 0 {
		delay = time.Second
	}
	interval := opts.Interval
	if interval == 0 {
		interval = 20 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = tiercache.NopLogger{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var p Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		log.Debug("simulated stream", tiercache.Fields{"turns": len(p.ChatInputList)})

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)

		ctx := r.Context()
		if !sleep(ctx.Done(), delay) {
			return
		}
		for i, ch := range simulatedPrefix + p.Last() {
			if i > 0 && !sleep(ctx.Done(), interval) {
				return
			}
			if _, err := w.Write([]byte(string(ch))); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	})
}

// sleep waits d or until done closes; it reports whether d elapsed.
func sleep(done <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
}
