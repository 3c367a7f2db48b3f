package stream

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the coarse state of a Session.
type Status int

const (
	StatusIdle Status = iota
	StatusStreaming
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusStreaming:
		return "streaming"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of a Session.
type Snapshot struct {
	ID         string
	Status     Status
	Text       string
	InProgress bool
	Err        string
	Started    time.Time
	Finished   time.Time
}

// Observer receives a Snapshot after every state change: session start, each
// decoded chunk, and the terminal transition. It runs on the fetching
// goroutine and must not call back into a fetch on the same session.
type Observer func(Snapshot)

// Session is the observable state of one streaming exchange. The zero value is
// not usable; construct with NewSession.
//
// A Session is reused across fetches: each fetch resets it. Two fetches on the
// same Session at once overwrite each other's output; use one Session per
// concurrent fetch.
type Session struct {
	id string

	mu         sync.RWMutex
	text       strings.Builder
	status     Status
	errMsg     string
	started    time.Time
	finished   time.Time
	observers  []Observer
	generation uint64
}

func NewSession(observers ...Observer) *Session {
	return &Session{id: uuid.NewString(), observers: observers}
}

func (s *Session) ID() string { return s.id }

// Observe registers o for all later changes.
func (s *Session) Observe(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

func (s *Session) Text() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.text.String()
}

func (s *Session) InProgress() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status == StatusStreaming
}

// Err is the failure message of the last fetch, or "".
func (s *Session) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:         s.id,
		Status:     s.status,
		Text:       s.text.String(),
		InProgress: s.status == StatusStreaming,
		Err:        s.errMsg,
		Started:    s.started,
		Finished:   s.finished,
	}
}

// begin resets the session and returns the generation a fetch must present to
// append or finish. A later begin invalidates earlier generations.
func (s *Session) begin(now time.Time) uint64 {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.text.Reset()
	s.status = StatusStreaming
	s.errMsg = ""
	s.started = now
	s.finished = time.Time{}
	snap, obs := s.snapshotLocked(), s.observers
	s.mu.Unlock()

	notify(obs, snap)
	return gen
}

func (s *Session) append(gen uint64, chunk string) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.text.WriteString(chunk)
	snap, obs := s.snapshotLocked(), s.observers
	s.mu.Unlock()

	notify(obs, snap)
}

// finish moves the session to its terminal state. A fetch superseded by a
// later begin leaves the session alone.
func (s *Session) finish(gen uint64, now time.Time, errMsg string) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	if errMsg != "" {
		s.status = StatusFailed
	} else {
		s.status = StatusDone
	}
	s.errMsg = errMsg
	s.finished = now
	snap, obs := s.snapshotLocked(), s.observers
	s.mu.Unlock()

	notify(obs, snap)
}

func notify(obs []Observer, snap Snapshot) {
	for _, o := range obs {
		o(snap)
	}
}
