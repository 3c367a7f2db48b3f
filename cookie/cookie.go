// Package cookie is the cache's side channel for small string tokens with an
// expiry. Tokens are always written with Path "/", Secure and SameSite=Lax.
package cookie

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultDays = 30
	DefaultPath = "/"
)

// Token is one stored cookie.
type Token struct {
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	Path     string        `json:"path"`
	Expires  time.Time     `json:"expires"`
	Secure   bool          `json:"secure"`
	SameSite http.SameSite `json:"same_site"`
}

// Expired reports whether the token is past its expiry at now.
func (t Token) Expired(now time.Time) bool {
	return !t.Expires.IsZero() && !now.Before(t.Expires)
}

// HTTP converts the token to a Set-Cookie ready value.
func (t Token) HTTP() *http.Cookie {
	return &http.Cookie{
		Name:     t.Name,
		Value:    t.Value,
		Path:     t.Path,
		Expires:  t.Expires,
		Secure:   t.Secure,
		SameSite: t.SameSite,
	}
}

// Jar stores tokens by name. The zero value is not usable; call NewJar.
type Jar struct {
	mu     sync.Mutex
	tokens map[string]Token
	now    func() time.Time
}

type Option func(*Jar)

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(j *Jar) { j.now = now }
}

func NewJar(opts ...Option) *Jar {
	j := &Jar{tokens: make(map[string]Token), now: time.Now}
	for _, o := range opts {
		o(j)
	}
	return j
}

// Set stores or overwrites name. days == 0 means DefaultDays; negative days
// store a token that has already expired, which deletes name on the next read.
func (j *Jar) Set(name, value string, days int) Token {
	if days == 0 {
		days = DefaultDays
	}
	t := Token{
		Name:     name,
		Value:    value,
		Path:     DefaultPath,
		Expires:  j.now().Add(time.Duration(days) * 24 * time.Hour),
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	j.mu.Lock()
	j.tokens[name] = t
	j.mu.Unlock()
	return t
}

// Get returns the value of name. Expired tokens read as absent and are dropped.
func (j *Jar) Get(name string) (string, bool) {
	t, ok := j.Token(name)
	return t.Value, ok
}

// Token returns the full token for name.
func (j *Jar) Token(name string) (Token, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	t, ok := j.tokens[name]
	if !ok {
		return Token{}, false
	}
	if t.Expired(j.now()) {
		delete(j.tokens, name)
		return Token{}, false
	}
	return t, true
}

// Remove deletes name only when path matches the path it was stored with.
// A mismatched path leaves the token in place and reports false.
func (j *Jar) Remove(name, path string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	t, ok := j.tokens[name]
	if !ok || t.Path != path {
		return false
	}
	delete(j.tokens, name)
	return true
}

// Tokens returns every unexpired token.
func (j *Jar) Tokens() []Token {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	out := make([]Token, 0, len(j.tokens))
	for name, t := range j.tokens {
		if t.Expired(now) {
			delete(j.tokens, name)
			continue
		}
		out = append(out, t)
	}
	return out
}

// SetCookies emits a Set-Cookie header for every unexpired token.
func (j *Jar) SetCookies(w http.ResponseWriter) {
	for _, t := range j.Tokens() {
		http.SetCookie(w, t.HTTP())
	}
}

// AddFromRequest stores the cookies a client sent with r. Request cookies
// carry no attributes, so they are stored with the jar defaults.
func (j *Jar) AddFromRequest(r *http.Request) {
	for _, c := range r.Cookies() {
		j.Set(c.Name, c.Value, DefaultDays)
	}
}

// Save writes every unexpired token as JSON.
func (j *Jar) Save(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(j.Tokens()); err != nil {
		return fmt.Errorf("cookie: save: %w", err)
	}
	return nil
}

// Load adds tokens written by Save, keeping their attributes. Expired tokens
// are skipped.
func (j *Jar) Load(r io.Reader) error {
	var tokens []Token
	if err := json.NewDecoder(r).Decode(&tokens); err != nil {
		return fmt.Errorf("cookie: load: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	for _, t := range tokens {
		if t.Expired(now) {
			continue
		}
		j.tokens[t.Name] = t
	}
	return nil
}
