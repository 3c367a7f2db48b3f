// Package stream POSTs a conversation to an endpoint that answers with a
// chunked UTF-8 text body and exposes the text as it arrives.
//
// Failures never escape as errors: Fetch returns a Result carrying a message
// and whatever text was received before the failure.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/unkn0wn-root/tiercache"
)

const DefaultEndpoint = "http://localhost:8000/stream/"

const (
	readBufSize = 4 << 10
	bom         = "\uFEFF"
)

// Hooks receive stream lifecycle events. Implementations must be cheap.
type Hooks interface {
	StreamFinished(ok bool, status int, received int, elapsed time.Duration)
}

type NopHooks struct{}

func (NopHooks) StreamFinished(bool, int, int, time.Duration) {}

type Options struct {
	Endpoint   string        // "" => DefaultEndpoint
	HTTPClient *http.Client  // nil => &http.Client{}
	Timeout    time.Duration // per fetch; 0 => none beyond ctx

	Logger   tiercache.Logger // nil => tiercache.NopLogger
	Hooks    Hooks            // nil => NopHooks
	Observer Observer         // attached to the consumer's shared session
}

// Consumer issues streaming fetches. It owns one shared Session used by Fetch;
// FetchSession takes a caller-owned one.
type Consumer struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	log      tiercache.Logger
	hooks    Hooks
	session  *Session
	now      func() time.Time
}

func New(opts Options) (*Consumer, error) {
	if opts.Timeout < 0 {
		return nil, fmt.Errorf("stream: negative timeout %v", opts.Timeout)
	}
	c := &Consumer{
		endpoint: opts.Endpoint,
		client:   opts.HTTPClient,
		timeout:  opts.Timeout,
		log:      opts.Logger,
		hooks:    opts.Hooks,
		now:      time.Now,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	if c.log == nil {
		c.log = tiercache.NopLogger{}
	}
	if c.hooks == nil {
		c.hooks = NopHooks{}
	}
	c.session = NewSession()
	c.session.Observe(opts.Observer)
	return c, nil
}

// Session is the shared session Fetch writes to.
func (c *Consumer) Session() *Session { return c.session }

// Fetch streams into the shared session. A second Fetch started before the
// first returns takes the session over; the first still gets its own Result.
func (c *Consumer) Fetch(ctx context.Context, p Payload) Result {
	return c.FetchSession(ctx, c.session, p)
}

// FetchSession streams into s. The session is reset before the request is
// sent. Cancel ctx to abort; the Result then carries the partial text.
func (c *Consumer) FetchSession(ctx context.Context, s *Session, p Payload) Result {
	start := c.now()
	gen := s.begin(start)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var text strings.Builder
	status, err := c.do(ctx, p, func(chunk string) {
		text.WriteString(chunk)
		s.append(gen, chunk)
	})

	res := Result{Successful: err == nil, Data: text.String(), Status: status, Err: err}
	if err != nil {
		res.Error = failureMessage(err)
		c.log.Warn("stream failed", tiercache.Fields{
			"session": s.ID(), "status": status, "received": text.Len(), "err": res.Error,
		})
	} else {
		c.log.Debug("stream finished", tiercache.Fields{"session": s.ID(), "received": text.Len()})
	}
	s.finish(gen, c.now(), res.Error)
	c.hooks.StreamFinished(res.Successful, status, text.Len(), c.now().Sub(start))
	return res
}

func (c *Consumer) do(ctx context.Context, p Payload, emit func(string)) (int, error) {
	if p.ChatInputList == nil {
		p.ChatInputList = []Message{}
	}
	body, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &HTTPError{Code: resp.StatusCode, Reason: reason(resp)}
	}
	if !hasBody(resp) {
		return resp.StatusCode, ErrNoBody
	}

	// The decoder holds back an incomplete multi-byte sequence at the end of a
	// read until the rest of it arrives. A leading BOM is dropped once decoded.
	r := transform.NewReader(resp.Body, unicode.UTF8.NewDecoder())
	buf := make([]byte, readBufSize)
	first := true
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			if first {
				chunk = strings.TrimPrefix(chunk, bom)
				first = false
			}
			c.log.Debug("stream chunk", tiercache.Fields{"bytes": n})
			if chunk != "" {
				emit(chunk)
			}
		}
		if errors.Is(err, io.EOF) {
			return resp.StatusCode, nil
		}
		if err != nil {
			return resp.StatusCode, err
		}
	}
}

// hasBody is false for a nil body and for statuses that never carry one. An
// empty 200 still has a body; it just reads as EOF.
func hasBody(resp *http.Response) bool {
	if resp.Body == nil {
		return false
	}
	if resp.Body != http.NoBody {
		return true
	}
	return resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusResetContent
}

// reason extracts "Internal Server Error" from "500 Internal Server Error".
func reason(resp *http.Response) string {
	if r := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); r != "" {
		return r
	}
	return http.StatusText(resp.StatusCode)
}
