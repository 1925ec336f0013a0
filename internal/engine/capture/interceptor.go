package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// BodyTimeout bounds a single response body fetch.
const BodyTimeout = 10 * time.Second

// Response is a finished network response seen by the browser.
// Body fetches the payload lazily; it may be called off the event goroutine.
type Response struct {
	URL    string
	Method string
	Status int64
	Body   func(ctx context.Context) ([]byte, error)
}

// Matcher selects the responses worth capturing.
type Matcher struct {
	Endpoint string
	Method   string
}

// Match reports whether a request method and URL fit the matcher.
func (m Matcher) Match(method, url string) bool {
	if m.Method != "" && !strings.EqualFold(method, m.Method) {
		return false
	}
	return m.Endpoint != "" && strings.Contains(url, m.Endpoint)
}

// Interceptor observes a page's responses and offers the first matching JSON
// body to its slot as a json.RawMessage. It never blocks the caller.
type Interceptor struct {
	ctx     context.Context
	matcher Matcher
	slot    *Slot
	logger  zerolog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	matched int
}

// NewInterceptor returns an interceptor feeding slot. Body fetches stop when
// ctx ends.
func NewInterceptor(ctx context.Context, m Matcher, slot *Slot, logger zerolog.Logger) *Interceptor {
	return &Interceptor{
		ctx:     ctx,
		matcher: m,
		slot:    slot,
		logger:  logger.With().Str("component", "interceptor").Logger(),
	}
}

// Slot returns the slot the interceptor writes to.
func (i *Interceptor) Slot() *Slot {
	return i.slot
}

// Observe handles one response. Matching bodies are read and parsed on a
// separate goroutine.
func (i *Interceptor) Observe(r Response) {
	if !i.matcher.Match(r.Method, r.URL) {
		return
	}

	i.mu.Lock()
	i.matched++
	i.mu.Unlock()

	i.logger.Debug().Str("url", r.URL).Int64("status", r.Status).Msg("Matched target response")

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.consume(r)
	}()
}

func (i *Interceptor) consume(r Response) {
	if r.Body == nil {
		i.logger.Warn().Str("url", r.URL).Msg("Matched response has no body accessor")
		return
	}

	ctx, cancel := context.WithTimeout(i.ctx, BodyTimeout)
	defer cancel()

	body, err := r.Body(ctx)
	if err != nil {
		i.logger.Warn().Err(err).Str("url", r.URL).Msg("Failed to read response body")
		return
	}

	doc, err := ValidJSON(body)
	if err != nil {
		i.logger.Warn().Err(err).Str("url", r.URL).Msg("Failed to parse response body as JSON")
		return
	}

	if !i.slot.Offer(doc) {
		i.logger.Warn().Str("url", r.URL).Msg("Additional matching response dropped, first capture kept")
		return
	}
	i.logger.Info().Str("url", r.URL).Int("bytes", len(body)).Msg("Captured target response")
}

// Matched returns how many responses fit the matcher so far.
func (i *Interceptor) Matched() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.matched
}

// Drain waits for in-flight body reads to finish.
func (i *Interceptor) Drain() {
	i.wg.Wait()
}

// ValidJSON checks that body holds exactly one JSON document and returns a
// private copy of it. Key order and number literals are left untouched for
// the normalizer.
func ValidJSON(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("invalid JSON (%d bytes)", len(trimmed))
	}
	return json.RawMessage(bytes.Clone(trimmed)), nil
}
