package llm

import (
	"bytes"
	"context"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// defaultMaxRetries is the retry budget after the first attempt.
const defaultMaxRetries = 2

// maxResponseBytes bounds how much of a provider response is read (10MB).
const maxResponseBytes = 10 * 1024 * 1024

// httpDoer lets tests substitute the HTTP client.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// transport executes provider HTTP calls with bounded retry. Transient
// failures (transport errors, 5xx, 429) are retried with exponential
// backoff plus jitter; permanent 4xx fails immediately.
type transport struct {
	client     httpDoer
	maxRetries int
	sleep      func(time.Duration)
	randFloat  func() float64
}

func newTransport(timeout time.Duration) *transport {
	return &transport{
		client:     &http.Client{Timeout: timeout},
		maxRetries: defaultMaxRetries,
		sleep:      time.Sleep,
		randFloat:  rand.Float64,
	}
}

// backoffDelay is 2^attempt * (0.5 + random(0, 0.5)) seconds for the
// 0-indexed attempt just failed.
func (t *transport) backoffDelay(attempt int) time.Duration {
	seconds := math.Pow(2, float64(attempt)) * (0.5 + t.randFloat()*0.5)
	return time.Duration(seconds * float64(time.Second))
}

// do runs the request, retrying transient failures. Returns the response
// body on any 2xx; otherwise a classified *ProviderError.
func (t *transport) do(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	var lastErr *ProviderError

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			delay := t.backoffDelay(attempt - 1)
			log.Printf("🔄 [LLM] retry %d/%d for %s %s in %v", attempt, t.maxRetries, method, redactURL(url), delay.Round(time.Millisecond))
			t.sleep(delay)
		}

		start := time.Now()
		respBody, provErr := t.once(ctx, method, url, headers, body)
		elapsed := time.Since(start).Milliseconds()

		if provErr == nil {
			log.Printf("✅ [LLM] %s %s succeeded (attempt %d, %dms)", method, redactURL(url), attempt+1, elapsed)
			return respBody, nil
		}

		log.Printf("⚠️  [LLM] %s %s failed (attempt %d, %dms): %v", method, redactURL(url), attempt+1, elapsed, provErr)
		lastErr = provErr
		if !provErr.Retryable {
			break
		}
	}

	if guidance := OperatorGuidance(lastErr); guidance != "" {
		log.Printf("❌ [LLM] giving up on %s %s: %s", method, redactURL(url), guidance)
	}
	return nil, lastErr
}

func (t *transport) once(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, *ProviderError) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &ProviderError{Category: ErrorCategoryPermanent, Message: "failed to build request", Cause: err}
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, ClassifyTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ClassifyHTTPError(resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
