package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mwhitford/reddit-profiler/models"
)

const (
	defaultBaseURL = "https://www.reddit.com"
	requestTimeout = 10 * time.Second
)

// ErrNotFound means the account does not exist (or was deleted); this is a
// terminal outcome and gets skip-listed by the pipeline.
var ErrNotFound = errors.New("account not found")

// ErrRateLimited means the external service signalled a rate limit; the
// pipeline pauses and retries the same username.
var ErrRateLimited = errors.New("rate limited by external service")

// TransientError wraps a failure worth retrying (network errors, 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient lookup failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// AccountLookup is the injected external-lookup capability. Implementations
// return the resolved record, or ErrNotFound, ErrRateLimited, or a
// TransientError.
type AccountLookup interface {
	Lookup(ctx context.Context, username string) (models.AccountRecord, error)
}

// RedditAPI resolves account records through Reddit's anonymous profile
// endpoint, pacing requests with a token bucket.
type RedditAPI struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	rateLimiter *TokenBucket
	log         *logrus.Logger
}

// NewRedditAPI creates a lookup client capped at maxRequestsPerMinute.
func NewRedditAPI(userAgent string, maxRequestsPerMinute int, log *logrus.Logger) *RedditAPI {
	if maxRequestsPerMinute <= 0 {
		maxRequestsPerMinute = 60
	}

	// capacity 1: serialized requests with a minimum inter-request delay,
	// no burst. 95% of the nominal rate leaves a safety buffer.
	fillRate := float64(maxRequestsPerMinute) / 60.0 * 0.95
	rateLimiter := NewTokenBucket(1, fillRate, 30*time.Second)

	return &RedditAPI{
		baseURL:     defaultBaseURL,
		userAgent:   userAgent,
		httpClient:  &http.Client{Timeout: requestTimeout},
		rateLimiter: rateLimiter,
		log:         log,
	}
}

// Lookup fetches /user/<name>/about.json. 200 maps to active or suspended
// with the account's creation timestamp, 404 to ErrNotFound, 429 to
// ErrRateLimited; anything else is transient.
func (r *RedditAPI) Lookup(ctx context.Context, username string) (models.AccountRecord, error) {
	if !r.rateLimiter.TakeWithTimeout() {
		return models.AccountRecord{}, ErrRateLimited
	}

	endpoint := fmt.Sprintf("%s/user/%s/about.json", r.baseURL, url.PathEscape(username))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.AccountRecord{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return models.AccountRecord{}, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.AccountRecord{}, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.AccountRecord{}, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		r.log.WithFields(logrus.Fields{
			"username":    username,
			"status_code": resp.StatusCode,
		}).Warn("Unexpected profile lookup response")
		return models.AccountRecord{}, &TransientError{
			Err: fmt.Errorf("lookup failed with status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var about struct {
		Data struct {
			Name        string  `json:"name"`
			CreatedUTC  float64 `json:"created_utc"`
			IsSuspended bool    `json:"is_suspended"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&about); err != nil {
		return models.AccountRecord{}, &TransientError{Err: fmt.Errorf("failed to decode profile response: %w", err)}
	}

	status := models.StatusActive
	if about.Data.IsSuspended {
		status = models.StatusSuspended
	}

	return models.NewAccountRecord(username, int64(about.Data.CreatedUTC), status), nil
}

// TokenBucket implements a rate limiter using the token bucket algorithm.
type TokenBucket struct {
	mutex       sync.Mutex
	capacity    int
	tokens      float64
	fillRate    float64 // tokens per second
	lastRefill  time.Time
	waitTimeout time.Duration
}

// NewTokenBucket creates a new token bucket rate limiter.
func NewTokenBucket(capacity int, fillRate float64, waitTimeout time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:    capacity,
		tokens:      1, // start with one token to avoid an initial burst
		fillRate:    fillRate,
		lastRefill:  time.Now(),
		waitTimeout: waitTimeout,
	}
}

// Take attempts to take a token from the bucket.
// Returns true if successful, false if none are available.
func (tb *TokenBucket) Take() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.lastRefill = now

	newTokens := elapsed * tb.fillRate
	if newTokens > 0 {
		tb.tokens = tb.tokens + newTokens
		if tb.tokens > float64(tb.capacity) {
			tb.tokens = float64(tb.capacity)
		}
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}

	return false
}

// TakeWithTimeout attempts to take a token, waiting up to waitTimeout.
func (tb *TokenBucket) TakeWithTimeout() bool {
	if tb.Take() {
		return true
	}

	tb.mutex.Lock()
	tokensNeeded := 1 - tb.tokens
	timeToWait := time.Duration(tokensNeeded / tb.fillRate * float64(time.Second))
	if timeToWait > tb.waitTimeout {
		timeToWait = tb.waitTimeout
	}
	tb.mutex.Unlock()

	time.Sleep(timeToWait)
	return tb.Take()
}
