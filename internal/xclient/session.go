package xclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tweetharvest/internal/credentials"
	"tweetharvest/internal/metrics"
)

const defaultBaseURL = "https://api.twitter.com/1.1"

// SessionOptions configures how a Session waits and retries.
type SessionOptions struct {
	BaseURL string
	// WaitOnRateLimit blocks until the rate limit window resets instead of
	// using RetryDelay when the API answers 429.
	WaitOnRateLimit bool
	RetryCount      int
	RetryDelay      time.Duration
	Timeout         time.Duration
	RPS             float64
	Burst           int
	Log             zerolog.Logger
}

// DefaultSessionOptions waits on rate limits and retries up to 1000 times,
// 60 seconds apart.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		BaseURL:         defaultBaseURL,
		WaitOnRateLimit: true,
		RetryCount:      1000,
		RetryDelay:      60 * time.Second,
		Timeout:         15 * time.Second,
		RPS:             1,
		Burst:           5,
		Log:             zerolog.Nop(),
	}
}

// Session is an OAuth 1.0a signed client for the v1.1 REST API.
type Session struct {
	baseURL         string
	creds           credentials.Twitter
	httpClient      *http.Client
	limiter         *rate.Limiter
	waitOnRateLimit bool
	maxAttempts     int
	retryDelay      time.Duration
	window          rateWindow
	log             zerolog.Logger

	nowFn   func() time.Time
	nonceFn func() string
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewSession builds a session from the four credentials. It performs no I/O;
// call VerifyCredentials to check them.
func NewSession(creds credentials.Twitter, opts SessionOptions) *Session {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	return &Session{
		baseURL:         opts.BaseURL,
		creds:           creds,
		httpClient:      &http.Client{Timeout: opts.Timeout},
		limiter:         newLimiter(opts.RPS, opts.Burst),
		waitOnRateLimit: opts.WaitOnRateLimit,
		maxAttempts:     opts.RetryCount + 1,
		retryDelay:      opts.RetryDelay,
		window:          rateWindow{remaining: -1},
		log:             opts.Log,
		nowFn:           time.Now,
		nonceFn:         func() string { return strconv.FormatInt(rand.Int63(), 36) },
		sleep:           sleepCtx,
	}
}

// get signs and sends a GET to path and decodes the JSON body into out.
func (s *Session) get(ctx context.Context, path string, params map[string]string, out any) error {
	endpoint := s.baseURL + path
	newReq := func() (*http.Request, error) {
		u := endpoint
		if len(params) > 0 {
			u += "?" + encodeQuery(params)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		s.oauth1Sign(req, params)
		return req, nil
	}
	resp, err := s.doWithRetry(ctx, path, newReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: KindTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return nil
}

func (s *Session) doWithRetry(ctx context.Context, endpoint string, newReq func() (*http.Request, error)) (*http.Response, error) {
	var lastErr *APIError
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if s.waitOnRateLimit {
			if d := s.window.exhausted(s.nowFn()); d > 0 {
				s.log.Warn().Str("endpoint", endpoint).Dur("wait", d).Msg("rate limit window exhausted, waiting for reset")
				if err := s.sleep(ctx, d); err != nil {
					return nil, err
				}
				s.window.remaining = -1
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		wait := s.retryDelay
		resp, err := s.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = &APIError{Kind: KindTransport, Err: err}
		} else {
			s.window.update(resp.Header)
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			lastErr = decodeAPIError(resp)
			if !lastErr.Retryable() {
				return nil, lastErr
			}
			if lastErr.Kind == KindRateLimited && s.waitOnRateLimit {
				wait = rateLimitWait(resp.Header, s.nowFn(), s.retryDelay)
				s.window.remaining = -1
			}
		}
		if attempt == s.maxAttempts {
			break
		}
		metrics.IncAPIRetry(endpoint)
		s.log.Warn().Err(lastErr).Str("endpoint", endpoint).Int("attempt", attempt).Dur("wait", wait).Msg("api call failed, retrying")
		if err := s.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
