package xclient

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// resetBuffer is added to the advertised reset time before retrying.
const resetBuffer = 5 * time.Second

func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// rateWindow tracks the x-rate-limit-* headers of the last response.
type rateWindow struct {
	remaining int
	reset     time.Time
}

func (w *rateWindow) update(h http.Header) {
	if v := h.Get("x-rate-limit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			w.remaining = n
		}
	}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			w.reset = time.Unix(secs, 0)
		}
	}
}

// exhausted returns how long to wait before the window reopens, or zero.
func (w *rateWindow) exhausted(now time.Time) time.Duration {
	if w.remaining != 0 || w.reset.IsZero() || !w.reset.After(now) {
		return 0
	}
	return w.reset.Sub(now) + resetBuffer
}

// rateLimitWait picks the wait for a 429 from Retry-After or the reset header.
func rateLimitWait(h http.Header, now time.Time, def time.Duration) time.Duration {
	if ra := h.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			return time.Duration(secs) * time.Second
		} else if t, err := http.ParseTime(ra); err == nil {
			if d := t.Sub(now); d > 0 {
				return d
			}
		}
	}
	if v := h.Get("x-rate-limit-reset"); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			if d := time.Unix(secs, 0).Sub(now); d > 0 {
				return d + resetBuffer
			}
		}
	}
	return def
}
