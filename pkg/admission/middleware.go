package admission

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"time"
)

// RateLimitedError is passed to the reject func when a bucket is empty.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1.
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// TooLargeError is passed to the reject func when the declared body size
// exceeds the cap.
type TooLargeError struct {
	Limit    int64
	Declared int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("request body of %d bytes exceeds limit of %d", e.Declared, e.Limit)
}

// RejectFunc writes the response for a request refused by admission control.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error)

// Middleware rejects requests over the address's rate budget, then requests
// whose declared length exceeds maxBody, before any body byte is read.
// Bodies without a declared length are capped with http.MaxBytesReader.
func Middleware(l *Limiter, maxBody int64, reject RejectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, wait := l.Allow(ClientAddr(r)); !ok {
				reject(w, r, &RateLimitedError{RetryAfter: wait})
				return
			}
			if maxBody > 0 {
				if r.ContentLength > maxBody {
					reject(w, r, &TooLargeError{Limit: maxBody, Declared: r.ContentLength})
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxBody)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientAddr returns the host part of the request's remote address.
func ClientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
