package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"checkbot/internal/models"

	"github.com/gorilla/mux"
)

// Throttle is a keyed ingress limiter.
type Throttle interface {
	Allow(key string) (bool, time.Duration)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered", "error", err, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "Internal server error", models.ErrorCodeInternalError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// signatureMiddleware verifies the X-Signature header OneBot sends when a
// post secret is configured: "sha1=" followed by the hex HMAC-SHA1 of the
// body. An empty secret disables the check.
func signatureMiddleware(secret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxEventSize))
			if err != nil {
				writeError(w, http.StatusBadRequest, "Failed to read event body", models.ErrorCodeBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !validSignature(secret, body, r.Header.Get("X-Signature")) {
				slog.Warn("Rejected event with bad signature", "remote_addr", r.RemoteAddr)
				writeError(w, http.StatusUnauthorized, "Invalid signature", models.ErrorCodeUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validSignature(secret string, body []byte, header string) bool {
	const prefix = "sha1="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	got, err := hex.DecodeString(header[len(prefix):])
	if err != nil {
		return false
	}
	return hmac.Equal(got, signBody(secret, body))
}

func signBody(secret string, body []byte) []byte {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// maxRetryAfter bounds the Retry-After hint. Longer delays, including
// rate.InfDuration from a bucket that can never admit the post, omit it.
const maxRetryAfter = time.Hour

// throttleMiddleware rejects posts once a remote address exceeds its
// ingress budget.
func throttleMiddleware(throttle Throttle) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			allowed, retryAfter := throttle.Allow(key)
			if !allowed {
				retryAfterSecs := 0
				if retryAfter >= 0 && retryAfter <= maxRetryAfter {
					retryAfterSecs = int(retryAfter.Seconds()) + 1
					w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
				}
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded", models.ErrorCodeRateLimited)

				slog.Warn("Rate limit exceeded",
					"key", key,
					"retry_after", retryAfterSecs,
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from the remote address. Forwarding headers are
// ignored: the OneBot implementation posts directly.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, statusCode int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.NewErrorResponse(message, code))
}
