// Package httpmw adapts the rate limiter to net/http: it resolves the caller
// identifier, runs the check, and shapes the verdict into RateLimit headers
// or a 429 response. The limiter itself never sees HTTP.
package httpmw

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/storyweave/ratelimit/identity"
	"github.com/storyweave/ratelimit/limiter"
)

// TierResolver picks the policy tier for a request, typically from the route
// class and whether the context carries an authenticated user.
type TierResolver func(r *http.Request) string

// FixedTier is a TierResolver that always returns the same tier.
func FixedTier(name string) TierResolver {
	return func(*http.Request) string { return name }
}

// AuthAwareTier resolves "<class>_authenticated" or "<class>_anonymous"
// depending on whether the request context carries a user id, matching the
// shipped default tier table.
func AuthAwareTier(class string) TierResolver {
	return func(r *http.Request) string {
		if _, ok := identity.UserIDFromContext(r.Context()); ok {
			return class + "_authenticated"
		}
		return class + "_anonymous"
	}
}

// tooManyRequestsBody is the JSON payload of a 429 response.
type tooManyRequestsBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retry_after"`
	Limit      int64  `json:"limit"`
	Incident   string `json:"incident"`
}

// Middleware wraps a handler with rate limiting under the resolved tier.
// Allowed requests continue with informational RateLimit headers attached;
// denied requests get a 429 with retry guidance. Limiter programming errors
// (unknown tier, empty identifier) surface as 500s and an error log.
func Middleware(l *limiter.Limiter, resolve TierResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity.FromRequest(r)
			tier := resolve(r)

			dec, err := l.Check(r.Context(), id, tier)
			if err != nil {
				log.Error().Err(err).Str("tier", tier).Str("path", r.URL.Path).Msg("rate limit check misconfigured")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			writeInfoHeaders(w, dec)

			if !dec.Allowed {
				denyRequest(w, r, id, tier, dec)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeInfoHeaders attaches the informational rate limit headers every
// response carries, allowed or not.
func writeInfoHeaders(w http.ResponseWriter, dec limiter.Decision) {
	h := w.Header()
	h.Set("RateLimit-Limit", strconv.FormatInt(dec.Limit, 10))
	h.Set("RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))
	h.Set("RateLimit-Reset", strconv.FormatInt(dec.Reset.Unix(), 10))
}

func denyRequest(w http.ResponseWriter, r *http.Request, id, tier string, dec limiter.Decision) {
	retryAfter := int64(dec.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	// The incident id ties the response a user reports back to the warn log.
	incident := uuid.NewString()
	log.Warn().
		Str("incident", incident).
		Str("identifier", id).
		Str("tier", tier).
		Str("path", r.URL.Path).
		Int64("retry_after", retryAfter).
		Msg("request throttled")

	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(tooManyRequestsBody{
		Error:      "rate limit exceeded",
		Message:    fmt.Sprintf("Too many requests. Please try again in %d seconds.", retryAfter),
		RetryAfter: retryAfter,
		Limit:      dec.Limit,
		Incident:   incident,
	})
}
