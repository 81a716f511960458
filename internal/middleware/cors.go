package middleware

import (
	"net/http"
	"strconv"
)

// preflightMaxAge is how long browsers may cache a preflight answer
const preflightMaxAge = 24 * 60 * 60

// CORSMiddleware lets the hostel web UI call the API from its own origin
type CORSMiddleware struct {
	origins  map[string]bool
	allowAll bool
}

// NewCORSMiddleware creates a CORS middleware. No origins, or a "*" entry,
// allows every origin.
func NewCORSMiddleware(allowedOrigins ...string) *CORSMiddleware {
	c := &CORSMiddleware{
		origins:  make(map[string]bool, len(allowedOrigins)),
		allowAll: len(allowedOrigins) == 0,
	}
	for _, o := range allowedOrigins {
		if o == "*" {
			c.allowAll = true
		}
		c.origins[o] = true
	}
	return c
}

// Wrap adds CORS headers for allowed origins and answers preflights. A
// preflight from an origin that is not allowed gets 403.
func (c *CORSMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && c.allows(origin)

		if allowed {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
			h.Set("Access-Control-Max-Age", strconv.Itoa(preflightMaxAge))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (c *CORSMiddleware) allows(origin string) bool {
	return c.allowAll || c.origins[origin]
}
