package server

import (
	"net/http"
	"strings"
)

const corsMethods = "DELETE, GET, HEAD, OPTIONS, PATCH, POST, PUT"

// cors allows credentialed requests from a fixed list of origins. "*" in the
// list allows any origin; the request origin is echoed since credentials are
// allowed.
type cors struct {
	origins map[string]bool
	all     bool
}

func newCORS(origins []string) *cors {
	c := &cors{origins: make(map[string]bool)}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			c.all = true
		} else if o != "" {
			c.origins[o] = true
		}
	}
	return c
}

func (c *cors) allowed(origin string) bool {
	return c.all || c.origins[origin]
}

func (c *cors) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")
		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

		if !c.allowed(origin) {
			if preflight {
				http.Error(w, "Disallowed CORS origin", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		if !preflight {
			next.ServeHTTP(w, r)
			return
		}

		h.Set("Access-Control-Allow-Methods", corsMethods)
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		}
		h.Set("Access-Control-Max-Age", "600")
		w.WriteHeader(http.StatusNoContent)
	})
}
