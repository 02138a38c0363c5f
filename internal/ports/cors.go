package ports

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	corsAllowedHeaders = "Content-Type, X-User-Id"
	corsMaxAgeSeconds  = "600"
)

// DomainSuffixes is the set of web app domains allowed to call the account routes.
// An origin matches a suffix when it is https and is the suffix itself or one of its subdomains.
type DomainSuffixes struct {
	suffixes []string
}

func NewDomainSuffixes(suffixes ...string) (*DomainSuffixes, error) {
	normalized := make([]string, 0, len(suffixes))
	for _, suffix := range suffixes {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		switch {
		case suffix == "":
			return nil, fmt.Errorf("domain suffix is empty")
		case strings.HasPrefix(suffix, "."):
			return nil, fmt.Errorf("domain suffix %s should not start with a dot", suffix)
		case strings.Contains(suffix, "://"):
			return nil, fmt.Errorf("domain suffix %s should not contain a scheme", suffix)
		case strings.ContainsAny(suffix, "/:"):
			return nil, fmt.Errorf("domain suffix %s should not contain a port or path", suffix)
		}
		normalized = append(normalized, suffix)
	}
	return &DomainSuffixes{suffixes: normalized}, nil
}

func (s *DomainSuffixes) AnyMatch(origin string) bool {
	host, ok := strings.CutPrefix(strings.ToLower(origin), "https://")
	if !ok {
		return false
	}
	for _, suffix := range s.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// BuildCORSMiddleware allows the web app to call a route served with method.
// Preflight requests for other methods get no CORS headers, so the browser blocks them.
func BuildCORSMiddleware(allowedSuffixes *DomainSuffixes, method string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if !allowedSuffixes.AnyMatch(origin) {
				next(w, r)
				return
			}

			if r.Method != http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				next(w, r)
				return
			}

			requested := r.Header.Get("Access-Control-Request-Method")
			if requested == "" || requested == method {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", method)
				w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				w.Header().Set("Access-Control-Max-Age", corsMaxAgeSeconds)
			}
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// BuildCORSHandler answers preflight requests for a route served with method
func BuildCORSHandler(allowedSuffixes *DomainSuffixes, method string) http.HandlerFunc {
	return BuildCORSMiddleware(allowedSuffixes, method)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
