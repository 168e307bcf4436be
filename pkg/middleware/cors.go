package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin access for the web client.
type CORSConfig struct {
	// AllowedOrigins holds exact origins ("https://topprix.re"), subdomain
	// patterns ("https://*.topprix.re") or "*".
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge           int
	AllowCredentials bool
	// Environment "development" opens CORS to any origin when no origin
	// is configured.
	Environment string
}

// DefaultCORSConfig allows every origin and the headers the web client
// sends. Callers narrow AllowedOrigins outside development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", HeaderCorrelationID, HeaderVisitorID, HeaderViewID},
		ExposedHeaders: []string{HeaderCorrelationID, "Retry-After"},
		MaxAge:         3600,
		Environment:    "development",
	}
}

// originPolicy decides which Origin values are echoed back.
type originPolicy struct {
	any      bool
	exact    map[string]bool
	suffixes []originSuffix
}

type originSuffix struct{ scheme, domain string }

func newOriginPolicy(origins []string, env string) originPolicy {
	p := originPolicy{exact: make(map[string]bool, len(origins))}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch {
		case o == "":
		case o == "*":
			p.any = true
		case strings.Contains(o, "://*."):
			scheme, host, _ := strings.Cut(o, "://*.")
			p.suffixes = append(p.suffixes, originSuffix{scheme: scheme + "://", domain: "." + host})
		default:
			p.exact[strings.ToLower(o)] = true
		}
	}
	if env == "development" && len(p.exact) == 0 && len(p.suffixes) == 0 {
		p.any = true
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	if p.any {
		return true
	}
	origin = strings.ToLower(origin)
	if p.exact[origin] {
		return true
	}
	for _, s := range p.suffixes {
		if host, ok := strings.CutPrefix(origin, s.scheme); ok && strings.HasSuffix(host, s.domain) && len(host) > len(s.domain) {
			return true
		}
	}
	return false
}

// CORS answers preflight requests with 204 and decorates every other
// response with the allow-origin headers. Disallowed origins get no CORS
// headers and are left to the browser to block.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	def := DefaultCORSConfig()
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = def.AllowedMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = def.AllowedHeaders
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}

	policy := newOriginPolicy(cfg.AllowedOrigins, cfg.Environment)
	// Credentialed requests may not use "*", so the origin is echoed.
	echoOrigin := !policy.any || cfg.AllowCredentials

	preflight := http.Header{
		"Access-Control-Allow-Methods": {strings.Join(cfg.AllowedMethods, ", ")},
		"Access-Control-Allow-Headers": {strings.Join(cfg.AllowedHeaders, ", ")},
		"Access-Control-Max-Age":       {strconv.Itoa(cfg.MaxAge)},
	}
	exposed := strings.Join(cfg.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			if echoOrigin {
				h.Add("Vary", "Origin")
			}

			allowed := origin != "" && policy.allows(origin)
			switch {
			case allowed && echoOrigin:
				h.Set("Access-Control-Allow-Origin", origin)
			case policy.any:
				h.Set("Access-Control-Allow-Origin", "*")
			}
			if allowed && cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				for k, v := range preflight {
					h[k] = v
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if exposed != "" && (allowed || policy.any) {
				h.Set("Access-Control-Expose-Headers", exposed)
			}
			next.ServeHTTP(w, r)
		})
	}
}
