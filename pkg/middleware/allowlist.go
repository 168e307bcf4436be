package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"net/netip"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/abhishek-Rj/Topprix-sub001/pkg/errors"
	"github.com/abhishek-Rj/Topprix-sub001/pkg/httputil"
)

// allowlist is a set of network prefixes. Entries may be CIDRs or bare
// addresses, which are taken as single-host prefixes.
type allowlist []netip.Prefix

func parseAllowlist(entries []string, logger *slog.Logger) allowlist {
	var list allowlist
	for _, entry := range entries {
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			list = append(list, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(entry)
		if err != nil {
			logger.Warn("ignoring allowlist entry", slog.String("entry", entry), slog.Any("error", err))
			continue
		}
		list = append(list, p.Masked())
	}
	return list
}

func (l allowlist) permits(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range l {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// IPAllowlist only lets through callers whose remote address is covered by
// entries. It fronts /metrics and pprof. Unparseable entries are skipped, so
// an empty list denies every caller.
func IPAllowlist(entries []string, logger *slog.Logger) func(http.Handler) http.Handler {
	list := parseAllowlist(entries, logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if list.permits(r.RemoteAddr) {
				next.ServeHTTP(w, r)
				return
			}
			logger.WarnContext(r.Context(), "caller not in allowlist",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("path", r.URL.Path),
			)
			httputil.WriteError(w, r, apperrors.Forbidden("endpoint restricted to internal networks"), logger)
		})
	}
}

// RegisterPprof mounts net/http/pprof under /debug/pprof for allowed
// callers only.
func RegisterPprof(r chi.Router, entries []string, logger *slog.Logger) {
	r.Route("/debug/pprof", func(r chi.Router) {
		r.Use(IPAllowlist(entries, logger))
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		r.HandleFunc("/*", pprof.Index)
	})
}
