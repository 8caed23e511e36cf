package server

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/web-padawan/demosnippet/internal/config"
	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/server/middleware"
)

// OriginValidator accepts the configured allowed origins plus loopback
// origins on the server's own port. Loopback origins are only accepted when
// the server binds a loopback host; wildcard binds need allowed_origins.
type OriginValidator struct {
	allowed map[string]struct{}
	port    string
	local   bool
}

// NewOriginValidator builds a validator from the server section.
func NewOriginValidator(cfg config.ServerConfig) *OriginValidator {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return &OriginValidator{
		allowed: allowed,
		port:    strconv.Itoa(cfg.Port),
		local:   isLoopback(cfg.Host),
	}
}

// IsAllowedOrigin implements websocket.OriginValidator.
func (v *OriginValidator) IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := v.allowed[strings.TrimRight(origin, "/")]; ok {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}

	return v.local && isLoopback(u.Hostname()) && port == v.port
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// applySecurityHeaders sets the headers every response carries.
func applySecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "SAMEORIGIN")
	w.Header().Set("Referrer-Policy", "same-origin")
}

// withMiddleware adds security headers, CORS for allowed origins, origin
// checks on state changing requests and request logging.
func (s *PreviewServer) withMiddleware(next http.Handler) http.Handler {
	validator := NewOriginValidator(s.config.Server)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		applySecurityHeaders(w)

		origin := r.Header.Get("Origin")
		if validator.IsAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Browsers send Origin on every cross-site POST.
		if r.Method == http.MethodPost && origin != "" && !validator.IsAllowedOrigin(origin) {
			s.logger.Warn(r.Context(),
				terrors.NewSecurityError(terrors.ErrCodeInvalidOrigin, "invalid origin in request"),
				"Security: Invalid origin",
				"origin", origin,
				"ip", middleware.ClientIP(r))
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}
