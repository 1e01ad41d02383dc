package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"riad/internal/config"
)

const (
	apiKeyHeaderDefault = "x-api-key"
	clientKeyUnknown    = "unknown"
	anonymousOwner      = "anonymous"
)

var (
	errMissingAPIKey = errors.New("missing api key header")
	errInvalidAPIKey = errors.New("invalid api key")
)

// Principal is the staff member a request acts for. Wizard sessions are
// scoped to Owner.
type Principal struct {
	Owner   string
	Name    string
	StaffID int64
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated staff member or the anonymous one.
func PrincipalFrom(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Principal{Owner: anonymousOwner}
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     *config.APIConfig
	clients []config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg *config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		clients: cfg.Auth.APIKeys,
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := Principal{Owner: anonymousOwner}

		if a.cfg.Auth.Enabled {
			p, err := a.authenticate(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			principal = p
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

func (a *HTTPAuth) authenticate(r *http.Request) (Principal, error) {
	apiKey := strings.TrimSpace(r.Header.Get(a.header()))
	if apiKey == "" {
		return Principal{}, errMissingAPIKey
	}

	// Сравниваем со всеми ключами за постоянное время
	var match *config.APIClientKey
	for i := range a.clients {
		if subtle.ConstantTimeCompare([]byte(a.clients[i].Key), []byte(apiKey)) == 1 {
			match = &a.clients[i]
		}
	}
	if match == nil {
		return Principal{}, errInvalidAPIKey
	}

	return Principal{
		Owner:   "staff:" + strconv.FormatInt(match.StaffID, 10),
		Name:    match.Name,
		StaffID: match.StaffID,
	}, nil
}

func (a *HTTPAuth) header() string {
	h := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if h == "" {
		return apiKeyHeaderDefault
	}
	return h
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.header())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}
