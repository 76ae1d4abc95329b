package server

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// maxRequestBody caps JSON bodies on every endpoint.
const maxRequestBody = 1 << 20

// errorStatus maps a service error to its OAuth style error code and HTTP status. Blocked and
// unverified users are checked before invalid credentials because they wrap it.
var errorStatus = []struct {
	err    error
	code   string
	status int
}{
	{autherrors.ErrUserBlocked, "account_blocked", http.StatusForbidden},
	{autherrors.ErrUserNotVerified, "account_not_verified", http.StatusForbidden},
	{autherrors.ErrInvalidCredentials, "invalid_credentials", http.StatusUnauthorized},
	{autherrors.ErrUnknownClient, "invalid_client", http.StatusBadRequest},
	{autherrors.ErrInvalidRefreshToken, "invalid_grant", http.StatusUnauthorized},
	{autherrors.ErrInvalidAccessToken, "invalid_token", http.StatusUnauthorized},
	{autherrors.ErrTokenNotFound, "invalid_token", http.StatusNotFound},
	{autherrors.ErrTokenAlreadyConsumed, "token_consumed", http.StatusConflict},
	{autherrors.ErrTokenExpired, "token_expired", http.StatusGone},
	{autherrors.ErrPasswordPolicy, "weak_password", http.StatusBadRequest},
	{autherrors.ErrUserExists, "user_exists", http.StatusConflict},
	{autherrors.ErrInvalidRequest, "invalid_request", http.StatusBadRequest},
}

// writeError writes the mapped error, or a 500 without details for anything unmapped.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorStatus {
		if autherrors.Is(err, e.err) {
			writeJSONError(w, e.code, err.Error(), e.status)
			return
		}
	}
	log.Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeJSONError(w, "server_error", "internal error", http.StatusInternalServerError)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return autherrors.Wrapf(autherrors.ErrInvalidRequest, "malformed body: %s", err.Error())
	}
	return nil
}

// loginAttributes records where a login came from on the session it creates or reuses.
func loginAttributes(r *http.Request, source string) map[string]any {
	return map[string]any{
		"login_source": source,
		"user_agent":   r.UserAgent(),
		"remote_addr":  clientIP(r),
	}
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
