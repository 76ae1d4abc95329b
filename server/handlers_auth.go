package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-authority/identity"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/jrsteele09/go-token-authority/oauth2"
	"github.com/rs/zerolog/log"
)

const (
	loginSourcePassword = "password"
	loginSourceOIDC     = "oidc"
)

// LoginHandler authenticates an email and password and returns the session's tokens. A user who
// already holds a live session for the client gets the same tokens back.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauth2.LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		principal, err := s.services.Passwords.Authenticate(r.Context(), identity.Credentials{
			Username: req.Email,
			Password: req.Password,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp, err := s.services.Auth.Login(r.Context(), s.clientID(req.ClientID), principal, loginAttributes(r, loginSourcePassword))
		if err != nil {
			writeError(w, r, err)
			return
		}

		if principal.Subject != "" {
			if err := s.services.Users.SetLastLogin(r.Context(), principal.Subject, s.nowTime()); err != nil {
				log.Warn().Err(err).Str("user_id", principal.Subject).Msg("failed to record last login")
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// OIDCLoginHandler accepts an upstream ID token or authorization code in place of a password.
func (s *Server) OIDCLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauth2.OIDCLoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.IDToken == "" && req.Code == "" {
			writeError(w, r, autherrors.Wrapf(autherrors.ErrInvalidRequest, "id_token or code is required"))
			return
		}

		principal, err := s.services.OIDC.Authenticate(r.Context(), identity.Credentials{
			IDToken: req.IDToken,
			Code:    req.Code,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp, err := s.services.Auth.Login(r.Context(), s.clientID(req.ClientID), principal, loginAttributes(r, loginSourceOIDC))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// RefreshHandler trades a refresh token for a new access token. Both a JSON body and the
// form encoded refresh_token parameter of an OAuth2 token request are accepted.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req oauth2.RefreshRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			if err := r.ParseForm(); err != nil {
				writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
				return
			}
			req.RefreshToken = r.FormValue("refresh_token")
		} else if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		resp, err := s.services.Auth.Refresh(r.Context(), req.RefreshToken)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// UserInfoHandler returns the profile behind the bearer access token, limited to the fields the
// session's client is scoped for.
func (s *Server) UserInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := s.services.Auth.UserInfo(r.Context(), bearerToken(r))
		if err != nil {
			if autherrors.Is(err, autherrors.ErrInvalidAccessToken) {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			}
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// bearerToken extracts the credential of an "Authorization: Bearer" header, or "" when absent.
func bearerToken(r *http.Request) string {
	scheme, credential, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(credential)
}

func (s *Server) clientID(requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	return s.config.GetDefaultClientID()
}
