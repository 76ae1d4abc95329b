package server

import (
	"net/http"

	"github.com/jrsteele09/go-token-authority/account"
	autherrors "github.com/jrsteele09/go-token-authority/internal/errors"
	"github.com/jrsteele09/go-token-authority/oauth2"
)

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// SignupHandler registers an unverified user and mails the activation link.
func (s *Server) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req account.SignupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		user, err := s.services.Accounts.Signup(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, oauth2.NewUserProfile(user))
	}
}

// ActivateHandler consumes an activation token. GET serves the emailed link (?token=...);
// POST takes {"token": "..."}.
func (s *Server) ActivateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if r.Method == http.MethodGet {
			req.Token = r.URL.Query().Get("token")
		} else if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.Token == "" {
			writeError(w, r, autherrors.Wrapf(autherrors.ErrInvalidRequest, "token is required"))
			return
		}

		if err := s.services.Accounts.Activate(r.Context(), req.Token); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "account activated"})
	}
}

// ResendActivationHandler always answers 202 so callers cannot probe for accounts.
func (s *Server) ResendActivationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		if err := s.services.Accounts.ResendActivation(r.Context(), req.Email); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, messageResponse{Message: "if the account exists and is not yet active, an activation link has been sent"})
	}
}

// ForgotPasswordHandler always answers 202 so callers cannot probe for accounts.
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		if err := s.services.Accounts.ForgotPassword(r.Context(), req.Email); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, messageResponse{Message: "if the account exists, a password reset link has been sent"})
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.Token == "" {
			writeError(w, r, autherrors.Wrapf(autherrors.ErrInvalidRequest, "token is required"))
			return
		}

		if err := s.services.Accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "password updated"})
	}
}
