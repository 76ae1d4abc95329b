package oauth2

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	// Email identifies the user and is the session's principal name.
	// Required: Yes
	Email string `json:"email"`

	// Password is checked against the stored bcrypt hash.
	// Required: Yes
	// Security: Never log or expose this value
	Password string `json:"password"`

	// ClientID selects the registered client the session is bound to.
	// Required: No, defaults to the configured web client
	// Example: "web-client"
	ClientID string `json:"client_id,omitempty"`
}

// OIDCLoginRequest is the body of POST /auth/login/oidc. Exactly one of IDToken or Code is expected.
type OIDCLoginRequest struct {
	// IDToken is an ID token issued to this service by the upstream provider.
	IDToken string `json:"id_token,omitempty"`

	// Code is an authorization code to exchange with the upstream provider.
	Code string `json:"code,omitempty"`

	// ClientID selects the registered client the session is bound to.
	ClientID string `json:"client_id,omitempty"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	// RefreshToken is the value returned by a previous login.
	// Required: Yes
	RefreshToken string `json:"refresh_token"`
}
