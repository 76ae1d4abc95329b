// Package actiontoken tracks single-use tokens mailed to users for account activation and
// password reset.
package actiontoken

import (
	"time"

	"github.com/jrsteele09/go-token-authority/internal/audit"
)

// Status is the lifecycle state of an action token. REQUESTED is the only state that can change,
// to either ACTIVATED or EXPIRED.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusActivated Status = "ACTIVATED"
	StatusExpired   Status = "EXPIRED"
)

// Purpose says what consuming the token is allowed to do.
type Purpose string

const (
	PurposeActivation    Purpose = "activation"
	PurposePasswordReset Purpose = "password_reset"
)

type ActionToken struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TokenValue  string     `json:"token_value"`
	Purpose     Purpose    `json:"purpose"`
	RequestedAt time.Time  `json:"requested_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	Status      Status     `json:"status"`
	audit.Fields
}

// IsExpired reports whether the token can no longer be consumed at now. Elapsed time decides
// regardless of the stored status, so tokens expire without anything rewriting them.
func (a *ActionToken) IsExpired(now time.Time, ttl time.Duration) bool {
	return a.Status == StatusExpired || now.After(a.RequestedAt.Add(ttl))
}

// Clone returns a copy that shares nothing with a.
func (a *ActionToken) Clone() *ActionToken {
	if a == nil {
		return nil
	}
	c := *a
	if a.ActivatedAt != nil {
		at := *a.ActivatedAt
		c.ActivatedAt = &at
	}
	return &c
}
