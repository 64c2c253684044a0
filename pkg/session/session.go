// Package session defines the Sign-In with Ethereum handshake types.
package session

import (
	"errors"
	"time"

	"github.com/comicvault/credits/pkg/user"
)

var (
	ErrInvalidSignature      = errors.New("invalid signature")
	ErrNonceExpiredOrUnknown = errors.New("nonce expired or unknown")
	ErrNonceNotFound         = errors.New("nonce not found")
)

// Nonce is a single-use sign-in challenge bound to a lowercase address.
type Nonce struct {
	Value     string
	Address   string
	ExpiresAt time.Time
}

// Expired reports whether the nonce is no longer usable at now.
func (n *Nonce) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// Challenge is returned to a wallet that wants to sign in.
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Address   string    `json:"address"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SignInResult is returned after a successful verification.
type SignInResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      user.Profile `json:"user"`
	Created   bool         `json:"created"`
}
