package user

import (
	"strings"
	"time"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents the domain model for a wallet-authenticated reader.
type User struct {
	ID            int64
	WalletAddress string
	DisplayName   string
	Role          Role
	// Credits is the cached balance. It is only ever changed by the ledger.
	Credits   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin reports whether the user may use administrative endpoints.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// New creates a User for a first-time sign-in.
func New(walletAddress string) *User {
	addr := NormalizeWallet(walletAddress)
	return &User{
		WalletAddress: addr,
		DisplayName:   defaultDisplayName(addr),
		Role:          RoleUser,
	}
}

// NormalizeWallet lowercases a 0x-prefixed wallet address.
func NormalizeWallet(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// defaultDisplayName shortens 0x1234...abcd style.
func defaultDisplayName(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// Profile is the public view of a user returned by the API.
type Profile struct {
	ID            int64  `json:"id"`
	WalletAddress string `json:"wallet_address"`
	DisplayName   string `json:"display_name"`
	Role          Role   `json:"role"`
	Credits       int64  `json:"credits"`
}

// ToProfile converts a User to its API representation.
func (u *User) ToProfile() Profile {
	return Profile{
		ID:            u.ID,
		WalletAddress: u.WalletAddress,
		DisplayName:   u.DisplayName,
		Role:          u.Role,
		Credits:       u.Credits,
	}
}
