package auth

import (
	"context"

	"github.com/comicvault/credits/pkg/user"
)

// Context keys for authentication data
type contextKey string

const (
	// ContextKeyWalletAddress is the context key for the authenticated wallet address
	ContextKeyWalletAddress contextKey = "wallet_address"
	// ContextKeyUserID is the context key for the user's database ID
	ContextKeyUserID contextKey = "user_id"
	// ContextKeyRole is the context key for the user's role
	ContextKeyRole contextKey = "role"
)

// WithWalletAddress adds the wallet address to the context
func WithWalletAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, ContextKeyWalletAddress, address)
}

// WalletAddressFromContext retrieves the wallet address from the context
func WalletAddressFromContext(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(ContextKeyWalletAddress).(string)
	return addr, ok
}

// WithUserID adds the user ID to the context
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext retrieves the user ID from the context
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ContextKeyUserID).(int64)
	return id, ok
}

// WithRole adds the user's role to the context
func WithRole(ctx context.Context, role user.Role) context.Context {
	return context.WithValue(ctx, ContextKeyRole, role)
}

// RoleFromContext retrieves the user's role from the context
func RoleFromContext(ctx context.Context) (user.Role, bool) {
	role, ok := ctx.Value(ContextKeyRole).(user.Role)
	return role, ok
}

// AuthInfo contains all authentication information for a request
type AuthInfo struct {
	UserID        int64
	WalletAddress string
	Role          user.Role
}

// IsAdmin reports whether the authenticated user holds the admin role.
func (a *AuthInfo) IsAdmin() bool {
	return a != nil && a.Role == user.RoleAdmin
}

// WithAuthInfo adds all authentication info to the context
func WithAuthInfo(ctx context.Context, info *AuthInfo) context.Context {
	ctx = WithUserID(ctx, info.UserID)
	ctx = WithWalletAddress(ctx, info.WalletAddress)
	ctx = WithRole(ctx, info.Role)
	return ctx
}

// AuthInfoFromContext retrieves all authentication info from the context.
// It reports false when the request was not authenticated.
func AuthInfoFromContext(ctx context.Context) (*AuthInfo, bool) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, false
	}
	info := &AuthInfo{UserID: id}
	info.WalletAddress, _ = WalletAddressFromContext(ctx)
	info.Role, _ = RoleFromContext(ctx)
	return info, true
}
