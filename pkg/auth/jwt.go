package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/comicvault/credits/pkg/user"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims are the session claims carried by tokens issued after sign-in.
type Claims struct {
	Address string `json:"addr"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and validates HS256 session tokens
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// sessionKeyInfo binds the derived key to session tokens, so the configured
// secret can be reused for other purposes without producing valid tokens.
const sessionKeyInfo = "comic-credits-session-v1"

// NewTokenIssuer creates a new session token issuer. The HS256 key is derived
// from secret with HKDF-SHA256.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: deriveSigningKey(secret, issuer),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for the given identity and returns it with its expiry.
func (i *TokenIssuer) Issue(info *AuthInfo) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		Address: info.WalletAddress,
		Role:    string(info.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(info.UserID, 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a token and returns the identity it carries
func (i *TokenIssuer) Validate(tokenString string) (*AuthInfo, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	role := user.Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: bad role", ErrInvalidToken)
	}

	return &AuthInfo{
		UserID:        userID,
		WalletAddress: claims.Address,
		Role:          role,
	}, nil
}

func deriveSigningKey(secret, issuer string) []byte {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte(issuer), []byte(sessionKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		// HKDF-SHA256 only fails beyond 255*32 bytes of output.
		panic(fmt.Sprintf("derive session key: %v", err))
	}
	return key
}
