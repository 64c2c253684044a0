package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/comicvault/credits/internal/metrics"
	apperrors "github.com/comicvault/credits/pkg/app/errors"
	"github.com/comicvault/credits/pkg/auth"
	"github.com/comicvault/credits/pkg/config"
	"github.com/comicvault/credits/pkg/session"
	"github.com/comicvault/credits/pkg/user"
	"github.com/comicvault/credits/pkg/userstore"
)

// NonceStore persists single-use challenges.
type NonceStore interface {
	Insert(ctx context.Context, nonce *session.Nonce) error
	Consume(ctx context.Context, value string) (*session.Nonce, error)
}

// UserStore is the part of the user store sign-in needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*user.User, error)
	GetOrCreateUser(ctx context.Context, usr *user.User) (*user.User, bool, error)
}

// Tokens issues session tokens.
type Tokens interface {
	Issue(info *auth.AuthInfo) (string, time.Time, error)
}

// Service implements the Sign-In with Ethereum handshake.
type Service interface {
	// IssueNonce creates a single-use challenge for address.
	IssueNonce(ctx context.Context, address string) (*session.Challenge, error)
	// Verify checks a signed EIP-4361 message and returns a session token.
	Verify(ctx context.Context, message, signature string) (*session.SignInResult, error)
	// Me returns the profile of an authenticated caller.
	Me(ctx context.Context, userID int64) (*user.Profile, error)
}

type sessionService struct {
	nonces   NonceStore
	users    UserStore
	tokens   Tokens
	domain   string
	nonceTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a new sign-in service
func NewService(cfg *config.AuthConfig, nonces NonceStore, users UserStore, tokens Tokens, logger *zap.Logger) Service {
	return &sessionService{
		nonces:   nonces,
		users:    users,
		tokens:   tokens,
		domain:   cfg.Domain,
		nonceTTL: cfg.NonceTTL,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *sessionService) IssueNonce(ctx context.Context, address string) (*session.Challenge, error) {
	address = strings.TrimSpace(address)
	if !auth.ValidateEVMAddress(address) {
		return nil, apperrors.BadRequestError(nil, "address must be a 0x-prefixed 20-byte hex string")
	}

	value, err := newNonce()
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	now := s.now().UTC()
	nonce := &session.Nonce{
		Value:     value,
		Address:   strings.ToLower(address),
		ExpiresAt: now.Add(s.nonceTTL),
	}
	if err := s.nonces.Insert(ctx, nonce); err != nil {
		return nil, apperrors.GeneralError(err)
	}

	return &session.Challenge{
		Nonce:     nonce.Value,
		Address:   nonce.Address,
		IssuedAt:  now,
		ExpiresAt: nonce.ExpiresAt,
	}, nil
}

func (s *sessionService) Verify(ctx context.Context, message, signature string) (*session.SignInResult, error) {
	res, err := s.verify(ctx, message, signature)
	if err != nil {
		metrics.SignIns.WithLabelValues(resultLabel(err)).Inc()
		return nil, mapError(err)
	}
	metrics.SignIns.WithLabelValues("ok").Inc()
	return res, nil
}

func (s *sessionService) verify(ctx context.Context, message, signature string) (*session.SignInResult, error) {
	msg, err := auth.ParseSIWEMessage(message)
	if err != nil {
		return nil, err
	}

	recovered, err := auth.VerifyEIP191Signature(message, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrInvalidSignature, err)
	}
	if !auth.SameAddress(recovered.Hex(), msg.Address) {
		return nil, session.ErrInvalidSignature
	}

	now := s.now()
	if err := msg.Validate(now, s.domain); err != nil {
		return nil, err
	}

	// The nonce is burnt before any further check so a rejected attempt cannot be retried.
	nonce, err := s.nonces.Consume(ctx, msg.Nonce)
	if err != nil {
		if errors.Is(err, session.ErrNonceNotFound) {
			return nil, session.ErrNonceExpiredOrUnknown
		}
		return nil, err
	}
	if nonce.Expired(now) || !auth.SameAddress(nonce.Address, msg.Address) {
		return nil, session.ErrNonceExpiredOrUnknown
	}

	usr, created, err := s.users.GetOrCreateUser(ctx, user.New(msg.Address))
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info("registered new reader",
			zap.Int64("user_id", usr.ID),
			zap.String("wallet_address", usr.WalletAddress))
	}

	token, expiresAt, err := s.tokens.Issue(&auth.AuthInfo{
		UserID:        usr.ID,
		WalletAddress: usr.WalletAddress,
		Role:          usr.Role,
	})
	if err != nil {
		return nil, err
	}

	return &session.SignInResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      usr.ToProfile(),
		Created:   created,
	}, nil
}

func (s *sessionService) Me(ctx context.Context, userID int64) (*user.Profile, error) {
	usr, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, mapError(err)
	}
	profile := usr.ToProfile()
	return &profile, nil
}

// newNonce returns 32 alphanumeric characters, as EIP-4361 requires.
func newNonce() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, auth.ErrMalformedSIWEMessage):
		return "malformed"
	case errors.Is(err, session.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, session.ErrNonceExpiredOrUnknown):
		return "invalid_nonce"
	case errors.Is(err, auth.ErrSIWEMessageExpired),
		errors.Is(err, auth.ErrSIWEMessageNotYet),
		errors.Is(err, auth.ErrSIWEDomainMismatch):
		return "invalid_message"
	default:
		return "error"
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, auth.ErrMalformedSIWEMessage):
		return apperrors.BadRequestError(err, err.Error())
	case errors.Is(err, session.ErrInvalidSignature):
		return apperrors.UnAuthorizedError(err, "signature does not match the message address")
	case errors.Is(err, session.ErrNonceExpiredOrUnknown):
		return apperrors.UnAuthorizedError(err, "nonce expired or unknown")
	case errors.Is(err, auth.ErrSIWEMessageExpired),
		errors.Is(err, auth.ErrSIWEMessageNotYet),
		errors.Is(err, auth.ErrSIWEDomainMismatch):
		return apperrors.UnAuthorizedError(err, err.Error())
	case errors.Is(err, userstore.ErrUserNotFound):
		return apperrors.ResourceNotFoundError(err, "user not found")
	default:
		return apperrors.GeneralError(err)
	}
}
