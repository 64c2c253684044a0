package service

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/comicvault/credits/pkg/auth"
	"github.com/comicvault/credits/pkg/config"
	"github.com/comicvault/credits/pkg/session"
	"github.com/comicvault/credits/pkg/user"
	"github.com/comicvault/credits/pkg/userstore"
)

// MockNonceStore keeps nonces in memory
type MockNonceStore struct {
	mu     sync.Mutex
	nonces map[string]*session.Nonce
}

func newMockNonceStore() *MockNonceStore {
	return &MockNonceStore{nonces: make(map[string]*session.Nonce)}
}

func (m *MockNonceStore) Insert(_ context.Context, nonce *session.Nonce) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := *nonce
	m.nonces[n.Value] = &n
	return nil
}

func (m *MockNonceStore) Consume(_ context.Context, value string) (*session.Nonce, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nonces[value]
	if !ok {
		return nil, session.ErrNonceNotFound
	}
	delete(m.nonces, value)
	return n, nil
}

func (m *MockNonceStore) has(value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nonces[value]
	return ok
}

// MockUserStore keeps users in memory, keyed by wallet
type MockUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*user.User
}

func newMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[string]*user.User)}
}

func (m *MockUserStore) GetUserByID(_ context.Context, id int64) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, userstore.ErrUserNotFound
}

func (m *MockUserStore) GetOrCreateUser(_ context.Context, usr *user.User) (*user.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[usr.WalletAddress]; ok {
		return u, false, nil
	}
	m.nextID++
	created := *usr
	created.ID = m.nextID
	m.users[created.WalletAddress] = &created
	return &created, true, nil
}

// MockService is a mock implementation of Service
type MockService struct {
	IssueNonceFunc func(ctx context.Context, address string) (*session.Challenge, error)
	VerifyFunc     func(ctx context.Context, message, signature string) (*session.SignInResult, error)
	MeFunc         func(ctx context.Context, userID int64) (*user.Profile, error)
}

func (m *MockService) IssueNonce(ctx context.Context, address string) (*session.Challenge, error) {
	return m.IssueNonceFunc(ctx, address)
}

func (m *MockService) Verify(ctx context.Context, message, signature string) (*session.SignInResult, error) {
	return m.VerifyFunc(ctx, message, signature)
}

func (m *MockService) Me(ctx context.Context, userID int64) (*user.Profile, error) {
	return m.MeFunc(ctx, userID)
}

const (
	testDomain = "comics.example"
	testSecret = "0123456789abcdef0123456789abcdef"
)

type signInFixture struct {
	svc    *sessionService
	nonces *MockNonceStore
	users  *MockUserStore
	tokens *auth.TokenIssuer
	now    time.Time
}

func newSignInFixture(t *testing.T) *signInFixture {
	t.Helper()

	f := &signInFixture{
		nonces: newMockNonceStore(),
		users:  newMockUserStore(),
		tokens: auth.NewTokenIssuer(testSecret, "comic-credits", time.Hour),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	cfg := &config.AuthConfig{Domain: testDomain, NonceTTL: 10 * time.Minute}
	f.svc = NewService(cfg, f.nonces, f.users, f.tokens, zap.NewNop()).(*sessionService)
	f.svc.now = func() time.Time { return f.now }
	return f
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

// sign produces a personal_sign signature with v in {27, 28}.
func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()
	hash := crypto.Keccak256([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)))
	sig, err := crypto.Sign(hash, w.key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	sig[64] += 27
	return hexutil.Encode(sig)
}

type siweOpts struct {
	domain    string
	expiresAt *time.Time
}

func siweMessage(address, nonce string, issuedAt time.Time, opts siweOpts) string {
	domain := opts.domain
	if domain == "" {
		domain = testDomain
	}
	lines := []string{
		domain + " wants you to sign in with your Ethereum account:",
		address,
		"",
		"Sign in to read comics.",
		"",
		"URI: https://" + domain,
		"Version: 1",
		"Chain ID: 8453",
		"Nonce: " + nonce,
		"Issued At: " + issuedAt.Format(time.RFC3339),
	}
	if opts.expiresAt != nil {
		lines = append(lines, "Expiration Time: "+opts.expiresAt.Format(time.RFC3339))
	}
	return strings.Join(lines, "\n")
}
