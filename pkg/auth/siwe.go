package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const siweHeaderSuffix = " wants you to sign in with your Ethereum account:"

var (
	ErrMalformedSIWEMessage = errors.New("malformed sign-in message")
	ErrSIWEMessageExpired   = errors.New("sign-in message expired")
	ErrSIWEMessageNotYet    = errors.New("sign-in message not yet valid")
	ErrSIWEDomainMismatch   = errors.New("sign-in message domain mismatch")
)

// SIWEMessage is a parsed EIP-4361 Sign-In with Ethereum message.
type SIWEMessage struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int64
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
	NotBefore      *time.Time
	RequestID      string
	Resources      []string
}

// ParseSIWEMessage parses the plain-text EIP-4361 message a wallet signed.
// The returned Address is lowercase.
func ParseSIWEMessage(message string) (*SIWEMessage, error) {
	lines := strings.Split(strings.ReplaceAll(message, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: too short", ErrMalformedSIWEMessage)
	}

	domain, ok := strings.CutSuffix(lines[0], siweHeaderSuffix)
	if !ok || domain == "" {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedSIWEMessage)
	}
	address := strings.TrimSpace(lines[1])
	if !ValidateEVMAddress(address) {
		return nil, fmt.Errorf("%w: invalid address", ErrMalformedSIWEMessage)
	}

	msg := &SIWEMessage{
		Domain:  domain,
		Address: strings.ToLower(address),
	}

	i := skipBlank(lines, 2)
	if i < len(lines) && !strings.HasPrefix(lines[i], "URI: ") {
		msg.Statement = lines[i]
		i = skipBlank(lines, i+1)
	}

	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}
		if line == "Resources:" {
			for i++; i < len(lines); i++ {
				res, ok := strings.CutPrefix(lines[i], "- ")
				if !ok {
					i--
					break
				}
				msg.Resources = append(msg.Resources, res)
			}
			continue
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, fmt.Errorf("%w: unexpected line %q", ErrMalformedSIWEMessage, line)
		}
		if err := msg.setField(key, value); err != nil {
			return nil, err
		}
	}

	switch {
	case msg.URI == "":
		return nil, fmt.Errorf("%w: missing URI", ErrMalformedSIWEMessage)
	case msg.Version != "1":
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedSIWEMessage, msg.Version)
	case msg.ChainID <= 0:
		return nil, fmt.Errorf("%w: missing chain id", ErrMalformedSIWEMessage)
	case len(msg.Nonce) < 8:
		return nil, fmt.Errorf("%w: nonce too short", ErrMalformedSIWEMessage)
	case msg.IssuedAt.IsZero():
		return nil, fmt.Errorf("%w: missing issued at", ErrMalformedSIWEMessage)
	}
	return msg, nil
}

func (m *SIWEMessage) setField(key, value string) error {
	var err error
	switch key {
	case "URI":
		m.URI = value
	case "Version":
		m.Version = value
	case "Chain ID":
		m.ChainID, err = strconv.ParseInt(value, 10, 64)
	case "Nonce":
		m.Nonce = value
	case "Issued At":
		m.IssuedAt, err = time.Parse(time.RFC3339, value)
	case "Expiration Time":
		var t time.Time
		t, err = time.Parse(time.RFC3339, value)
		m.ExpirationTime = &t
	case "Not Before":
		var t time.Time
		t, err = time.Parse(time.RFC3339, value)
		m.NotBefore = &t
	case "Request ID":
		m.RequestID = value
	default:
		return fmt.Errorf("%w: unknown field %q", ErrMalformedSIWEMessage, key)
	}
	if err != nil {
		return fmt.Errorf("%w: field %q: %w", ErrMalformedSIWEMessage, key, err)
	}
	return nil
}

// Validate checks the time bounds and, when domain is non-empty, the domain binding.
func (m *SIWEMessage) Validate(now time.Time, domain string) error {
	if domain != "" && !strings.EqualFold(m.Domain, domain) {
		return ErrSIWEDomainMismatch
	}
	if m.ExpirationTime != nil && !now.Before(*m.ExpirationTime) {
		return ErrSIWEMessageExpired
	}
	if m.NotBefore != nil && now.Before(*m.NotBefore) {
		return ErrSIWEMessageNotYet
	}
	return nil
}

func skipBlank(lines []string, i int) int {
	for i < len(lines) && lines[i] == "" {
		i++
	}
	return i
}
