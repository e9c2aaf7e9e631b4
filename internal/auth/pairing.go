package auth

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPairingTTL is how long a pairing code stays redeemable.
const DefaultPairingTTL = 5 * time.Minute

// ErrPairingCodeInvalid covers unknown, expired, and already redeemed codes.
var ErrPairingCodeInvalid = errors.New("auth: pairing code invalid")

type pairingEntry struct {
	deviceName string
	expiresAt  time.Time
}

// PairingService hands out short-lived one-time codes shown in the app UI and
// redeems them for device tokens. Codes live in memory only; an unredeemed
// code does not survive a restart.
type PairingService struct {
	tokens *TokenService
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	codes map[string]pairingEntry
}

// NewPairingService constructs a PairingService on top of the token issuer.
func NewPairingService(tokens *TokenService, ttl time.Duration) (*PairingService, error) {
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	if ttl <= 0 {
		ttl = DefaultPairingTTL
	}
	return &PairingService{
		tokens: tokens,
		ttl:    ttl,
		now:    time.Now,
		codes:  make(map[string]pairingEntry),
	}, nil
}

// Begin creates a pairing code for a device waiting to connect.
func (s *PairingService) Begin(deviceName string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.pruneLocked()
	s.codes[code] = pairingEntry{
		deviceName: strings.TrimSpace(deviceName),
		expiresAt:  s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	return code, nil
}

// Redeem exchanges a live pairing code for a signed device token. Each code
// redeems at most once.
func (s *PairingService) Redeem(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", ErrPairingCodeInvalid
	}

	s.mu.Lock()
	entry, ok := s.codes[code]
	if ok {
		delete(s.codes, code)
	}
	s.mu.Unlock()

	if !ok || s.now().After(entry.expiresAt) {
		return "", ErrPairingCodeInvalid
	}

	return s.tokens.Issue(uuid.NewString(), entry.deviceName)
}

func (s *PairingService) pruneLocked() {
	now := s.now()
	for code, entry := range s.codes {
		if now.After(entry.expiresAt) {
			delete(s.codes, code)
		}
	}
}

func generateCode() (string, error) {
	var buf [5]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:]), nil
}
