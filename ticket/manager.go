package ticket

import (
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultIssuer is used when Config.Issuer is empty.
	DefaultIssuer = "goguard"
	minKeySize    = 32
	maxLeeway     = 30 * time.Second
)

// ErrInvalid wraps every parse or verification failure.
var ErrInvalid = errors.New("invalid challenge ticket")

// Config controls ticket signing.
type Config struct {
	Issuer string
	// Key is the HS256 secret. When empty a random 32-byte key is generated, so tickets
	// do not survive a process restart.
	Key    []byte
	Leeway time.Duration
}

// Claims are the ticket payload.
type Claims struct {
	App string `json:"app"`
	Seq uint64 `json:"seq"`
	jwt.RegisteredClaims
}

// SessionID returns the session the ticket was issued for.
func (c *Claims) SessionID() string {
	return c.ID
}

// Manager signs and verifies tickets.
type Manager struct {
	issuer string
	leeway time.Duration
	key    *memguard.Enclave
	now    func() time.Time
}

// NewManager validates cfg and seals the key. now supplies the time used for iat, exp and
// verification; nil means time.Now.
func NewManager(cfg Config, now func() time.Time) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.Key) > 0 && len(cfg.Key) < minKeySize {
		return nil, fmt.Errorf("ticket key must be at least %d bytes", minKeySize)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if now == nil {
		now = time.Now
	}

	var key *memguard.Enclave
	if len(cfg.Key) > 0 {
		buf := make([]byte, len(cfg.Key))
		copy(buf, cfg.Key)
		key = memguard.NewEnclave(buf)
	} else {
		key = memguard.NewEnclaveRandom(minKeySize)
	}

	return &Manager{
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		key:    key,
		now:    now,
	}, nil
}

// Issue signs a ticket for the given session that expires at deadline.
func (m *Manager) Issue(sessionID, app string, seq uint64, deadline time.Time) (string, error) {
	now := m.now()
	claims := Claims{
		App: app,
		Seq: seq,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Issuer:    m.issuer,
			Subject:   app,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(deadline),
		},
	}

	buf, err := m.key.Open()
	if err != nil {
		return "", fmt.Errorf("open ticket key: %w", err)
	}
	defer buf.Destroy()

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(buf.Bytes())
}

// Parse verifies signature, issuer and expiry and returns the claims.
func (m *Manager) Parse(token string) (*Claims, error) {
	buf, err := m.key.Open()
	if err != nil {
		return nil, fmt.Errorf("open ticket key: %w", err)
	}
	defer buf.Destroy()

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.leeway > 0 {
		options = append(options, jwt.WithLeeway(m.leeway))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return buf.Bytes(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" || claims.App == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}
