package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretBytes = 32

var (
	// ErrTokenInvalid covers unparsable, expired, and wrongly signed tokens.
	ErrTokenInvalid = errors.New("invalid token")
)

// Config carries the token manager settings. AccessTTL bounds token lifetime;
// Leeway absorbs small clock differences between issuer and verifier.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
}

// Manager signs and parses HS256 access tokens that reference an
// authenticated session. The token is a pointer, not the session itself:
// callers must still consult the session store for liveness.
type Manager struct {
	config Config
}

// SessionClaims is the claim set carried by twogate access tokens.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if len(cfg.Secret) < minSecretBytes {
		return nil, errors.New("hs256 secret must be at least 32 bytes")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// Issue signs a token for the (username, sessionID) pair, valid from now for
// the configured TTL.
func (m *Manager) Issue(username, sessionID string, now time.Time) (string, error) {
	if m == nil {
		return "", errors.New("token manager not initialized")
	}

	claims := SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.config.Secret)
}

// Parse verifies the signature, method, issuer, and validity window, and
// returns the claims. Any failure maps to ErrTokenInvalid; callers get no
// distinction between expired, forged, and malformed.
func (m *Manager) Parse(tokenString string) (*SessionClaims, error) {
	if m == nil {
		return nil, errors.New("token manager not initialized")
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return m.config.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithLeeway(m.config.Leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
