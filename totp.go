package twogate

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// totpManager is the default [OTPProvider]: RFC 6238 TOTP over an RFC 4226
// HOTP core. Verification accepts the current time step and Skew adjacent
// steps on either side to absorb clock drift between server and
// authenticator app.
type totpManager struct {
	issuer string
	config TOTPConfig
}

func newTOTPManager(issuer string, cfg TOTPConfig) *totpManager {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if cfg.SecretLength <= 0 {
		cfg.SecretLength = 20
	}
	return &totpManager{issuer: issuer, config: cfg}
}

// GenerateSecret draws a fresh random shared secret and returns it base32
// encoded without padding, the alphabet authenticator apps expect.
func (m *totpManager) GenerateSecret() (string, error) {
	if m == nil {
		return "", ErrEngineNotReady
	}
	raw := make([]byte, m.config.SecretLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}

	return base32NoPad.EncodeToString(raw), nil
}

// ProvisionURI builds the otpauth:// string an external QR renderer encodes
// for enrollment.
func (m *totpManager) ProvisionURI(secretBase32, account string) string {
	label := url.PathEscape(m.issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", m.issuer)
	v.Set("period", strconv.Itoa(m.config.Period))
	v.Set("digits", strconv.Itoa(m.config.Digits))
	v.Set("algorithm", strings.ToUpper(m.config.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// CurrentCode computes the code for the time step containing the given
// instant. Exposed for enrollment verification flows and deterministic tests;
// the login path only ever verifies.
func (m *totpManager) CurrentCode(secretBase32 string, at time.Time) (string, error) {
	if m == nil {
		return "", ErrEngineNotReady
	}

	secret, err := base32NoPad.DecodeString(strings.ToUpper(secretBase32))
	if err != nil || len(secret) == 0 {
		return "", errors.New("malformed totp secret")
	}

	return hotpCode(secret, at.Unix()/int64(m.config.Period), m.config.Digits, m.config.Algorithm)
}

// VerifyCode checks code against the secret at the given instant. On a match
// it reports the time-step counter that matched, for replay tracking.
func (m *totpManager) VerifyCode(secretBase32, code string, at time.Time) (bool, int64, error) {
	if m == nil {
		return false, 0, ErrEngineNotReady
	}

	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.config.Digits || !isNumericString(trimmed) {
		return false, 0, nil
	}

	secret, err := base32NoPad.DecodeString(strings.ToUpper(secretBase32))
	if err != nil || len(secret) == 0 {
		return false, 0, errors.New("malformed totp secret")
	}

	baseCounter := at.Unix() / int64(m.config.Period)
	for step := -m.config.Skew; step <= m.config.Skew; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, m.config.Digits, m.config.Algorithm)
		if err != nil {
			return false, 0, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, counter, nil
		}
	}

	return false, 0, nil
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	code := bin % mod
	return fmt.Sprintf("%0*d", digits, code), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported totp algorithm")
	}
}

func isNumericString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
