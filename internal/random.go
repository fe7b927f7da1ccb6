// Package internal holds identifier generation shared by the twogate engine.
package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionID is a 128-bit random identifier for authenticated sessions.
type SessionID [16]byte

// NewSessionID draws a fresh identifier from crypto/rand.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) Bytes() []byte {
	return s[:]
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID decodes the compact string form produced by String.
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}
