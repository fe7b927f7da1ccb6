package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const recordVersion1 = 1

var (
	// ErrNotFound is returned when the session does not exist or has expired
	// out of Redis.
	ErrNotFound = errors.New("session not found")
	// ErrCorrupt is returned when the stored session blob cannot be decoded.
	ErrCorrupt = errors.New("session record corrupt")
	// ErrRedisUnavailable wraps transport failures to the session backend.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Session is the authenticated-session record: the terminal state of a login.
// It deliberately carries the username and nothing else; no OTP secret ever
// reaches this store.
type Session struct {
	SessionID string
	Username  string
	CreatedAt int64
	ExpiresAt int64
}

// Store persists sessions in Redis under a configurable prefix, encoded with
// a compact versioned binary codec.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session Store.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "tgs"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Save writes the session with the given TTL. The Redis TTL is the
// authoritative expiry; ExpiresAt is carried for callers that surface it.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	encoded, err := encodeSession(sess)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(sess.SessionID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a live session.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID
	return sess, nil
}

// Delete removes the session and reports whether it existed. Idempotent.
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

func encodeSession(sess *Session) ([]byte, error) {
	if len(sess.Username) > 65535 {
		return nil, errors.New("session username length exceeded")
	}

	var buf bytes.Buffer
	buf.WriteByte(recordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(sess.Username))); err != nil {
		return nil, err
	}
	buf.WriteString(sess.Username)
	if err := binary.Write(&buf, binary.BigEndian, sess.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, sess.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeSession(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, ErrCorrupt
	}
	if version != recordVersion1 {
		return nil, ErrCorrupt
	}

	var nameLen uint16
	if err := binary.Read(reader, binary.BigEndian, &nameLen); err != nil {
		return nil, ErrCorrupt
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(reader, name); err != nil {
		return nil, ErrCorrupt
	}

	sess := &Session{Username: string(name)}
	if err := binary.Read(reader, binary.BigEndian, &sess.CreatedAt); err != nil {
		return nil, ErrCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &sess.ExpiresAt); err != nil {
		return nil, ErrCorrupt
	}

	return sess, nil
}
