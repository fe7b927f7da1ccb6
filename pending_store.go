package twogate

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

const (
	pendingKeyPrefix     = "plc"
	pendingRecordVersion = 1
	pendingTxnRetries    = 5
)

var (
	errPendingNotFound = errors.New("pending login not found")
	errPendingExpired  = errors.New("pending login expired")
	errPendingExceeded = errors.New("pending login attempts exceeded")
	errPendingBackend  = errors.New("pending login backend unavailable")
)

// pendingLogin is a half-open login: the password step passed, the OTP step
// has not. It carries the OTP secret so the verify step needs no credential
// store round trip, which is why this record must never leave Redis.
type pendingLogin struct {
	Username  string
	Secret    string
	ExpiresAt int64
	Attempts  uint16
}

// pendingLoginStore keeps challenges in Redis keyed by the opaque challenge
// ID. The Redis TTL enforces expiry; ExpiresAt inside the record is a second
// check against clock drift on the Redis side.
type pendingLoginStore struct {
	redis redis.UniversalClient
}

func newPendingLoginStore(redisClient redis.UniversalClient) *pendingLoginStore {
	return &pendingLoginStore{redis: redisClient}
}

func pendingKey(challengeID string) string {
	return pendingKeyPrefix + ":" + challengeID
}

func (s *pendingLoginStore) Save(ctx context.Context, challengeID string, rec *pendingLogin, ttl time.Duration) error {
	encoded, err := encodePendingLogin(rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, pendingKey(challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errPendingBackend, err)
	}
	return nil
}

func (s *pendingLoginStore) Get(ctx context.Context, challengeID string, now time.Time) (*pendingLogin, error) {
	data, err := s.redis.Get(ctx, pendingKey(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errPendingNotFound
		}
		return nil, fmt.Errorf("%w: %v", errPendingBackend, err)
	}

	rec, err := decodePendingLogin(data)
	if err != nil {
		return nil, err
	}
	if rec.ExpiresAt <= now.Unix() {
		return nil, errPendingExpired
	}
	return rec, nil
}

// Delete removes the challenge and reports whether it still existed. The
// boolean is the single-use guarantee: exactly one concurrent verifier
// observes true.
func (s *pendingLoginStore) Delete(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, pendingKey(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errPendingBackend, err)
	}
	return n > 0, nil
}

// RecordFailure increments the challenge's attempt counter under a WATCH
// transaction, preserving the remaining TTL. With maxAttempts > 0 it deletes
// the challenge once the cap is reached and returns errPendingExceeded; with
// maxAttempts <= 0 the counter only tallies.
func (s *pendingLoginStore) RecordFailure(ctx context.Context, challengeID string, maxAttempts int) error {
	key := pendingKey(challengeID)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return errPendingNotFound
			}
			return fmt.Errorf("%w: %v", errPendingBackend, err)
		}

		rec, err := decodePendingLogin(data)
		if err != nil {
			return err
		}
		if rec.Attempts < ^uint16(0) {
			rec.Attempts++
		}

		if maxAttempts > 0 && int(rec.Attempts) >= maxAttempts {
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return fmt.Errorf("%w: %v", errPendingBackend, err)
			}
			return errPendingExceeded
		}

		ttl, err := tx.TTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", errPendingBackend, err)
		}
		if ttl <= 0 {
			return errPendingExpired
		}

		encoded, err := encodePendingLogin(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, ttl)
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", errPendingBackend, err)
		}
		return nil
	}

	for i := 0; i < pendingTxnRetries; i++ {
		err := s.redis.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%w: transaction contention", errPendingBackend)
}

func encodePendingLogin(rec *pendingLogin) ([]byte, error) {
	if len(rec.Username) > 65535 || len(rec.Secret) > 65535 {
		return nil, errors.New("pending login field length exceeded")
	}

	var buf bytes.Buffer
	buf.WriteByte(pendingRecordVersion)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(rec.Username))); err != nil {
		return nil, err
	}
	buf.WriteString(rec.Username)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(rec.Secret))); err != nil {
		return nil, err
	}
	buf.WriteString(rec.Secret)
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.Attempts); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodePendingLogin(data []byte) (*pendingLogin, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != pendingRecordVersion {
		return nil, errPendingNotFound
	}

	readString := func() (string, error) {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return "", err
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return "", err
		}
		return string(raw), nil
	}

	rec := &pendingLogin{}
	if rec.Username, err = readString(); err != nil {
		return nil, errPendingNotFound
	}
	if rec.Secret, err = readString(); err != nil {
		return nil, errPendingNotFound
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.ExpiresAt); err != nil {
		return nil, errPendingNotFound
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.Attempts); err != nil {
		return nil, errPendingNotFound
	}

	return rec, nil
}
