package twogate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newPendingFixture(t *testing.T) (*pendingLoginStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return newPendingLoginStore(client), mr
}

func TestPendingLoginRoundTrip(t *testing.T) {
	store, _ := newPendingFixture(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	rec := &pendingLogin{
		Username:  "bob",
		Secret:    "JBSWY3DPEHPK3PXP",
		ExpiresAt: now.Add(3 * time.Minute).Unix(),
	}
	if err := store.Save(ctx, "challenge-1", rec, 3*time.Minute); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Get(ctx, "challenge-1", now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.Username != rec.Username || loaded.Secret != rec.Secret {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.ExpiresAt != rec.ExpiresAt || loaded.Attempts != 0 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestPendingLoginMissing(t *testing.T) {
	store, _ := newPendingFixture(t)

	_, err := store.Get(context.Background(), "nope", time.Unix(1700000000, 0))
	if !errors.Is(err, errPendingNotFound) {
		t.Fatalf("err = %v, want errPendingNotFound", err)
	}
}

func TestPendingLoginExpiresByRecordTimestamp(t *testing.T) {
	store, _ := newPendingFixture(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	rec := &pendingLogin{
		Username:  "bob",
		Secret:    "JBSWY3DPEHPK3PXP",
		ExpiresAt: now.Add(time.Minute).Unix(),
	}
	if err := store.Save(ctx, "challenge-1", rec, time.Hour); err != nil {
		t.Fatal(err)
	}

	// The Redis key still exists but the embedded timestamp has passed.
	_, err := store.Get(ctx, "challenge-1", now.Add(2*time.Minute))
	if !errors.Is(err, errPendingExpired) {
		t.Fatalf("err = %v, want errPendingExpired", err)
	}
}

func TestPendingLoginExpiresByRedisTTL(t *testing.T) {
	store, mr := newPendingFixture(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	rec := &pendingLogin{
		Username:  "bob",
		Secret:    "JBSWY3DPEHPK3PXP",
		ExpiresAt: now.Add(time.Hour).Unix(),
	}
	if err := store.Save(ctx, "challenge-1", rec, time.Minute); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "challenge-1", now)
	if !errors.Is(err, errPendingNotFound) {
		t.Fatalf("err = %v, want errPendingNotFound", err)
	}
}

func TestPendingLoginDeleteReportsExistence(t *testing.T) {
	store, _ := newPendingFixture(t)
	ctx := context.Background()

	rec := &pendingLogin{Username: "bob", Secret: "S", ExpiresAt: time.Now().Add(time.Hour).Unix()}
	if err := store.Save(ctx, "challenge-1", rec, time.Hour); err != nil {
		t.Fatal(err)
	}

	deleted, err := store.Delete(ctx, "challenge-1")
	if err != nil || !deleted {
		t.Fatalf("first delete: deleted=%v err=%v", deleted, err)
	}

	deleted, err = store.Delete(ctx, "challenge-1")
	if err != nil || deleted {
		t.Fatalf("second delete: deleted=%v err=%v", deleted, err)
	}
}

func TestPendingLoginRecordFailureCounts(t *testing.T) {
	store, _ := newPendingFixture(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	rec := &pendingLogin{Username: "bob", Secret: "S", ExpiresAt: now.Add(time.Hour).Unix()}
	if err := store.Save(ctx, "challenge-1", rec, time.Hour); err != nil {
		t.Fatal(err)
	}

	// Uncapped: failures only tally.
	for i := 0; i < 3; i++ {
		if err := store.RecordFailure(ctx, "challenge-1", 0); err != nil {
			t.Fatalf("RecordFailure %d: %v", i+1, err)
		}
	}

	loaded, err := store.Get(ctx, "challenge-1", now)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", loaded.Attempts)
	}
}

func TestPendingLoginRecordFailureCapDeletes(t *testing.T) {
	store, _ := newPendingFixture(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	rec := &pendingLogin{Username: "bob", Secret: "S", ExpiresAt: now.Add(time.Hour).Unix()}
	if err := store.Save(ctx, "challenge-1", rec, time.Hour); err != nil {
		t.Fatal(err)
	}

	if err := store.RecordFailure(ctx, "challenge-1", 2); err != nil {
		t.Fatalf("first failure: %v", err)
	}

	err := store.RecordFailure(ctx, "challenge-1", 2)
	if !errors.Is(err, errPendingExceeded) {
		t.Fatalf("second failure: err = %v, want errPendingExceeded", err)
	}

	if _, err := store.Get(ctx, "challenge-1", now); !errors.Is(err, errPendingNotFound) {
		t.Fatalf("challenge survived the cap: %v", err)
	}
}

func TestPendingLoginRecordFailurePreservesTTL(t *testing.T) {
	store, mr := newPendingFixture(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	rec := &pendingLogin{Username: "bob", Secret: "S", ExpiresAt: now.Add(time.Hour).Unix()}
	if err := store.Save(ctx, "challenge-1", rec, time.Minute); err != nil {
		t.Fatal(err)
	}

	if err := store.RecordFailure(ctx, "challenge-1", 0); err != nil {
		t.Fatal(err)
	}

	ttl := mr.TTL(pendingKey("challenge-1"))
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %v after failure, want (0, 1m]", ttl)
	}
}
