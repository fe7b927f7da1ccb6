package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/veldran/twogate"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "test.db"), discardLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateAndFind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "bob", "hash", "SECRET")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Error("ID not assigned")
	}

	found, err := store.Find(ctx, "bob")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if found.Username != "bob" || found.PasswordHash != "hash" || found.OTPSecret != "SECRET" {
		t.Errorf("found = %+v", found)
	}
	if found.FailedLogins != 0 || found.LockedUntil != 0 {
		t.Errorf("new account has nonzero failure state: %+v", found)
	}
}

func TestCreateDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "bob", "hash", "SECRET"); err != nil {
		t.Fatal(err)
	}

	_, err := store.Create(ctx, "bob", "otherhash", "OTHERSECRET")
	if !errors.Is(err, twogate.ErrDuplicateUsername) {
		t.Fatalf("err = %v, want ErrDuplicateUsername", err)
	}

	found, err := store.Find(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if found.PasswordHash != "hash" {
		t.Error("duplicate insert modified the original row")
	}
}

func TestFindMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Find(context.Background(), "ghost")
	if !errors.Is(err, twogate.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestRecordFailureLocksAtThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "bob", "hash", "SECRET"); err != nil {
		t.Fatal(err)
	}

	const lockUntil = int64(1700000300)
	for i := 1; i <= 4; i++ {
		failed, locked, err := store.RecordFailure(ctx, "bob", 5, lockUntil)
		if err != nil {
			t.Fatalf("failure %d: %v", i, err)
		}
		if failed != i || locked != 0 {
			t.Fatalf("failure %d: failed=%d locked=%d", i, failed, locked)
		}
	}

	failed, locked, err := store.RecordFailure(ctx, "bob", 5, lockUntil)
	if err != nil {
		t.Fatal(err)
	}
	if failed != 5 || locked != lockUntil {
		t.Errorf("fifth failure: failed=%d locked=%d, want 5 and %d", failed, locked, lockUntil)
	}
}

func TestRecordFailureConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "bob", "hash", "SECRET"); err != nil {
		t.Fatal(err)
	}

	const workers = 10
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _, _ = store.RecordFailure(ctx, "bob", 100, 1700000300)
		}()
	}
	wg.Wait()

	found, err := store.Find(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if found.FailedLogins != workers {
		t.Errorf("FailedLogins = %d, want %d (lost updates)", found.FailedLogins, workers)
	}
}

func TestRecordFailureMissingAccount(t *testing.T) {
	store := newTestStore(t)

	_, _, err := store.RecordFailure(context.Background(), "ghost", 5, 1700000300)
	if !errors.Is(err, twogate.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestResetFailures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "bob", "hash", "SECRET"); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, _, err := store.RecordFailure(ctx, "bob", 5, 1700000300); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.ResetFailures(ctx, "bob"); err != nil {
		t.Fatalf("ResetFailures: %v", err)
	}

	found, err := store.Find(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if found.FailedLogins != 0 || found.LockedUntil != 0 {
		t.Errorf("state after reset = %+v", found)
	}
}

func TestUpdateFailureState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "bob", "hash", "SECRET"); err != nil {
		t.Fatal(err)
	}

	if err := store.UpdateFailureState(ctx, "bob", 3, 1700000300); err != nil {
		t.Fatalf("UpdateFailureState: %v", err)
	}

	found, err := store.Find(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if found.FailedLogins != 3 || found.LockedUntil != 1700000300 {
		t.Errorf("state = %+v", found)
	}

	if err := store.UpdateFailureState(ctx, "ghost", 0, 0); !errors.Is(err, twogate.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestUpdateOTPCounterOnlyAdvances(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "bob", "hash", "SECRET"); err != nil {
		t.Fatal(err)
	}

	advanced, err := store.UpdateOTPCounter(ctx, "bob", 100)
	if err != nil || !advanced {
		t.Fatalf("first update: advanced=%v err=%v", advanced, err)
	}

	advanced, err = store.UpdateOTPCounter(ctx, "bob", 100)
	if err != nil || advanced {
		t.Fatalf("same counter: advanced=%v err=%v", advanced, err)
	}

	advanced, err = store.UpdateOTPCounter(ctx, "bob", 99)
	if err != nil || advanced {
		t.Fatalf("older counter: advanced=%v err=%v", advanced, err)
	}

	advanced, err = store.UpdateOTPCounter(ctx, "bob", 101)
	if err != nil || !advanced {
		t.Fatalf("newer counter: advanced=%v err=%v", advanced, err)
	}
}

func TestList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "carol"} {
		if _, err := store.Create(ctx, name, "hash-"+name, "SECRET-"+name); err != nil {
			t.Fatal(err)
		}
	}

	accounts, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("len = %d, want 3", len(accounts))
	}
	if accounts[0].Username != "alice" || accounts[2].Username != "carol" {
		t.Errorf("accounts = %+v", accounts)
	}
}

// TestOpenUpgradesOldSchema seeds a database shaped like the schema before the
// lockout columns existed and checks Open adds them without losing rows.
func TestOpenUpgradesOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		otp_secret    TEXT NOT NULL
	)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(
		"INSERT INTO users (username, password_hash, otp_secret) VALUES (?, ?, ?)",
		"bob", "oldhash", "OLDSECRET",
	); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	store, err := Open(path, discardLogger())
	if err != nil {
		t.Fatalf("Open on old schema: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	found, err := store.Find(ctx, "bob")
	if err != nil {
		t.Fatalf("Find after upgrade: %v", err)
	}
	if found.PasswordHash != "oldhash" || found.OTPSecret != "OLDSECRET" {
		t.Errorf("row lost during upgrade: %+v", found)
	}
	if found.FailedLogins != 0 || found.LockedUntil != 0 {
		t.Errorf("upgraded columns not zeroed: %+v", found)
	}

	// The lockout path works on the upgraded database.
	if _, _, err := store.RecordFailure(ctx, "bob", 5, 1700000300); err != nil {
		t.Fatalf("RecordFailure after upgrade: %v", err)
	}
}
