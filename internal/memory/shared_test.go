package memory

import (
	"bytes"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/marvin-agent/marvin/internal/secrets"
	"github.com/marvin-agent/marvin/internal/task"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	cipher, err := secrets.OpenCipher(filepath.Join(t.TempDir(), "master.key"))
	if err != nil {
		t.Fatalf("OpenCipher: %v", err)
	}
	return NewStore(cipher, nil)
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := testStore(t)

	value := []byte(`{"fact":"water is wet"}`)
	if err := s.Write("facts", value, "agent-a"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("facts", "agent-a")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestReadMissingKeyReportsNotFound(t *testing.T) {
	s := testStore(t)

	if _, err := s.Read("ghost", "agent-a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key: got %v, want ErrNotFound", err)
	}

	// A key that exists but is off-limits is denied, never "not found".
	if err := s.Write("facts", []byte("x"), "owner"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, err := s.Read("facts", "stranger")
	if !errors.Is(err, task.ErrAccessDenied) {
		t.Fatalf("denied read: got %v, want ErrAccessDenied", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("denied read reported as not found")
	}
}

func TestAccessDenied(t *testing.T) {
	s := testStore(t)

	if err := s.Write("facts", []byte("x"), "owner"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := s.Read("facts", "stranger"); !errors.Is(err, task.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied on read, got %v", err)
	}
	if err := s.Write("facts", []byte("y"), "stranger"); !errors.Is(err, task.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied on write, got %v", err)
	}
	if err := s.Delete("facts", "stranger"); !errors.Is(err, task.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied on delete, got %v", err)
	}

	// Denied write must leave the stored value unchanged.
	got, err := s.Read("facts", "owner")
	if err != nil {
		t.Fatalf("Read by owner: %v", err)
	}
	if string(got) != "x" {
		t.Errorf("store mutated by denied write: %q", got)
	}
}

func TestGrantedReaderCanRead(t *testing.T) {
	s := testStore(t)

	if err := s.Write("facts", []byte("shared"), "owner"); err != nil {
		t.Fatal(err)
	}
	s.Access().Grant("reader", "facts", ReadOnly())

	got, err := s.Read("facts", "reader")
	if err != nil {
		t.Fatalf("Read by granted reader: %v", err)
	}
	if string(got) != "shared" {
		t.Errorf("got %q", got)
	}
	// Read-only grant does not allow writes.
	if err := s.Write("facts", []byte("nope"), "reader"); !errors.Is(err, task.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
}

func TestOwnerDeleteAndListKeys(t *testing.T) {
	s := testStore(t)

	if err := s.Write("a", []byte("1"), "owner"); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("b", []byte("2"), "owner"); err != nil {
		t.Fatal(err)
	}

	keys := s.ListKeys("owner")
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("ListKeys: %v", keys)
	}

	if err := s.Delete("a", "owner"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("a", "owner"); err == nil {
		t.Error("expected error reading deleted key")
	}
}

func TestAdvisoryLocking(t *testing.T) {
	s := testStore(t)

	if err := s.Write("counter", []byte("0"), "a"); err != nil {
		t.Fatal(err)
	}
	s.Access().Grant("b", "counter", FullAccess())

	if !s.Lock("counter", "a") {
		t.Fatal("agent a should acquire the lock")
	}
	if s.Lock("counter", "b") {
		t.Error("agent b should not acquire a held lock")
	}
	// Re-acquire by the holder is fine.
	if !s.Lock("counter", "a") {
		t.Error("holder re-acquire should succeed")
	}
	// Locking is advisory: b can still write while a holds the lock.
	if err := s.Write("counter", []byte("1"), "b"); err != nil {
		t.Errorf("advisory lock must not block writes: %v", err)
	}

	if s.Unlock("counter", "b") {
		t.Error("non-holder must not release the lock")
	}
	if !s.Unlock("counter", "a") {
		t.Error("holder release should succeed")
	}
	if !s.Lock("counter", "b") {
		t.Error("agent b should acquire after release")
	}
}

func TestLockRequiresPermission(t *testing.T) {
	s := testStore(t)
	if err := s.Write("k", []byte("v"), "owner"); err != nil {
		t.Fatal(err)
	}
	if s.Lock("k", "stranger") {
		t.Error("lock without permission should fail")
	}
}

func TestLockDeniedAfterRevoke(t *testing.T) {
	s := testStore(t)
	if err := s.Write("k", []byte("v"), "owner"); err != nil {
		t.Fatal(err)
	}
	s.Access().Grant("peer", "k", Permissions{Lock: true})

	if !s.Lock("k", "peer") {
		t.Fatal("granted agent should acquire the lock")
	}
	if !s.Unlock("k", "peer") {
		t.Fatal("holder release should succeed")
	}

	s.Access().Revoke("peer", "k")
	if s.Lock("k", "peer") {
		t.Error("lock after revoke should fail")
	}
}

func TestTeardownOwner(t *testing.T) {
	s := testStore(t)
	if err := s.Write("mine", []byte("1"), "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("yours", []byte("2"), "b"); err != nil {
		t.Fatal(err)
	}

	s.TeardownOwner("a")
	if _, err := s.Read("mine", "a"); err == nil {
		t.Error("entry owned by a should be gone")
	}
	if got, err := s.Read("yours", "b"); err != nil || string(got) != "2" {
		t.Errorf("entry owned by b should survive: %q %v", got, err)
	}
}

func TestConcurrentDistinctKeys(t *testing.T) {
	s := testStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			agent := string(rune('a' + n%8))
			key := agent + "-key"
			for j := 0; j < 20; j++ {
				if err := s.Write(key, []byte{byte(j)}, agent); err != nil {
					t.Errorf("Write %s: %v", key, err)
					return
				}
				if _, err := s.Read(key, agent); err != nil {
					t.Errorf("Read %s: %v", key, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
