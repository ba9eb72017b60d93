package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func useMemoryKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	orig := openRing
	openRing = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { openRing = orig })
}

func TestSetGetDelete(t *testing.T) {
	useMemoryKeyring(t)
	key := PasswordKey("watchman")

	if err := Set(key, "s3cret"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Get = %q, want s3cret", got)
	}

	if err := Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := Get(key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
}

func TestResolvePassword(t *testing.T) {
	useMemoryKeyring(t)
	if err := Set(PasswordKey("watchman"), "from-keyring"); err != nil {
		t.Fatal(err)
	}

	got, err := ResolvePassword("from-config", "watchman")
	if err != nil || got != "from-config" {
		t.Errorf("ResolvePassword(configured) = %q, %v", got, err)
	}

	got, err = ResolvePassword("", "watchman")
	if err != nil || got != "from-keyring" {
		t.Errorf("ResolvePassword(keyring) = %q, %v", got, err)
	}

	if _, err := ResolvePassword("", "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResolvePassword(unknown) error = %v, want ErrNotFound", err)
	}
}
