package keyring

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func stubKeyring(t *testing.T) map[string]string {
	t.Helper()
	store := make(map[string]string)
	origSet, origGet, origDelete := keyringSet, keyringGet, keyringDelete
	keyringSet = func(service, user, password string) error {
		store[service+"/"+user] = password
		return nil
	}
	keyringGet = func(service, user string) (string, error) {
		v, ok := store[service+"/"+user]
		if !ok {
			return "", errors.New("secret not found")
		}
		return v, nil
	}
	keyringDelete = func(service, user string) error {
		delete(store, service+"/"+user)
		return nil
	}
	t.Cleanup(func() {
		keyringSet, keyringGet, keyringDelete = origSet, origGet, origDelete
	})
	return store
}

func TestSetGetDeleteRoundTrip(t *testing.T) {
	stubKeyring(t)
	k := NewKeyring()

	key, err := k.SetKey()
	if err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key length = %d, want 32", len(key))
	}

	got, err := k.GetKey()
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Error("retrieved key differs from stored key")
	}

	if err := k.DeleteKey(); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}
	if _, err := k.GetKey(); err == nil {
		t.Error("GetKey succeeded after delete")
	}
}

func TestGetKeyRejectsCorruptEntry(t *testing.T) {
	store := stubKeyring(t)
	k := NewKeyring()
	store[k.AppName+"/"+k.KeyField] = "not hex!"
	if _, err := k.GetKey(); err == nil {
		t.Error("want error for non-hex stored key")
	}
}

func TestSetKeyRandFailure(t *testing.T) {
	stubKeyring(t)
	orig := randRead
	randRead = func([]byte) (int, error) { return 0, errors.New("entropy exhausted") }
	t.Cleanup(func() { randRead = orig })
	if _, err := NewKeyring().SetKey(); err == nil {
		t.Error("want error when random source fails")
	}
}

func TestStoredFormatIsHex(t *testing.T) {
	store := stubKeyring(t)
	k := NewKeyring()
	key, err := k.SetKey()
	if err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	stored := store[k.AppName+"/"+k.KeyField]
	decoded, err := hex.DecodeString(stored)
	if err != nil || !bytes.Equal(decoded, key) {
		t.Errorf("stored entry is not the hex of the key: %q", stored)
	}
}
