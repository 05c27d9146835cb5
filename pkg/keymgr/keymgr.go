// Package keymgr stores the executor's ed25519 signing identity encrypted at
// rest. The 32-byte seed is sealed with AES-256-GCM; the data key lives in
// the OS keyring, or is derived from an operator passphrase with argon2id
// when no keyring is available (headless hosts, containers).
package keymgr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"

	"github.com/crankd/crankd/pkg/cranklib"
	"github.com/crankd/crankd/pkg/keymgr/keyring"
)

// KeypairFile is the file name under the config directory.
const KeypairFile = "keypair.bin"

// File layout: magic, key-source byte, then for passphrase files the argon2
// salt, then the gcm1 frame (nonce + ciphertext of the seed).
const (
	fileMagic = "ckey1"
	gcmPrefix = "gcm1"

	sourceKeyring    byte = 0
	sourcePassphrase byte = 1

	saltSize = 16
)

// argon2id parameters. Changing them breaks existing passphrase files, so
// they are fixed rather than configurable.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var (
	// ErrNoKeypair is returned by Load when no keypair file exists.
	ErrNoKeypair = errors.New("no keypair found")

	// ErrPassphraseRequired is returned by Load for passphrase-protected
	// files opened without one.
	ErrPassphraseRequired = errors.New("keypair requires a passphrase")
)

// dataKeyStore is the slice of keyring.Keyring the store uses.
type dataKeyStore interface {
	SetKey() ([]byte, error)
	GetKey() ([]byte, error)
	DeleteKey() error
}

// Store reads and writes the encrypted keypair file.
type Store struct {
	path string
	ring dataKeyStore
}

// NewStore returns a store for configDir/keypair.bin.
func NewStore(configDir string) *Store {
	return &Store{
		path: filepath.Join(configDir, KeypairFile),
		ring: keyring.NewKeyring(),
	}
}

// Path returns the keypair file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a keypair file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save seals kp's seed and writes the keypair file with 0600 permissions.
// With an empty passphrase the data key is kept in the OS keyring; otherwise
// it is derived from the passphrase and never stored anywhere.
func (s *Store) Save(kp *cranklib.Keypair, passphrase string) error {
	var (
		out  []byte
		key  []byte
		salt []byte
		err  error
	)
	out = append(out, fileMagic...)
	if passphrase == "" {
		key, err = s.ring.GetKey()
		if err != nil {
			key, err = s.ring.SetKey()
		}
		if err != nil {
			return fmt.Errorf("keymgr: obtaining data key: %w", err)
		}
		out = append(out, sourceKeyring)
	} else {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("keymgr: generating salt: %w", err)
		}
		key = deriveKey(passphrase, salt)
		out = append(out, sourcePassphrase)
		out = append(out, salt...)
	}
	sealed, err := seal(kp.Seed(), key)
	if err != nil {
		return fmt.Errorf("keymgr: sealing seed: %w", err)
	}
	out = append(out, sealed...)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("keymgr: %w", err)
	}
	if err := os.WriteFile(s.path, out, 0o600); err != nil {
		return fmt.Errorf("keymgr: writing %s: %w", s.path, err)
	}
	return nil
}

// Load opens the keypair file and rebuilds the signing keypair. passphrase
// is only consulted for passphrase-protected files.
func (s *Store) Load(passphrase string) (*cranklib.Keypair, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoKeypair
	}
	if err != nil {
		return nil, fmt.Errorf("keymgr: reading %s: %w", s.path, err)
	}
	if len(raw) < len(fileMagic)+1 || string(raw[:len(fileMagic)]) != fileMagic {
		return nil, fmt.Errorf("keymgr: %s is not a crankd keypair file", s.path)
	}
	source := raw[len(fileMagic)]
	body := raw[len(fileMagic)+1:]

	var key []byte
	switch source {
	case sourceKeyring:
		key, err = s.ring.GetKey()
		if err != nil {
			return nil, fmt.Errorf("keymgr: data key unavailable: %w", err)
		}
	case sourcePassphrase:
		if passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		if len(body) < saltSize {
			return nil, fmt.Errorf("keymgr: truncated keypair file")
		}
		key = deriveKey(passphrase, body[:saltSize])
		body = body[saltSize:]
	default:
		return nil, fmt.Errorf("keymgr: unknown key source %d", source)
	}

	seed, err := open(body, key)
	if err != nil {
		return nil, fmt.Errorf("keymgr: unsealing seed: %w", err)
	}
	return cranklib.KeypairFromSeed(seed)
}

// Delete removes the keypair file and, for keyring-backed files, the stored
// data key.
func (s *Store) Delete() error {
	raw, err := os.ReadFile(s.path)
	if err == nil && len(raw) > len(fileMagic) && raw[len(fileMagic)] == sourceKeyring {
		_ = s.ring.DeleteKey()
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, 32)
}

// seal encrypts plaintext into a gcm1 frame: prefix, nonce, ciphertext.
func seal(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(gcmPrefix)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, gcmPrefix...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// open decrypts a gcm1 frame produced by seal.
func open(frame, key []byte) ([]byte, error) {
	if len(frame) < len(gcmPrefix) || string(frame[:len(gcmPrefix)]) != gcmPrefix {
		return nil, errors.New("not a gcm1 frame")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	rest := frame[len(gcmPrefix):]
	if len(rest) < gcm.NonceSize() {
		return nil, errors.New("frame too short")
	}
	return gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], nil)
}
