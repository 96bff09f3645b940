// Package secretstore manages the symmetric secret used to protect the token
// cache. The secret is an age X25519 identity generated on first use and kept
// in a key file next to the cache. Losing the key file makes earlier caches
// unreadable, which only means the user has to log in again.
package secretstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"filippo.io/age"

	"github.com/mudamudi/mmdesk/internal/fileutil"
	deskerr "github.com/mudamudi/mmdesk/pkg/errors"
)

// keyFilePermissions is the permission mode for the key file.
const keyFilePermissions = 0o600

// maxKeyFileSize bounds how much of the key file is read.
const maxKeyFileSize = 4 << 10

// Store encrypts and decrypts opaque blobs with a persisted age identity.
type Store struct {
	path     string
	identity *age.X25519Identity
}

// Open loads the identity stored at path, creating and persisting a new one
// when none exists. Calling Open again with the same path returns a Store with
// the same key. A key file that cannot be parsed is replaced.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fileutil.ErrEmptyPath
	}

	identity, err := readIdentity(path)
	switch {
	case err == nil:
		return &Store{path: path, identity: identity}, nil
	case errors.Is(err, fs.ErrNotExist):
		identity, err = createIdentity(path)
		if err != nil {
			return nil, err
		}
		return &Store{path: path, identity: identity}, nil
	case errors.Is(err, errBadKeyFile):
		identity, err = replaceIdentity(path)
		if err != nil {
			return nil, err
		}
		return &Store{path: path, identity: identity}, nil
	default:
		return nil, err
	}
}

// Path returns the key file location.
func (s *Store) Path() string {
	return s.path
}

// Recipient returns the public half of the key, safe to display.
func (s *Store) Recipient() string {
	return s.identity.Recipient().String()
}

// Encrypt encrypts plaintext to the store's key.
func (s *Store) Encrypt(plaintext []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := age.Encrypt(buf, s.identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("initializing encryption: %w", err)
	}

	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing encrypted data: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}

	return buf.Bytes(), nil
}

// Decrypt reverses Encrypt. Any header, MAC, or key mismatch yields an error
// matching errors.ErrDecryptionFailed.
func (s *Store) Decrypt(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return nil, deskerr.WithCause(deskerr.ErrDecryptionFailed, err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, deskerr.WithCause(deskerr.ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

var errBadKeyFile = errors.New("key file is not a valid age identity")

func readIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path) //nolint:gosec // G304: key path comes from config
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadKeyFile, err)
	}
	return identity, nil
}

func createIdentity(path string) (*age.X25519Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	err = fileutil.WriteExclusive(path, []byte(identity.String()+"\n"), keyFilePermissions)
	if errors.Is(err, fs.ErrExist) {
		// Someone else created it between our read and write; use theirs.
		return readIdentity(path)
	}
	if err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}

	return identity, nil
}

func replaceIdentity(path string) (*age.X25519Identity, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	if err := fileutil.WriteAtomic(path, []byte(identity.String()+"\n"), keyFilePermissions); err != nil {
		return nil, fmt.Errorf("replacing key file: %w", err)
	}

	return identity, nil
}
