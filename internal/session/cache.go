package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/mudamudi/mmdesk/internal/config"
	"github.com/mudamudi/mmdesk/internal/fileutil"
	"github.com/mudamudi/mmdesk/internal/metrics"
	"github.com/mudamudi/mmdesk/internal/secretstore"
)

const (
	// cacheFilePermissions is the permission mode for the token cache.
	cacheFilePermissions = 0o600

	// DefaultMaxAge is how long a persisted session is honoured.
	DefaultMaxAge = 6 * 24 * time.Hour
)

// Cipher encrypts and decrypts the cache payload.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// record is the plaintext layout of the token cache.
type record struct {
	AccessToken     string      `json:"access_token"`
	RefreshToken    string      `json:"refresh_token"`
	User            *User       `json:"user"`
	Permissions     Permissions `json:"permissions"`
	AccessibleAreas Areas       `json:"accessible_areas"`
	SavedAt         time.Time   `json:"saved_at"`
}

// TokenCache persists a Session to a single encrypted file.
type TokenCache struct {
	path    string
	cipher  Cipher
	maxAge  time.Duration
	logger  *config.Logger
	metrics *metrics.Metrics
}

// CacheOption configures a TokenCache.
type CacheOption func(*TokenCache)

// WithMaxAge overrides the retention window.
func WithMaxAge(d time.Duration) CacheOption {
	return func(c *TokenCache) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// WithCacheLogger sets the logger used to report purged caches.
func WithCacheLogger(l *config.Logger) CacheOption {
	return func(c *TokenCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCacheMetrics sets the metrics sink.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *TokenCache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewTokenCache creates a cache stored at path and protected by cipher.
func NewTokenCache(path string, cipher Cipher, opts ...CacheOption) *TokenCache {
	c := &TokenCache{
		path:    path,
		cipher:  cipher,
		maxAge:  DefaultMaxAge,
		logger:  config.NullLogger(),
		metrics: metrics.Global,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the cache file location.
func (c *TokenCache) Path() string {
	return c.path
}

// MaxAge returns the retention window.
func (c *TokenCache) MaxAge() time.Duration {
	return c.maxAge
}

// Save writes s with now as its save time, replacing any previous cache.
// A session without both tokens is not written.
func (c *TokenCache) Save(s Session, now time.Time) error {
	if !s.Authenticated() {
		return nil
	}

	data, err := json.Marshal(record{
		AccessToken:     s.AccessToken,
		RefreshToken:    s.RefreshToken,
		User:            s.User,
		Permissions:     s.Permissions,
		AccessibleAreas: s.AccessibleAreas,
		SavedAt:         now.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling token cache: %w", err)
	}

	pt := secretstore.Protect(data)
	defer pt.Wipe()

	ciphertext, err := c.cipher.Encrypt(pt.Bytes())
	if err != nil {
		return fmt.Errorf("encrypting token cache: %w", err)
	}

	if err := fileutil.WriteAtomic(c.path, ciphertext, cacheFilePermissions); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}

	return nil
}

// Load returns the cached session if one exists, can be decrypted, and is not
// older than the retention window. Any other cache file is deleted.
func (c *TokenCache) Load(now time.Time) (Session, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.metrics.RecordCacheMiss()
			return Session{}, false
		}
		c.purge("unreadable", err)
		return Session{}, false
	}

	plaintext, err := c.cipher.Decrypt(data)
	if err != nil {
		c.purge("undecryptable", err)
		return Session{}, false
	}

	pt := secretstore.Protect(plaintext)
	defer pt.Wipe()

	var rec record
	if err := json.Unmarshal(pt.Bytes(), &rec); err != nil {
		c.purge("unparseable", err)
		return Session{}, false
	}

	if rec.SavedAt.IsZero() {
		c.purge("missing saved_at", nil)
		return Session{}, false
	}

	if now.Sub(rec.SavedAt) > c.maxAge {
		c.purge("expired", fmt.Errorf("saved %s ago", now.Sub(rec.SavedAt).Round(time.Second)))
		return Session{}, false
	}

	s := Session{
		AccessToken:     rec.AccessToken,
		RefreshToken:    rec.RefreshToken,
		User:            rec.User,
		Permissions:     rec.Permissions,
		AccessibleAreas: rec.AccessibleAreas,
	}
	if !s.Authenticated() {
		c.purge("incomplete token pair", nil)
		return Session{}, false
	}

	c.metrics.RecordCacheHit()
	return s, true
}

// Clear removes the cache file. Clearing an absent cache is not an error.
func (c *TokenCache) Clear() error {
	return fileutil.RemoveIfExists(c.path)
}

func (c *TokenCache) purge(reason string, cause error) {
	c.metrics.RecordCachePurge()
	if cause != nil {
		c.logger.Debug("discarding token cache (%s): %v", reason, cause)
	} else {
		c.logger.Debug("discarding token cache (%s)", reason)
	}
	if err := c.Clear(); err != nil {
		c.logger.Error("removing token cache: %v", err)
	}
}
