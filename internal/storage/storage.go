// Package storage is a small best-effort key/value store for dashboard
// preferences. Each key is one JSON file under the base directory; files are
// written atomically and can be age-encrypted with a passphrase.
package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	// ageHeader is the prefix of age-encrypted files
	ageHeader = "age-encryption.org"

	// markerFile indicates encryption is enabled
	markerFile = ".encrypted"

	// verifyFile is used to validate the passphrase
	verifyFile = ".encryption-verify"

	verifyMagic = `{"magic":"salesdash-storage-verify","version":1}`

	fileExt = ".json"
)

// ErrLocked is returned when an encrypted store is used before Unlock
var ErrLocked = errors.New("storage is encrypted and locked")

// Store persists JSON values by key
type Store struct {
	baseDir   string
	logger    zerolog.Logger
	encrypted bool
	identity  *age.ScryptIdentity
	recipient *age.ScryptRecipient

	// scrypt work factor for new encryptions, 0 keeps the age default
	workFactor int

	mu sync.RWMutex
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used to report degraded operations
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New opens the store rooted at baseDir, creating the directory if needed
func New(baseDir string, opts ...Option) (*Store, error) {
	s := &Store{
		baseDir: baseDir,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	if _, err := os.Stat(filepath.Join(baseDir, markerFile)); err == nil {
		s.encrypted = true
	}

	return s, nil
}

// BaseDir returns the base directory
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Save stores v under key. It reports false, and logs, when the value could
// not be encoded or written.
func (s *Store) Save(key string, v any) bool {
	if err := s.Put(key, v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("storage save failed")
		return false
	}
	return true
}

// Load returns the decoded value stored under key, nil when the key is
// missing or its content cannot be read.
func (s *Store) Load(key string) any {
	var v any
	if !s.LoadInto(key, &v) {
		return nil
	}
	return v
}

// LoadInto decodes the value stored under key into dst
func (s *Store) LoadInto(key string, dst any) bool {
	err := s.Get(key, dst)
	if err == nil {
		return true
	}
	if !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().Err(err).Str("key", key).Msg("storage load failed")
	}
	return false
}

// Delete removes key. Removing a missing key is not an error.
func (s *Store) Delete(key string) {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().Err(err).Str("key", key).Msg("storage delete failed")
	}
}

// Put encodes v as JSON and writes it under key
func (s *Store) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	return s.writeFile(s.path(key), data)
}

// Get decodes the value stored under key into dst
func (s *Store) Get(key string, dst any) error {
	data, err := s.readFile(s.path(key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding %q: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys, sorted by file name
func (s *Store) Keys() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.baseDir, "*"+fileExt))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), fileExt)
		key, err := decodeKey(name)
		if err != nil {
			// not written by this store
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.baseDir, encodeKey(key)+fileExt)
}

// emptyKeyName never results from encoding a non-empty key
const emptyKeyName = "%"

// encodeKey maps a key onto a file name. Letters, digits, '-' and '_' are
// kept and every other byte becomes %XX, so distinct keys never share a file.
func encodeKey(key string) string {
	if key == "" {
		return emptyKeyName
	}
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isPlainKeyByte(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

// decodeKey reverses encodeKey
func decodeKey(name string) (string, error) {
	if name == emptyKeyName {
		return "", nil
	}
	for i := 0; i < len(name); i++ {
		if name[i] != '%' && !isPlainKeyByte(name[i]) {
			return "", fmt.Errorf("invalid key file name %q", name)
		}
	}
	return url.PathUnescape(name)
}

func isPlainKeyByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_'
}

func (s *Store) readFile(path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if isAgeEncrypted(data) {
		if s.identity == nil {
			return nil, ErrLocked
		}
		return decryptData(data, s.identity)
	}

	return data, nil
}

func (s *Store) writeFile(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encrypted {
		if s.recipient == nil {
			return ErrLocked
		}
		encrypted, err := encryptData(data, s.recipient)
		if err != nil {
			return fmt.Errorf("failed to encrypt: %w", err)
		}
		data = encrypted
	}

	return atomicWrite(path, data, 0600)
}

// atomicWrite writes to a unique temp file next to path and renames it over
// path, so concurrent writers never share a temp file
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// isAgeEncrypted checks if data starts with the age header
func isAgeEncrypted(data []byte) bool {
	return len(data) > len(ageHeader) && string(data[:len(ageHeader)]) == ageHeader
}
