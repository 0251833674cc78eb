package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// MinPassphraseLength is the shortest passphrase EnableEncryption accepts
const MinPassphraseLength = 8

// IsEncrypted returns true if the store is encrypted
func (s *Store) IsEncrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encrypted
}

// IsUnlocked returns true if the store is plain or has been unlocked
func (s *Store) IsUnlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.encrypted || s.identity != nil
}

// UsePassphrase unlocks an encrypted store, or encrypts a plain one
func (s *Store) UsePassphrase(passphrase string) error {
	if s.IsEncrypted() {
		return s.Unlock(passphrase)
	}
	return s.EnableEncryption(passphrase)
}

// Unlock verifies passphrase and keeps the key in memory
func (s *Store) Unlock(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return nil
	}

	identity, err := s.verify(passphrase)
	if err != nil {
		return err
	}

	recipient, err := s.newRecipient(passphrase)
	if err != nil {
		return err
	}

	s.identity = identity
	s.recipient = recipient
	return nil
}

// Lock clears the key from memory
func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	s.recipient = nil
}

// EnableEncryption encrypts every stored value with passphrase
func (s *Store) EnableEncryption(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encrypted {
		return fmt.Errorf("encryption is already enabled")
	}
	if len(passphrase) < MinPassphraseLength {
		return fmt.Errorf("passphrase must be at least %d characters", MinPassphraseLength)
	}

	recipient, err := s.newRecipient(passphrase)
	if err != nil {
		return err
	}
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	verifyPath := filepath.Join(s.baseDir, verifyFile)
	sealed, err := encryptData([]byte(verifyMagic), recipient)
	if err != nil {
		return fmt.Errorf("failed to encrypt verification file: %w", err)
	}
	if err := atomicWrite(verifyPath, sealed, 0600); err != nil {
		return fmt.Errorf("failed to write verification file: %w", err)
	}

	files, err := s.valueFiles()
	if err != nil {
		os.Remove(verifyPath)
		return err
	}

	var done []string
	for _, path := range files {
		if err := transformFile(path, func(data []byte) ([]byte, error) {
			if isAgeEncrypted(data) {
				return nil, nil
			}
			return encryptData(data, recipient)
		}); err != nil {
			s.rollback(done, identity)
			os.Remove(verifyPath)
			return fmt.Errorf("failed to encrypt %s: %w", filepath.Base(path), err)
		}
		done = append(done, path)
	}

	if err := os.WriteFile(filepath.Join(s.baseDir, markerFile), []byte("encrypted"), 0644); err != nil {
		return fmt.Errorf("failed to create marker file: %w", err)
	}

	s.encrypted = true
	s.identity = identity
	s.recipient = recipient
	return nil
}

// DisableEncryption decrypts every stored value (requires the current passphrase)
func (s *Store) DisableEncryption(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return fmt.Errorf("encryption is not enabled")
	}

	identity, err := s.verify(passphrase)
	if err != nil {
		return err
	}

	files, err := s.valueFiles()
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := transformFile(path, func(data []byte) ([]byte, error) {
			if !isAgeEncrypted(data) {
				return nil, nil
			}
			return decryptData(data, identity)
		}); err != nil {
			return fmt.Errorf("failed to decrypt %s: %w", filepath.Base(path), err)
		}
	}

	os.Remove(filepath.Join(s.baseDir, markerFile))
	os.Remove(filepath.Join(s.baseDir, verifyFile))

	s.encrypted = false
	s.identity = nil
	s.recipient = nil
	return nil
}

// verify checks passphrase against the verification file. Caller holds mu.
func (s *Store) verify(passphrase string) (*age.ScryptIdentity, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	sealed, err := os.ReadFile(filepath.Join(s.baseDir, verifyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read verification file: %w", err)
	}

	plain, err := decryptData(sealed, identity)
	if err != nil || string(plain) != verifyMagic {
		return nil, fmt.Errorf("incorrect passphrase")
	}
	return identity, nil
}

func (s *Store) newRecipient(passphrase string) (*age.ScryptRecipient, error) {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipient: %w", err)
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}
	return recipient, nil
}

func (s *Store) valueFiles() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.baseDir, "*"+fileExt))
	if err != nil {
		return nil, fmt.Errorf("failed to scan files: %w", err)
	}
	return files, nil
}

func (s *Store) rollback(files []string, identity *age.ScryptIdentity) {
	for _, path := range files {
		if err := transformFile(path, func(data []byte) ([]byte, error) {
			if !isAgeEncrypted(data) {
				return nil, nil
			}
			return decryptData(data, identity)
		}); err != nil {
			s.logger.Error().Err(err).Str("file", path).Msg("encryption rollback failed")
		}
	}
}

// transformFile rewrites path with fn's output; a nil result leaves it untouched
func transformFile(path string, fn func([]byte) ([]byte, error)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := fn(data)
	if err != nil || out == nil {
		return err
	}
	return atomicWrite(path, out, 0600)
}

func encryptData(data []byte, recipient *age.ScryptRecipient) ([]byte, error) {
	var buf bytes.Buffer

	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decryptData(data []byte, identity *age.ScryptIdentity) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
