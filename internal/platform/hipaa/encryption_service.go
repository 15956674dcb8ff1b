package hipaa

import (
	"fmt"

	"github.com/rs/zerolog"
)

// EncryptionService provides field-level PHI encryption for the application.
// It wraps a FieldEncryptor and adds a disabled mode for development environments
// where no encryption passphrase is configured.
type EncryptionService struct {
	encryptor FieldEncryptor
	enabled   bool
}

// NewEncryptionService creates a new encryption service.
//
// If passphrase is empty, encryption is disabled (development mode) and a
// warning is logged. All Encrypt/Decrypt calls become no-ops that return the
// value as-is.
//
// If passphrase is non-empty, a 32-byte AES-256 key is derived from it via
// PBKDF2 and field encryption is active. Any previous passphrases are kept
// for decrypting records written before a key rotation; new writes always
// use the current passphrase.
func NewEncryptionService(passphrase string, logger zerolog.Logger, previous ...string) (*EncryptionService, error) {
	if passphrase == "" {
		logger.Warn().Msg("PHI encryption disabled: PATIENT_DATA_ENCRYPTION_KEY is not set")
		return &EncryptionService{
			encryptor: nil,
			enabled:   false,
		}, nil
	}

	var enc FieldEncryptor
	var err error
	if len(previous) > 0 {
		enc, err = NewRotatingEncryptorFromPassphrases(passphrase, previous...)
	} else {
		enc, err = NewPHIEncryptor(DeriveKey(passphrase))
	}
	if err != nil {
		return nil, fmt.Errorf("create PHI encryptor: %w", err)
	}

	logger.Info().Int("previous_keys", len(previous)).Msg("PHI field-level encryption enabled")
	return &EncryptionService{
		encryptor: enc,
		enabled:   true,
	}, nil
}

// Encryptor returns the underlying FieldEncryptor, or nil if encryption is
// disabled. This is useful for passing the encryptor to repositories that
// accept an optional FieldEncryptor.
func (s *EncryptionService) Encryptor() FieldEncryptor {
	return s.encryptor
}

// EncryptField encrypts a single PHI field value. Returns the original value
// unchanged if encryption is disabled.
func (s *EncryptionService) EncryptField(value string) (string, error) {
	if !s.enabled {
		return value, nil
	}
	return s.encryptor.Encrypt(value)
}

// DecryptField decrypts a single PHI field value. Returns the original value
// unchanged if encryption is disabled.
func (s *EncryptionService) DecryptField(value string) (string, error) {
	if !s.enabled {
		return value, nil
	}
	return s.encryptor.Decrypt(value)
}

// IsEnabled returns true if encryption is active.
func (s *EncryptionService) IsEnabled() bool {
	return s.enabled
}
