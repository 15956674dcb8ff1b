package hipaa

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

const testPassphrase = "unit-test-encryption-passphrase"

// --- NewEncryptionService ---------------------------------------------------

func TestNewEncryptionService_WithPassphrase(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	svc, err := NewEncryptionService(testPassphrase, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc == nil {
		t.Fatal("expected non-nil service")
	}
	if !svc.IsEnabled() {
		t.Fatal("expected encryption to be enabled with a passphrase")
	}
	if svc.Encryptor() == nil {
		t.Fatal("expected non-nil encryptor when enabled")
	}
}

func TestNewEncryptionService_EmptyPassphrase(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	svc, err := NewEncryptionService("", logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc == nil {
		t.Fatal("expected non-nil service")
	}
	if svc.IsEnabled() {
		t.Fatal("expected encryption to be disabled with empty passphrase")
	}
	if svc.Encryptor() != nil {
		t.Fatal("expected nil encryptor when disabled")
	}
}

// --- Key derivation -----------------------------------------------------------

func TestDeriveKey_Deterministic(t *testing.T) {
	k1 := DeriveKey("some-passphrase")
	k2 := DeriveKey("some-passphrase")

	if len(k1) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(k1))
	}
	if string(k1) != string(k2) {
		t.Error("expected the same passphrase to derive the same key")
	}
}

func TestDeriveKey_DifferentPassphrases(t *testing.T) {
	k1 := DeriveKey("passphrase-one")
	k2 := DeriveKey("passphrase-two")

	if string(k1) == string(k2) {
		t.Error("expected different passphrases to derive different keys")
	}
}

// --- EncryptField / DecryptField round-trip ---------------------------------

func TestEncryptDecryptField_RoundTrip(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	svc, err := NewEncryptionService(testPassphrase, logger)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	cases := []string{
		"Generalized anxiety disorder (GAD)",
		"patient@example.com",
		"+1 (555) 867-5309",
		"Sertraline 50mg daily",
		"",
	}

	for _, original := range cases {
		t.Run(original, func(t *testing.T) {
			encrypted, err := svc.EncryptField(original)
			if err != nil {
				t.Fatalf("encrypt: %v", err)
			}

			if original != "" && encrypted == original {
				t.Error("encrypted value should differ from original")
			}

			decrypted, err := svc.DecryptField(encrypted)
			if err != nil {
				t.Fatalf("decrypt: %v", err)
			}

			if decrypted != original {
				t.Errorf("round-trip failed: got %q, want %q", decrypted, original)
			}
		})
	}
}

func TestEncryptField_ProducesDifferentCiphertexts(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	svc, err := NewEncryptionService(testPassphrase, logger)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	value := "Jane prefers morning sessions"
	ct1, _ := svc.EncryptField(value)
	ct2, _ := svc.EncryptField(value)

	if ct1 == ct2 {
		t.Error("encrypting the same value twice should produce different ciphertexts (unique nonces)")
	}
}

// --- Disabled mode ----------------------------------------------------------

func TestDisabledMode_ReturnsValuesUnchanged(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	svc, err := NewEncryptionService("", logger)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	values := []string{
		"Diagnosis: PTSD",
		"patient@example.com",
		"+1 555 867 5309",
		"",
	}

	for _, v := range values {
		encrypted, err := svc.EncryptField(v)
		if err != nil {
			t.Fatalf("encrypt disabled: %v", err)
		}
		if encrypted != v {
			t.Errorf("disabled encrypt: got %q, want %q", encrypted, v)
		}

		decrypted, err := svc.DecryptField(v)
		if err != nil {
			t.Fatalf("decrypt disabled: %v", err)
		}
		if decrypted != v {
			t.Errorf("disabled decrypt: got %q, want %q", decrypted, v)
		}
	}
}

// --- IsEnabled --------------------------------------------------------------

func TestIsEnabled_Enabled(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	svc, _ := NewEncryptionService(testPassphrase, logger)
	if !svc.IsEnabled() {
		t.Error("expected IsEnabled() == true with passphrase set")
	}
}

func TestIsEnabled_Disabled(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	svc, _ := NewEncryptionService("", logger)
	if svc.IsEnabled() {
		t.Error("expected IsEnabled() == false with empty passphrase")
	}
}

// --- Key rotation -------------------------------------------------------------

func TestEncryptionService_DecryptsAfterKeyRotation(t *testing.T) {
	logger := zerolog.New(os.Stderr)

	before, err := NewEncryptionService("retired-passphrase", logger)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	ciphertext, err := before.EncryptField("Sertraline 50mg daily")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	after, err := NewEncryptionService(testPassphrase, logger, "retired-passphrase")
	if err != nil {
		t.Fatalf("create rotated service: %v", err)
	}

	decrypted, err := after.DecryptField(ciphertext)
	if err != nil {
		t.Fatalf("decrypt after rotation: %v", err)
	}
	if decrypted != "Sertraline 50mg daily" {
		t.Errorf("rotation roundtrip: got %q", decrypted)
	}
}
