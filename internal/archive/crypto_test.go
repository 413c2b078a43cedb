package archive

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, _ := GenerateSalt()
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)
	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
	if bytes.Equal(key1, DeriveKey("other", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestSealOpen(t *testing.T) {
	original := []byte(`{"user":"kid","balance":120}`)

	sealed, err := Seal(original, "pass-123")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, original) {
		t.Error("sealed data should not contain the plaintext")
	}

	again, _ := Seal(original, "pass-123")
	if bytes.Equal(sealed, again) {
		t.Error("sealing twice should use a fresh salt and nonce")
	}

	got, err := Open(sealed, "pass-123")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("open = %q, want %q", got, original)
	}
}

func TestOpenFailures(t *testing.T) {
	sealed, err := Seal([]byte("secret data"), "password")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := Open(sealed, "wrong-password"); err == nil {
		t.Error("expected error with wrong passphrase")
	}

	tampered := append([]byte(nil), sealed...)
	tampered[saltSize+nonceSize+1] ^= 0xFF
	if _, err := Open(tampered, "password"); err == nil {
		t.Error("expected error with tampered ciphertext")
	}

	if _, err := Open([]byte("too short"), "password"); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("short input: err = %v, want ErrCiphertextTooShort", err)
	}
}

func TestSealEmpty(t *testing.T) {
	sealed, err := Seal(nil, "password")
	if err != nil {
		t.Fatalf("seal empty: %v", err)
	}
	got, err := Open(sealed, "password")
	if err != nil {
		t.Fatalf("open empty: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty plaintext, got %d bytes", len(got))
	}
}
