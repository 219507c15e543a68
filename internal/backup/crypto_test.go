package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
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

	if !bytes.Equal(DeriveKey("p", salt), DeriveKey("p", salt)) {
		t.Error("same passphrase+salt should produce same key")
	}
	if bytes.Equal(DeriveKey("p1", salt), DeriveKey("p2", salt)) {
		t.Error("different passphrases should produce different keys")
	}
	if n := len(DeriveKey("p", salt)); n != keySize {
		t.Errorf("key length = %d, want %d", n, keySize)
	}
}

func TestSealOpen(t *testing.T) {
	plain := []byte("ledger snapshot")

	sealed, err := Seal(plain, "correct horse")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Error("sealed output contains plaintext")
	}

	got, err := Open(sealed, "correct horse")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("open = %q, want %q", got, plain)
	}

	if _, err := Open(sealed, "wrong"); err == nil {
		t.Error("wrong passphrase should fail")
	}

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff
	if _, err := Open(tampered, "correct horse"); err == nil {
		t.Error("tampered ciphertext should fail")
	}

	if _, err := Open([]byte("short"), "x"); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("short input err = %v, want ErrCiphertextTooShort", err)
	}
}

func TestEncryptDecryptFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ybg.db")
	enc := filepath.Join(dir, "ybg.db.enc")
	dec := filepath.Join(dir, "restored.db")

	if err := os.WriteFile(src, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if err := EncryptFile(src, enc, "pass"); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if err := DecryptFile(enc, dec, "pass"); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	got, err := os.ReadFile(dec)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("decrypted %d bytes, want 0", len(got))
	}
}
