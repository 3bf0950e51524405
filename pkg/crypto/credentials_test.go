package crypto

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, err := NewCredentialEncryptor("a passphrase")
	if err != nil {
		t.Fatalf("NewCredentialEncryptor: %v", err)
	}

	plaintext := `{"host":"db.internal","password":"s3cret!@#"}`
	sealed, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := enc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != plaintext {
		t.Errorf("round trip: got %q, want %q", got, plaintext)
	}
}

func TestEncrypt_NonDeterministicNonce(t *testing.T) {
	enc, _ := NewCredentialEncryptor("key")

	a, _ := enc.Encrypt("same input")
	b, _ := enc.Encrypt("same input")
	if a == b {
		t.Error("two encryptions of the same plaintext are identical")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc1, _ := NewCredentialEncryptor("key one")
	enc2, _ := NewCredentialEncryptor("key two")

	sealed, _ := enc1.Encrypt("secret")
	if _, err := enc2.Decrypt(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("err = %v, want ErrDecryptionFailed", err)
	}
}

func TestDecrypt_Garbage(t *testing.T) {
	enc, _ := NewCredentialEncryptor("key")

	for _, bad := range []string{"not base64 !!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := enc.Decrypt(bad); !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("Decrypt(%q) err = %v, want ErrDecryptionFailed", bad, err)
		}
	}
}

func TestNewCredentialEncryptor_Base64Key(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	key := base64.StdEncoding.EncodeToString(raw)

	enc, err := NewCredentialEncryptor(key)
	if err != nil {
		t.Fatalf("base64 key rejected: %v", err)
	}

	sealed, _ := enc.Encrypt("x")
	if got, err := enc.Decrypt(sealed); err != nil || got != "x" {
		t.Errorf("round trip with base64 key: (%q, %v)", got, err)
	}
}

func TestNewCredentialEncryptor_EmptyKey(t *testing.T) {
	if _, err := NewCredentialEncryptor(""); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
}

func TestEmptyStringsPassThrough(t *testing.T) {
	enc, _ := NewCredentialEncryptor("key")

	if sealed, err := enc.Encrypt(""); sealed != "" || err != nil {
		t.Errorf("Encrypt(\"\") = (%q, %v)", sealed, err)
	}
	if plain, err := enc.Decrypt(""); plain != "" || err != nil {
		t.Errorf("Decrypt(\"\") = (%q, %v)", plain, err)
	}
}
