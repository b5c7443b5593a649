package crypto

import (
	"errors"
	"strings"
	"testing"
)

func newTestVault(t *testing.T, key string) *Vault {
	t.Helper()
	v, err := NewVault([]byte(key))
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	return v
}

func TestVaultRoundTrip(t *testing.T) {
	v := newTestVault(t, "test-master-key")

	secrets := []string{"hunter2", "p@ss with spaces", "密码", "x"}
	for _, secret := range secrets {
		sealed, err := v.Encrypt(secret)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", secret, err)
		}
		if !v.IsEncrypted(sealed) {
			t.Errorf("sealed value should carry the marker: %q", sealed)
		}
		// A secret of a character or two can show up in the base64
		// ciphertext by coincidence.
		if len(secret) >= 4 && strings.Contains(sealed, secret) {
			t.Errorf("ciphertext must not contain the plaintext: %q", sealed)
		}
		plain, err := v.Decrypt(sealed)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if plain != secret {
			t.Errorf("round trip: got %q, want %q", plain, secret)
		}
	}
}

func TestVaultEncryptEmpty(t *testing.T) {
	v := newTestVault(t, "test-master-key")
	if _, err := v.Encrypt(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("empty secret: got %v, want ErrEmptySecret", err)
	}
}

func TestVaultDecryptLegacyPlaintext(t *testing.T) {
	v := newTestVault(t, "test-master-key")

	for _, legacy := range []string{"plainpassword", "", "not-a-ciphertext"} {
		if v.IsEncrypted(legacy) {
			t.Errorf("IsEncrypted(%q) should be false", legacy)
		}
		if _, err := v.Decrypt(legacy); !errors.Is(err, ErrNotEncrypted) {
			t.Errorf("Decrypt(%q): got %v, want ErrNotEncrypted", legacy, err)
		}
	}
}

func TestVaultWrongKey(t *testing.T) {
	v1 := newTestVault(t, "key-one")
	v2 := newTestVault(t, "key-two")

	sealed, err := v1.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := v2.Decrypt(sealed); err == nil {
		t.Error("decrypt under a different master key must fail")
	}
}

func TestVaultCorruptCiphertext(t *testing.T) {
	v := newTestVault(t, "test-master-key")
	if _, err := v.Decrypt("arv1:%%%"); err == nil {
		t.Error("malformed base64 must fail")
	}
	if _, err := v.Decrypt("arv1:aaaa"); err == nil {
		t.Error("truncated ciphertext must fail")
	}
}

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	k2, _ := GenerateKey()
	if k1 == k2 {
		t.Error("generated keys should differ")
	}
}
