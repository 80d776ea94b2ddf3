package crypto

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	const secret = "PKSECRETxyz123/abc=="
	const password = "hunter2"

	blob, err := EncryptSecret(secret, password)
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}

	// The blob must be valid JSON with a schema version.
	var stored encryptedSecretJSON
	if err := json.Unmarshal(blob, &stored); err != nil {
		t.Fatalf("encrypted blob is not valid JSON: %v", err)
	}
	if stored.Version != currentVersion {
		t.Errorf("version = %d, want %d", stored.Version, currentVersion)
	}
	if strings.Contains(string(blob), secret) {
		t.Error("plaintext secret leaked into the encrypted blob")
	}

	got, err := DecryptSecret(blob, password)
	if err != nil {
		t.Fatalf("DecryptSecret: %v", err)
	}
	if got != secret {
		t.Errorf("round trip mismatch: got %q, want %q", got, secret)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptSecret("topsecret", "correct")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptSecret(blob, "incorrect"); err == nil {
		t.Error("expected decryption failure with wrong password")
	}
}

func TestEncryptRejectsEmptyInputs(t *testing.T) {
	if _, err := EncryptSecret("", "pw"); err == nil {
		t.Error("expected error for empty secret")
	}
	if _, err := EncryptSecret("secret", ""); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestEncryptionIsSalted(t *testing.T) {
	a, err := EncryptSecret("same-secret", "same-password")
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncryptSecret("same-secret", "same-password")
	if err != nil {
		t.Fatal(err)
	}
	if string(a) == string(b) {
		t.Error("two encryptions of the same secret produced identical blobs")
	}
}

func TestLoadSecret(t *testing.T) {
	t.Run("raw secret wins", func(t *testing.T) {
		got, err := LoadSecret(SecretConfig{RawSecret: "raw-value", EncryptedSecretPath: "/nonexistent"})
		if err != nil {
			t.Fatalf("LoadSecret: %v", err)
		}
		if got != "raw-value" {
			t.Errorf("got %q, want raw-value", got)
		}
	})

	t.Run("encrypted file", func(t *testing.T) {
		blob, err := EncryptSecret("from-file", "pw")
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(t.TempDir(), "secret.enc.json")
		if err := os.WriteFile(path, blob, 0o600); err != nil {
			t.Fatal(err)
		}

		got, err := LoadSecret(SecretConfig{EncryptedSecretPath: path, SecretPassword: "pw"})
		if err != nil {
			t.Fatalf("LoadSecret: %v", err)
		}
		if got != "from-file" {
			t.Errorf("got %q, want from-file", got)
		}
	})

	t.Run("no source", func(t *testing.T) {
		if _, err := LoadSecret(SecretConfig{}); err == nil {
			t.Error("expected error when no secret source is configured")
		}
	})
}
