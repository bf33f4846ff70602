package config

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/ssh"
)

// writeTestSSHKey writes a fresh ed25519 private key to dir, optionally
// protected by a passphrase, and returns its path.
func writeTestSSHKey(t *testing.T, dir, passphrase string) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	if err != nil {
		t.Fatalf("key marshal failed: %v", err)
	}

	path := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("key write failed: %v", err)
	}
	return path
}

func TestPlainTextCredentialsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	store := NewCredentialStore(SecurityPlainText, "")
	store.Set("anthropic", "sk-test-123")
	store.Set("gateway", "gw-key")

	if err := store.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The credentials file must be user-only readable
	info, err := os.Stat(credentialsPath(dir))
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credentials file mode = %o, want 0600", perm)
	}

	loaded := NewCredentialStore(SecurityPlainText, "")
	if err := loaded.Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := loaded.Get("anthropic"); got != "sk-test-123" {
		t.Errorf("Get(anthropic) = %q", got)
	}
	if got := loaded.Get("gateway"); got != "gw-key" {
		t.Errorf("Get(gateway) = %q", got)
	}
	if got := loaded.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q, want empty", got)
	}
}

func TestLoadMissingCredentialsFile(t *testing.T) {
	store := NewCredentialStore(SecurityPlainText, "")

	if err := store.Load(t.TempDir()); err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if got := store.Get("anything"); got != "" {
		t.Errorf("Get = %q, want empty", got)
	}
}

func TestDeleteCredential(t *testing.T) {
	store := NewCredentialStore(SecurityPlainText, "")
	store.Set("anthropic", "sk-test")

	if err := store.Delete("anthropic"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if got := store.Get("anthropic"); got != "" {
		t.Errorf("credential survived delete: %q", got)
	}
}

func TestUnknownSecurityMethod(t *testing.T) {
	store := NewCredentialStore(SecurityMethod("vault"), "")

	if err := store.Load(t.TempDir()); err == nil {
		t.Error("expected error for unknown method on Load")
	}
	if err := store.Save(t.TempDir()); err == nil {
		t.Error("expected error for unknown method on Save")
	}
}

func TestSSHEncryptedCredentialsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeTestSSHKey(t, dir, "")

	store := NewCredentialStore(SecuritySSHKey, keyPath)
	store.Set("anthropic", "sk-test-123")
	if err := store.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The on-disk file must be ciphertext, not the key material
	data, err := os.ReadFile(encryptedCredentialsPath(dir))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(data) == 0 || bytes.Contains(data, []byte("sk-test-123")) {
		t.Error("credentials stored unencrypted")
	}

	loaded := NewCredentialStore(SecuritySSHKey, keyPath)
	if err := loaded.Load(dir); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := loaded.Get("anthropic"); got != "sk-test-123" {
		t.Errorf("Get(anthropic) = %q", got)
	}
}

func TestEncryptedSSHKeyRequiresPassphrase(t *testing.T) {
	dir := t.TempDir()
	keyPath := writeTestSSHKey(t, dir, "hunter2")

	encrypted, err := IsSSHKeyEncrypted(keyPath)
	if err != nil {
		t.Fatalf("IsSSHKeyEncrypted failed: %v", err)
	}
	if !encrypted {
		t.Fatal("key should report as encrypted")
	}

	writer := NewCredentialStore(SecuritySSHKey, keyPath)
	writer.SetPassphrase("hunter2")
	writer.Set("anthropic", "sk-test-123")
	if err := writer.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Without the passphrase the load must fail with the sentinel the
	// startup prompt keys off of
	reader := NewCredentialStore(SecuritySSHKey, keyPath)
	if err := reader.Load(dir); !errors.Is(err, ErrPassphraseRequired) {
		t.Fatalf("Load error = %v, want ErrPassphraseRequired", err)
	}

	reader.SetPassphrase("wrong")
	if err := reader.Load(dir); err == nil {
		t.Fatal("expected error with wrong passphrase")
	}

	reader.SetPassphrase("hunter2")
	if err := reader.Load(dir); err != nil {
		t.Fatalf("Load with passphrase failed: %v", err)
	}
	if got := reader.Get("anthropic"); got != "sk-test-123" {
		t.Errorf("Get(anthropic) = %q", got)
	}
}

func TestEncryptDecryptAESGCM(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	plaintext := []byte(`{"anthropic":"sk-test"}`)

	ciphertext, err := encryptAESGCM(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if string(ciphertext) == string(plaintext) {
		t.Error("ciphertext equals plaintext")
	}

	decrypted, err := decryptAESGCM(ciphertext, key)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(decrypted) != string(plaintext) {
		t.Errorf("roundtrip = %q, want %q", decrypted, plaintext)
	}

	// Tampering must fail authentication
	ciphertext[len(ciphertext)-1] ^= 0xff
	if _, err := decryptAESGCM(ciphertext, key); err == nil {
		t.Error("expected authentication failure on tampered ciphertext")
	}

	// Truncated input
	if _, err := decryptAESGCM(ciphertext[:4], key); err == nil {
		t.Error("expected error on short ciphertext")
	}
}
