// Package crypto implements the IntegrationConfig secret vault
// (SPEC_FULL.md §C.3): per-user destination credentials are never stored
// in plaintext, only as an HKDF-derived-key AES-256-GCM sealed blob.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Vault seals/opens IntegrationConfig secret material against one
// deployment-wide master secret (spec §6: "Secrets.IntegrationMasterSecret").
type Vault struct {
	master []byte
}

func NewVault(masterSecret []byte) *Vault {
	return &Vault{master: masterSecret}
}

// Seal derives a per-(user,destination) key via HKDF-SHA256 from the
// master secret and the tuple as salt/info, then AES-256-GCM-encrypts the
// given credentials payload.
func (v *Vault) Seal(userID, destination string, credentials any) ([]byte, error) {
	plain, err := json.Marshal(credentials)
	if err != nil {
		return nil, fmt.Errorf("crypto: marshal credentials: %w", err)
	}

	gcm, err := v.gcmFor(userID, destination)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

// Open reverses Seal, unmarshaling the decrypted payload into out.
func (v *Vault) Open(userID, destination string, blob []byte, out any) error {
	gcm, err := v.gcmFor(userID, destination)
	if err != nil {
		return err
	}
	if len(blob) < gcm.NonceSize() {
		return fmt.Errorf("crypto: sealed blob too short")
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("crypto: open sealed blob: %w", err)
	}
	return json.Unmarshal(plain, out)
}

func (v *Vault) gcmFor(userID, destination string) (cipher.AEAD, error) {
	salt := []byte(userID + "/" + destination)
	kdf := hkdf.New(sha256.New, v.master, salt, []byte("rmirror-cloud/integration-config/v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
