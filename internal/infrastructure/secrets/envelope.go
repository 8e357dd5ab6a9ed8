package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// =====================================================
// ENVELOPE ENCRYPTION
// =====================================================
//
// Each record is sealed with a fresh data key derived from the master key
// via HKDF over a random salt. The stored envelope carries the key id and
// salt, never the master key, so rotation only requires re-wrapping.

// Envelope is the at-rest representation of an encrypted value.
type Envelope struct {
	KeyID      string `json:"key_id"`
	Salt       string `json:"salt"`       // hex, HKDF salt for the data key
	Ciphertext string `json:"ciphertext"` // hex, nonce || AES-256-GCM output
}

type EnvelopeEncryptor struct {
	masterKey []byte // 32 bytes
	keyID     string
}

// NewEnvelopeEncryptor builds an encryptor from a hex-encoded 32-byte
// master key.
func NewEnvelopeEncryptor(hexKey, keyID string) (*EnvelopeEncryptor, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding master key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}
	return &EnvelopeEncryptor{masterKey: key, keyID: keyID}, nil
}

func (e *EnvelopeEncryptor) deriveDataKey(salt []byte) ([]byte, error) {
	kdf := hkdf.New(sha256.New, e.masterKey, salt, []byte("refunds/data-key/v1"))
	dataKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, dataKey); err != nil {
		return nil, fmt.Errorf("deriving data key: %w", err)
	}
	return dataKey, nil
}

// Encrypt seals plaintext under a fresh data key.
func (e *EnvelopeEncryptor) Encrypt(plaintext []byte) (*Envelope, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	dataKey, err := e.deriveDataKey(salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := aesGCM.Seal(nonce, nonce, plaintext, nil)

	return &Envelope{
		KeyID:      e.keyID,
		Salt:       hex.EncodeToString(salt),
		Ciphertext: hex.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens an envelope produced by Encrypt.
func (e *EnvelopeEncryptor) Decrypt(env *Envelope) ([]byte, error) {
	if env.KeyID != e.keyID {
		return nil, fmt.Errorf("envelope sealed with key %q, have %q", env.KeyID, e.keyID)
	}

	salt, err := hex.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}

	ciphertext, err := hex.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", err)
	}

	dataKey, err := e.deriveDataKey(salt)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	nonceSize := aesGCM.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}

	return plaintext, nil
}

// EncryptString is a convenience wrapper returning the JSON envelope.
func (e *EnvelopeEncryptor) EncryptString(plaintext string) (string, error) {
	env, err := e.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(data), nil
}

// DecryptString opens a JSON envelope produced by EncryptString.
func (e *EnvelopeEncryptor) DecryptString(envelopeJSON string) (string, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(envelopeJSON), &env); err != nil {
		return "", fmt.Errorf("unmarshal envelope: %w", err)
	}
	plaintext, err := e.Decrypt(&env)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
