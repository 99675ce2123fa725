package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidCiphertext は復号できない暗号文を表す。
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Encryptor はアクセストークンをAES-256-GCMで暗号化する。
// 鍵が未設定の場合は暗号化を行わず、入力をそのまま返す。
type Encryptor struct {
	aead    cipher.AEAD
	enabled bool
}

// NewEncryptor はEncryptorを生成する。
// keyが空の場合は暗号化が無効になる。keyは32バイトである必要がある。
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) == 0 {
		return &Encryptor{enabled: false}, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes for AES-256, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: aead, enabled: true}, nil
}

// Enabled は暗号化が有効かどうかを返す。
func (e *Encryptor) Enabled() bool {
	return e != nil && e.enabled
}

// Encrypt は平文を暗号化し、[nonce][ciphertext]をbase64エンコードして返す。
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if !e.Enabled() {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt はEncryptで生成した暗号文を復号する。
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	if !e.Enabled() {
		return encoded, nil
	}

	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := e.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	return string(plaintext), nil
}
