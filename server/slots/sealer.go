package slots

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealerInfo = "token-handoff cookie slots v1"

// Sealer encrypts cookie values so the token slot can't be read or edited
// client side. The cookie name is bound as additional data, so a value
// lifted from one slot won't open in another.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("cookie secret is required")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealerInfo)), key); err != nil {
		return nil, fmt.Errorf("derive cookie key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cookie cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encodes v as JSON and returns base64url(nonce|ciphertext)
func (s *Sealer) Seal(name string, v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", apperrors.Wrapf(err, "encode %s", name)
	}

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", apperrors.Wrapf(err, "nonce for %s", name)
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, []byte(name))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) Open(name, value string, v any) error {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return fmt.Errorf("%w: %s is not base64", apperrors.ErrInvalidToken, name)
	}
	if len(sealed) < s.aead.NonceSize()+s.aead.Overhead() {
		return fmt.Errorf("%w: %s is too short", apperrors.ErrInvalidToken, name)
	}

	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return fmt.Errorf("%w: %s failed authentication", apperrors.ErrInvalidToken, name)
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return apperrors.Wrapf(err, "decode %s", name)
	}
	return nil
}
