package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"tixly-ticketing/internal/models"

	"github.com/skip2/go-qrcode"
	"golang.org/x/crypto/hkdf"
)

var ErrInvalidPayload = errors.New("invalid ticket payload")

type QRGenerator struct {
	aead cipher.AEAD
	size int
}

// NewQRGenerator derives an AES-256 key from secret.
func NewQRGenerator(secret string) (*QRGenerator, error) {
	if secret == "" {
		return nil, errors.New("qr secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("tixly ticket qr v1")), key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &QRGenerator{aead: aead, size: 256}, nil
}

// Token encrypts payload into the URL-safe string a QR code carries.
func (q *QRGenerator) Token(payload models.QRPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, q.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := q.aead.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// GenerateEncryptedQR returns a PNG QR code of the encrypted payload.
func (q *QRGenerator) GenerateEncryptedQR(payload models.QRPayload) ([]byte, error) {
	token, err := q.Token(payload)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, q.size)
}

// DecryptQRData opens a token produced by Token. Tokens sealed with another
// secret or altered in transit fail with ErrInvalidPayload.
func (q *QRGenerator) DecryptQRData(token string) (*models.QRPayload, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	n := q.aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrInvalidPayload
	}
	data, err := q.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var payload models.QRPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &payload, nil
}
