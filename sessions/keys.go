package sessions

import (
	"crypto/sha256"
	"fmt"
	"io"

	apperrors "github.com/jrsteele09/go-blob-drive/internal/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	minSecretLength = 32

	authKeyLength       = 64 // HMAC-SHA256
	encryptionKeyLength = 32 // AES-256
)

var keySalt = []byte("go-blob-drive/sessions")

// DeriveKeys expands one configured secret into independent signing and encryption keys.
func DeriveKeys(secret string) (authKey, encryptionKey []byte, err error) {
	if len(secret) < minSecretLength {
		return nil, nil, fmt.Errorf("[sessions DeriveKeys] %w: session secret must be at least %d characters", apperrors.ErrInvalidConfig, minSecretLength)
	}

	authKey = make([]byte, authKeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), keySalt, []byte("cookie-authentication")), authKey); err != nil {
		return nil, nil, fmt.Errorf("[sessions DeriveKeys] %w", err)
	}

	encryptionKey = make([]byte, encryptionKeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), keySalt, []byte("cookie-encryption")), encryptionKey); err != nil {
		return nil, nil, fmt.Errorf("[sessions DeriveKeys] %w", err)
	}
	return authKey, encryptionKey, nil
}
