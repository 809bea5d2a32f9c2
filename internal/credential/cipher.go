// Package credential encrypts third-party provider tokens with keys derived per user
// from a single master secret, so operators reading the database only see ciphertext.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/SeakMengs/AutoSign/internal/config"
	"golang.org/x/crypto/hkdf"
)

const (
	KeySize   = 32
	IVSize    = 12
	Separator = ":"

	hkdfSalt       = "autosign-credential-v1"
	hkdfInfoUser   = "autosign:user:"
	hkdfInfoGlobal = "autosign:global"
)

var (
	ErrMissingMasterKey = errors.New("credential: master key is not configured")
	ErrInvalidKeyScope  = errors.New("credential: invalid key scope")
	ErrDecryption       = errors.New("credential: unable to decrypt credential")
)

type scopeKind int

const (
	scopeInvalid scopeKind = iota
	scopeGlobal
	scopeUser
)

// KeyScope identifies whose key produced a ciphertext: the global key or one user's derived key.
type KeyScope struct {
	kind   scopeKind
	userID string
}

func GlobalScope() KeyScope {
	return KeyScope{kind: scopeGlobal}
}

func UserScope(userID string) KeyScope {
	if strings.TrimSpace(userID) == "" {
		return KeyScope{}
	}
	return KeyScope{kind: scopeUser, userID: userID}
}

func (s KeyScope) IsValid() bool {
	return s.kind != scopeInvalid
}

func (s KeyScope) String() string {
	switch s.kind {
	case scopeGlobal:
		return "global"
	case scopeUser:
		return "user:" + s.userID
	default:
		return ""
	}
}

func ParseKeyScope(raw string) (KeyScope, error) {
	if raw == "global" {
		return GlobalScope(), nil
	}
	if id, ok := strings.CutPrefix(raw, "user:"); ok {
		if scope := UserScope(id); scope.IsValid() {
			return scope, nil
		}
	}
	return KeyScope{}, fmt.Errorf("%w: %q", ErrInvalidKeyScope, raw)
}

// EncryptedCredential is a ciphertext blob together with the scope needed to open it.
type EncryptedCredential struct {
	Blob  string
	Scope KeyScope
}

type Cipher struct {
	master []byte
	rand   io.Reader
}

// NewCipher fails when the master key is empty. There is no fallback key.
func NewCipher(cfg config.CryptoConfig) (*Cipher, error) {
	if strings.TrimSpace(cfg.MASTER_KEY) == "" {
		return nil, ErrMissingMasterKey
	}

	return &Cipher{
		master: []byte(cfg.MASTER_KEY),
		rand:   rand.Reader,
	}, nil
}

// DeriveUserKey is deterministic for a given master key and user id.
func (c *Cipher) DeriveUserKey(userID string) []byte {
	return c.derive(hkdfInfoUser + userID)
}

func (c *Cipher) derive(info string) []byte {
	kdf := hkdf.New(sha256.New, c.master, []byte(hkdfSalt), []byte(info))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		// hkdf only fails after 255*32 bytes of output
		panic(fmt.Sprintf("credential: hkdf: %v", err))
	}
	return key
}

func (c *Cipher) keyFor(scope KeyScope) ([]byte, error) {
	switch scope.kind {
	case scopeGlobal:
		return c.derive(hkdfInfoGlobal), nil
	case scopeUser:
		return c.DeriveUserKey(scope.userID), nil
	default:
		return nil, ErrInvalidKeyScope
	}
}

func (c *Cipher) aead(scope KeyScope) (cipher.AEAD, error) {
	key, err := c.keyFor(scope)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

// Encrypt returns "ivHex:cipherHex". The scope is bound as additional data so a
// blob cannot be opened under another scope even if the keys were equal.
func (c *Cipher) Encrypt(plaintext string, scope KeyScope) (string, error) {
	gcm, err := c.aead(scope)
	if err != nil {
		return "", err
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("credential: read iv: %w", err)
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), []byte(scope.String()))

	return hex.EncodeToString(iv) + Separator + hex.EncodeToString(sealed), nil
}

func (c *Cipher) Decrypt(blob string, scope KeyScope) (string, error) {
	gcm, err := c.aead(scope)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	ivHex, cipherHex, ok := strings.Cut(blob, Separator)
	if !ok || ivHex == "" || cipherHex == "" {
		return "", fmt.Errorf("%w: malformed blob", ErrDecryption)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", fmt.Errorf("%w: iv is not hex", ErrDecryption)
	}
	if len(iv) != IVSize {
		return "", fmt.Errorf("%w: iv must be %d bytes, got %d", ErrDecryption, IVSize, len(iv))
	}

	sealed, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext is not hex", ErrDecryption)
	}

	plaintext, err := gcm.Open(nil, iv, sealed, []byte(scope.String()))
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryption)
	}

	return string(plaintext), nil
}

func (c *Cipher) Seal(plaintext string, scope KeyScope) (EncryptedCredential, error) {
	blob, err := c.Encrypt(plaintext, scope)
	if err != nil {
		return EncryptedCredential{}, err
	}
	return EncryptedCredential{Blob: blob, Scope: scope}, nil
}

func (c *Cipher) Open(ec EncryptedCredential) (string, error) {
	return c.Decrypt(ec.Blob, ec.Scope)
}
