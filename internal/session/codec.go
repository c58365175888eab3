package session

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"go.uber.org/zap"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/config"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

var ErrEncodeFailed = errors.New("session encode failed")

const tokenBytes = 32

// GenerateToken returns a 64-character lowercase hex token drawn from a
// cryptographically secure source. Tokens are never derived from time
// or counters.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// envelope is the stored form of an encoded session: the record sealed
// under a fresh DEK, plus the wrapped DEK needed to open it again.
type envelope struct {
	Version string `json:"v"`
	Payload string `json:"p"`
	DEK     string `json:"k"`
	KeyID   string `json:"kid"`
}

// Codec seals session records with AES-256-GCM envelope encryption.
// The DEK is wrapped by KMS when enabled; otherwise by a master key
// generated at startup and held only in memory, so stored sessions do
// not survive a restart in local mode. Decode never returns an error:
// any malformed or tampered input means "no session".
type Codec struct {
	kmsClient *kms.Client
	cfg       *config.Config
	localKey  []byte
	keyCache  sync.Map // wrapped DEK -> plaintext DEK
}

func NewCodec(cfg *config.Config, kmsClient *kms.Client) (*Codec, error) {
	c := &Codec{
		kmsClient: kmsClient,
		cfg:       cfg,
	}

	if !cfg.KMS.Enabled {
		c.localKey = make([]byte, 32)
		if _, err := rand.Read(c.localKey); err != nil {
			return nil, fmt.Errorf("failed to generate local master key: %w", err)
		}
	}

	return c, nil
}

// Encode serializes the record and seals it into a single opaque string
func (c *Codec) Encode(rec *models.SessionRecord) (string, error) {
	plaintext, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	dek := make([]byte, 32)
	if _, err := rand.Read(dek); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	wrappedDEK, keyID, err := c.wrapDEK(dek)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	sealed, err := seal(dek, plaintext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	c.keyCache.Store(wrappedDEK, dek)

	env := envelope{
		Version: "v1",
		Payload: base64.RawURLEncoding.EncodeToString(sealed),
		DEK:     wrappedDEK,
		KeyID:   keyID,
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode is the inverse of Encode. It returns nil on any malformed,
// truncated or tampered input, signaling "treat as logged out".
func (c *Codec) Decode(encoded string) *models.SessionRecord {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}

	dek, err := c.unwrapDEK(env.DEK)
	if err != nil {
		util.Debug("Failed to unwrap session DEK", zap.Error(err))
		return nil
	}

	sealed, err := base64.RawURLEncoding.DecodeString(env.Payload)
	if err != nil {
		return nil
	}

	plaintext, err := open(dek, sealed)
	if err != nil {
		return nil
	}

	var rec models.SessionRecord
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return nil
	}
	if rec.Token == "" || rec.AdminID == "" {
		return nil
	}

	return &rec
}

// ClearCache drops cached plaintext DEKs
func (c *Codec) ClearCache() {
	c.keyCache.Range(func(key, _ interface{}) bool {
		c.keyCache.Delete(key)
		return true
	})
}

func (c *Codec) wrapDEK(dek []byte) (wrapped, keyID string, err error) {
	if c.cfg.KMS.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		input := &kms.EncryptInput{
			KeyId:               aws.String(c.cfg.KMS.KeyID),
			Plaintext:           dek,
			EncryptionAlgorithm: types.EncryptionAlgorithmSpecSymmetricDefault,
		}
		result, err := c.kmsClient.Encrypt(ctx, input)
		if err != nil {
			return "", "", fmt.Errorf("kms encrypt failed: %w", err)
		}
		return base64.RawURLEncoding.EncodeToString(result.CiphertextBlob), c.cfg.KMS.KeyID, nil
	}

	sealed, err := seal(c.localKey, dek)
	if err != nil {
		return "", "", err
	}
	return base64.RawURLEncoding.EncodeToString(sealed), "local", nil
}

func (c *Codec) unwrapDEK(wrapped string) ([]byte, error) {
	if cached, ok := c.keyCache.Load(wrapped); ok {
		return cached.([]byte), nil
	}

	blob, err := base64.RawURLEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, fmt.Errorf("invalid DEK encoding")
	}

	var dek []byte
	if c.cfg.KMS.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result, err := c.kmsClient.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
		if err != nil {
			return nil, fmt.Errorf("kms decrypt failed: %w", err)
		}
		dek = result.Plaintext
	} else {
		dek, err = open(c.localKey, blob)
		if err != nil {
			return nil, err
		}
	}

	c.keyCache.Store(wrapped, dek)
	return dek, nil
}

func seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
