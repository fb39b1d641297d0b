// Package vaultcrypto provides wallet-signature-derived key derivation and
// authenticated encryption for genome payloads.
//
// The data owner signs a deterministic message with their wallet; the
// signature feeds HKDF to produce the AES key. Only the wallet holder can
// re-derive the key, so no key material is ever stored.
package vaultcrypto

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"

	"github.com/HelixVault/agent_layer/pkg/logger"
)

const (
	// PayloadVersion is the current payload format version.
	PayloadVersion = 1

	// Algorithm names the AEAD used for payloads.
	Algorithm = "AES-256-GCM"

	KeySize   = 32
	NonceSize = 12
	SaltSize  = 16
	HashSize  = sha256.Size

	// keyDerivationMessage is the fixed text the wallet signs to authorize
	// key derivation.
	keyDerivationMessage = "HelixVault Data Encryption Key v1"

	// hkdfInfo domain-separates derived keys from other HKDF uses.
	hkdfInfo = "helix-vault-encryption-key"
)

// ErrIntegrity covers every decryption failure: AEAD tag, payload hash, or
// key mismatch. The causes are deliberately indistinguishable.
var ErrIntegrity = errors.New("vaultcrypto: payload integrity check failed")

// ErrMalformedPayload is returned when a stored payload cannot be parsed.
var ErrMalformedPayload = errors.New("vaultcrypto: malformed payload")

// Service implements key derivation and payload encryption.
type Service struct {
	log *logger.Logger
}

// New constructs the crypto service.
func New(log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("vaultcrypto")
	}
	return &Service{log: log}
}

// SigningMessage returns the message a wallet must sign to authorize key
// derivation. A salt binds the message to one payload lineage.
func (s *Service) SigningMessage(salt []byte) string {
	if len(salt) > 0 {
		return keyDerivationMessage + "|" + hex.EncodeToString(salt)
	}
	return keyDerivationMessage
}

// VerifyWalletSignature checks that signature over message recovers the
// expected EIP-191 signer address.
func (s *Service) VerifyWalletSignature(message string, signature []byte, expectedAddress string) bool {
	if len(signature) != 65 {
		return false
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	hash := accounts.TextHash([]byte(message))
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		s.log.WithError(err).Debug("signature recovery failed")
		return false
	}
	recovered := ethcrypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), expectedAddress)
}

// DeriveKey derives a 32-byte AES key from a wallet signature via
// HKDF-SHA256. Deterministic for identical (signature, salt).
func (s *Service) DeriveKey(signature, salt []byte) ([]byte, error) {
	if len(signature) == 0 {
		return nil, fmt.Errorf("signature is required")
	}

	reader := hkdf.New(sha256.New, signature, salt, []byte(hkdfInfo))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// GenerateSalt returns a fresh random salt for key derivation.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Encrypt seals plaintext under key with AES-256-GCM. The SHA-256 of the
// original plaintext is computed before compression and bound to the
// ciphertext as AEAD associated data, so neither can be swapped without
// failing the tag.
func (s *Service) Encrypt(plaintext, key []byte, compress bool) (*Payload, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}

	sum := sha256.Sum256(plaintext)
	originalHash := sum[:]

	data := plaintext
	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(plaintext); err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
		data = buf.Bytes()
		s.log.Debugf("compressed %d bytes to %d", len(plaintext), len(data))
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, data, originalHash)

	return &Payload{
		Version:      PayloadVersion,
		Algorithm:    Algorithm,
		Salt:         salt,
		Nonce:        nonce,
		OriginalHash: originalHash,
		Compressed:   compress,
		Ciphertext:   ciphertext,
	}, nil
}

// Decrypt opens a payload and verifies both the AEAD tag and the stored
// plaintext hash. Two independent integrity checks, one error: no caller
// can tell which one failed.
func (s *Service) Decrypt(p *Payload, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	if p.Version != PayloadVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedPayload, p.Version)
	}
	if len(p.Nonce) != NonceSize || len(p.OriginalHash) != HashSize {
		return nil, ErrMalformedPayload
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	data, err := gcm.Open(nil, p.Nonce, p.Ciphertext, p.OriginalHash)
	if err != nil {
		return nil, ErrIntegrity
	}

	if p.Compressed {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, ErrIntegrity
		}
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, ErrIntegrity
		}
		if err := zr.Close(); err != nil {
			return nil, ErrIntegrity
		}
	}

	check := sha256.Sum256(data)
	if !bytes.Equal(check[:], p.OriginalHash) {
		return nil, ErrIntegrity
	}
	return data, nil
}

// EncryptToBytes encrypts plaintext and returns the serialized payload.
func (s *Service) EncryptToBytes(plaintext, key []byte, compress bool) ([]byte, error) {
	p, err := s.Encrypt(plaintext, key, compress)
	if err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

// DecryptBytes parses a serialized payload and decrypts it.
func (s *Service) DecryptBytes(data, key []byte) ([]byte, error) {
	p, err := ParsePayload(data)
	if err != nil {
		return nil, err
	}
	return s.Decrypt(p, key)
}

// DataHash returns the SHA-256 digest of data, as recorded on-chain when a
// payload is registered.
func DataHash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
