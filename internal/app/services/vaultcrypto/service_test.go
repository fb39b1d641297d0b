package vaultcrypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc := New(nil)
	key := randomKey(t)
	plaintext := []byte("rs12913832\t15\t28365618\tGG\nrs4988235\t2\t136608646\tTT\n")

	for _, compress := range []bool{false, true} {
		payload, err := svc.Encrypt(plaintext, key, compress)
		if err != nil {
			t.Fatalf("encrypt (compress=%v): %v", compress, err)
		}
		if payload.Version != PayloadVersion || payload.Algorithm != Algorithm {
			t.Fatalf("unexpected payload header: %d %s", payload.Version, payload.Algorithm)
		}
		if len(payload.Salt) != SaltSize || len(payload.Nonce) != NonceSize {
			t.Fatalf("unexpected salt/nonce sizes: %d/%d", len(payload.Salt), len(payload.Nonce))
		}

		decrypted, err := svc.Decrypt(payload, key)
		if err != nil {
			t.Fatalf("decrypt (compress=%v): %v", compress, err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Fatalf("round trip mismatch (compress=%v)", compress)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	svc := New(nil)
	key := randomKey(t)

	raw, err := svc.EncryptToBytes([]byte("genome data"), key, true)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	decrypted, err := svc.DecryptBytes(raw, key)
	if err != nil {
		t.Fatalf("decrypt serialized: %v", err)
	}
	if string(decrypted) != "genome data" {
		t.Fatalf("unexpected plaintext: %q", decrypted)
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	svc := New(nil)
	key := randomKey(t)

	payload, err := svc.Encrypt([]byte("sensitive genotype data"), key, false)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	payload.Ciphertext[0] ^= 0x01
	if _, err := svc.Decrypt(payload, key); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for flipped ciphertext bit, got %v", err)
	}
}

func TestDecryptSwappedHash(t *testing.T) {
	svc := New(nil)
	key := randomKey(t)

	payload, err := svc.Encrypt([]byte("sensitive genotype data"), key, false)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	// Substituting the stored hash breaks the AEAD binding even though the
	// ciphertext itself is untouched.
	payload.OriginalHash = DataHash([]byte("some other document"))
	if _, err := svc.Decrypt(payload, key); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for swapped hash, got %v", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	svc := New(nil)

	payload, err := svc.Encrypt([]byte("data"), randomKey(t), true)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := svc.Decrypt(payload, randomKey(t)); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity for wrong key, got %v", err)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	svc := New(nil)
	signature := bytes.Repeat([]byte{0x42}, 65)
	salt := bytes.Repeat([]byte{0x01}, SaltSize)

	k1, err := svc.DeriveKey(signature, salt)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := svc.DeriveKey(signature, salt)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Fatalf("key derivation is not deterministic")
	}
	if len(k1) != KeySize {
		t.Fatalf("expected %d-byte key, got %d", KeySize, len(k1))
	}

	otherSalt := bytes.Repeat([]byte{0x02}, SaltSize)
	k3, err := svc.DeriveKey(signature, otherSalt)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if bytes.Equal(k1, k3) {
		t.Fatalf("different salts must yield different keys")
	}
}

func TestSigningMessage(t *testing.T) {
	svc := New(nil)

	base := svc.SigningMessage(nil)
	if base == "" || strings.Contains(base, "|") {
		t.Fatalf("unexpected base message: %q", base)
	}

	salted := svc.SigningMessage([]byte{0xde, 0xad})
	if salted != base+"|dead" {
		t.Fatalf("unexpected salted message: %q", salted)
	}
}

func TestVerifyWalletSignature(t *testing.T) {
	svc := New(nil)

	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate wallet key: %v", err)
	}
	address := ethcrypto.PubkeyToAddress(priv.PublicKey).Hex()

	message := svc.SigningMessage(nil)
	sig, err := ethcrypto.Sign(accounts.TextHash([]byte(message)), priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if !svc.VerifyWalletSignature(message, sig, address) {
		t.Fatalf("expected valid signature to verify")
	}
	if !svc.VerifyWalletSignature(message, sig, strings.ToLower(address)) {
		t.Fatalf("address comparison should be case-insensitive")
	}

	// Wallets usually return V as 27/28 rather than 0/1.
	legacy := make([]byte, len(sig))
	copy(legacy, sig)
	legacy[64] += 27
	if !svc.VerifyWalletSignature(message, legacy, address) {
		t.Fatalf("expected legacy V encoding to verify")
	}

	other, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate wallet key: %v", err)
	}
	otherAddr := ethcrypto.PubkeyToAddress(other.PublicKey).Hex()
	if svc.VerifyWalletSignature(message, sig, otherAddr) {
		t.Fatalf("signature must not verify for a different wallet")
	}
	if svc.VerifyWalletSignature("different message", sig, address) {
		t.Fatalf("signature must not verify for a different message")
	}
}

func TestParsePayloadTruncated(t *testing.T) {
	if _, err := ParsePayload([]byte{PayloadVersion}); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
	if _, err := ParsePayload(make([]byte, 10)); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for short body, got %v", err)
	}
}
