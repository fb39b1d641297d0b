package vaultcrypto

import "fmt"

// Payload is an encrypted genome payload with its encryption metadata.
// Byte layout:
//
//	byte 0        version
//	byte 1        algorithm-name length L
//	bytes 2..2+L  algorithm name (text)
//	next 16B      salt
//	next 12B      nonce
//	next 32B      SHA-256 of original plaintext
//	next 1B       compressed flag (0/1)
//	remainder     AEAD ciphertext (tag embedded)
type Payload struct {
	Version      byte
	Algorithm    string
	Salt         []byte
	Nonce        []byte
	OriginalHash []byte
	Compressed   bool
	Ciphertext   []byte
}

// Bytes serialises the payload for storage.
func (p *Payload) Bytes() []byte {
	algo := []byte(p.Algorithm)
	out := make([]byte, 0, 2+len(algo)+SaltSize+NonceSize+HashSize+1+len(p.Ciphertext))
	out = append(out, p.Version, byte(len(algo)))
	out = append(out, algo...)
	out = append(out, p.Salt...)
	out = append(out, p.Nonce...)
	out = append(out, p.OriginalHash...)
	if p.Compressed {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	out = append(out, p.Ciphertext...)
	return out
}

// ParsePayload deserialises a stored payload.
func ParsePayload(data []byte) (*Payload, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformedPayload)
	}
	version := data[0]
	algoLen := int(data[1])

	need := 2 + algoLen + SaltSize + NonceSize + HashSize + 1
	if len(data) < need {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedPayload, len(data), need)
	}

	offset := 2
	algorithm := string(data[offset : offset+algoLen])
	offset += algoLen

	salt := data[offset : offset+SaltSize]
	offset += SaltSize

	nonce := data[offset : offset+NonceSize]
	offset += NonceSize

	originalHash := data[offset : offset+HashSize]
	offset += HashSize

	compressed := data[offset] == 1
	offset++

	return &Payload{
		Version:      version,
		Algorithm:    algorithm,
		Salt:         append([]byte(nil), salt...),
		Nonce:        append([]byte(nil), nonce...),
		OriginalHash: append([]byte(nil), originalHash...),
		Compressed:   compressed,
		Ciphertext:   append([]byte(nil), data[offset:]...),
	}, nil
}
