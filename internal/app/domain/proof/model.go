// Package proof defines the commitment proof structures exchanged with
// verifiers and the settlement layer.
package proof

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Type tags the kind of statement a proof commits to.
type Type string

const (
	TypeCommitment Type = "commitment"
	TypeBoolean    Type = "boolean"
	TypeRange      Type = "range"
	TypeMembership Type = "membership"
)

// Status is the terminal verification state of a proof. A proof starts
// implicitly as created and moves to exactly one of these.
type Status string

const (
	StatusVerified Status = "verified"
	StatusExpired  Status = "expired"
	StatusRejected Status = "rejected"
)

// FreshnessWindow is how long a proof stays verifiable after issuance.
const FreshnessWindow = time.Hour

// Proof is a symmetric commitment proof. Immutable once created. Only a
// holder of the issuer's derived secret can verify the response.
type Proof struct {
	Type         Type
	Commitment   []byte // 32 bytes
	Challenge    []byte // 32 bytes
	Response     []byte // 32 bytes, HMAC-SHA256
	PublicInputs map[string]interface{}
	Timestamp    time.Time
	Version      int
}

// Verification is the outcome of checking a proof.
type Verification struct {
	Status       Status
	Type         Type
	PublicInputs map[string]interface{}
	VerifiedAt   time.Time
	Reason       string
}

// wireProof is the transport encoding: hex digests, RFC3339 timestamp.
type wireProof struct {
	ProofType    string                 `json:"proof_type"`
	Commitment   string                 `json:"commitment"`
	Challenge    string                 `json:"challenge"`
	Response     string                 `json:"response"`
	PublicInputs map[string]interface{} `json:"public_inputs"`
	Timestamp    string                 `json:"timestamp"`
	Version      int                    `json:"version"`
}

// Encode serialises the proof for transport.
func (p *Proof) Encode() ([]byte, error) {
	w := wireProof{
		ProofType:    string(p.Type),
		Commitment:   hex.EncodeToString(p.Commitment),
		Challenge:    hex.EncodeToString(p.Challenge),
		Response:     hex.EncodeToString(p.Response),
		PublicInputs: p.PublicInputs,
		Timestamp:    p.Timestamp.UTC().Format(time.RFC3339Nano),
		Version:      p.Version,
	}
	return json.Marshal(w)
}

// Decode parses a transport-encoded proof.
func Decode(data []byte) (*Proof, error) {
	var w wireProof
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode proof: %w", err)
	}

	commitment, err := hex.DecodeString(w.Commitment)
	if err != nil {
		return nil, fmt.Errorf("decode commitment: %w", err)
	}
	challenge, err := hex.DecodeString(w.Challenge)
	if err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	response, err := hex.DecodeString(w.Response)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("decode timestamp: %w", err)
	}

	version := w.Version
	if version == 0 {
		version = 1
	}

	return &Proof{
		Type:         Type(w.ProofType),
		Commitment:   commitment,
		Challenge:    challenge,
		Response:     response,
		PublicInputs: w.PublicInputs,
		Timestamp:    ts,
		Version:      version,
	}, nil
}
