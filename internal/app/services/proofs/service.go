// Package proofs implements the commitment proof engine: per-query
// commitments with HMAC responses, verification with a freshness window,
// and Merkle batching for bulk settlement.
//
// The scheme is symmetric. Verification requires the issuer's derived
// secret, so proofs convince the issuer's counterparty under a shared
// secret, not an arbitrary third party. A deployment needing third-party
// verifiability swaps this engine for a non-interactive proof system
// behind the same Generate/Verify/Aggregate surface.
package proofs

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/HelixVault/agent_layer/internal/app/domain/proof"
	"github.com/HelixVault/agent_layer/pkg/logger"
)

const (
	commitmentSize = sha256.Size
	challengeSize  = 32

	// ProofVersion tags generated proofs.
	ProofVersion = 1
)

// ErrNoSecret is returned when the engine is constructed without its
// derived secret.
var ErrNoSecret = errors.New("proofs: derived secret is required")

// Service issues and verifies commitment proofs. Each instance carries its
// own derived secret and issuer identity; there is no shared global state.
type Service struct {
	log      *logger.Logger
	secret   []byte
	issuerID string
	now      func() time.Time
}

// Option customises service construction.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs a proof engine bound to a derived secret and issuer id.
func New(secret []byte, issuerID string, log *logger.Logger, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	if log == nil {
		log = logger.NewDefault("proofs")
	}
	s := &Service{
		log:      log,
		secret:   append([]byte(nil), secret...),
		issuerID: issuerID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate creates a proof committing to a disclosed result.
//
//	commitment = H(secret ‖ disclosed ‖ queryID ‖ tokenID ‖ timestamp ‖ issuerID)
//	response   = HMAC-SHA256(secret, commitment ‖ challenge)
//
// The disclosed result is part of the public inputs: the answer itself is
// public, only the genome behind it stays hidden.
func (s *Service) Generate(kind proof.Type, queryID string, tokenID int64, disclosed string, publicInputs map[string]interface{}) (*proof.Proof, error) {
	timestamp := s.now().UTC()

	commitment := s.commit(disclosed, queryID, tokenID, timestamp)

	challenge := make([]byte, challengeSize)
	if _, err := io.ReadFull(rand.Reader, challenge); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}

	response := s.respond(commitment, challenge)

	inputs := make(map[string]interface{}, len(publicInputs)+4)
	for k, v := range publicInputs {
		inputs[k] = v
	}
	inputs["query_id"] = queryID
	inputs["token_id"] = tokenID
	inputs["issuer_id"] = s.issuerID
	if _, ok := inputs["result"]; !ok {
		inputs["result"] = disclosed
	}

	s.log.WithField("query_id", queryID).Debugf("issued %s proof", kind)

	return &proof.Proof{
		Type:         kind,
		Commitment:   commitment,
		Challenge:    challenge,
		Response:     response,
		PublicInputs: inputs,
		Timestamp:    timestamp,
		Version:      ProofVersion,
	}, nil
}

// GenerateBoolean issues a proof for a yes/no query result.
func (s *Service) GenerateBoolean(queryID string, tokenID int64, queryType string, result bool, extra map[string]interface{}) (*proof.Proof, error) {
	inputs := map[string]interface{}{
		"query_type": queryType,
		"result":     result,
	}
	for k, v := range extra {
		inputs[k] = v
	}
	return s.Generate(proof.TypeBoolean, queryID, tokenID, strconv.FormatBool(result), inputs)
}

// GenerateTrait issues a proof for a trait prediction.
func (s *Service) GenerateTrait(queryID string, tokenID int64, trait, prediction string, confidence float64) (*proof.Proof, error) {
	disclosed := fmt.Sprintf("%s:%s:%.2f", trait, prediction, confidence)
	inputs := map[string]interface{}{
		"query_type": "trait_query",
		"trait":      trait,
		"prediction": prediction,
		"confidence": confidence,
	}
	return s.Generate(proof.TypeCommitment, queryID, tokenID, disclosed, inputs)
}

// GenerateCount issues a proof that foundCount of searchedCount variants
// matched, without naming which.
func (s *Service) GenerateCount(queryID string, tokenID int64, searchedCount, foundCount int) (*proof.Proof, error) {
	disclosed := fmt.Sprintf("count:%d:%d", foundCount, searchedCount)
	inputs := map[string]interface{}{
		"query_type":     "variant_search",
		"searched_count": searchedCount,
		"found_count":    foundCount,
	}
	return s.Generate(proof.TypeRange, queryID, tokenID, disclosed, inputs)
}

// Verify checks a proof and returns its terminal state: Rejected for a
// malformed or mismatched proof, Expired past the freshness window,
// Verified otherwise.
func (s *Service) Verify(p *proof.Proof) proof.Verification {
	verifiedAt := s.now().UTC()
	out := proof.Verification{
		Type:         p.Type,
		PublicInputs: p.PublicInputs,
		VerifiedAt:   verifiedAt,
	}

	if len(p.Commitment) != commitmentSize || len(p.Challenge) != challengeSize {
		out.Status = proof.StatusRejected
		out.Reason = "invalid proof format"
		return out
	}

	if verifiedAt.Sub(p.Timestamp) > proof.FreshnessWindow {
		out.Status = proof.StatusExpired
		out.Reason = "proof has expired"
		return out
	}

	expected := s.respond(p.Commitment, p.Challenge)
	if !hmac.Equal(expected, p.Response) {
		out.Status = proof.StatusRejected
		out.Reason = "response verification failed"
		return out
	}

	out.Status = proof.StatusVerified
	return out
}

// FormatForSettlement renders a proof as the fixed 128-byte settlement
// record: commitment ‖ challenge ‖ response ‖ H(canonical public inputs).
func FormatForSettlement(p *proof.Proof) ([]byte, error) {
	inputsJSON, err := json.Marshal(p.PublicInputs)
	if err != nil {
		return nil, fmt.Errorf("encode public inputs: %w", err)
	}
	inputsHash := sha256.Sum256(inputsJSON)

	out := make([]byte, 0, 128)
	out = append(out, p.Commitment...)
	out = append(out, p.Challenge...)
	out = append(out, p.Response...)
	out = append(out, inputsHash[:]...)
	return out, nil
}

func (s *Service) commit(disclosed, queryID string, tokenID int64, timestamp time.Time) []byte {
	h := sha256.New()
	h.Write(s.secret)
	h.Write([]byte(disclosed))
	h.Write([]byte("|"))
	h.Write([]byte(queryID))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatInt(tokenID, 10)))
	h.Write([]byte("|"))
	h.Write([]byte(timestamp.Format(time.RFC3339Nano)))
	h.Write([]byte("|"))
	h.Write([]byte(s.issuerID))
	return h.Sum(nil)
}

func (s *Service) respond(commitment, challenge []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(commitment)
	mac.Write(challenge)
	return mac.Sum(nil)
}
