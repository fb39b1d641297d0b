// Package sessions orchestrates query execution: one session per query,
// fetch → decrypt → parse → analyze → prove, with teardown guaranteed on
// every exit path. Decrypted variant data lives only inside the session.
package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/HelixVault/agent_layer/internal/app/domain/genome"
	"github.com/HelixVault/agent_layer/internal/app/domain/proof"
	"github.com/HelixVault/agent_layer/internal/app/metrics"
	"github.com/HelixVault/agent_layer/internal/app/services/analysis"
	"github.com/HelixVault/agent_layer/internal/app/services/proofs"
	"github.com/HelixVault/agent_layer/internal/app/services/vaultcrypto"
	"github.com/HelixVault/agent_layer/internal/app/storage"
	"github.com/HelixVault/agent_layer/pkg/logger"
)

// Interpreter turns a natural-language question into prose over derived
// findings. Implementations talk to an external model; the orchestrator
// only ever hands them trait predictions, never raw variant data.
type Interpreter interface {
	Interpret(ctx context.Context, prompt string) (string, error)
}

var (
	// ErrUnknownToken is returned when no content is registered for a token.
	ErrUnknownToken = errors.New("sessions: unknown token")
	// ErrNoInterpreter is returned when a natural-language query arrives
	// without a configured interpreter.
	ErrNoInterpreter = errors.New("sessions: no interpreter configured")
)

// Config carries the orchestrator's collaborators. Content, Vault,
// Analysis, Proofs and DataKey are required.
type Config struct {
	Log         *logger.Logger
	Content     storage.ContentStore
	Vault       *vaultcrypto.Service
	Analysis    *analysis.Service
	Proofs      *proofs.Service
	Audit       *AuditLog
	Interpreter Interpreter
	DataKey     []byte
}

// Service executes query sessions. Each query is an independent unit of
// work; the only state shared across queries is the token registry and
// the append-only audit log.
type Service struct {
	log         *logger.Logger
	content     storage.ContentStore
	vault       *vaultcrypto.Service
	analysis    *analysis.Service
	proofs      *proofs.Service
	audit       *AuditLog
	interpreter Interpreter
	dataKey     []byte

	mu       sync.RWMutex
	registry map[int64]string // tokenID -> contentID

	now func() time.Time
}

// New wires the orchestrator.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Content == nil:
		return nil, errors.New("sessions: content store is required")
	case cfg.Vault == nil:
		return nil, errors.New("sessions: vault crypto service is required")
	case cfg.Analysis == nil:
		return nil, errors.New("sessions: analysis service is required")
	case cfg.Proofs == nil:
		return nil, errors.New("sessions: proof engine is required")
	case len(cfg.DataKey) != vaultcrypto.KeySize:
		return nil, fmt.Errorf("sessions: data key must be %d bytes", vaultcrypto.KeySize)
	}
	log := cfg.Log
	if log == nil {
		log = logger.NewDefault("sessions")
	}
	audit := cfg.Audit
	if audit == nil {
		audit = NewAuditLog(0, nil)
	}
	return &Service{
		log:         log,
		content:     cfg.Content,
		vault:       cfg.Vault,
		analysis:    cfg.Analysis,
		proofs:      cfg.Proofs,
		audit:       audit,
		interpreter: cfg.Interpreter,
		dataKey:     append([]byte(nil), cfg.DataKey...),
		registry:    make(map[int64]string),
		now:         time.Now,
	}, nil
}

// RegisterToken binds a data token to the content ID of its encrypted
// payload.
func (s *Service) RegisterToken(tokenID int64, contentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry[tokenID] = contentID
}

// Upload stores an already-encrypted payload in the content store.
func (s *Service) Upload(ctx context.Context, encrypted []byte, name string) (storage.UploadResult, error) {
	return s.content.Upload(ctx, encrypted, name, map[string]string{"type": "genome-payload"})
}

// ContentID resolves a registered token.
func (s *Service) ContentID(tokenID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.registry[tokenID]
	return id, ok
}

// Close wipes the service's copy of the data key. The caller must have
// drained in-flight queries first; queries issued after Close fail at
// decryption.
func (s *Service) Close() error {
	for i := range s.dataKey {
		s.dataKey[i] = 0
	}
	return nil
}

// AuditEntries returns a copy of the most recent audit records.
func (s *Service) AuditEntries(limit int) []storage.AuditRecord {
	return s.audit.Entries(limit)
}

// session is the working state of one query. It is created per call and
// torn down before the call returns; nothing decrypted escapes it.
type session struct {
	id        string
	set       genome.VariantSet
	plaintext []byte
}

// teardown wipes the session's variant map and decrypted bytes. Safe to
// call on a partially initialised session; idempotent.
func (sess *session) teardown() {
	sess.set.Clear()
	for i := range sess.plaintext {
		sess.plaintext[i] = 0
	}
}

// Execute runs one query session end to end. Teardown runs exactly once on
// every path, including failures and panics unwinding through here.
func (s *Service) Execute(ctx context.Context, q genome.Query) genome.QueryResponse {
	started := s.now().UTC()
	qt := requestType(q.Request)
	done := metrics.QuerySessionStarted(qt)

	sess := &session{id: sessionID(q.QueryID, q.TokenID, started)}
	log := s.log.WithField("query_id", q.QueryID).WithField("session_id", sess.id)

	resp := genome.QueryResponse{
		QueryID:   q.QueryID,
		Status:    genome.StatusProcessing,
		Timestamp: started,
	}

	s.audit.Append(ctx, storage.AuditRecord{
		QueryID:   q.QueryID,
		QueryType: qt,
		TokenID:   q.TokenID,
		Requester: q.Requester,
		SessionID: sess.id,
		Status:    string(genome.StatusProcessing),
		Time:      started,
	})

	defer func() {
		sess.teardown()
		done(string(resp.Status), s.now().Sub(started))
		log.Debugf("session torn down")
	}()

	fail := func(msg string, err error) genome.QueryResponse {
		resp.Status = genome.StatusFailed
		resp.Err = msg
		log.WithError(err).Warnf("query failed: %s", msg)
		return resp
	}

	contentID, ok := s.ContentID(q.TokenID)
	if !ok {
		return fail("no data registered for token", ErrUnknownToken)
	}

	ciphertext, err := s.content.Fetch(ctx, contentID)
	if err != nil {
		return fail("payload fetch failed", err)
	}

	sess.plaintext, err = s.vault.DecryptBytes(ciphertext, s.dataKey)
	if err != nil {
		metrics.RecordDecryptFailure()
		return fail("payload decryption failed", err)
	}

	var stats analysis.ParseStats
	sess.set, stats = s.analysis.Parse(sess.plaintext)
	metrics.RecordParseSkipped(string(stats.Format), stats.Skipped)

	result, err := s.analysis.Analyze(sess.set, q.Request)
	if err != nil {
		return fail("analysis failed", err)
	}

	p, err := s.prove(q, result)
	if err != nil {
		return fail("proof generation failed", err)
	}
	metrics.RecordProofIssued(string(p.Type))

	proofBytes, err := p.Encode()
	if err != nil {
		return fail("proof encoding failed", err)
	}

	hash, err := responseHash(q.QueryID, result)
	if err != nil {
		return fail("response hashing failed", err)
	}

	resp.Status = genome.StatusCompleted
	resp.Result = result
	resp.Proof = proofBytes
	resp.ResponseHash = hash
	log.Infof("query completed: %s", qt)
	return resp
}

// Ask runs a natural-language question: predicts every available trait in
// one session, then asks the interpreter to answer from those findings
// alone.
func (s *Service) Ask(ctx context.Context, tokenID int64, question string) (string, error) {
	if s.interpreter == nil {
		return "", ErrNoInterpreter
	}

	sess, err := s.open(ctx, tokenID)
	if err != nil {
		return "", err
	}
	defer sess.teardown()

	predictions := make([]genome.TraitPrediction, 0)
	for _, trait := range analysis.AvailableTraits() {
		pred, err := s.analysis.Predict(sess.set, trait)
		if err != nil || pred == nil {
			continue
		}
		predictions = append(predictions, *pred)
	}

	return s.interpreter.Interpret(ctx, interpreterPrompt(question, predictions))
}

// MatchesBounty reports whether the registered data satisfies a bounty's
// query without disclosing anything beyond the boolean.
func (s *Service) MatchesBounty(ctx context.Context, tokenID int64, req genome.AnalysisRequest) (bool, error) {
	sess, err := s.open(ctx, tokenID)
	if err != nil {
		return false, err
	}
	defer sess.teardown()

	result, err := s.analysis.Analyze(sess.set, req)
	if err != nil {
		return false, err
	}

	switch result.QueryType {
	case "variant_check":
		return result.Matches, nil
	case "trait_query":
		if tq, ok := req.(genome.TraitQuery); ok && tq.Expected != "" {
			return result.Found && result.Prediction == tq.Expected, nil
		}
		return result.Found, nil
	case "variant_search":
		return result.TotalFound == len(result.Results) && result.TotalFound > 0, nil
	default:
		return false, nil
	}
}

// open fetches, decrypts and parses a token's payload into a fresh
// session. The caller owns teardown.
func (s *Service) open(ctx context.Context, tokenID int64) (*session, error) {
	contentID, ok := s.ContentID(tokenID)
	if !ok {
		return nil, ErrUnknownToken
	}
	ciphertext, err := s.content.Fetch(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("fetch payload: %w", err)
	}
	plaintext, err := s.vault.DecryptBytes(ciphertext, s.dataKey)
	if err != nil {
		metrics.RecordDecryptFailure()
		return nil, fmt.Errorf("decrypt payload: %w", err)
	}

	set, stats := s.analysis.Parse(plaintext)
	metrics.RecordParseSkipped(string(stats.Format), stats.Skipped)

	return &session{set: set, plaintext: plaintext}, nil
}

func (s *Service) prove(q genome.Query, result *genome.AnalysisResult) (*proof.Proof, error) {
	switch result.QueryType {
	case "variant_check":
		return s.proofs.GenerateBoolean(q.QueryID, q.TokenID, result.QueryType, result.Matches,
			map[string]interface{}{"rsid": result.RSID})
	case "trait_query":
		if result.Found {
			return s.proofs.GenerateTrait(q.QueryID, q.TokenID, result.Trait, result.Prediction, result.Confidence)
		}
		return s.proofs.GenerateBoolean(q.QueryID, q.TokenID, result.QueryType, false,
			map[string]interface{}{"trait": result.Trait})
	case "variant_search":
		return s.proofs.GenerateCount(q.QueryID, q.TokenID, len(result.Results), result.TotalFound)
	default:
		return s.proofs.GenerateBoolean(q.QueryID, q.TokenID, result.QueryType, result.Found, nil)
	}
}

func sessionID(queryID string, tokenID int64, now time.Time) string {
	h := sha256.New()
	h.Write([]byte(queryID))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatInt(tokenID, 10)))
	h.Write([]byte("|"))
	h.Write([]byte(now.Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// responseHash binds a result to its query id: H(queryID ‖ canonical(result)).
func responseHash(queryID string, result *genome.AnalysisResult) (string, error) {
	canonical, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(queryID))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func requestType(req genome.AnalysisRequest) string {
	switch req.(type) {
	case genome.VariantCheck:
		return "variant_check"
	case genome.TraitQuery:
		return "trait_query"
	case genome.BatchVariantSearch:
		return "variant_search"
	default:
		return "unknown"
	}
}

func interpreterPrompt(question string, predictions []genome.TraitPrediction) string {
	// Only the derived trait, prediction and confidence cross the trust
	// boundary; supporting SNP details stay inside the session.
	type finding struct {
		Trait      string  `json:"trait"`
		Prediction string  `json:"prediction"`
		Confidence float64 `json:"confidence"`
	}
	reduced := make([]finding, len(predictions))
	for i, p := range predictions {
		reduced[i] = finding{Trait: p.Trait, Prediction: p.Prediction, Confidence: p.Confidence}
	}
	findings, _ := json.Marshal(reduced)
	return fmt.Sprintf(
		"You are a genetics assistant. Answer the user's question using only "+
			"the derived findings below. Do not speculate beyond them.\n\n"+
			"Findings: %s\n\nQuestion: %s",
		findings, question)
}
