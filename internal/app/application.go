package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/HelixVault/agent_layer/internal/app/services/analysis"
	"github.com/HelixVault/agent_layer/internal/app/services/proofs"
	"github.com/HelixVault/agent_layer/internal/app/services/sessions"
	"github.com/HelixVault/agent_layer/internal/app/services/vaultcrypto"
	"github.com/HelixVault/agent_layer/internal/app/storage"
	"github.com/HelixVault/agent_layer/internal/app/storage/memory"
	"github.com/HelixVault/agent_layer/internal/app/system"
	"github.com/HelixVault/agent_layer/internal/config"
	"github.com/HelixVault/agent_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Content storage.ContentStore
	Audit   storage.AuditStore
}

// Options carries the key material and optional collaborators the
// application is built with. Signature is the wallet signature over the
// key-derivation message; it never leaves the process.
type Options struct {
	Config      *config.Config
	Stores      Stores
	Interpreter sessions.Interpreter
	Log         *logger.Logger
}

// Application ties the agent's services together and manages their
// lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	dataKey []byte

	Vault    *vaultcrypto.Service
	Analysis *analysis.Service
	Proofs   *proofs.Service
	Sessions *sessions.Service
}

// New builds a fully initialised application. The configured wallet
// signature authorises key derivation; when agent.wallet_address is set
// the signature is verified against it first.
func New(opts Options) (*Application, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("app")
	}

	vault := vaultcrypto.New(log)

	signature, salt, err := keyMaterial(cfg)
	if err != nil {
		return nil, err
	}
	if addr := cfg.Agent.WalletAddress; addr != "" {
		if !vault.VerifyWalletSignature(vault.SigningMessage(salt), signature, addr) {
			return nil, errors.New("app: wallet signature does not match configured address")
		}
	}

	dataKey, err := vault.DeriveKey(signature, salt)
	if err != nil {
		return nil, fmt.Errorf("derive data key: %w", err)
	}
	// A separate secret for the proof engine, so settlement counterparts
	// holding it cannot decrypt stored payloads.
	proofSecret := vaultcrypto.DataHash(append(append([]byte(nil), dataKey...), []byte(cfg.Agent.IssuerID)...))

	stores := opts.Stores
	mem := memory.New()
	if stores.Content == nil {
		stores.Content = mem
	}
	if stores.Audit == nil {
		stores.Audit = mem
	}

	analysisService := analysis.New(log)

	proofService, err := proofs.New(proofSecret, cfg.Agent.IssuerID, log)
	if err != nil {
		return nil, fmt.Errorf("init proof engine: %w", err)
	}

	fileSink, err := sessions.NewFileSink(cfg.Audit.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	var sink sessions.Sink = sessions.NewStoreSink(stores.Audit)
	if fileSink != nil {
		sink = sessions.NewMultiSink(sink, fileSink)
	}
	auditLog := sessions.NewAuditLog(cfg.Audit.MaxEntries, sink)

	sessionService, err := sessions.New(sessions.Config{
		Log:         log,
		Content:     stores.Content,
		Vault:       vault,
		Analysis:    analysisService,
		Proofs:      proofService,
		Audit:       auditLog,
		Interpreter: opts.Interpreter,
		DataKey:     dataKey,
	})
	if err != nil {
		return nil, fmt.Errorf("init session orchestrator: %w", err)
	}

	manager := system.NewManager()
	for _, name := range []string{"vaultcrypto", "analysis", "proofs", "sessions"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}
	if closer, ok := stores.Content.(io.Closer); ok {
		if err := manager.Register(closerService{name: "content-store", closer: closer}); err != nil {
			return nil, fmt.Errorf("register content store: %w", err)
		}
	}
	if fileSink != nil {
		if err := manager.Register(closerService{name: "audit-file", closer: fileSink}); err != nil {
			return nil, fmt.Errorf("register audit file: %w", err)
		}
	}

	return &Application{
		manager:  manager,
		log:      log,
		dataKey:  dataKey,
		Vault:    vault,
		Analysis: analysisService,
		Proofs:   proofService,
		Sessions: sessionService,
	}, nil
}

// Start brings all managed components up.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts managed components down and wipes every copy of the data key.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	if cerr := a.Sessions.Close(); cerr != nil && err == nil {
		err = cerr
	}
	for i := range a.dataKey {
		a.dataKey[i] = 0
	}
	return err
}

// StoreGenome encrypts raw genetic data, uploads the payload to the
// content store and binds the resulting content ID to the token. The raw
// bytes are never persisted.
func (a *Application) StoreGenome(ctx context.Context, tokenID int64, raw []byte, name string) (storage.UploadResult, error) {
	encrypted, err := a.Vault.EncryptToBytes(raw, a.dataKey, true)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("encrypt payload: %w", err)
	}
	up, err := a.Sessions.Upload(ctx, encrypted, name)
	if err != nil {
		return storage.UploadResult{}, fmt.Errorf("upload payload: %w", err)
	}
	a.Sessions.RegisterToken(tokenID, up.ContentID)
	a.log.WithField("token_id", tokenID).Infof("genome payload stored (%d bytes encrypted)", up.Size)
	return up, nil
}

func keyMaterial(cfg *config.Config) (signature, salt []byte, err error) {
	if cfg.Agent.SignatureHex == "" {
		return nil, nil, errors.New("app: agent.signature_hex (or AGENT_SIGNATURE) is required")
	}
	signature, err = hex.DecodeString(trim0x(cfg.Agent.SignatureHex))
	if err != nil {
		return nil, nil, fmt.Errorf("decode signature: %w", err)
	}
	if cfg.Agent.SaltHex != "" {
		salt, err = hex.DecodeString(trim0x(cfg.Agent.SaltHex))
		if err != nil {
			return nil, nil, fmt.Errorf("decode salt: %w", err)
		}
	}
	return signature, salt, nil
}

func trim0x(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}

// closerService adapts an io.Closer to the lifecycle interface so stores
// shut down with the application.
type closerService struct {
	name   string
	closer io.Closer
}

func (s closerService) Name() string                { return s.name }
func (s closerService) Start(context.Context) error { return nil }
func (s closerService) Stop(context.Context) error  { return s.closer.Close() }
