package app

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/HelixVault/agent_layer/internal/app/domain/genome"
	"github.com/HelixVault/agent_layer/internal/app/services/vaultcrypto"
	"github.com/HelixVault/agent_layer/internal/config"
)

const sampleGenome = `# rsid	chromosome	position	genotype
rs12913832	15	28365618	GG
rs4988235	2	136608646	GA
`

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Agent.IssuerID = "agent-test"
	cfg.Agent.SignatureHex = "aa11bb22cc33dd44ee55ff6600112233445566778899aabbccddeeff00112233"
	return cfg
}

func TestApplicationEndToEnd(t *testing.T) {
	application, err := New(Options{Config: testConfig()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer application.Stop(ctx)

	if _, err := application.StoreGenome(ctx, 1, []byte(sampleGenome), "genome.txt"); err != nil {
		t.Fatalf("StoreGenome: %v", err)
	}

	resp := application.Sessions.Execute(ctx, genome.Query{
		QueryID: "q-app-1",
		TokenID: 1,
		Request: genome.VariantCheck{RSID: "rs12913832", Genotype: "GG"},
	})
	if resp.Status != genome.StatusCompleted {
		t.Fatalf("status = %s (%s)", resp.Status, resp.Err)
	}
	if !resp.Result.Matches {
		t.Fatalf("expected genotype match: %+v", resp.Result)
	}
}

func TestNewVerifiesWalletSignature(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	address := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()

	cfg := testConfig()
	cfg.Agent.WalletAddress = address

	if _, err := New(Options{Config: cfg}); err == nil {
		t.Fatal("arbitrary signature must not pass wallet verification")
	}

	// A genuine signature over the signing message is accepted.
	vault := vaultcrypto.New(nil)
	digest := accounts.TextHash([]byte(vault.SigningMessage(nil)))
	sig, err := ethcrypto.Sign(digest, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	cfg.Agent.SignatureHex = hex.EncodeToString(sig)

	if _, err := New(Options{Config: cfg}); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestNewRequiresSignature(t *testing.T) {
	cfg := testConfig()
	cfg.Agent.SignatureHex = ""
	if _, err := New(Options{Config: cfg}); err == nil {
		t.Fatal("expected error without signature material")
	}
}
