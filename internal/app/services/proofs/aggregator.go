package proofs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/HelixVault/agent_layer/internal/app/domain/proof"
)

// Aggregator batches proofs for bulk settlement, committing to the set
// with a Merkle root over the individual commitments.
type Aggregator struct {
	mu     sync.Mutex
	proofs []*proof.Proof
}

// NewAggregator returns an empty batch.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add appends a proof to the batch.
func (a *Aggregator) Add(p *proof.Proof) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.proofs = append(a.proofs, p)
}

// Len reports the number of proofs in the batch.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.proofs)
}

// MerkleRoot computes the root over the batch's commitments. An odd level
// duplicates its last node; an empty batch yields 32 zero bytes.
func (a *Aggregator) MerkleRoot() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return merkleRoot(a.leaves())
}

// Serialize renders the batch as the settlement submission: proof count,
// Merkle root, and each proof in its transport encoding.
func (a *Aggregator) Serialize() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	encoded := make([]string, len(a.proofs))
	for i, p := range a.proofs {
		data, err := p.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode proof %d: %w", i, err)
		}
		encoded[i] = hex.EncodeToString(data)
	}

	batch := struct {
		Count      int      `json:"count"`
		MerkleRoot string   `json:"merkle_root"`
		Proofs     []string `json:"proofs"`
	}{
		Count:      len(a.proofs),
		MerkleRoot: hex.EncodeToString(merkleRoot(a.leaves())),
		Proofs:     encoded,
	}
	return json.Marshal(batch)
}

func (a *Aggregator) leaves() [][]byte {
	leaves := make([][]byte, len(a.proofs))
	for i, p := range a.proofs {
		leaves[i] = p.Commitment
	}
	return leaves
}

func merkleRoot(level [][]byte) []byte {
	if len(level) == 0 {
		return make([]byte, sha256.Size)
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			h := sha256.New()
			h.Write(level[i])
			h.Write(level[i+1])
			next = append(next, h.Sum(nil))
		}
		level = next
	}
	return level[0]
}
