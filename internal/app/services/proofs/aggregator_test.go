package proofs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
)

func TestMerkleRootEmptyBatch(t *testing.T) {
	a := NewAggregator()
	if root := a.MerkleRoot(); !bytes.Equal(root, make([]byte, 32)) {
		t.Fatalf("empty batch root must be 32 zero bytes, got %x", root)
	}
}

func TestMerkleRootDeterministic(t *testing.T) {
	s := testEngine(t)
	a := NewAggregator()
	for i := 0; i < 3; i++ {
		p, err := s.GenerateBoolean("q", int64(i), "variant_check", true, nil)
		if err != nil {
			t.Fatalf("GenerateBoolean: %v", err)
		}
		a.Add(p)
	}
	first := a.MerkleRoot()
	second := a.MerkleRoot()
	if !bytes.Equal(first, second) {
		t.Fatal("root must be stable across calls")
	}
	if a.Len() != 3 {
		t.Fatalf("Len = %d, want 3", a.Len())
	}
}

func TestMerkleRootOddCountDuplicatesLast(t *testing.T) {
	leaf := func(b byte) []byte { return bytes.Repeat([]byte{b}, 32) }
	pair := func(l, r []byte) []byte {
		h := sha256.New()
		h.Write(l)
		h.Write(r)
		return h.Sum(nil)
	}

	got := merkleRoot([][]byte{leaf(1), leaf(2), leaf(3)})
	want := pair(pair(leaf(1), leaf(2)), pair(leaf(3), leaf(3)))
	if !bytes.Equal(got, want) {
		t.Fatalf("odd-count root mismatch:\n got %x\nwant %x", got, want)
	}
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	leaf := bytes.Repeat([]byte{0x07}, 32)
	if got := merkleRoot([][]byte{leaf}); !bytes.Equal(got, leaf) {
		t.Fatalf("single leaf must be its own root, got %x", got)
	}
}

func TestSerializeBatch(t *testing.T) {
	s := testEngine(t)
	a := NewAggregator()
	for i := 0; i < 2; i++ {
		p, err := s.GenerateCount("q", int64(i), 3, 1)
		if err != nil {
			t.Fatalf("GenerateCount: %v", err)
		}
		a.Add(p)
	}

	data, err := a.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	var batch struct {
		Count      int      `json:"count"`
		MerkleRoot string   `json:"merkle_root"`
		Proofs     []string `json:"proofs"`
	}
	if err := json.Unmarshal(data, &batch); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}
	if batch.Count != 2 || len(batch.Proofs) != 2 {
		t.Fatalf("batch count mismatch: %+v", batch)
	}
	root, err := hex.DecodeString(batch.MerkleRoot)
	if err != nil {
		t.Fatalf("decode root: %v", err)
	}
	if !bytes.Equal(root, a.MerkleRoot()) {
		t.Fatal("serialized root differs from computed root")
	}
}
