package core

import (
	"testing"

	"github.com/tolelom/timekeeper/crypto"
)

func TestBlockHash(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := NewBlock(testChainID, 1, "0000", pub.Hex(), nil)
	block.Sign(priv)

	if block.Hash == "" {
		t.Error("hash should be set after signing")
	}
	if block.ComputeHash() != block.Hash {
		t.Error("ComputeHash() does not match stored hash")
	}
}

func TestBlockVerifyDetectsTamperedHeader(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := NewBlock(testChainID, 1, "0000", pub.Hex(), nil)
	block.Sign(priv)

	block.Header.Height = 2
	if err := block.Verify(pub); err == nil {
		t.Error("tampered header should fail Verify")
	}
}

func TestBlockPoHFieldsRoundTripThroughHash(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := NewBlock(testChainID, 1, "0000", pub.Hex(), nil)
	block.Header.PoHHash = "abc123"
	block.Header.PoHTick = 42
	block.Sign(priv)

	if err := block.Verify(pub); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	block.Header.PoHTick = 43
	if computed := block.ComputeHash(); computed == block.Hash {
		t.Error("changing PoHTick should change the computed header hash")
	}
}
