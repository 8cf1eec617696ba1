package core

import (
	"testing"

	"github.com/tolelom/timekeeper/crypto"
)

func TestMempool(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	mp := NewMempool()

	tx := newSignedTx(t, priv, pub, 0, 0, TransferPayload{To: "aa", Amount: 1})
	if err := mp.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if mp.Size() != 1 {
		t.Errorf("size: got %d want 1", mp.Size())
	}

	if err := mp.Add(tx); err == nil {
		t.Error("adding duplicate tx should fail")
	}

	pending := mp.Pending(10)
	if len(pending) != 1 {
		t.Errorf("pending: got %d want 1", len(pending))
	}

	mp.Remove([]string{tx.ID})
	if mp.Size() != 0 {
		t.Error("pool should be empty after remove")
	}
}

func TestMempoolRejectsInvalidSignature(t *testing.T) {
	_, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	mp := NewMempool()
	tx, err := NewTransaction(testChainID, TxTransfer, pub.Hex(), 0, 0, TransferPayload{To: "aa", Amount: 1})
	if err != nil {
		t.Fatal(err)
	}
	tx.Signature = "not-a-real-signature"
	tx.ID = tx.Hash()
	if err := mp.Add(tx); err == nil {
		t.Error("unsigned/invalid tx should be rejected")
	}
}
