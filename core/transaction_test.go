package core

import (
	"testing"

	"github.com/tolelom/timekeeper/crypto"
)

const testChainID = "test-chain"

func newSignedTx(t *testing.T, priv crypto.PrivateKey, pub crypto.PublicKey, nonce, fee uint64, payload any) *Transaction {
	t.Helper()
	tx, err := NewTransaction(testChainID, TxTransfer, pub.Hex(), nonce, fee, payload)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	tx.Sign(priv)
	return tx
}

func TestTransactionSignVerify(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tx := newSignedTx(t, priv, pub, 0, 0, TransferPayload{To: "deadbeef", Amount: 100})
	if tx.ID == "" {
		t.Error("tx ID should be set after signing")
	}
	if err := tx.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	tx.Fee = 999
	if err := tx.Verify(); err == nil {
		t.Error("tampered tx should fail verification")
	}
}

func TestTransactionChainIDCoveredBySignature(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	tx := newSignedTx(t, priv, pub, 0, 0, TransferPayload{To: "deadbeef", Amount: 100})
	tx.ChainID = "other-chain"
	if err := tx.Verify(); err == nil {
		t.Error("signature should not verify after changing chain_id")
	}
}
