package vm

import (
	"testing"

	"github.com/tolelom/timekeeper/core"
	"github.com/tolelom/timekeeper/crypto"
	"github.com/tolelom/timekeeper/events"
	"github.com/tolelom/timekeeper/internal/testutil"
	"github.com/tolelom/timekeeper/pool"
	"github.com/tolelom/timekeeper/thread"
	"github.com/tolelom/timekeeper/wallet"

	_ "github.com/tolelom/timekeeper/vm/modules/asset"
	_ "github.com/tolelom/timekeeper/vm/modules/economy"
	_ "github.com/tolelom/timekeeper/vm/modules/market"
	_ "github.com/tolelom/timekeeper/vm/modules/session"
)

const testChainID = "test-chain"

func newInMemState(t *testing.T) core.State {
	t.Helper()
	return testutil.NewStateDB()
}

func TestTokenTransfer(t *testing.T) {
	state := newInMemState(t)
	emitter := events.NewEmitter()
	exec := NewExecutor(state, emitter)

	sender, _ := wallet.Generate()
	receiver, _ := wallet.Generate()

	_ = state.SetAccount(&core.Account{Address: sender.PubKey(), Balance: 1000})

	tx, err := sender.Transfer(testChainID, receiver.PubKey(), 300, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	block := core.NewBlock(testChainID, 1, "0000", sender.PubKey(), []*core.Transaction{tx})
	if err := exec.ExecuteTx(block, tx); err != nil {
		t.Fatalf("ExecuteTx: %v", err)
	}

	senderAcc, _ := state.GetAccount(sender.PubKey())
	if senderAcc.Balance != 700 {
		t.Errorf("sender balance: got %d want 700", senderAcc.Balance)
	}
	receiverAcc, _ := state.GetAccount(receiver.PubKey())
	if receiverAcc.Balance != 300 {
		t.Errorf("receiver balance: got %d want 300", receiverAcc.Balance)
	}
}

func TestMintAsset(t *testing.T) {
	state := newInMemState(t)
	emitter := events.NewEmitter()
	exec := NewExecutor(state, emitter)

	creator, _ := wallet.Generate()
	_ = state.SetAccount(&core.Account{Address: creator.PubKey(), Balance: 1000})

	block := core.NewBlock(testChainID, 1, "0000", creator.PubKey(), nil)

	regTx, err := creator.NewTx(testChainID, core.TxRegisterTemplate, 0, 0, core.RegisterTemplatePayload{
		ID:        "sword-template",
		Name:      "Sword",
		Tradeable: true,
		Schema:    map[string]any{"attack": "int"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := exec.ExecuteTx(block, regTx); err != nil {
		t.Fatalf("register template: %v", err)
	}

	mintTx, err := creator.NewTx(testChainID, core.TxMintAsset, 1, 0, core.MintAssetPayload{
		TemplateID: "sword-template",
		Owner:      creator.PubKey(),
		Properties: map[string]any{"attack": 50},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := exec.ExecuteTx(block, mintTx); err != nil {
		t.Fatalf("mint asset: %v", err)
	}

	expectedID := crypto.Hash([]byte(mintTx.ID + ":asset:sword-template"))

	asset, err := state.GetAsset(expectedID)
	if err != nil {
		t.Fatalf("GetAsset(%s): %v", expectedID, err)
	}
	if asset.Owner != creator.PubKey() {
		t.Errorf("owner: got %s want %s", asset.Owner, creator.PubKey())
	}
	if asset.TemplateID != "sword-template" {
		t.Errorf("template_id: got %s want sword-template", asset.TemplateID)
	}
	if !asset.Tradeable {
		t.Error("asset should be tradeable (inherited from template)")
	}
}

func TestNonceReplay(t *testing.T) {
	state := newInMemState(t)
	exec := NewExecutor(state, events.NewEmitter())

	w, _ := wallet.Generate()
	_ = state.SetAccount(&core.Account{Address: w.PubKey(), Balance: 1000})

	block := core.NewBlock(testChainID, 1, "0000", w.PubKey(), nil)

	tx1, _ := w.Transfer(testChainID, "aabb", 1, 0, 0)
	if err := exec.ExecuteTx(block, tx1); err != nil {
		t.Fatalf("first tx: %v", err)
	}
	if err := exec.ExecuteTx(block, tx1); err == nil {
		t.Error("replay should fail due to nonce mismatch")
	}
}

// TestExecuteBlockPooledRejectsBadSignature verifies that the pooled,
// concurrent signature-verification path rejects a block with one bad
// signature before any transaction in it is applied to state.
func TestExecuteBlockPooledRejectsBadSignature(t *testing.T) {
	state := newInMemState(t)
	p, err := pool.New("test-verify", thread.Config{
		CoreAllocation: thread.Default(),
		MaxThreads:     4,
		StackSizeBytes: 64 * 1024,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	exec := NewExecutorPooled(state, events.NewEmitter(), p)

	w, _ := wallet.Generate()
	_ = state.SetAccount(&core.Account{Address: w.PubKey(), Balance: 1000})

	good, _ := w.Transfer(testChainID, "aabb", 1, 0, 0)
	bad, _ := w.Transfer(testChainID, "ccdd", 1, 1, 0)
	bad.Signature = "00"

	block := core.NewBlock(testChainID, 1, "0000", w.PubKey(), []*core.Transaction{good, bad})
	if err := exec.ExecuteBlock(block); err == nil {
		t.Fatal("block with a bad signature should be rejected")
	}

	acc, _ := state.GetAccount(w.PubKey())
	if acc.Balance != 1000 {
		t.Errorf("balance should be untouched after a rejected block, got %d", acc.Balance)
	}
}
