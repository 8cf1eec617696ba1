package main

import (
	"testing"

	"github.com/tolelom/timekeeper/config"
	"github.com/tolelom/timekeeper/consensus"
	"github.com/tolelom/timekeeper/core"
	"github.com/tolelom/timekeeper/events"
	"github.com/tolelom/timekeeper/indexer"
	"github.com/tolelom/timekeeper/internal/testutil"
	"github.com/tolelom/timekeeper/poh"
	"github.com/tolelom/timekeeper/pool"
	"github.com/tolelom/timekeeper/rpc"
	"github.com/tolelom/timekeeper/thread"
	"github.com/tolelom/timekeeper/vm"
	"github.com/tolelom/timekeeper/wallet"

	_ "github.com/tolelom/timekeeper/vm/modules/asset"
	_ "github.com/tolelom/timekeeper/vm/modules/economy"
	_ "github.com/tolelom/timekeeper/vm/modules/market"
	_ "github.com/tolelom/timekeeper/vm/modules/session"
)

// testNode wires every consumer-layer package together against in-memory
// storage, the same way main() wires them against LevelDB, so a single test
// can drive a validator end to end: genesis, block production anchored to a
// PoH tick, transaction execution, indexing and RPC dispatch.
type testNode struct {
	cfg     *config.Config
	bc      *core.Blockchain
	state   core.State
	mempool *core.Mempool
	poa     *consensus.PoA
	rpc     *rpc.Handler
	pool    *pool.Pool
}

func startTestNode(t *testing.T, validator *wallet.Wallet) *testNode {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Genesis.ChainID = "integration-test"
	cfg.Validators = []string{validator.PubKey()}

	state := testutil.NewStateDB()
	bc := core.NewBlockchain(testutil.NewMemBlockStore())
	if err := bc.Init(); err != nil {
		t.Fatal(err)
	}

	genesisBlock, err := config.CreateGenesisBlock(cfg, state, validator.PrivKey())
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if err := bc.AddBlock(genesisBlock); err != nil {
		t.Fatalf("add genesis: %v", err)
	}

	emitter := events.NewEmitter()

	p, err := pool.New("test-pool", thread.Config{
		CoreAllocation: thread.Default(),
		MaxThreads:     4,
		StackSizeBytes: 64 * 1024,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(p.Shutdown)

	idx := indexer.NewPooled(testutil.NewMemDB(), emitter, p)
	mempool := core.NewMempool()
	exec := vm.NewExecutorPooled(state, emitter, p)
	pohEngine := poh.New([]byte(cfg.Genesis.ChainID))

	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, pohEngine, validator.PrivKey())
	rpcHandler := rpc.NewHandler(bc, mempool, state, idx, cfg.Genesis.ChainID)

	return &testNode{cfg: cfg, bc: bc, state: state, mempool: mempool, poa: poa, rpc: rpcHandler, pool: p}
}

func TestGameIntegration(t *testing.T) {
	validator, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}
	node := startTestNode(t, validator)

	alice, _ := wallet.Generate()
	bob, _ := wallet.Generate()
	if err := node.state.SetAccount(&core.Account{Address: alice.PubKey(), Balance: 1000}); err != nil {
		t.Fatal(err)
	}

	tx, err := alice.Transfer(node.cfg.Genesis.ChainID, bob.PubKey(), 250, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := node.mempool.Add(tx); err != nil {
		t.Fatalf("mempool add: %v", err)
	}

	if !node.poa.IsProposer() {
		t.Fatal("single validator should always be the proposer")
	}
	block, err := node.poa.ProduceBlock()
	if err != nil {
		t.Fatalf("ProduceBlock: %v", err)
	}

	if block.Header.PoHHash == "" {
		t.Error("block should carry a PoH anchor")
	}
	if len(block.Transactions) != 1 {
		t.Fatalf("block tx count: got %d want 1", len(block.Transactions))
	}

	aliceAcc, err := node.state.GetAccount(alice.PubKey())
	if err != nil {
		t.Fatal(err)
	}
	if aliceAcc.Balance != 750 {
		t.Errorf("alice balance: got %d want 750", aliceAcc.Balance)
	}
	bobAcc, err := node.state.GetAccount(bob.PubKey())
	if err != nil {
		t.Fatal(err)
	}
	if bobAcc.Balance != 250 {
		t.Errorf("bob balance: got %d want 250", bobAcc.Balance)
	}

	if node.mempool.Size() != 0 {
		t.Errorf("mempool should be drained after block production, got %d", node.mempool.Size())
	}

	resp := node.rpc.Dispatch(rpc.Request{ID: 1, Method: "getPoHRecord"})
	if resp.Error != nil {
		t.Fatalf("getPoHRecord: %v", resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("result type: got %T", resp.Result)
	}
	if result["poh_hash"] != block.Header.PoHHash {
		t.Errorf("poh_hash mismatch: rpc %v block %v", result["poh_hash"], block.Header.PoHHash)
	}
}

func TestValidateBlockRejectsWrongProposer(t *testing.T) {
	proposer, _ := wallet.Generate()
	impostor, _ := wallet.Generate()
	node := startTestNode(t, proposer)

	forged := core.NewBlock(node.cfg.Genesis.ChainID, 1, node.bc.Tip().Hash, impostor.PubKey(), nil)
	forged.Sign(impostor.PrivKey())

	if err := node.poa.ValidateBlock(forged); err == nil {
		t.Fatal("block from a non-designated proposer should be rejected")
	}
}
