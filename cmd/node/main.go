// Command node starts a timekeeper validator node: the PoH clock, PoA
// consensus, P2P networking, and the JSON-RPC endpoint, all in one process.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tolelom/timekeeper/config"
	"github.com/tolelom/timekeeper/consensus"
	"github.com/tolelom/timekeeper/core"
	"github.com/tolelom/timekeeper/crypto/certgen"
	"github.com/tolelom/timekeeper/events"
	"github.com/tolelom/timekeeper/indexer"
	"github.com/tolelom/timekeeper/network"
	"github.com/tolelom/timekeeper/poh"
	"github.com/tolelom/timekeeper/pool"
	"github.com/tolelom/timekeeper/rpc"
	"github.com/tolelom/timekeeper/storage"
	"github.com/tolelom/timekeeper/thread"
	"github.com/tolelom/timekeeper/vm"
	"github.com/tolelom/timekeeper/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/timekeeper/vm/modules/asset"
	_ "github.com/tolelom/timekeeper/vm/modules/economy"
	_ "github.com/tolelom/timekeeper/vm/modules/market"
	_ "github.com/tolelom/timekeeper/vm/modules/session"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit (requires node ID from config)")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	// Read keystore password from environment (not CLI flags — they leak via ps).
	password := os.Getenv("TIMEKEEPER_PASSWORD")
	if password == "" {
		log.Warn().Msg("TIMEKEEPER_PASSWORD not set — keystore will use an empty password")
	}

	// ---- generate key mode ----
	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal().Err(err).Msg("generate key")
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal().Err(err).Msg("save key")
		}
		fmt.Printf("Generated key. Public key (validator address): %s\n", w.PubKey())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	// ---- generate certs mode ----
	if *genCerts != "" {
		cfgForCerts, err := loadConfig(*cfgPath)
		if err != nil {
			log.Fatal().Err(err).Msg("config")
		}
		if err := certgen.GenerateAll(*genCerts, cfgForCerts.NodeID, nil); err != nil {
			log.Fatal().Err(err).Msg("gencerts")
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, cfgForCerts.NodeID)
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// ---- load validator key ----
	privKey, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		log.Fatal().Err(err).Msg("load key")
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("mkdir data dir")
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	stateDB := db // reuse same DB with different key prefixes
	blockStore := storage.NewLevelBlockStore(db)

	// ---- initialise state ----
	state := storage.NewStateDB(stateDB)

	// ---- initialise blockchain ----
	bc := core.NewBlockchain(blockStore)
	if err := bc.Init(); err != nil {
		log.Fatal().Err(err).Msg("blockchain init")
	}

	// ---- genesis block (if fresh chain) ----
	if bc.Tip() == nil {
		genesisBlock, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			log.Fatal().Err(err).Msg("genesis")
		}
		if err := bc.AddBlock(genesisBlock); err != nil {
			log.Fatal().Err(err).Msg("add genesis")
		}
		log.Info().Str("hash", genesisBlock.Hash).Msg("genesis block committed")
	}

	// ---- events ----
	emitter := events.NewEmitter()

	// ---- worker pool shared by signature verification (awaited inside
	// block execution) and index maintenance (not awaited) ----
	verifyPool, err := pool.New("tx-verify", thread.DefaultConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("create worker pool")
	}
	defer verifyPool.Shutdown()

	// ---- indexer ----
	idx := indexer.NewPooled(db, emitter, verifyPool)

	// ---- mempool ----
	mempool := core.NewMempool()

	// ---- VM executor, validates every block's transaction signatures
	// concurrently before sequential, deterministic state application ----
	exec := vm.NewExecutorPooled(state, emitter, verifyPool)

	// ---- proof-of-history clock, seeded from the genesis/tip hash so a
	// restarted node continues the same chain identity ----
	tip := bc.Tip()
	seed := []byte(cfg.Genesis.ChainID)
	if tip != nil {
		seed = []byte(tip.Hash)
	}
	pohEngine := poh.New(seed)

	// ---- consensus ----
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, pohEngine, privKey)

	// ---- TLS ----
	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		log.Fatal().Err(err).Msg("tls")
	}
	if tlsCfg != nil {
		log.Info().Msg("mTLS enabled for P2P")
	}

	// ---- network ----
	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	node := network.NewNode(cfg.NodeID, p2pAddr, mempool, tlsCfg)
	syncer := network.NewSyncer(node, bc, poa, exec, state)
	if err := node.Start(); err != nil {
		log.Fatal().Err(err).Msg("p2p start")
	}
	defer node.Stop()
	log.Info().Str("addr", p2pAddr).Msg("p2p listening")

	// ---- connect to seed peers ----
	for _, sp := range cfg.SeedPeers {
		if err := node.AddPeer(sp.ID, sp.Addr); err != nil {
			log.Warn().Err(err).Str("peer", sp.ID).Str("addr", sp.Addr).Msg("seed peer dial failed")
			continue
		}
		// Trigger initial block sync with the newly connected peer.
		if peer := node.Peer(sp.ID); peer != nil {
			syncer.SyncWithPeer(peer)
		}
		log.Info().Str("peer", sp.ID).Str("addr", sp.Addr).Msg("connected to seed peer")
	}

	// ---- RPC ----
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(bc, mempool, state, idx, cfg.Genesis.ChainID)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken)
	if err := rpcServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("rpc start")
	}
	defer rpcServer.Stop()
	log.Info().Str("addr", rpcAddr).Msg("rpc listening")
	if cfg.RPCAuthToken != "" {
		log.Info().Msg("rpc bearer token authentication enabled")
	}

	// ---- consensus loop ----
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poa.Run(2*time.Second, done)
	}()
	log.Info().Str("validator", privKey.Public().Hex()).Msg("consensus running")

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	// 1. Stop consensus first (no new blocks written)
	close(done)
	wg.Wait()

	// 2. Deferred calls run in LIFO: rpcServer.Stop → node.Stop → verifyPool.Shutdown → db.Close
	log.Info().Msg("shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("config file not found, using defaults")
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
