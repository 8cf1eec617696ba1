// Package indexer maintains secondary indexes over committed blocks so game
// servers can query assets/sessions by owner without scanning full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tolelom/timekeeper/core"
	"github.com/tolelom/timekeeper/events"
	"github.com/tolelom/timekeeper/pool"
	"github.com/tolelom/timekeeper/storage"
)

const (
	prefixOwnerAssets   = "idx:owner:asset:"
	prefixPlayerSession = "idx:player:session:"
)

// Indexer subscribes to chain events and updates secondary lookup tables.
// When backed by a pool, index writes are submitted as jobs rather than run
// on the emitting goroutine, so block commit never waits on index I/O;
// writeMu still serializes the read-modify-write list updates themselves,
// since the pool offers no ordering guarantee across jobs touching the same
// key.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
	pool    *pool.Pool

	writeMu sync.RWMutex
}

// New creates an Indexer backed by db and subscribes to relevant events.
// Index writes run synchronously on the emitting goroutine.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	return newIndexer(db, emitter, nil)
}

// NewPooled is like New but submits every index write to p, decoupling
// index maintenance from block commit latency.
func NewPooled(db storage.DB, emitter *events.Emitter, p *pool.Pool) *Indexer {
	return newIndexer(db, emitter, p)
}

func newIndexer(db storage.DB, emitter *events.Emitter, p *pool.Pool) *Indexer {
	idx := &Indexer{db: db, emitter: emitter, pool: p}
	emitter.Subscribe(events.EventAssetMinted, idx.onAssetMinted)
	emitter.Subscribe(events.EventAssetTransfer, idx.onAssetTransferred)
	emitter.Subscribe(events.EventAssetBurned, idx.onAssetBurned)
	emitter.Subscribe(events.EventSessionOpen, idx.onSessionOpen)
	return idx
}

// submit runs job on the backing pool if one is configured, otherwise
// inline. Pool submission failures (e.g. a pool mid-shutdown) fall back to
// running the job inline rather than silently dropping an index update.
func (idx *Indexer) submit(job func()) {
	if idx.pool == nil {
		job()
		return
	}
	if err := idx.pool.Submit(func() error {
		job()
		return nil
	}); err != nil {
		log.Warn().Err(err).Msg("index pool submit failed, running inline")
		job()
	}
}

// GetAssetsByOwner returns all asset IDs owned by the given pubkey.
func (idx *Indexer) GetAssetsByOwner(owner string) ([]string, error) {
	idx.writeMu.RLock()
	defer idx.writeMu.RUnlock()
	return idx.getList(prefixOwnerAssets + owner)
}

// GetSessionsByPlayer returns all session IDs a player participated in.
func (idx *Indexer) GetSessionsByPlayer(player string) ([]string, error) {
	idx.writeMu.RLock()
	defer idx.writeMu.RUnlock()
	return idx.getList(prefixPlayerSession + player)
}

// ---- event handlers ----

func (idx *Indexer) onAssetMinted(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if owner == "" || assetID == "" {
		return
	}
	idx.submit(func() {
		idx.writeMu.Lock()
		defer idx.writeMu.Unlock()
		if err := idx.addToList(prefixOwnerAssets+owner, assetID); err != nil {
			log.Error().Err(err).Str("owner", owner).Str("asset", assetID).Msg("mint index write failed")
		}
	})
}

func (idx *Indexer) onAssetTransferred(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if assetID == "" || from == "" || to == "" {
		return
	}
	idx.submit(func() {
		idx.writeMu.Lock()
		defer idx.writeMu.Unlock()
		if err := idx.removeFromList(prefixOwnerAssets+from, assetID); err != nil {
			log.Error().Err(err).Str("from", from).Str("asset", assetID).Msg("transfer index remove failed")
		}
		if err := idx.addToList(prefixOwnerAssets+to, assetID); err != nil {
			log.Error().Err(err).Str("to", to).Str("asset", assetID).Msg("transfer index add failed")
		}
	})
}

func (idx *Indexer) onAssetBurned(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if owner == "" || assetID == "" {
		return
	}
	idx.submit(func() {
		idx.writeMu.Lock()
		defer idx.writeMu.Unlock()
		if err := idx.removeFromList(prefixOwnerAssets+owner, assetID); err != nil {
			log.Error().Err(err).Str("owner", owner).Str("asset", assetID).Msg("burn index remove failed")
		}
	})
}

func (idx *Indexer) onSessionOpen(ev events.Event) {
	sessionID, _ := ev.Data["session_id"].(string)
	players, _ := ev.Data["players"].([]string)
	if sessionID == "" {
		return
	}
	idx.submit(func() {
		idx.writeMu.Lock()
		defer idx.writeMu.Unlock()
		for _, player := range players {
			if player != "" {
				if err := idx.addToList(prefixPlayerSession+player, sessionID); err != nil {
					log.Error().Err(err).Str("player", player).Str("session", sessionID).Msg("session index write failed")
				}
			}
		}
	})
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return fmt.Errorf("read list: %w", err)
	}
	for _, id := range ids {
		if id == value {
			return nil // already present
		}
	}
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) removeFromList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return fmt.Errorf("read list: %w", err)
	}
	if ids == nil {
		return nil
	}
	filtered := ids[:0]
	for _, id := range ids {
		if id != value {
			filtered = append(filtered, id)
		}
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
