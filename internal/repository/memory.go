package repository

import (
    "context"
    "fmt"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/token-auction-market/internal/model"
)

// MemoryStore is an in-process Store implementation guarded by
// per-auction mutexes.  It honors the same critical-section and
// version semantics as the MySQL store: WithAuction serializes all
// access to one auction, writes are staged and only become visible on
// commit, and SaveAuction enforces the version compare-and-swap.
// Used by the service tests and as a dependency-free dev store.
type MemoryStore struct {
    mu         sync.Mutex
    auctions   map[uint64]*model.Auction
    bids       map[uint64][]*model.Bid
    assets     map[assetKey]*model.Asset
    allowances map[uint64]*model.AllowanceGrant
    locks      map[uint64]*sync.Mutex
    nextBidID  uint64
}

type assetKey struct {
    collection uint64
    serial     uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        auctions:   make(map[uint64]*model.Auction),
        bids:       make(map[uint64][]*model.Bid),
        assets:     make(map[assetKey]*model.Asset),
        allowances: make(map[uint64]*model.AllowanceGrant),
        locks:      make(map[uint64]*sync.Mutex),
    }
}

// PutAuction inserts or replaces an auction. Intended for seeding.
func (s *MemoryStore) PutAuction(a *model.Auction) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.auctions[a.ID] = copyAuction(a)
}

// PutAsset inserts or replaces an asset. Intended for seeding.
func (s *MemoryStore) PutAsset(a *model.Asset) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.assets[assetKey{a.CollectionID, a.SerialNumber}] = copyAsset(a)
}

// PutAllowance inserts or replaces an allowance grant. Intended for seeding.
func (s *MemoryStore) PutAllowance(g *model.AllowanceGrant) {
    s.mu.Lock()
    defer s.mu.Unlock()
    cp := *g
    s.allowances[g.AuctionID] = &cp
}

func (s *MemoryStore) GetAuction(_ context.Context, id uint64) (*model.Auction, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    a, ok := s.auctions[id]
    if !ok {
        return nil, ErrAuctionNotFound
    }
    return copyAuction(a), nil
}

func (s *MemoryStore) GetAsset(_ context.Context, collectionID, serialNumber uint64) (*model.Asset, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    a, ok := s.assets[assetKey{collectionID, serialNumber}]
    if !ok {
        return nil, ErrAssetNotFound
    }
    return copyAsset(a), nil
}

func (s *MemoryStore) ListBids(_ context.Context, auctionID uint64) ([]*model.Bid, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    bids := make([]*model.Bid, 0, len(s.bids[auctionID]))
    for _, b := range s.bids[auctionID] {
        bids = append(bids, copyBid(b))
    }
    sort.Slice(bids, func(i, j int) bool { return bids[i].ID > bids[j].ID })
    return bids, nil
}

func (s *MemoryStore) ListDueAuctions(_ context.Context, now time.Time) ([]*model.Auction, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var due []*model.Auction
    for _, a := range s.auctions {
        if a.Status == model.StatusActive && !a.Settled && !now.Before(a.EndTime) {
            due = append(due, copyAuction(a))
        }
    }
    sort.Slice(due, func(i, j int) bool { return due[i].EndTime.Before(due[j].EndTime) })
    return due, nil
}

func (s *MemoryStore) ListStartableAuctions(_ context.Context, now time.Time) ([]*model.Auction, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var startable []*model.Auction
    for _, a := range s.auctions {
        if a.Status == model.StatusPending && a.AllowanceGranted && !now.Before(a.StartTime) {
            startable = append(startable, copyAuction(a))
        }
    }
    sort.Slice(startable, func(i, j int) bool { return startable[i].StartTime.Before(startable[j].StartTime) })
    return startable, nil
}

func (s *MemoryStore) lockFor(id uint64) *sync.Mutex {
    s.mu.Lock()
    defer s.mu.Unlock()
    l, ok := s.locks[id]
    if !ok {
        l = &sync.Mutex{}
        s.locks[id] = l
    }
    return l
}

func (s *MemoryStore) WithAuction(ctx context.Context, id uint64, fn func(tx AuctionTx) error) error {
    lock := s.lockFor(id)
    lock.Lock()
    defer lock.Unlock()

    s.mu.Lock()
    stored, ok := s.auctions[id]
    if !ok {
        s.mu.Unlock()
        return ErrAuctionNotFound
    }
    tx := &memAuctionTx{store: s, auction: copyAuction(stored)}
    for _, b := range s.bids[id] {
        tx.bids = append(tx.bids, copyBid(b))
    }
    if g, ok := s.allowances[id]; ok {
        cp := *g
        tx.allowance = &cp
    }
    for k, a := range s.assets {
        if a.AuctionID != nil && *a.AuctionID == id {
            tx.assetKey = &k
            tx.asset = copyAsset(a)
            break
        }
    }
    s.mu.Unlock()

    if err := fn(tx); err != nil {
        return err
    }

    // Commit staged state.
    s.mu.Lock()
    defer s.mu.Unlock()
    s.auctions[id] = tx.auction
    s.bids[id] = tx.bids
    if tx.allowance != nil {
        s.allowances[id] = tx.allowance
    }
    for k, a := range tx.updatedAssets {
        s.assets[k] = a
    }
    return nil
}

// memAuctionTx stages all writes of one critical section and hands
// them back to the store on commit.
type memAuctionTx struct {
    store         *MemoryStore
    auction       *model.Auction
    bids          []*model.Bid
    asset         *model.Asset
    assetKey      *assetKey
    allowance     *model.AllowanceGrant
    updatedAssets map[assetKey]*model.Asset
}

func (t *memAuctionTx) Auction() *model.Auction { return t.auction }

func (t *memAuctionTx) SaveAuction(a *model.Auction) error {
    if a.Version != t.auction.Version {
        return ErrVersionConflict
    }
    a.Version++
    a.UpdatedAt = time.Now().UTC()
    t.auction = copyAuction(a)
    return nil
}

func (t *memAuctionTx) WinningBid() (*model.Bid, error) {
    for _, b := range t.bids {
        if b.Winning {
            return copyBid(b), nil
        }
    }
    return nil, nil
}

func (t *memAuctionTx) BidCount() (int, error) { return len(t.bids), nil }

func (t *memAuctionTx) ClearWinningBid() error {
    for _, b := range t.bids {
        b.Winning = false
    }
    return nil
}

func (t *memAuctionTx) InsertBid(b *model.Bid) error {
    t.store.mu.Lock()
    t.store.nextBidID++
    b.ID = t.store.nextBidID
    t.store.mu.Unlock()
    if b.CreatedAt.IsZero() {
        b.CreatedAt = time.Now().UTC()
    }
    t.bids = append(t.bids, copyBid(b))
    return nil
}

func (t *memAuctionTx) SetBidSettlementRef(bidID uint64, txRef string) error {
    for _, b := range t.bids {
        if b.ID == bidID {
            ref := txRef
            b.TxRef = &ref
            return nil
        }
    }
    return fmt.Errorf("bid %d not found for auction %d", bidID, t.auction.ID)
}

func (t *memAuctionTx) AssetForAuction() (*model.Asset, error) {
    if t.asset == nil {
        return nil, ErrAssetNotFound
    }
    return copyAsset(t.asset), nil
}

func (t *memAuctionTx) UpdateAsset(a *model.Asset) error {
    if t.updatedAssets == nil {
        t.updatedAssets = make(map[assetKey]*model.Asset)
    }
    cp := copyAsset(a)
    cp.UpdatedAt = time.Now().UTC()
    t.updatedAssets[assetKey{a.CollectionID, a.SerialNumber}] = cp
    t.asset = copyAsset(cp)
    return nil
}

func (t *memAuctionTx) Allowance() (*model.AllowanceGrant, error) {
    if t.allowance == nil {
        return nil, ErrAllowanceNotFound
    }
    cp := *t.allowance
    return &cp, nil
}

func (t *memAuctionTx) SaveAllowance(g *model.AllowanceGrant) error {
    cp := *g
    cp.UpdatedAt = time.Now().UTC()
    t.allowance = &cp
    return nil
}

func copyAuction(a *model.Auction) *model.Auction {
    cp := *a
    if a.WinnerAccount != nil {
        w := *a.WinnerAccount
        cp.WinnerAccount = &w
    }
    if a.FailureReason != nil {
        r := *a.FailureReason
        cp.FailureReason = &r
    }
    return &cp
}

func copyBid(b *model.Bid) *model.Bid {
    cp := *b
    if b.TxRef != nil {
        r := *b.TxRef
        cp.TxRef = &r
    }
    return &cp
}

func copyAsset(a *model.Asset) *model.Asset {
    cp := *a
    if a.AuctionID != nil {
        id := *a.AuctionID
        cp.AuctionID = &id
    }
    return &cp
}
