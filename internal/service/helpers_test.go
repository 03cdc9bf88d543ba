package service

import (
    "time"

    "github.com/shopspring/decimal"

    "github.com/iliyamo/token-auction-market/internal/model"
    "github.com/iliyamo/token-auction-market/internal/repository"
)

// Test fixtures shared by the service tests. Auctions are seeded
// directly into a MemoryStore; the defaults describe an ACTIVE
// auction with reserve 100 that is currently open for bidding.

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func seedAuction(store *repository.MemoryStore, id uint64, mut func(*model.Auction)) *model.Auction {
    now := time.Now().UTC()
    a := &model.Auction{
        ID:               id,
        SellerAccount:    "seller",
        Title:            "genesis piece",
        ReservePrice:     dec(100),
        Currency:         "USD",
        StartTime:        now.Add(-time.Hour),
        EndTime:          now.Add(time.Hour),
        Status:           model.StatusActive,
        AllowanceGranted: true,
    }
    if mut != nil {
        mut(a)
    }
    store.PutAuction(a)
    return a
}

func seedAsset(store *repository.MemoryStore, auctionID uint64) *model.Asset {
    id := auctionID
    a := &model.Asset{
        CollectionID: 7,
        SerialNumber: auctionID,
        OwnerAccount: "seller",
        Status:       model.AssetInAuction,
        AuctionID:    &id,
    }
    store.PutAsset(a)
    return a
}

func seedGrant(store *repository.MemoryStore, auctionID uint64) *model.AllowanceGrant {
    g := &model.AllowanceGrant{
        AuctionID:        auctionID,
        HolderAccount:    "seller",
        AuthorizationRef: "auth-ref-1",
        Granted:          true,
    }
    store.PutAllowance(g)
    return g
}

func newBidService(store *repository.MemoryStore) *BidService {
    return NewBidService(store, nil, decimal.NewFromFloat(0.05))
}
