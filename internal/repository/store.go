package repository

import (
    "context"
    "time"

    "github.com/iliyamo/token-auction-market/internal/model"
)

// Store is the repository interface through which the auction core
// consumes durable storage.  Reads outside a critical section use the
// Get/List methods; every mutation of an auction's contended fields
// (current highest bid, status, settled flag) goes through WithAuction
// so that the read-validate-write sequence executes under a
// per-auction mutual-exclusion scope.
type Store interface {
    // GetAuction returns the auction or ErrAuctionNotFound.
    GetAuction(ctx context.Context, id uint64) (*model.Auction, error)

    // GetAsset returns the asset identified by the collection/serial
    // pair, or ErrAssetNotFound.
    GetAsset(ctx context.Context, collectionID, serialNumber uint64) (*model.Asset, error)

    // ListBids returns all bids for the auction, newest first.
    ListBids(ctx context.Context, auctionID uint64) ([]*model.Bid, error)

    // ListDueAuctions returns auctions that are ACTIVE, unsettled and
    // past their end time at the given instant.
    ListDueAuctions(ctx context.Context, now time.Time) ([]*model.Auction, error)

    // ListStartableAuctions returns PENDING auctions whose allowance
    // has been granted and whose start time has been reached.
    ListStartableAuctions(ctx context.Context, now time.Time) ([]*model.Auction, error)

    // WithAuction runs fn with exclusive access to the auction
    // identified by id.  The auction row is locked for the duration
    // of fn; all writes made through the AuctionTx are committed
    // atomically when fn returns nil and discarded when it returns an
    // error.  Returns ErrAuctionNotFound if the auction does not
    // exist.
    WithAuction(ctx context.Context, id uint64, fn func(tx AuctionTx) error) error
}

// AuctionTx exposes the reads and writes permitted inside a
// per-auction critical section.  The snapshot returned by Auction is
// the locked row; mutations to it become visible to other readers
// only after SaveAuction and a successful commit.
type AuctionTx interface {
    // Auction returns the locked auction snapshot.  Callers may
    // mutate the returned struct and persist it with SaveAuction.
    Auction() *model.Auction

    // SaveAuction writes the auction back, bumping its version.
    // Returns ErrVersionConflict if the version check fails.
    SaveAuction(a *model.Auction) error

    // WinningBid returns the single bid currently flagged winning,
    // or (nil, nil) when the auction has no bids.
    WinningBid() (*model.Bid, error)

    // BidCount returns the number of bids recorded for the auction.
    BidCount() (int, error)

    // ClearWinningBid clears the winning flag on the currently
    // winning bid, if any.
    ClearWinningBid() error

    // InsertBid records a new bid, populating its generated ID and
    // creation timestamp.
    InsertBid(b *model.Bid) error

    // SetBidSettlementRef records the ledger transaction reference on
    // the given bid after successful settlement.
    SetBidSettlementRef(bidID uint64, txRef string) error

    // AssetForAuction returns the asset associated with the auction,
    // or ErrAssetNotFound when none is attached.
    AssetForAuction() (*model.Asset, error)

    // UpdateAsset writes the asset's owner, status and auction
    // association back to the store.
    UpdateAsset(a *model.Asset) error

    // Allowance returns the allowance grant for the auction, or
    // ErrAllowanceNotFound.
    Allowance() (*model.AllowanceGrant, error)

    // SaveAllowance inserts or updates the allowance grant.
    SaveAllowance(g *model.AllowanceGrant) error
}
