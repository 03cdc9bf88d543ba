package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Auction represents a time-boxed sealed sale of a single asset.  A
// seller lists the asset with a reserve price; buyers compete by
// placing bids until EndTime, at which point the highest valid bid
// is settled against the transfer ledger.
//
// Fields:
//  ID                – primary key identifier.
//  SellerAccount     – account reference of the listing seller.
//  Title             – human readable listing title (opaque to the core).
//  Description       – human readable listing description.
//  ReservePrice      – minimum price the seller will accept, >= 0.
//  CurrentHighestBid – amount of the current winning bid; invalid
//                      (null) until the first bid is accepted.
//  Currency          – unit tag for all monetary fields of this auction.
//  StartTime         – when bidding opens (UTC).
//  EndTime           – when bidding closes (UTC); always after StartTime.
//  Status            – lifecycle state, see AuctionStatus.
//  Settled           – true once a settlement outcome has been recorded.
//  WinnerAccount     – buyer who won; set only on successful settlement.
//  AllowanceGranted  – true once the seller's transfer allowance exists.
//  FailureReason     – human readable reason when Status is FAILED.
//  Version           – optimistic lock counter maintained by the store.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Auction struct {
    ID                uint64              // auctions.id
    SellerAccount     string              // auctions.seller_account
    Title             string              // auctions.title
    Description       string              // auctions.description
    ReservePrice      decimal.Decimal     // auctions.reserve_price
    CurrentHighestBid decimal.NullDecimal // auctions.current_highest_bid (nullable)
    Currency          string              // auctions.currency
    StartTime         time.Time           // auctions.start_time
    EndTime           time.Time           // auctions.end_time
    Status            AuctionStatus       // auctions.status
    Settled           bool                // auctions.settled
    WinnerAccount     *string             // auctions.winner_account (nullable)
    AllowanceGranted  bool                // auctions.allowance_granted
    FailureReason     *string             // auctions.failure_reason (nullable)
    Version           uint64              // auctions.version
    CreatedAt         time.Time           // auctions.created_at
    UpdatedAt         time.Time           // auctions.updated_at
}

// Open reports whether bidding is open at the given instant: the
// auction must be ACTIVE and now must fall within [StartTime, EndTime).
func (a *Auction) Open(now time.Time) bool {
    return a.Status == StatusActive && !now.Before(a.StartTime) && now.Before(a.EndTime)
}

// Due reports whether the auction has passed its end time and still
// awaits settlement.
func (a *Auction) Due(now time.Time) bool {
    return a.Status == StatusActive && !a.Settled && !now.Before(a.EndTime)
}

// MinimumAcceptableBid returns the smallest amount the next bid must
// reach.  The opening bid only needs to meet the reserve price; every
// subsequent bid must exceed the current highest bid by the supplied
// increment ratio (e.g. 0.05 for 5%).
func (a *Auction) MinimumAcceptableBid(incrementRatio decimal.Decimal) decimal.Decimal {
    if !a.CurrentHighestBid.Valid {
        return a.ReservePrice
    }
    basis := a.CurrentHighestBid.Decimal
    if a.ReservePrice.GreaterThan(basis) {
        basis = a.ReservePrice
    }
    return basis.Mul(decimal.NewFromInt(1).Add(incrementRatio))
}
