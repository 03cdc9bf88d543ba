package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Bid is a timestamped monetary offer against an auction.  Bids are
// immutable once recorded except for the winning flag, which a strictly
// higher bid may clear, and the settlement TxRef written after a
// successful ledger transfer.
//
// Fields:
//  ID            – primary key identifier.
//  AuctionID     – auction this bid was placed on.
//  BidderAccount – account reference of the bidder.
//  Amount        – offered amount, > 0, in the auction's currency.
//  Winning       – true while this is the highest accepted bid.
//  TxRef         – transfer ledger transaction reference, set after
//                  successful settlement of this bid.
//  CreatedAt     – when the bid was accepted.
type Bid struct {
    ID            uint64          // bids.id
    AuctionID     uint64          // bids.auction_id
    BidderAccount string          // bids.bidder_account
    Amount        decimal.Decimal // bids.amount
    Winning       bool            // bids.winning
    TxRef         *string         // bids.tx_ref (nullable)
    CreatedAt     time.Time       // bids.created_at
}
