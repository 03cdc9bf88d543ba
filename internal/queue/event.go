// Package queue defines message payloads exchanged over the message broker.
package queue

// BidAcceptedEvent is published after a bid has been committed as the
// new highest bid on an auction. It carries enough information for
// downstream consumers to log or notify without querying the primary
// database.
type BidAcceptedEvent struct {
    AuctionID     uint64 `json:"auction_id"`
    BidID         uint64 `json:"bid_id"`
    BidderAccount string `json:"bidder_account"`
    Amount        string `json:"amount"`
    Currency      string `json:"currency"`
    AcceptedAt    string `json:"accepted_at"`
}

// AuctionSettledEvent is published when an auction reaches a terminal
// settlement outcome: ENDED with or without a winner, or FAILED.
type AuctionSettledEvent struct {
    AuctionID     uint64  `json:"auction_id"`
    Status        string  `json:"status"`
    WinnerAccount *string `json:"winner_account,omitempty"`
    FinalBid      string  `json:"final_bid,omitempty"`
    Currency      string  `json:"currency"`
    TransferID    *string `json:"transfer_id,omitempty"`
    FailureReason *string `json:"failure_reason,omitempty"`
    SettledAt     string  `json:"settled_at"`
}
