package model

// AuctionStatus enumerates the lifecycle states of an auction.  The
// legal transition graph is:
//
//	PENDING -> ACTIVE    (allowance granted and start time reached)
//	ACTIVE  -> ENDED     (settlement succeeded, with or without a winner)
//	ACTIVE  -> FAILED    (settlement failed against the transfer ledger)
//	PENDING -> CANCELLED (seller cancelled / allowance revoked, no bids)
//	ACTIVE  -> CANCELLED (seller cancelled / allowance revoked, no bids)
//
// ENDED, CANCELLED and FAILED are terminal.  Only the settlement
// orchestrator may move an auction into ENDED or FAILED.
type AuctionStatus string

const (
    StatusPending   AuctionStatus = "PENDING"
    StatusActive    AuctionStatus = "ACTIVE"
    StatusEnded     AuctionStatus = "ENDED"
    StatusCancelled AuctionStatus = "CANCELLED"
    StatusFailed    AuctionStatus = "FAILED"
)

// transitions holds the set of legal state changes.  Absence means the
// change is illegal.
var transitions = map[AuctionStatus][]AuctionStatus{
    StatusPending: {StatusActive, StatusCancelled},
    StatusActive:  {StatusEnded, StatusFailed, StatusCancelled},
}

// Terminal reports whether no further transitions are possible from s.
func (s AuctionStatus) Terminal() bool {
    return s == StatusEnded || s == StatusCancelled || s == StatusFailed
}

// CanTransition reports whether moving from s to target is a legal
// lifecycle step.  It only checks the graph; callers enforce the
// per-transition guards (allowance, timing, bid count).
func (s AuctionStatus) CanTransition(target AuctionStatus) bool {
    for _, t := range transitions[s] {
        if t == target {
            return true
        }
    }
    return false
}

// AssetStatus enumerates the lifecycle states of a tokenized asset.
type AssetStatus string

const (
    AssetAvailable AssetStatus = "AVAILABLE"
    AssetListed    AssetStatus = "LISTED"
    AssetInAuction AssetStatus = "IN_AUCTION"
    AssetSold      AssetStatus = "SOLD"
)
