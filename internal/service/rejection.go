// Package service implements the auction core: bid admission,
// settlement orchestration, allowance coordination and the completion
// scheduler. All mutation of contended auction state happens inside
// the store's per-auction critical section; services never write
// auction fields outside it.
package service

import "errors"

// RejectReason is a machine-readable code identifying why a request
// was refused. Rejections are reported synchronously to the caller
// and never retried automatically; no state is persisted for them.
type RejectReason string

const (
    ReasonAuctionNotFound   RejectReason = "auction_not_found"
    ReasonAuctionNotActive  RejectReason = "auction_not_active"
    ReasonAuctionNotOpen    RejectReason = "auction_not_open"
    ReasonSelfBid           RejectReason = "self_bid"
    ReasonInvalidAmount     RejectReason = "invalid_amount"
    ReasonBidTooLow         RejectReason = "bid_too_low"
    ReasonNotYetDue         RejectReason = "not_yet_due"
    ReasonHasActiveBids     RejectReason = "has_active_bids"
    ReasonNotHolder         RejectReason = "not_holder"
    ReasonInvalidTransition RejectReason = "invalid_transition"
)

// Rejection is a validation failure with a specific reason code and a
// human readable message. It satisfies the error interface so it can
// travel through the usual error returns.
type Rejection struct {
    Reason  RejectReason
    Message string
}

func (r *Rejection) Error() string { return string(r.Reason) + ": " + r.Message }

func reject(reason RejectReason, msg string) *Rejection {
    return &Rejection{Reason: reason, Message: msg}
}

// AsRejection unwraps err into a *Rejection when it is one.
func AsRejection(err error) (*Rejection, bool) {
    var r *Rejection
    if errors.As(err, &r) {
        return r, true
    }
    return nil, false
}
