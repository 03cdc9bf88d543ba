// Package ledger defines the client interface to the external
// transfer ledger: the settlement backend that executes multi-leg
// atomic transfers. A transfer carries exactly one asset ownership
// change plus one or more value movements; the ledger guarantees that
// all legs commit together or none do.
package ledger

import (
    "context"
    "errors"

    "github.com/shopspring/decimal"
)

// ErrRejected is returned when the ledger explicitly refuses a
// transfer (insufficient funds, bad authorization, etc.). Wrapped
// errors carry the ledger's reason text.
var ErrRejected = errors.New("transfer rejected by ledger")

// AssetLeg describes the ownership change of a single tokenized asset.
type AssetLeg struct {
    CollectionID     uint64 `json:"collection_id"`
    SerialNumber     uint64 `json:"serial_number"`
    FromAccount      string `json:"from_account"`
    ToAccount        string `json:"to_account"`
    AuthorizationRef string `json:"authorization_ref"`
}

// ValueLeg describes one monetary movement between two accounts.
type ValueLeg struct {
    FromAccount string          `json:"from_account"`
    ToAccount   string          `json:"to_account"`
    Amount      decimal.Decimal `json:"amount"`
    Currency    string          `json:"currency"`
}

// TransferRequest is a single atomic transfer: the asset leg and all
// value legs commit together or not at all. The idempotency token is
// client-supplied so a retry of the identical request cannot execute
// twice on the ledger side.
type TransferRequest struct {
    IdempotencyToken string     `json:"idempotency_token"`
    Asset            AssetLeg   `json:"asset"`
    Values           []ValueLeg `json:"values"`
}

// Client executes atomic transfers against the ledger. A nil error
// means every leg committed and transferID identifies the resulting
// ledger transaction. Any error, including a timeout, means the
// caller must assume nothing committed; ambiguous outcomes are
// resolved out of band before settlement may be retried.
type Client interface {
    ExecuteAtomicTransfer(ctx context.Context, req TransferRequest) (transferID string, err error)
}
