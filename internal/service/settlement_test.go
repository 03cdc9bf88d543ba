package service

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/token-auction-market/internal/ledger"
    "github.com/iliyamo/token-auction-market/internal/model"
    "github.com/iliyamo/token-auction-market/internal/repository"
)

func newSettlement(store *repository.MemoryStore, lc ledger.Client) *SettlementService {
    return NewSettlementService(store, lc, nil, decimal.NewFromFloat(0.025), "platform")
}

// seedEndedAuction seeds an ACTIVE auction whose end time has passed,
// with its asset and allowance grant in place.
func seedEndedAuction(store *repository.MemoryStore, id uint64) *model.Auction {
    a := seedAuction(store, id, func(a *model.Auction) {
        a.EndTime = time.Now().UTC().Add(-time.Minute)
    })
    seedAsset(store, id)
    seedGrant(store, id)
    return a
}

func placeWinningBid(t *testing.T, store *repository.MemoryStore, auctionID uint64, bidder string, amount int64) {
    t.Helper()
    err := store.WithAuction(context.Background(), auctionID, func(tx repository.AuctionTx) error {
        a := tx.Auction()
        if err := tx.ClearWinningBid(); err != nil {
            return err
        }
        if err := tx.InsertBid(&model.Bid{
            AuctionID:     auctionID,
            BidderAccount: bidder,
            Amount:        dec(amount),
            Winning:       true,
        }); err != nil {
            return err
        }
        a.CurrentHighestBid = decimal.NewNullDecimal(dec(amount))
        return tx.SaveAuction(a)
    })
    require.NoError(t, err)
}

// Scenario: winning bid 200 with a 2.5% fee. The ledger receives one
// asset leg and two value legs (195 to the seller, 5 to the
// platform); the auction ends, the asset is SOLD and owned by the
// winner, and the winning bid carries the transfer reference.
func TestSettleWinnerPath(t *testing.T) {
    ctx := context.Background()
    store := repository.NewMemoryStore()
    seedEndedAuction(store, 1)
    placeWinningBid(t, store, 1, "alice", 200)
    rec := ledger.NewRecorder()
    svc := newSettlement(store, rec)

    out, err := svc.Settle(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, model.StatusEnded, out.Status)
    assert.True(t, out.Settled)
    require.NotNil(t, out.WinnerAccount)
    assert.Equal(t, "alice", *out.WinnerAccount)
    require.NotNil(t, out.TransferID)

    reqs := rec.Requests()
    require.Len(t, reqs, 1)
    req := reqs[0]
    assert.NotEmpty(t, req.IdempotencyToken)
    assert.Equal(t, "seller", req.Asset.FromAccount)
    assert.Equal(t, "alice", req.Asset.ToAccount)
    assert.Equal(t, "auth-ref-1", req.Asset.AuthorizationRef)
    require.Len(t, req.Values, 2)
    assert.True(t, req.Values[0].Amount.Equal(dec(195)), "seller proceeds, got %s", req.Values[0].Amount)
    assert.Equal(t, "seller", req.Values[0].ToAccount)
    assert.True(t, req.Values[1].Amount.Equal(dec(5)), "platform fee, got %s", req.Values[1].Amount)
    assert.Equal(t, "platform", req.Values[1].ToAccount)

    asset, err := store.GetAsset(ctx, 7, 1)
    require.NoError(t, err)
    assert.Equal(t, model.AssetSold, asset.Status)
    assert.Equal(t, "alice", asset.OwnerAccount)
    assert.Nil(t, asset.AuctionID)

    bids, err := store.ListBids(ctx, 1)
    require.NoError(t, err)
    require.Len(t, bids, 1)
    require.NotNil(t, bids[0].TxRef)
    assert.Equal(t, *out.TransferID, *bids[0].TxRef)
}

// An auction reaching its end time with zero bids transitions to
// ENDED and its asset returns to AVAILABLE.
func TestSettleNoBidsReclaimsAsset(t *testing.T) {
    ctx := context.Background()
    store := repository.NewMemoryStore()
    seedEndedAuction(store, 1)
    rec := ledger.NewRecorder()
    svc := newSettlement(store, rec)

    out, err := svc.Settle(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, model.StatusEnded, out.Status)
    assert.True(t, out.Settled)
    assert.Nil(t, out.WinnerAccount)
    assert.Zero(t, rec.Calls(), "no-winner settlement must not touch the ledger")

    asset, err := store.GetAsset(ctx, 7, 1)
    require.NoError(t, err)
    assert.Equal(t, model.AssetAvailable, asset.Status)
    assert.Nil(t, asset.AuctionID)
    assert.Equal(t, "seller", asset.OwnerAccount)
}

func TestSettleNotYetDue(t *testing.T) {
    ctx := context.Background()
    store := repository.NewMemoryStore()
    seedAuction(store, 1, nil) // ends an hour from now
    svc := newSettlement(store, ledger.NewRecorder())

    _, err := svc.Settle(ctx, 1)
    rej, ok := AsRejection(err)
    require.True(t, ok)
    assert.Equal(t, ReasonNotYetDue, rej.Reason)
}

// Ledger failure moves the auction to FAILED and leaves asset and bid
// state untouched; a subsequent Settle short-circuits to the same
// FAILED outcome without a second ledger call.
func TestSettleLedgerFailure(t *testing.T) {
    ctx := context.Background()
    store := repository.NewMemoryStore()
    seedEndedAuction(store, 1)
    placeWinningBid(t, store, 1, "alice", 200)
    rec := ledger.NewRecorder()
    rec.Fail(errors.New("ledger timeout"))
    svc := newSettlement(store, rec)

    out, err := svc.Settle(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, model.StatusFailed, out.Status)
    assert.False(t, out.Settled)
    require.NotNil(t, out.FailureReason)
    assert.Contains(t, *out.FailureReason, "ledger transfer failed")

    // Atomicity: pre-state == post-state on the failure path.
    asset, err := store.GetAsset(ctx, 7, 1)
    require.NoError(t, err)
    assert.Equal(t, model.AssetInAuction, asset.Status)
    assert.Equal(t, "seller", asset.OwnerAccount)
    require.NotNil(t, asset.AuctionID)

    bids, err := store.ListBids(ctx, 1)
    require.NoError(t, err)
    require.Len(t, bids, 1)
    assert.Nil(t, bids[0].TxRef)

    // A manual retry must not reach the ledger again.
    rec.Fail(nil)
    again, err := svc.Settle(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, model.StatusFailed, again.Status)
    assert.Equal(t, 1, rec.Calls(), "FAILED auctions are never auto-retried")
}

// Missing seller authorization is a data-integrity failure, distinct
// from a ledger fault, and produces zero ledger calls.
func TestSettleMissingAllowanceFailsWithoutLedgerCall(t *testing.T) {
    ctx := context.Background()
    store := repository.NewMemoryStore()
    seedAuction(store, 1, func(a *model.Auction) {
        a.EndTime = time.Now().UTC().Add(-time.Minute)
    })
    seedAsset(store, 1)
    placeWinningBid(t, store, 1, "alice", 200)
    rec := ledger.NewRecorder()
    svc := newSettlement(store, rec)

    out, err := svc.Settle(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, model.StatusFailed, out.Status)
    require.NotNil(t, out.FailureReason)
    assert.Contains(t, *out.FailureReason, "data integrity")
    assert.Zero(t, rec.Calls())
}

// Calling Settle twice sequentially produces exactly one ledger call
// and both callers observe the same outcome.
func TestSettleIdempotent(t *testing.T) {
    ctx := context.Background()
    store := repository.NewMemoryStore()
    seedEndedAuction(store, 1)
    placeWinningBid(t, store, 1, "alice", 200)
    rec := ledger.NewRecorder()
    svc := newSettlement(store, rec)

    first, err := svc.Settle(ctx, 1)
    require.NoError(t, err)
    second, err := svc.Settle(ctx, 1)
    require.NoError(t, err)

    assert.Equal(t, 1, rec.Calls())
    assert.Equal(t, first.Status, second.Status)
    assert.Equal(t, *first.WinnerAccount, *second.WinnerAccount)
    require.NotNil(t, second.TransferID)
    assert.Equal(t, *first.TransferID, *second.TransferID)
}

// Two Settle calls racing on the same auction id: exactly one
// ExecuteAtomicTransfer is observed by the ledger double.
func TestSettleConcurrentRace(t *testing.T) {
    ctx := context.Background()
    store := repository.NewMemoryStore()
    seedEndedAuction(store, 1)
    placeWinningBid(t, store, 1, "alice", 200)
    rec := ledger.NewRecorder()
    svc := newSettlement(store, rec)

    var wg sync.WaitGroup
    outcomes := make([]*Outcome, 2)
    for i := 0; i < 2; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            out, err := svc.Settle(ctx, 1)
            assert.NoError(t, err)
            outcomes[i] = out
        }(i)
    }
    wg.Wait()

    assert.Equal(t, 1, rec.Calls())
    assert.Equal(t, model.StatusEnded, outcomes[0].Status)
    assert.Equal(t, model.StatusEnded, outcomes[1].Status)
}
