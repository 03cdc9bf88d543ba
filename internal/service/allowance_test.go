package service

import (
    "context"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/token-auction-market/internal/model"
    "github.com/iliyamo/token-auction-market/internal/repository"
)

func TestGrant(t *testing.T) {
    ctx := context.Background()

    t.Run("records grant and flags auction", func(t *testing.T) {
        store := repository.NewMemoryStore()
        seedAuction(store, 1, func(a *model.Auction) {
            a.Status = model.StatusPending
            a.AllowanceGranted = false
        })
        svc := NewAllowanceService(store)

        err := svc.Grant(ctx, 1, "seller", "auth-xyz")
        require.NoError(t, err)

        a, err := store.GetAuction(ctx, 1)
        require.NoError(t, err)
        assert.True(t, a.AllowanceGranted)
        assert.Equal(t, model.StatusPending, a.Status)
    })

    t.Run("rejects non-holder", func(t *testing.T) {
        store := repository.NewMemoryStore()
        seedAuction(store, 1, func(a *model.Auction) { a.Status = model.StatusPending })
        svc := NewAllowanceService(store)

        err := svc.Grant(ctx, 1, "mallory", "auth-xyz")
        rej, ok := AsRejection(err)
        require.True(t, ok)
        assert.Equal(t, ReasonNotHolder, rej.Reason)
    })

    t.Run("rejects grant on active auction", func(t *testing.T) {
        store := repository.NewMemoryStore()
        seedAuction(store, 1, nil)
        svc := NewAllowanceService(store)

        err := svc.Grant(ctx, 1, "seller", "auth-xyz")
        rej, ok := AsRejection(err)
        require.True(t, ok)
        assert.Equal(t, ReasonInvalidTransition, rej.Reason)
    })
}

// Revoke on an auction with one existing bid is rejected with
// has_active_bids and the auction status is unchanged.
func TestRevokeWithBidsRejected(t *testing.T) {
    ctx := context.Background()
    store := repository.NewMemoryStore()
    seedAuction(store, 1, nil)
    seedAsset(store, 1)
    seedGrant(store, 1)
    placeWinningBid(t, store, 1, "alice", 120)
    svc := NewAllowanceService(store)

    err := svc.Revoke(ctx, 1, "seller")
    rej, ok := AsRejection(err)
    require.True(t, ok)
    assert.Equal(t, ReasonHasActiveBids, rej.Reason)

    a, err := store.GetAuction(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, model.StatusActive, a.Status)
    assert.True(t, a.AllowanceGranted)
}

func TestRevokeCancelsAndReclaimsAsset(t *testing.T) {
    ctx := context.Background()
    store := repository.NewMemoryStore()
    seedAuction(store, 1, nil)
    seedAsset(store, 1)
    seedGrant(store, 1)
    svc := NewAllowanceService(store)

    err := svc.Revoke(ctx, 1, "seller")
    require.NoError(t, err)

    a, err := store.GetAuction(ctx, 1)
    require.NoError(t, err)
    assert.Equal(t, model.StatusCancelled, a.Status)
    assert.False(t, a.AllowanceGranted)

    asset, err := store.GetAsset(ctx, 7, 1)
    require.NoError(t, err)
    assert.Equal(t, model.AssetAvailable, asset.Status)
    assert.Nil(t, asset.AuctionID)

    // Revoking again is an idempotent no-op.
    err = svc.Revoke(ctx, 1, "seller")
    assert.NoError(t, err)
}

func TestCancel(t *testing.T) {
    ctx := context.Background()

    t.Run("cancels a bidless pending auction", func(t *testing.T) {
        store := repository.NewMemoryStore()
        seedAuction(store, 1, func(a *model.Auction) { a.Status = model.StatusPending })
        seedAsset(store, 1)
        svc := NewAllowanceService(store)

        require.NoError(t, svc.Cancel(ctx, 1, "seller"))
        a, err := store.GetAuction(ctx, 1)
        require.NoError(t, err)
        assert.Equal(t, model.StatusCancelled, a.Status)
        assert.True(t, a.Settled)

        // Re-cancelling is a no-op success.
        assert.NoError(t, svc.Cancel(ctx, 1, "seller"))
    })

    t.Run("rejects cancel with bids", func(t *testing.T) {
        store := repository.NewMemoryStore()
        seedAuction(store, 1, nil)
        placeWinningBid(t, store, 1, "alice", 120)
        svc := NewAllowanceService(store)

        err := svc.Cancel(ctx, 1, "seller")
        rej, ok := AsRejection(err)
        require.True(t, ok)
        assert.Equal(t, ReasonHasActiveBids, rej.Reason)
    })

    t.Run("rejects cancel of ended auction", func(t *testing.T) {
        store := repository.NewMemoryStore()
        seedAuction(store, 1, func(a *model.Auction) {
            a.Status = model.StatusEnded
            a.Settled = true
        })
        svc := NewAllowanceService(store)

        err := svc.Cancel(ctx, 1, "seller")
        rej, ok := AsRejection(err)
        require.True(t, ok)
        assert.Equal(t, ReasonInvalidTransition, rej.Reason)
    })

    t.Run("rejects non-seller", func(t *testing.T) {
        store := repository.NewMemoryStore()
        seedAuction(store, 1, nil)
        svc := NewAllowanceService(store)

        err := svc.Cancel(ctx, 1, "mallory")
        rej, ok := AsRejection(err)
        require.True(t, ok)
        assert.Equal(t, ReasonNotHolder, rej.Reason)
    })
}
