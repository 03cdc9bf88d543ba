package service

import (
    "context"
    "errors"
    "fmt"
    "log"

    "github.com/iliyamo/token-auction-market/internal/model"
    "github.com/iliyamo/token-auction-market/internal/repository"
)

// AllowanceService coordinates the two-phase transfer pre-authorization
// gating an auction's lifecycle: a grant must exist before the auction
// may leave PENDING, and revoking the grant cancels the auction.
// Revoke and Cancel are two faces of the same guarded transition: both
// require that no bid has been recorded.
type AllowanceService struct {
    store repository.Store
}

// NewAllowanceService returns an AllowanceService bound to the store.
func NewAllowanceService(store repository.Store) *AllowanceService {
    if store == nil {
        panic("nil store passed to NewAllowanceService")
    }
    return &AllowanceService{store: store}
}

// Grant records the holder's transfer pre-authorization for the
// auction and marks the auction eligible to leave PENDING. Only the
// seller of a PENDING auction may grant.
func (s *AllowanceService) Grant(ctx context.Context, auctionID uint64, holder, authorizationRef string) error {
    err := s.store.WithAuction(ctx, auctionID, func(tx repository.AuctionTx) error {
        a := tx.Auction()
        if holder != a.SellerAccount {
            return reject(ReasonNotHolder, "only the asset holder may grant an allowance")
        }
        if a.Status != model.StatusPending {
            return reject(ReasonInvalidTransition,
                fmt.Sprintf("auction %d is %s; allowances are granted while PENDING", a.ID, a.Status))
        }
        if authorizationRef == "" {
            return reject(ReasonInvalidAmount, "authorization reference is required")
        }
        if err := tx.SaveAllowance(&model.AllowanceGrant{
            AuctionID:        a.ID,
            HolderAccount:    holder,
            AuthorizationRef: authorizationRef,
            Granted:          true,
        }); err != nil {
            return fmt.Errorf("save allowance: %w", err)
        }
        a.AllowanceGranted = true
        if err := tx.SaveAuction(a); err != nil {
            return fmt.Errorf("save auction: %w", err)
        }
        log.Printf("allowance: grant recorded for auction %d by %s", a.ID, holder)
        return nil
    })
    if errors.Is(err, repository.ErrAuctionNotFound) {
        return reject(ReasonAuctionNotFound, fmt.Sprintf("auction %d does not exist", auctionID))
    }
    return err
}

// Revoke withdraws the holder's pre-authorization. It is rejected
// when the auction has any recorded bid; otherwise the grant is
// marked revoked and the auction is cancelled through the same path
// as an explicit cancellation.
func (s *AllowanceService) Revoke(ctx context.Context, auctionID uint64, holder string) error {
    err := s.store.WithAuction(ctx, auctionID, func(tx repository.AuctionTx) error {
        a := tx.Auction()
        grant, err := tx.Allowance()
        if errors.Is(err, repository.ErrAllowanceNotFound) {
            return reject(ReasonInvalidTransition, fmt.Sprintf("auction %d has no allowance grant", a.ID))
        }
        if err != nil {
            return fmt.Errorf("load allowance: %w", err)
        }
        if holder != grant.HolderAccount {
            return reject(ReasonNotHolder, "only the granting holder may revoke")
        }
        if grant.Revoked && a.Status == model.StatusCancelled {
            return nil // already revoked, idempotent
        }
        n, err := tx.BidCount()
        if err != nil {
            return fmt.Errorf("count bids: %w", err)
        }
        if n > 0 {
            return reject(ReasonHasActiveBids,
                fmt.Sprintf("auction %d has active bids and cannot be revoked", a.ID))
        }
        grant.Revoked = true
        if err := tx.SaveAllowance(grant); err != nil {
            return fmt.Errorf("save allowance: %w", err)
        }
        a.AllowanceGranted = false
        if err := cancelLocked(tx, a); err != nil {
            return err
        }
        log.Printf("allowance: grant revoked and auction %d cancelled by %s", a.ID, holder)
        return nil
    })
    if errors.Is(err, repository.ErrAuctionNotFound) {
        return reject(ReasonAuctionNotFound, fmt.Sprintf("auction %d does not exist", auctionID))
    }
    return err
}

// Cancel cancels a PENDING or ACTIVE auction on behalf of its seller.
// Cancellation is gated on zero recorded bids; an auction with bids
// must run to completion or fail settlement.
func (s *AllowanceService) Cancel(ctx context.Context, auctionID uint64, requester string) error {
    err := s.store.WithAuction(ctx, auctionID, func(tx repository.AuctionTx) error {
        a := tx.Auction()
        if requester != a.SellerAccount {
            return reject(ReasonNotHolder, "only the seller may cancel their auction")
        }
        if a.Status == model.StatusCancelled {
            return nil // already cancelled, idempotent
        }
        n, err := tx.BidCount()
        if err != nil {
            return fmt.Errorf("count bids: %w", err)
        }
        if n > 0 {
            return reject(ReasonHasActiveBids,
                fmt.Sprintf("auction %d has active bids and cannot be cancelled", a.ID))
        }
        if err := cancelLocked(tx, a); err != nil {
            return err
        }
        log.Printf("allowance: auction %d cancelled by %s", a.ID, requester)
        return nil
    })
    if errors.Is(err, repository.ErrAuctionNotFound) {
        return reject(ReasonAuctionNotFound, fmt.Sprintf("auction %d does not exist", auctionID))
    }
    return err
}

// cancelLocked performs the CANCELLED transition and asset reclamation
// under an already-held auction lock.
func cancelLocked(tx repository.AuctionTx, a *model.Auction) error {
    if !a.Status.CanTransition(model.StatusCancelled) {
        return reject(ReasonInvalidTransition,
            fmt.Sprintf("auction %d is %s and cannot be cancelled", a.ID, a.Status))
    }
    asset, err := tx.AssetForAuction()
    if err != nil && !errors.Is(err, repository.ErrAssetNotFound) {
        return fmt.Errorf("load asset: %w", err)
    }
    if asset != nil {
        asset.Status = model.AssetAvailable
        asset.AuctionID = nil
        if err := tx.UpdateAsset(asset); err != nil {
            return fmt.Errorf("revert asset: %w", err)
        }
    }
    a.Status = model.StatusCancelled
    a.Settled = true
    if err := tx.SaveAuction(a); err != nil {
        return fmt.Errorf("save auction: %w", err)
    }
    return nil
}
