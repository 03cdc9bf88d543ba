package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/google/uuid"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/token-auction-market/internal/ledger"
    "github.com/iliyamo/token-auction-market/internal/model"
    "github.com/iliyamo/token-auction-market/internal/queue"
    "github.com/iliyamo/token-auction-market/internal/repository"
)

// Outcome is the result of a settlement attempt. Terminal outcomes
// (ENDED or FAILED) are returned with a nil error; callers inspect
// Status and FailureReason.
type Outcome struct {
    AuctionID     uint64
    Status        model.AuctionStatus
    Settled       bool
    WinnerAccount *string
    FinalBid      decimal.NullDecimal
    Currency      string
    TransferID    *string
    FailureReason *string
}

// SettlementService drives auctions past their end time to a terminal
// state. Settlement is idempotent and race free: the settled
// short-circuit plus the store's per-auction critical section
// guarantee at most one ledger call per auction, no matter how many
// scheduler ticks or manual triggers race.
type SettlementService struct {
    store           repository.Store
    ledger          ledger.Client
    events          Events
    feeRatio        decimal.Decimal
    platformAccount string
}

// NewSettlementService returns a SettlementService taking feeRatio
// (e.g. 0.025 for a 2.5% platform fee) from configuration. Fees are
// credited to platformAccount.
func NewSettlementService(store repository.Store, lc ledger.Client, events Events, feeRatio decimal.Decimal, platformAccount string) *SettlementService {
    if store == nil || lc == nil {
        panic("nil dependency passed to NewSettlementService")
    }
    return &SettlementService{
        store:           store,
        ledger:          lc,
        events:          events,
        feeRatio:        feeRatio,
        platformAccount: platformAccount,
    }
}

// Settle settles the auction identified by id. Re-invoking Settle on
// an already terminal auction returns the recorded outcome without a
// second ledger call. An auction that is not yet due, or not ACTIVE,
// is rejected without side effects.
func (s *SettlementService) Settle(ctx context.Context, auctionID uint64) (*Outcome, error) {
    var (
        outcome  *Outcome
        terminal bool
    )
    err := s.store.WithAuction(ctx, auctionID, func(tx repository.AuctionTx) error {
        a := tx.Auction()

        // Idempotent short-circuit: any terminal state, including a
        // FAILED attempt awaiting operator intervention, is returned
        // as-is without another ledger call.
        if a.Settled || a.Status.Terminal() {
            winning, err := tx.WinningBid()
            if err != nil {
                return fmt.Errorf("load winning bid: %w", err)
            }
            outcome = outcomeFromState(a, winning)
            return nil
        }

        if a.Status != model.StatusActive {
            return reject(ReasonAuctionNotActive,
                fmt.Sprintf("auction %d is %s and cannot be settled", a.ID, a.Status))
        }
        if time.Now().UTC().Before(a.EndTime) {
            return reject(ReasonNotYetDue,
                fmt.Sprintf("auction %d has not reached its end time", a.ID))
        }

        winning, err := tx.WinningBid()
        if err != nil {
            return fmt.Errorf("load winning bid: %w", err)
        }
        if winning == nil {
            outcome, err = s.settleNoWinner(tx, a)
        } else {
            outcome, err = s.settleWinner(ctx, tx, a, winning)
        }
        if err != nil {
            return err
        }
        terminal = true
        return nil
    })
    if errors.Is(err, repository.ErrAuctionNotFound) {
        return nil, reject(ReasonAuctionNotFound, fmt.Sprintf("auction %d does not exist", auctionID))
    }
    if err != nil {
        return nil, err
    }

    if terminal && s.events != nil {
        ev := queue.AuctionSettledEvent{
            AuctionID:     outcome.AuctionID,
            Status:        string(outcome.Status),
            WinnerAccount: outcome.WinnerAccount,
            Currency:      outcome.Currency,
            TransferID:    outcome.TransferID,
            FailureReason: outcome.FailureReason,
            SettledAt:     time.Now().UTC().Format(time.RFC3339),
        }
        if outcome.FinalBid.Valid {
            ev.FinalBid = outcome.FinalBid.Decimal.String()
        }
        if err := s.events.PublishAuctionSettled(ctx, ev); err != nil {
            log.Printf("settler: publish auction.settled for auction %d failed: %v", outcome.AuctionID, err)
        }
    }
    return outcome, nil
}

// settleNoWinner ends an auction that received no bids: the asset
// returns to AVAILABLE and is detached from the auction.
func (s *SettlementService) settleNoWinner(tx repository.AuctionTx, a *model.Auction) (*Outcome, error) {
    asset, err := tx.AssetForAuction()
    if err != nil && !errors.Is(err, repository.ErrAssetNotFound) {
        return nil, fmt.Errorf("load asset: %w", err)
    }
    if asset != nil {
        asset.Status = model.AssetAvailable
        asset.AuctionID = nil
        if err := tx.UpdateAsset(asset); err != nil {
            return nil, fmt.Errorf("revert asset: %w", err)
        }
    }
    a.Status = model.StatusEnded
    a.Settled = true
    if err := tx.SaveAuction(a); err != nil {
        return nil, fmt.Errorf("save auction: %w", err)
    }
    log.Printf("settler: auction %d ended with no bids, asset reclaimed", a.ID)
    return outcomeFromState(a, nil), nil
}

// settleWinner exchanges the asset for payment through the transfer
// ledger. The ledger request is all-or-nothing: one asset leg plus
// the seller-proceeds and platform-fee value legs. Any ledger error,
// including a timeout, moves the auction to FAILED without touching
// the asset or the winning bid.
func (s *SettlementService) settleWinner(ctx context.Context, tx repository.AuctionTx, a *model.Auction, winning *model.Bid) (*Outcome, error) {
    asset, err := tx.AssetForAuction()
    if errors.Is(err, repository.ErrAssetNotFound) {
        return s.fail(tx, a, "data integrity: auction has no associated asset")
    }
    if err != nil {
        return nil, fmt.Errorf("load asset: %w", err)
    }

    grant, err := tx.Allowance()
    if errors.Is(err, repository.ErrAllowanceNotFound) {
        return s.fail(tx, a, "data integrity: seller transfer authorization missing")
    }
    if err != nil {
        return nil, fmt.Errorf("load allowance: %w", err)
    }
    if !grant.Usable() {
        return s.fail(tx, a, "data integrity: seller transfer authorization revoked")
    }
    if a.SellerAccount == "" || winning.BidderAccount == "" {
        return s.fail(tx, a, "data integrity: seller or winner account unresolved")
    }

    fee := winning.Amount.Mul(s.feeRatio)
    proceeds := winning.Amount.Sub(fee)

    transferID, err := s.ledger.ExecuteAtomicTransfer(ctx, ledger.TransferRequest{
        IdempotencyToken: uuid.New().String(),
        Asset: ledger.AssetLeg{
            CollectionID:     asset.CollectionID,
            SerialNumber:     asset.SerialNumber,
            FromAccount:      a.SellerAccount,
            ToAccount:        winning.BidderAccount,
            AuthorizationRef: grant.AuthorizationRef,
        },
        Values: []ledger.ValueLeg{
            {FromAccount: winning.BidderAccount, ToAccount: a.SellerAccount, Amount: proceeds, Currency: a.Currency},
            {FromAccount: winning.BidderAccount, ToAccount: s.platformAccount, Amount: fee, Currency: a.Currency},
        },
    })
    if err != nil {
        log.Printf("settler: ledger transfer for auction %d failed: %v", a.ID, err)
        return s.fail(tx, a, fmt.Sprintf("ledger transfer failed: %v", err))
    }

    if err := tx.SetBidSettlementRef(winning.ID, transferID); err != nil {
        return nil, fmt.Errorf("record settlement ref: %w", err)
    }
    asset.OwnerAccount = winning.BidderAccount
    asset.Status = model.AssetSold
    asset.AuctionID = nil
    if err := tx.UpdateAsset(asset); err != nil {
        return nil, fmt.Errorf("transfer asset: %w", err)
    }
    winner := winning.BidderAccount
    a.Status = model.StatusEnded
    a.Settled = true
    a.WinnerAccount = &winner
    if err := tx.SaveAuction(a); err != nil {
        return nil, fmt.Errorf("save auction: %w", err)
    }
    log.Printf("settler: auction %d settled, winner=%s amount=%s fee=%s transfer=%s",
        a.ID, winner, winning.Amount, fee, transferID)

    out := outcomeFromState(a, winning)
    out.TransferID = &transferID
    return out, nil
}

// fail records a terminal FAILED outcome with the given reason. The
// asset and bid records are deliberately left untouched so the
// failure path has no observable partial effects.
func (s *SettlementService) fail(tx repository.AuctionTx, a *model.Auction, reason string) (*Outcome, error) {
    a.Status = model.StatusFailed
    a.FailureReason = &reason
    if err := tx.SaveAuction(a); err != nil {
        return nil, fmt.Errorf("save auction: %w", err)
    }
    log.Printf("settler: auction %d moved to FAILED: %s", a.ID, reason)
    return outcomeFromState(a, nil), nil
}

func outcomeFromState(a *model.Auction, winning *model.Bid) *Outcome {
    out := &Outcome{
        AuctionID:     a.ID,
        Status:        a.Status,
        Settled:       a.Settled,
        WinnerAccount: a.WinnerAccount,
        FinalBid:      a.CurrentHighestBid,
        Currency:      a.Currency,
        FailureReason: a.FailureReason,
    }
    if winning != nil && winning.TxRef != nil {
        out.TransferID = winning.TxRef
    }
    return out
}
