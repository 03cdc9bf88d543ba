package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/shopspring/decimal"

    "github.com/iliyamo/token-auction-market/internal/model"
    "github.com/iliyamo/token-auction-market/internal/queue"
    "github.com/iliyamo/token-auction-market/internal/repository"
)

// Events is the outbound event surface the services publish to. A nil
// Events disables publishing; publish failures are logged and never
// fail the originating request.
type Events interface {
    PublishBidAccepted(ctx context.Context, ev queue.BidAcceptedEvent) error
    PublishAuctionSettled(ctx context.Context, ev queue.AuctionSettledEvent) error
}

// BidService admits bids against active auctions. The whole
// read-validate-write sequence for one bid runs inside the store's
// per-auction critical section, so concurrent bids on the same
// auction are serialized and each is validated against its
// predecessor's committed result, never against stale state.
type BidService struct {
    store          repository.Store
    events         Events
    incrementRatio decimal.Decimal
}

// NewBidService returns a BidService enforcing the given minimum
// increment ratio (e.g. 0.05 requires each bid to exceed the current
// highest by 5%).
func NewBidService(store repository.Store, events Events, incrementRatio decimal.Decimal) *BidService {
    if store == nil {
        panic("nil store passed to NewBidService")
    }
    return &BidService{store: store, events: events, incrementRatio: incrementRatio}
}

// PlaceBid validates and records a bid. Preconditions are checked in
// order, each producing a distinct rejection: the auction must exist
// and be ACTIVE, the current time must fall within its bidding
// window, the bidder must not be the seller, the amount must be
// positive and must reach the minimum acceptable bid. On success the
// previous winning bid is cleared, the new bid is inserted winning
// and the auction's highest bid is updated, all in one atomic unit.
func (s *BidService) PlaceBid(ctx context.Context, auctionID uint64, bidder string, amount decimal.Decimal) (*model.Bid, error) {
    var (
        bid      model.Bid
        currency string
    )
    err := s.store.WithAuction(ctx, auctionID, func(tx repository.AuctionTx) error {
        a := tx.Auction()
        now := time.Now().UTC()

        if a.Status != model.StatusActive {
            return reject(ReasonAuctionNotActive,
                fmt.Sprintf("auction %d is %s, not ACTIVE", a.ID, a.Status))
        }
        if now.Before(a.StartTime) || !now.Before(a.EndTime) {
            return reject(ReasonAuctionNotOpen,
                fmt.Sprintf("bidding window for auction %d is closed", a.ID))
        }
        if bidder == a.SellerAccount {
            return reject(ReasonSelfBid, "sellers cannot bid on their own auction")
        }
        if !amount.IsPositive() {
            return reject(ReasonInvalidAmount, "bid amount must be a positive value")
        }
        min := a.MinimumAcceptableBid(s.incrementRatio)
        if amount.LessThan(min) {
            return reject(ReasonBidTooLow,
                fmt.Sprintf("bid %s is below the minimum acceptable bid %s", amount, min))
        }

        if err := tx.ClearWinningBid(); err != nil {
            return fmt.Errorf("clear winning bid: %w", err)
        }
        bid = model.Bid{
            AuctionID:     a.ID,
            BidderAccount: bidder,
            Amount:        amount,
            Winning:       true,
        }
        if err := tx.InsertBid(&bid); err != nil {
            return fmt.Errorf("insert bid: %w", err)
        }
        a.CurrentHighestBid = decimal.NewNullDecimal(amount)
        if err := tx.SaveAuction(a); err != nil {
            return fmt.Errorf("save auction: %w", err)
        }
        currency = a.Currency
        return nil
    })
    if errors.Is(err, repository.ErrAuctionNotFound) {
        return nil, reject(ReasonAuctionNotFound, fmt.Sprintf("auction %d does not exist", auctionID))
    }
    if err != nil {
        return nil, err
    }

    if s.events != nil {
        ev := queue.BidAcceptedEvent{
            AuctionID:     bid.AuctionID,
            BidID:         bid.ID,
            BidderAccount: bid.BidderAccount,
            Amount:        bid.Amount.String(),
            Currency:      currency,
            AcceptedAt:    bid.CreatedAt.UTC().Format(time.RFC3339),
        }
        if err := s.events.PublishBidAccepted(ctx, ev); err != nil {
            log.Printf("bidding: publish bid.accepted for auction %d failed: %v", bid.AuctionID, err)
        }
    }
    return &bid, nil
}
