package handler

import (
    "net/http" // HTTP status codes
    "time"

    "github.com/labstack/echo/v4" // Echo web framework
    "github.com/shopspring/decimal"

    "github.com/iliyamo/token-auction-market/internal/model"
    "github.com/iliyamo/token-auction-market/internal/repository"
    "github.com/iliyamo/token-auction-market/internal/service"
)

// AuctionHandler groups the services required to place bids, trigger
// settlement and cancel auctions on behalf of API clients.  All
// methods assume that JWT authentication and role validation has
// already been performed by middleware.  Methods may return 401
// Unauthorized if the account cannot be extracted from the context.
type AuctionHandler struct {
    Store      repository.Store
    Bids       *service.BidService
    Settlement *service.SettlementService
    Lifecycle  *service.AllowanceService
}

// NewAuctionHandler constructs a new AuctionHandler with the provided
// dependencies.  All of them must be non-nil.
func NewAuctionHandler(store repository.Store, bids *service.BidService, settlement *service.SettlementService, lifecycle *service.AllowanceService) *AuctionHandler {
    if store == nil || bids == nil || settlement == nil || lifecycle == nil {
        panic("nil dependency passed to NewAuctionHandler")
    }
    return &AuctionHandler{Store: store, Bids: bids, Settlement: settlement, Lifecycle: lifecycle}
}

// PlaceBid handles POST /v1/auctions/:id/bids.  The request body must
// contain a JSON object with a decimal "amount".  On success it
// returns 201 Created with the recorded bid; every precondition
// violation is reported with a specific reason code.
func (h *AuctionHandler) PlaceBid(c echo.Context) error {
    bidder := account(c)
    if bidder == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := auctionID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid auction id"})
    }
    var body struct {
        Amount string `json:"amount"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    amount, err := decimal.NewFromString(body.Amount)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be a decimal string"})
    }

    bid, err := h.Bids.PlaceBid(c.Request().Context(), id, bidder, amount)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "bid_id":     bid.ID,
        "auction_id": bid.AuctionID,
        "amount":     bid.Amount.String(),
        "winning":    bid.Winning,
        "created_at": bid.CreatedAt.UTC().Format(time.RFC3339),
    })
}

// Settle handles POST /v1/auctions/:id/settle, the manual settlement
// trigger used for operational retries.  Settlement is idempotent:
// re-triggering a terminal auction returns the recorded outcome.
func (h *AuctionHandler) Settle(c echo.Context) error {
    id, err := auctionID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid auction id"})
    }
    out, err := h.Settlement.Settle(c.Request().Context(), id)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, settlementPayload(out))
}

// Cancel handles POST /v1/auctions/:id/cancel.  Only the seller may
// cancel, and only while the auction has no recorded bids.
func (h *AuctionHandler) Cancel(c echo.Context) error {
    requester := account(c)
    if requester == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := auctionID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid auction id"})
    }
    if err := h.Lifecycle.Cancel(c.Request().Context(), id, requester); err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"auction_id": id, "status": string(model.StatusCancelled)})
}

// GetAuction handles GET /v1/auctions/:id, returning the public view
// of an auction.
func (h *AuctionHandler) GetAuction(c echo.Context) error {
    id, err := auctionID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid auction id"})
    }
    a, err := h.Store.GetAuction(c.Request().Context(), id)
    if err != nil {
        return writeError(c, err)
    }
    resp := echo.Map{
        "auction_id":    a.ID,
        "title":         a.Title,
        "description":   a.Description,
        "seller":        a.SellerAccount,
        "reserve_price": a.ReservePrice.String(),
        "currency":      a.Currency,
        "start_time":    a.StartTime.UTC().Format(time.RFC3339),
        "end_time":      a.EndTime.UTC().Format(time.RFC3339),
        "status":        string(a.Status),
        "settled":       a.Settled,
    }
    if a.CurrentHighestBid.Valid {
        resp["current_highest_bid"] = a.CurrentHighestBid.Decimal.String()
    }
    if a.WinnerAccount != nil {
        resp["winner"] = *a.WinnerAccount
    }
    if a.FailureReason != nil {
        resp["failure_reason"] = *a.FailureReason
    }
    return c.JSON(http.StatusOK, resp)
}

// ListBids handles GET /v1/auctions/:id/bids, newest first.
func (h *AuctionHandler) ListBids(c echo.Context) error {
    id, err := auctionID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid auction id"})
    }
    if _, err := h.Store.GetAuction(c.Request().Context(), id); err != nil {
        return writeError(c, err)
    }
    bids, err := h.Store.ListBids(c.Request().Context(), id)
    if err != nil {
        return writeError(c, err)
    }
    out := make([]echo.Map, 0, len(bids))
    for _, b := range bids {
        item := echo.Map{
            "bid_id":     b.ID,
            "bidder":     b.BidderAccount,
            "amount":     b.Amount.String(),
            "winning":    b.Winning,
            "created_at": b.CreatedAt.UTC().Format(time.RFC3339),
        }
        if b.TxRef != nil {
            item["tx_ref"] = *b.TxRef
        }
        out = append(out, item)
    }
    return c.JSON(http.StatusOK, echo.Map{"auction_id": id, "bids": out})
}

func settlementPayload(out *service.Outcome) echo.Map {
    resp := echo.Map{
        "auction_id": out.AuctionID,
        "status":     string(out.Status),
        "settled":    out.Settled,
    }
    if out.WinnerAccount != nil {
        resp["winner"] = *out.WinnerAccount
    }
    if out.FinalBid.Valid {
        resp["final_bid"] = out.FinalBid.Decimal.String()
    }
    if out.TransferID != nil {
        resp["transfer_id"] = *out.TransferID
    }
    if out.FailureReason != nil {
        resp["failure_reason"] = *out.FailureReason
    }
    return resp
}
