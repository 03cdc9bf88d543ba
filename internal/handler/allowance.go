package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/token-auction-market/internal/service"
)

// AllowanceHandler exposes the grant/revoke half of the auction
// lifecycle: the seller's transfer pre-authorization that gates
// activation, and its withdrawal which cancels the listing.
type AllowanceHandler struct {
    Allowance *service.AllowanceService
}

// NewAllowanceHandler constructs an AllowanceHandler.
func NewAllowanceHandler(allowance *service.AllowanceService) *AllowanceHandler {
    if allowance == nil {
        panic("nil service passed to NewAllowanceHandler")
    }
    return &AllowanceHandler{Allowance: allowance}
}

// Grant handles POST /v1/auctions/:id/allowance.  The body must carry
// the opaque authorization reference proving the holder pre-authorized
// the transfer.
func (h *AllowanceHandler) Grant(c echo.Context) error {
    holder := account(c)
    if holder == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := auctionID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid auction id"})
    }
    var body struct {
        AuthorizationRef string `json:"authorization_ref"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if err := h.Allowance.Grant(c.Request().Context(), id, holder, body.AuthorizationRef); err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"auction_id": id, "granted": true})
}

// Revoke handles DELETE /v1/auctions/:id/allowance.  Revocation is
// rejected once the auction has recorded bids; otherwise it cancels
// the auction and returns the asset to AVAILABLE.
func (h *AllowanceHandler) Revoke(c echo.Context) error {
    holder := account(c)
    if holder == "" {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    id, err := auctionID(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid auction id"})
    }
    if err := h.Allowance.Revoke(c.Request().Context(), id, holder); err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"auction_id": id, "revoked": true})
}
