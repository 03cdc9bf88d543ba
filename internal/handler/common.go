package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/token-auction-market/internal/repository"
    "github.com/iliyamo/token-auction-market/internal/service"
)

// account extracts the authenticated account reference placed in the
// context by the JWTAuth middleware. An empty string means the
// request carried no usable identity.
func account(c echo.Context) string {
    if v, ok := c.Get("user_id").(string); ok {
        return v
    }
    return ""
}

// auctionID parses the :id path parameter.
func auctionID(c echo.Context) (uint64, error) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return 0, errors.New("invalid auction id")
    }
    return id, nil
}

// writeError maps service and repository errors onto HTTP responses.
// Rejections carry their reason code so API clients can branch on it;
// version conflicts are reported as retryable 409s.
func writeError(c echo.Context, err error) error {
    if rej, ok := service.AsRejection(err); ok {
        status := http.StatusBadRequest
        switch rej.Reason {
        case service.ReasonAuctionNotFound:
            status = http.StatusNotFound
        case service.ReasonSelfBid, service.ReasonNotHolder:
            status = http.StatusForbidden
        case service.ReasonHasActiveBids, service.ReasonInvalidTransition:
            status = http.StatusConflict
        }
        return c.JSON(status, echo.Map{"error": string(rej.Reason), "message": rej.Message})
    }
    if errors.Is(err, repository.ErrAuctionNotFound) {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "auction_not_found"})
    }
    if errors.Is(err, repository.ErrVersionConflict) {
        return c.JSON(http.StatusConflict, echo.Map{"error": "conflict", "retryable": true})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
