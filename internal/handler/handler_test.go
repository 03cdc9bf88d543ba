package handler

import (
    "context"
    "net/http"
    "net/http/httptest"
    "strconv"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/token-auction-market/internal/ledger"
    "github.com/iliyamo/token-auction-market/internal/model"
    "github.com/iliyamo/token-auction-market/internal/repository"
    "github.com/iliyamo/token-auction-market/internal/service"
)

func dec(s string) decimal.Decimal {
    d, err := decimal.NewFromString(s)
    if err != nil {
        panic(err)
    }
    return d
}

// fixture seeds a store with one active auction and its asset and
// allowance, the shape every happy path starts from.
func fixture(t *testing.T) *repository.MemoryStore {
    t.Helper()
    store := repository.NewMemoryStore()
    now := time.Now().UTC()
    auctionID := uint64(1)
    store.PutAuction(&model.Auction{
        ID:               auctionID,
        SellerAccount:    "seller",
        Title:            "lot 1",
        ReservePrice:     dec("100"),
        Currency:         "USD",
        StartTime:        now.Add(-time.Hour),
        EndTime:          now.Add(time.Hour),
        Status:           model.StatusActive,
        AllowanceGranted: true,
    })
    store.PutAsset(&model.Asset{
        CollectionID: 7,
        SerialNumber: 1,
        OwnerAccount: "seller",
        Status:       model.AssetInAuction,
        AuctionID:    &auctionID,
    })
    store.PutAllowance(&model.AllowanceGrant{
        AuctionID:        auctionID,
        HolderAccount:    "seller",
        AuthorizationRef: "auth-ref-1",
        Granted:          true,
    })
    return store
}

func newHandlers(store *repository.MemoryStore) (*AuctionHandler, *AllowanceHandler, *ledger.Recorder) {
    rec := ledger.NewRecorder()
    bids := service.NewBidService(store, nil, dec("0.05"))
    settlement := service.NewSettlementService(store, rec, nil, dec("0.025"), "platform")
    lifecycle := service.NewAllowanceService(store)
    return NewAuctionHandler(store, bids, settlement, lifecycle), NewAllowanceHandler(lifecycle), rec
}

// invoke builds a request context for a handler method, injecting the
// authenticated account the way JWTAuth does.
func invoke(t *testing.T, h echo.HandlerFunc, method, body, account string, auctionID uint64) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    var reader *strings.Reader
    if body == "" {
        reader = strings.NewReader("{}")
    } else {
        reader = strings.NewReader(body)
    }
    req := httptest.NewRequest(method, "/", reader)
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    c.SetParamNames("id")
    c.SetParamValues(strconv.FormatUint(auctionID, 10))
    if account != "" {
        c.Set("user_id", account)
    }
    require.NoError(t, h(c))
    return rec
}

func TestPlaceBidEndpoint(t *testing.T) {
    t.Run("accepts a valid opening bid", func(t *testing.T) {
        h, _, _ := newHandlers(fixture(t))
        rec := invoke(t, h.PlaceBid, http.MethodPost, `{"amount":"120"}`, "buyer-1", 1)
        assert.Equal(t, http.StatusCreated, rec.Code)
        assert.Contains(t, rec.Body.String(), `"winning":true`)
        assert.Contains(t, rec.Body.String(), `"amount":"120"`)
    })

    t.Run("rejects a bid below the reserve", func(t *testing.T) {
        h, _, _ := newHandlers(fixture(t))
        rec := invoke(t, h.PlaceBid, http.MethodPost, `{"amount":"99"}`, "buyer-1", 1)
        assert.Equal(t, http.StatusBadRequest, rec.Code)
        assert.Contains(t, rec.Body.String(), string(service.ReasonBidTooLow))
    })

    t.Run("forbids the seller bidding on their own auction", func(t *testing.T) {
        h, _, _ := newHandlers(fixture(t))
        rec := invoke(t, h.PlaceBid, http.MethodPost, `{"amount":"120"}`, "seller", 1)
        assert.Equal(t, http.StatusForbidden, rec.Code)
        assert.Contains(t, rec.Body.String(), string(service.ReasonSelfBid))
    })

    t.Run("404 for an unknown auction", func(t *testing.T) {
        h, _, _ := newHandlers(fixture(t))
        rec := invoke(t, h.PlaceBid, http.MethodPost, `{"amount":"120"}`, "buyer-1", 42)
        assert.Equal(t, http.StatusNotFound, rec.Code)
    })

    t.Run("rejects a malformed amount", func(t *testing.T) {
        h, _, _ := newHandlers(fixture(t))
        rec := invoke(t, h.PlaceBid, http.MethodPost, `{"amount":"not-a-number"}`, "buyer-1", 1)
        assert.Equal(t, http.StatusBadRequest, rec.Code)
    })

    t.Run("401 without an authenticated account", func(t *testing.T) {
        h, _, _ := newHandlers(fixture(t))
        rec := invoke(t, h.PlaceBid, http.MethodPost, `{"amount":"120"}`, "", 1)
        assert.Equal(t, http.StatusUnauthorized, rec.Code)
    })
}

func TestSettleEndpoint(t *testing.T) {
    t.Run("not yet due", func(t *testing.T) {
        h, _, _ := newHandlers(fixture(t))
        rec := invoke(t, h.Settle, http.MethodPost, "", "ops", 1)
        assert.Equal(t, http.StatusBadRequest, rec.Code)
        assert.Contains(t, rec.Body.String(), string(service.ReasonNotYetDue))
    })

    t.Run("settles an ended auction with a winner", func(t *testing.T) {
        store := fixture(t)
        h, _, lrec := newHandlers(store)

        rec := invoke(t, h.PlaceBid, http.MethodPost, `{"amount":"200"}`, "buyer-1", 1)
        require.Equal(t, http.StatusCreated, rec.Code)

        // Push the auction past its end time, then trigger settlement.
        a, err := store.GetAuction(context.Background(), 1)
        require.NoError(t, err)
        a.EndTime = time.Now().UTC().Add(-time.Minute)
        store.PutAuction(a)

        rec = invoke(t, h.Settle, http.MethodPost, "", "ops", 1)
        assert.Equal(t, http.StatusOK, rec.Code)
        assert.Contains(t, rec.Body.String(), `"status":"ENDED"`)
        assert.Contains(t, rec.Body.String(), `"winner":"buyer-1"`)
        assert.Contains(t, rec.Body.String(), `"transfer_id"`)
        assert.Equal(t, 1, lrec.Calls())

        // Retriggering is idempotent and must not touch the ledger again.
        rec = invoke(t, h.Settle, http.MethodPost, "", "ops", 1)
        assert.Equal(t, http.StatusOK, rec.Code)
        assert.Equal(t, 1, lrec.Calls())
    })
}

func TestCancelEndpoint(t *testing.T) {
    t.Run("seller cancels a bid-free auction", func(t *testing.T) {
        store := fixture(t)
        h, _, _ := newHandlers(store)
        rec := invoke(t, h.Cancel, http.MethodPost, "", "seller", 1)
        assert.Equal(t, http.StatusOK, rec.Code)
        assert.Contains(t, rec.Body.String(), `"status":"CANCELLED"`)

        a, err := store.GetAuction(context.Background(), 1)
        require.NoError(t, err)
        assert.Equal(t, model.StatusCancelled, a.Status)
        assert.True(t, a.Settled)
    })

    t.Run("conflict once bids exist", func(t *testing.T) {
        h, _, _ := newHandlers(fixture(t))
        rec := invoke(t, h.PlaceBid, http.MethodPost, `{"amount":"150"}`, "buyer-1", 1)
        require.Equal(t, http.StatusCreated, rec.Code)

        rec = invoke(t, h.Cancel, http.MethodPost, "", "seller", 1)
        assert.Equal(t, http.StatusConflict, rec.Code)
        assert.Contains(t, rec.Body.String(), string(service.ReasonHasActiveBids))
    })
}

func TestAllowanceEndpoints(t *testing.T) {
    t.Run("grant on a pending auction", func(t *testing.T) {
        store := repository.NewMemoryStore()
        now := time.Now().UTC()
        store.PutAuction(&model.Auction{
            ID:            2,
            SellerAccount: "seller",
            ReservePrice:  dec("50"),
            Currency:      "USD",
            StartTime:     now.Add(time.Hour),
            EndTime:       now.Add(2 * time.Hour),
            Status:        model.StatusPending,
        })
        _, ah, _ := newHandlers(store)

        rec := invoke(t, ah.Grant, http.MethodPost, `{"authorization_ref":"auth-99"}`, "seller", 2)
        assert.Equal(t, http.StatusCreated, rec.Code)

        a, err := store.GetAuction(context.Background(), 2)
        require.NoError(t, err)
        assert.True(t, a.AllowanceGranted)
    })

    t.Run("revoke before bids cancels the auction", func(t *testing.T) {
        store := fixture(t)
        _, ah, _ := newHandlers(store)

        rec := invoke(t, ah.Revoke, http.MethodDelete, "", "seller", 1)
        assert.Equal(t, http.StatusOK, rec.Code)

        a, err := store.GetAuction(context.Background(), 1)
        require.NoError(t, err)
        assert.Equal(t, model.StatusCancelled, a.Status)
        assert.False(t, a.AllowanceGranted)
    })

    t.Run("revoke blocked by active bids", func(t *testing.T) {
        store := fixture(t)
        h, ah, _ := newHandlers(store)
        rec := invoke(t, h.PlaceBid, http.MethodPost, `{"amount":"150"}`, "buyer-1", 1)
        require.Equal(t, http.StatusCreated, rec.Code)

        rec = invoke(t, ah.Revoke, http.MethodDelete, "", "seller", 1)
        assert.Equal(t, http.StatusConflict, rec.Code)
    })
}

func TestReadEndpoints(t *testing.T) {
    t.Run("get auction", func(t *testing.T) {
        h, _, _ := newHandlers(fixture(t))
        rec := invoke(t, h.GetAuction, http.MethodGet, "", "", 1)
        assert.Equal(t, http.StatusOK, rec.Code)
        assert.Contains(t, rec.Body.String(), `"reserve_price":"100"`)
        assert.Contains(t, rec.Body.String(), `"status":"ACTIVE"`)
    })

    t.Run("get auction not found", func(t *testing.T) {
        h, _, _ := newHandlers(fixture(t))
        rec := invoke(t, h.GetAuction, http.MethodGet, "", "", 9)
        assert.Equal(t, http.StatusNotFound, rec.Code)
    })

    t.Run("list bids newest first", func(t *testing.T) {
        h, _, _ := newHandlers(fixture(t))
        for _, amount := range []string{"100", "110", "130"} {
            rec := invoke(t, h.PlaceBid, http.MethodPost, `{"amount":"`+amount+`"}`, "buyer-1", 1)
            require.Equal(t, http.StatusCreated, rec.Code)
        }
        rec := invoke(t, h.ListBids, http.MethodGet, "", "", 1)
        assert.Equal(t, http.StatusOK, rec.Code)
        body := rec.Body.String()
        assert.Less(t, strings.Index(body, `"amount":"130"`), strings.Index(body, `"amount":"100"`))
    })
}
