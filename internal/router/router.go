package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/token-auction-market/internal/config"
    "github.com/iliyamo/token-auction-market/internal/handler"
    "github.com/iliyamo/token-auction-market/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
    // Map the GET request at path "/healthz" to the Health handler.  This
    // endpoint can be used by load balancers or monitoring systems to verify
    // that the service is up and running.
    e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated read endpoints.  They
// return sanitized auction data for guests and are fronted by the
// Redis response cache when a client is available.
func RegisterPublic(e *echo.Echo, a *handler.AuctionHandler, rdb *redis.Client) {
    cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
    // Auction details by id
    e.GET("/v1/auctions/:id", a.GetAuction, cache)
    // Bid history of an auction, newest first
    e.GET("/v1/auctions/:id/bids", a.ListBids, cache)
}

// RegisterAuction registers the mutating auction endpoints and their
// middleware.  All of them require a valid access token; the role
// claim decides who may do what: bidders and sellers place bids,
// sellers manage allowances and cancellation, operators drive manual
// settlement retries.  A Redis token bucket rate limits the group.
func RegisterAuction(e *echo.Echo, a *handler.AuctionHandler, al *handler.AllowanceHandler, jwtSecret string, rdb *redis.Client) {
    auth := e.Group("/v1")
    // Apply the JWTAuth middleware to the protected group using the provided secret.
    auth.Use(middleware.JWTAuth(jwtSecret))
    auth.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

    // Bidding is open to buyers and to sellers bidding on other
    // sellers' auctions; the self-bid guard lives in the service.
    bid := auth.Group("/auctions/:id/bids")
    bid.Use(middleware.RequireRole("BIDDER", "SELLER"))
    bid.POST("", a.PlaceBid)

    // Allowance grant/revoke and cancellation belong to sellers.
    seller := auth.Group("/auctions/:id")
    seller.Use(middleware.RequireRole("SELLER"))
    seller.POST("/allowance", al.Grant)
    seller.DELETE("/allowance", al.Revoke)
    seller.POST("/cancel", a.Cancel)

    // Manual settlement is an operational action.
    ops := auth.Group("/auctions/:id/settle")
    ops.Use(middleware.RequireRole("OPERATOR"))
    ops.POST("", a.Settle)
}
