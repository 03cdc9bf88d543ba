package main // Entry point package

import (
    "log" // Logging library

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/token-auction-market/internal/config"
    "github.com/iliyamo/token-auction-market/internal/database"
    "github.com/iliyamo/token-auction-market/internal/handler"
    "github.com/iliyamo/token-auction-market/internal/ledger"
    "github.com/iliyamo/token-auction-market/internal/queue"
    "github.com/iliyamo/token-auction-market/internal/repository"
    "github.com/iliyamo/token-auction-market/internal/router"
    "github.com/iliyamo/token-auction-market/internal/service"
)

func main() {
    cfg := config.Load() // Load environment config

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    store := repository.NewMySQLStore(db)

    // Redis backs the rate limiter and the public response cache; a
    // nil client disables both gracefully.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Printf("redis unavailable; rate limiting and response caching disabled")
    }

    events := queue.NewPublisher(cfg.AMQPURL)
    ledgerClient := ledger.NewHTTPClient(cfg.LedgerURL, cfg.LedgerTimeout)

    bids := service.NewBidService(store, events, cfg.MinIncrementRatio)
    settlement := service.NewSettlementService(store, ledgerClient, events, cfg.FeeRatio, cfg.PlatformAccount)
    allowance := service.NewAllowanceService(store)

    // The completion scheduler runs a catch-up pass immediately, then
    // settles due auctions every tick.
    scheduler := service.NewScheduler(store, settlement)
    scheduler.Start(cfg.SettleInterval)
    defer scheduler.Stop()

    // The settlement audit consumer appends auction.settled events to
    // logs/settlement.log and reconnects on broker failure.
    go func() {
        if err := queue.StartSettlementConsumer(cfg.AMQPURL); err != nil {
            log.Printf("settlement consumer stopped: %v", err)
        }
    }()

    e := echo.New() // Create Echo instance
    auctions := handler.NewAuctionHandler(store, bids, settlement, allowance)
    allowances := handler.NewAllowanceHandler(allowance)
    router.RegisterRoutes(e)
    router.RegisterPublic(e, auctions, rdb)
    router.RegisterAuction(e, auctions, allowances, cfg.JWTSecret, rdb)

    addr := ":" + cfg.Port                                // Address string with port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

    if err := e.Start(addr); err != nil { // Start HTTP server
        log.Fatal(err) // Log and exit if server fails
    }
}
