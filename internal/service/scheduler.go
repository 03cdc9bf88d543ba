package service

import (
    "context"
    "fmt"
    "log"
    "sync"
    "time"

    "github.com/iliyamo/token-auction-market/internal/model"
    "github.com/iliyamo/token-auction-market/internal/repository"
)

// Scheduler is the recurring background process that drives auction
// lifecycles forward: it activates PENDING auctions whose start time
// has been reached and whose allowance exists, and settles ACTIVE
// auctions past their end time. Each per-auction step is isolated so
// one failure never aborts the rest of the batch.
type Scheduler struct {
    store   repository.Store
    settler *SettlementService

    mu      sync.Mutex
    stop    chan struct{}
    done    chan struct{}
    running bool
}

// NewScheduler returns a Scheduler using the given store and settler.
func NewScheduler(store repository.Store, settler *SettlementService) *Scheduler {
    if store == nil || settler == nil {
        panic("nil dependency passed to NewScheduler")
    }
    return &Scheduler{store: store, settler: settler}
}

// RunOnce performs a single pass: activation of startable auctions
// followed by settlement of every due auction. It is the same entry
// point used for the startup catch-up and every periodic tick.
func (s *Scheduler) RunOnce(ctx context.Context) {
    now := time.Now().UTC()
    s.activatePass(ctx, now)
    s.settlePass(ctx, now)
}

// Start launches the periodic loop with the given interval. A
// catch-up pass runs immediately so auctions that expired while no
// scheduler was running are settled before the first tick.
func (s *Scheduler) Start(interval time.Duration) {
    s.mu.Lock()
    if s.running {
        s.mu.Unlock()
        return
    }
    s.running = true
    s.stop = make(chan struct{})
    s.done = make(chan struct{})
    stop, done := s.stop, s.done
    s.mu.Unlock()

    go func() {
        defer close(done)
        ctx := context.Background()
        s.RunOnce(ctx) // startup catch-up
        ticker := time.NewTicker(interval)
        defer ticker.Stop()
        for {
            select {
            case <-ticker.C:
                s.RunOnce(ctx)
            case <-stop:
                return
            }
        }
    }()
    log.Printf("scheduler: started with interval %s", interval)
}

// Stop terminates the periodic loop and waits for the in-flight pass
// to finish. Calling Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
    s.mu.Lock()
    if !s.running {
        s.mu.Unlock()
        return
    }
    s.running = false
    close(s.stop)
    done := s.done
    s.mu.Unlock()
    <-done
    log.Printf("scheduler: stopped")
}

// activatePass moves startable PENDING auctions to ACTIVE. The guard
// is re-checked under the auction lock since the listing read is not
// serialized with concurrent writers.
func (s *Scheduler) activatePass(ctx context.Context, now time.Time) {
    startable, err := s.store.ListStartableAuctions(ctx, now)
    if err != nil {
        log.Printf("scheduler: list startable auctions: %v", err)
        return
    }
    for _, a := range startable {
        if err := s.activate(ctx, a.ID, now); err != nil {
            log.Printf("scheduler: activate auction %d: %v", a.ID, err)
        }
    }
}

func (s *Scheduler) activate(ctx context.Context, auctionID uint64, now time.Time) error {
    return s.store.WithAuction(ctx, auctionID, func(tx repository.AuctionTx) error {
        a := tx.Auction()
        if a.Status != model.StatusPending || !a.AllowanceGranted || now.Before(a.StartTime) {
            return nil // guard no longer holds, skip
        }
        grant, err := tx.Allowance()
        if err != nil {
            return fmt.Errorf("load allowance: %w", err)
        }
        if !grant.Usable() {
            return nil
        }
        a.Status = model.StatusActive
        if err := tx.SaveAuction(a); err != nil {
            return fmt.Errorf("save auction: %w", err)
        }
        log.Printf("scheduler: auction %d activated", a.ID)
        return nil
    })
}

// settlePass settles every due auction independently: an error or a
// FAILED outcome on one auction is logged and does not prevent the
// remaining auctions from being processed in the same tick.
func (s *Scheduler) settlePass(ctx context.Context, now time.Time) {
    due, err := s.store.ListDueAuctions(ctx, now)
    if err != nil {
        log.Printf("scheduler: list due auctions: %v", err)
        return
    }
    for _, a := range due {
        out, err := s.settler.Settle(ctx, a.ID)
        if err != nil {
            log.Printf("scheduler: settle auction %d: %v", a.ID, err)
            continue
        }
        if out.Status == model.StatusFailed && out.FailureReason != nil {
            log.Printf("scheduler: auction %d settlement failed: %s", a.ID, *out.FailureReason)
        }
    }
}
