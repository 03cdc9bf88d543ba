package ledger

import (
    "context"
    "fmt"
    "sync"
)

// Recorder is an in-memory Client for tests. It records every request
// it receives and can be primed to fail. Safe for concurrent use.
type Recorder struct {
    mu       sync.Mutex
    requests []TransferRequest
    err      error
    nextID   int
}

// NewRecorder returns a Recorder that succeeds every transfer.
func NewRecorder() *Recorder { return &Recorder{} }

// Fail makes every subsequent transfer return err. Pass nil to
// restore success.
func (r *Recorder) Fail(err error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.err = err
}

// Requests returns a copy of all recorded transfer requests.
func (r *Recorder) Requests() []TransferRequest {
    r.mu.Lock()
    defer r.mu.Unlock()
    out := make([]TransferRequest, len(r.requests))
    copy(out, r.requests)
    return out
}

// Calls returns how many transfers have been attempted.
func (r *Recorder) Calls() int {
    r.mu.Lock()
    defer r.mu.Unlock()
    return len(r.requests)
}

func (r *Recorder) ExecuteAtomicTransfer(_ context.Context, req TransferRequest) (string, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.requests = append(r.requests, req)
    if r.err != nil {
        return "", r.err
    }
    r.nextID++
    return fmt.Sprintf("transfer-%d", r.nextID), nil
}
