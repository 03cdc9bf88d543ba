package ledger

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"
)

// HTTPClient talks to the transfer ledger over its JSON HTTP API.
// Every call is bounded by the configured timeout; a timeout is
// surfaced as an error and never interpreted as success.
type HTTPClient struct {
    baseURL string
    client  *http.Client
}

// NewHTTPClient returns a ledger client for the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
    return &HTTPClient{
        baseURL: strings.TrimRight(baseURL, "/"),
        client:  &http.Client{Timeout: timeout},
    }
}

type transferResponse struct {
    TransferID string `json:"transfer_id"`
    Error      string `json:"error"`
}

// ExecuteAtomicTransfer submits the transfer and returns the ledger's
// transaction reference. The idempotency token is also sent as an
// Idempotency-Key header so the ledger can deduplicate retries.
func (c *HTTPClient) ExecuteAtomicTransfer(ctx context.Context, req TransferRequest) (string, error) {
    body, err := json.Marshal(req)
    if err != nil {
        return "", fmt.Errorf("marshal transfer: %w", err)
    }
    httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
        c.baseURL+"/v1/transfers", bytes.NewReader(body))
    if err != nil {
        return "", fmt.Errorf("build transfer request: %w", err)
    }
    httpReq.Header.Set("Content-Type", "application/json")
    httpReq.Header.Set("Idempotency-Key", req.IdempotencyToken)

    resp, err := c.client.Do(httpReq)
    if err != nil {
        return "", fmt.Errorf("ledger call: %w", err)
    }
    defer resp.Body.Close()

    var parsed transferResponse
    if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
        return "", fmt.Errorf("decode ledger response (status %d): %w", resp.StatusCode, err)
    }
    if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
        reason := parsed.Error
        if reason == "" {
            reason = fmt.Sprintf("status %d", resp.StatusCode)
        }
        return "", fmt.Errorf("%w: %s", ErrRejected, reason)
    }
    if parsed.TransferID == "" {
        return "", fmt.Errorf("ledger returned no transfer id")
    }
    return parsed.TransferID, nil
}
