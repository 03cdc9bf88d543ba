package repository

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    "github.com/shopspring/decimal"

    "github.com/iliyamo/token-auction-market/internal/model"
)

// MySQLStore implements Store against MySQL.  All timestamp columns
// are stored in UTC and monetary columns as DECIMAL(32,8).  The
// per-auction critical section is realised with an InnoDB row lock
// (SELECT ... FOR UPDATE on the auctions row) held for the lifetime
// of the surrounding transaction; the version column is additionally
// checked on every auction write so that every mutating path follows
// the same compare-and-swap discipline.
type MySQLStore struct {
    db *sql.DB
}

// NewMySQLStore returns a new MySQLStore bound to the given database.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

const auctionColumns = `id, seller_account, title, description, reserve_price,
    current_highest_bid, currency, start_time, end_time, status, settled,
    winner_account, allowance_granted, failure_reason, version, created_at, updated_at`

func scanAuction(row interface{ Scan(...any) error }) (*model.Auction, error) {
    var (
        a          model.Auction
        reserve    string
        highest    sql.NullString
        status     string
        winner     sql.NullString
        failReason sql.NullString
    )
    err := row.Scan(
        &a.ID, &a.SellerAccount, &a.Title, &a.Description, &reserve,
        &highest, &a.Currency, &a.StartTime, &a.EndTime, &status, &a.Settled,
        &winner, &a.AllowanceGranted, &failReason, &a.Version, &a.CreatedAt, &a.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if a.ReservePrice, err = decimal.NewFromString(reserve); err != nil {
        return nil, fmt.Errorf("parse reserve_price: %w", err)
    }
    if highest.Valid {
        d, err := decimal.NewFromString(highest.String)
        if err != nil {
            return nil, fmt.Errorf("parse current_highest_bid: %w", err)
        }
        a.CurrentHighestBid = decimal.NewNullDecimal(d)
    }
    a.Status = model.AuctionStatus(status)
    if winner.Valid {
        w := winner.String
        a.WinnerAccount = &w
    }
    if failReason.Valid {
        r := failReason.String
        a.FailureReason = &r
    }
    return &a, nil
}

// GetAuction returns the auction or ErrAuctionNotFound.
func (s *MySQLStore) GetAuction(ctx context.Context, id uint64) (*model.Auction, error) {
    const q = `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ?`
    a, err := scanAuction(s.db.QueryRowContext(ctx, q, id))
    if err == sql.ErrNoRows {
        return nil, ErrAuctionNotFound
    }
    return a, err
}

// GetAsset returns the asset identified by the collection/serial pair.
func (s *MySQLStore) GetAsset(ctx context.Context, collectionID, serialNumber uint64) (*model.Asset, error) {
    const q = `SELECT collection_id, serial_number, owner_account, status, auction_id, created_at, updated_at
        FROM assets WHERE collection_id = ? AND serial_number = ?`
    a, err := scanAsset(s.db.QueryRowContext(ctx, q, collectionID, serialNumber))
    if err == sql.ErrNoRows {
        return nil, ErrAssetNotFound
    }
    return a, err
}

func scanAsset(row interface{ Scan(...any) error }) (*model.Asset, error) {
    var (
        a         model.Asset
        status    string
        auctionID sql.NullInt64
    )
    err := row.Scan(&a.CollectionID, &a.SerialNumber, &a.OwnerAccount, &status,
        &auctionID, &a.CreatedAt, &a.UpdatedAt)
    if err != nil {
        return nil, err
    }
    a.Status = model.AssetStatus(status)
    if auctionID.Valid {
        id := uint64(auctionID.Int64)
        a.AuctionID = &id
    }
    return &a, nil
}

// ListBids returns all bids for the auction, newest first.
func (s *MySQLStore) ListBids(ctx context.Context, auctionID uint64) ([]*model.Bid, error) {
    const q = `SELECT id, auction_id, bidder_account, amount, winning, tx_ref, created_at
        FROM bids WHERE auction_id = ? ORDER BY created_at DESC, id DESC`
    rows, err := s.db.QueryContext(ctx, q, auctionID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var bids []*model.Bid
    for rows.Next() {
        b, err := scanBid(rows)
        if err != nil {
            return nil, err
        }
        bids = append(bids, b)
    }
    return bids, rows.Err()
}

func scanBid(row interface{ Scan(...any) error }) (*model.Bid, error) {
    var (
        b      model.Bid
        amount string
        txRef  sql.NullString
    )
    err := row.Scan(&b.ID, &b.AuctionID, &b.BidderAccount, &amount, &b.Winning, &txRef, &b.CreatedAt)
    if err != nil {
        return nil, err
    }
    if b.Amount, err = decimal.NewFromString(amount); err != nil {
        return nil, fmt.Errorf("parse bid amount: %w", err)
    }
    if txRef.Valid {
        r := txRef.String
        b.TxRef = &r
    }
    return &b, nil
}

// ListDueAuctions returns ACTIVE, unsettled auctions past their end time.
func (s *MySQLStore) ListDueAuctions(ctx context.Context, now time.Time) ([]*model.Auction, error) {
    const q = `SELECT ` + auctionColumns + ` FROM auctions
        WHERE status = ? AND settled = FALSE AND end_time <= ? ORDER BY end_time ASC`
    return s.listAuctions(ctx, q, model.StatusActive, now.UTC())
}

// ListStartableAuctions returns PENDING auctions with a granted
// allowance whose start time has been reached.
func (s *MySQLStore) ListStartableAuctions(ctx context.Context, now time.Time) ([]*model.Auction, error) {
    const q = `SELECT ` + auctionColumns + ` FROM auctions
        WHERE status = ? AND allowance_granted = TRUE AND start_time <= ? ORDER BY start_time ASC`
    return s.listAuctions(ctx, q, model.StatusPending, now.UTC())
}

func (s *MySQLStore) listAuctions(ctx context.Context, q string, args ...any) ([]*model.Auction, error) {
    rows, err := s.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var auctions []*model.Auction
    for rows.Next() {
        a, err := scanAuction(rows)
        if err != nil {
            return nil, err
        }
        auctions = append(auctions, a)
    }
    return auctions, rows.Err()
}

// WithAuction locks the auction row FOR UPDATE inside a transaction,
// runs fn against it and commits when fn returns nil.  The caller's
// error is returned unchanged after rollback.
func (s *MySQLStore) WithAuction(ctx context.Context, id uint64, fn func(tx AuctionTx) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return fmt.Errorf("begin tx: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const q = `SELECT ` + auctionColumns + ` FROM auctions WHERE id = ? FOR UPDATE`
    a, err := scanAuction(tx.QueryRowContext(ctx, q, id))
    if err == sql.ErrNoRows {
        return ErrAuctionNotFound
    }
    if err != nil {
        return err
    }

    if err := fn(&mysqlAuctionTx{ctx: ctx, tx: tx, auction: a}); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return fmt.Errorf("commit: %w", err)
    }
    committed = true
    return nil
}

// mysqlAuctionTx implements AuctionTx on top of an open *sql.Tx that
// holds the row lock on its auction.
type mysqlAuctionTx struct {
    ctx     context.Context
    tx      *sql.Tx
    auction *model.Auction
}

func (t *mysqlAuctionTx) Auction() *model.Auction { return t.auction }

func (t *mysqlAuctionTx) SaveAuction(a *model.Auction) error {
    const q = `UPDATE auctions SET seller_account = ?, title = ?, description = ?,
        reserve_price = ?, current_highest_bid = ?, currency = ?, start_time = ?,
        end_time = ?, status = ?, settled = ?, winner_account = ?,
        allowance_granted = ?, failure_reason = ?, version = version + 1
        WHERE id = ? AND version = ?`
    var highest any
    if a.CurrentHighestBid.Valid {
        highest = a.CurrentHighestBid.Decimal.String()
    }
    res, err := t.tx.ExecContext(t.ctx, q,
        a.SellerAccount, a.Title, a.Description, a.ReservePrice.String(), highest,
        a.Currency, a.StartTime, a.EndTime, string(a.Status), a.Settled,
        a.WinnerAccount, a.AllowanceGranted, a.FailureReason, a.ID, a.Version)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrVersionConflict
    }
    a.Version++
    return nil
}

func (t *mysqlAuctionTx) WinningBid() (*model.Bid, error) {
    const q = `SELECT id, auction_id, bidder_account, amount, winning, tx_ref, created_at
        FROM bids WHERE auction_id = ? AND winning = TRUE`
    b, err := scanBid(t.tx.QueryRowContext(t.ctx, q, t.auction.ID))
    if err == sql.ErrNoRows {
        return nil, nil
    }
    return b, err
}

func (t *mysqlAuctionTx) BidCount() (int, error) {
    var n int
    err := t.tx.QueryRowContext(t.ctx,
        `SELECT COUNT(*) FROM bids WHERE auction_id = ?`, t.auction.ID).Scan(&n)
    return n, err
}

func (t *mysqlAuctionTx) ClearWinningBid() error {
    _, err := t.tx.ExecContext(t.ctx,
        `UPDATE bids SET winning = FALSE WHERE auction_id = ? AND winning = TRUE`, t.auction.ID)
    return err
}

func (t *mysqlAuctionTx) InsertBid(b *model.Bid) error {
    const q = `INSERT INTO bids (auction_id, bidder_account, amount, winning) VALUES (?, ?, ?, ?)`
    res, err := t.tx.ExecContext(t.ctx, q, b.AuctionID, b.BidderAccount, b.Amount.String(), b.Winning)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    b.ID = uint64(id)
    // Query back the generated creation timestamp.
    return t.tx.QueryRowContext(t.ctx,
        `SELECT created_at FROM bids WHERE id = ?`, b.ID).Scan(&b.CreatedAt)
}

func (t *mysqlAuctionTx) SetBidSettlementRef(bidID uint64, txRef string) error {
    _, err := t.tx.ExecContext(t.ctx,
        `UPDATE bids SET tx_ref = ? WHERE id = ?`, txRef, bidID)
    return err
}

func (t *mysqlAuctionTx) AssetForAuction() (*model.Asset, error) {
    const q = `SELECT collection_id, serial_number, owner_account, status, auction_id, created_at, updated_at
        FROM assets WHERE auction_id = ?`
    a, err := scanAsset(t.tx.QueryRowContext(t.ctx, q, t.auction.ID))
    if err == sql.ErrNoRows {
        return nil, ErrAssetNotFound
    }
    return a, err
}

func (t *mysqlAuctionTx) UpdateAsset(a *model.Asset) error {
    const q = `UPDATE assets SET owner_account = ?, status = ?, auction_id = ?
        WHERE collection_id = ? AND serial_number = ?`
    var auctionID any
    if a.AuctionID != nil {
        auctionID = *a.AuctionID
    }
    _, err := t.tx.ExecContext(t.ctx, q, a.OwnerAccount, string(a.Status), auctionID,
        a.CollectionID, a.SerialNumber)
    return err
}

func (t *mysqlAuctionTx) Allowance() (*model.AllowanceGrant, error) {
    const q = `SELECT auction_id, holder_account, authorization_ref, granted, revoked, created_at, updated_at
        FROM allowance_grants WHERE auction_id = ?`
    var g model.AllowanceGrant
    err := t.tx.QueryRowContext(t.ctx, q, t.auction.ID).Scan(
        &g.AuctionID, &g.HolderAccount, &g.AuthorizationRef, &g.Granted,
        &g.Revoked, &g.CreatedAt, &g.UpdatedAt)
    if err == sql.ErrNoRows {
        return nil, ErrAllowanceNotFound
    }
    if err != nil {
        return nil, err
    }
    return &g, nil
}

func (t *mysqlAuctionTx) SaveAllowance(g *model.AllowanceGrant) error {
    const q = `INSERT INTO allowance_grants (auction_id, holder_account, authorization_ref, granted, revoked)
        VALUES (?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE holder_account = VALUES(holder_account),
        authorization_ref = VALUES(authorization_ref), granted = VALUES(granted), revoked = VALUES(revoked)`
    _, err := t.tx.ExecContext(t.ctx, q, g.AuctionID, g.HolderAccount,
        g.AuthorizationRef, g.Granted, g.Revoked)
    return err
}
