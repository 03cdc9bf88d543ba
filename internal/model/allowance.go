package model

import "time"

// AllowanceGrant records the two-phase transfer pre-authorization a
// seller must give before their auction may leave PENDING.  The
// AuthorizationRef is an opaque proof handed to the transfer ledger
// at settlement time.  A grant with recorded bids cannot be revoked.
//
// Fields:
//  AuctionID        – auction/listing this grant authorizes.
//  HolderAccount    – asset holder who granted the allowance.
//  AuthorizationRef – opaque pre-authorization reference.
//  Granted          – true once the grant has been recorded.
//  Revoked          – true once the holder has withdrawn the grant.
//  CreatedAt        – when the grant was recorded.
//  UpdatedAt        – last update timestamp.
type AllowanceGrant struct {
    AuctionID        uint64    // allowance_grants.auction_id
    HolderAccount    string    // allowance_grants.holder_account
    AuthorizationRef string    // allowance_grants.authorization_ref
    Granted          bool      // allowance_grants.granted
    Revoked          bool      // allowance_grants.revoked
    CreatedAt        time.Time // allowance_grants.created_at
    UpdatedAt        time.Time // allowance_grants.updated_at
}

// Usable reports whether the grant currently authorizes a transfer.
func (g *AllowanceGrant) Usable() bool {
    return g.Granted && !g.Revoked
}
