package model

import "time"

// Asset is the tokenized item being sold.  An asset is identified by
// its collection and serial number pair; ownership and status are
// mutated only by settlement (on a win) or by cancellation.
//
// Fields:
//  CollectionID – collection half of the identity pair.
//  SerialNumber – serial half of the identity pair.
//  OwnerAccount – current owner's account reference.
//  Status       – AVAILABLE, LISTED, IN_AUCTION or SOLD.
//  AuctionID    – auction currently selling this asset, if any.  Set
//                 while the auction is PENDING or ACTIVE, detached on
//                 any terminal outcome.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Asset struct {
    CollectionID uint64      // assets.collection_id
    SerialNumber uint64      // assets.serial_number
    OwnerAccount string      // assets.owner_account
    Status       AssetStatus // assets.status
    AuctionID    *uint64     // assets.auction_id (nullable)
    CreatedAt    time.Time   // assets.created_at
    UpdatedAt    time.Time   // assets.updated_at
}
