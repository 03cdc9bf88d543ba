// Package repository defines the durable store consumed by the auction
// core, together with the error sentinels shared across its
// implementations. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. For example, ErrAuctionNotFound maps to an HTTP 404,
// while ErrVersionConflict signals a lost optimistic-concurrency race
// that the caller may safely retry.
package repository

import "errors"

// ErrAuctionNotFound is returned when the requested auction does not
// exist. Handlers should translate this into an HTTP 404 response.
var ErrAuctionNotFound = errors.New("auction not found")

// ErrAssetNotFound is returned when the requested asset does not
// exist or the auction has no associated asset.
var ErrAssetNotFound = errors.New("asset not found")

// ErrAllowanceNotFound is returned when no allowance grant has been
// recorded for the auction.
var ErrAllowanceNotFound = errors.New("allowance grant not found")

// ErrVersionConflict is returned when an auction write loses the
// version compare-and-swap to a concurrent writer. The logical
// request can be re-issued by the caller. Handlers should translate
// this into an HTTP 409 response.
var ErrVersionConflict = errors.New("auction version conflict")
