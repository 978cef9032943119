package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into
// domain outcomes.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entry does not exist in a store
// - ErrExpired: cached entry aged past its TTL
// - ErrTimeout: a remote probe exceeded its budget
// - ErrUnavailable: service or resource temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrExpired     = errors.New("expired")
	ErrTimeout     = errors.New("timeout")
	ErrUnavailable = errors.New("unavailable")
)
