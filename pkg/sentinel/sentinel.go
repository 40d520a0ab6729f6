package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so the engine can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrQueueEmpty: offline queue has no pending entries
// - ErrOffline: connectivity tracker reports the remote as unreachable
// - ErrUnavailable: service or resource temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrQueueEmpty  = errors.New("queue empty")
	ErrOffline     = errors.New("offline")
	ErrUnavailable = errors.New("unavailable")
)
