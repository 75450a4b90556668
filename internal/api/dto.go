package api

import (
	"github.com/starford/marksync/internal/journal"
	"github.com/starford/marksync/internal/models"
	"github.com/starford/marksync/internal/trigger"
)

// Requester queues a coalesced cycle request.
type Requester interface {
	Request(req trigger.Request)
}

// SyncRequest is the optional request body of POST /api/sync. Setting
// Direction, DryRun or Wait runs the cycle synchronously.
type SyncRequest struct {
	Direction string `json:"direction,omitempty" example:"bidirectional"`
	DryRun    bool   `json:"dry_run,omitempty"`
	Wait      bool   `json:"wait,omitempty"`
}

func (r SyncRequest) synchronous() bool {
	return r.Direction != "" || r.DryRun || r.Wait
}

// SyncQueuedResponse is returned when a cycle was queued.
type SyncQueuedResponse struct {
	Queued bool `json:"queued"`
}

// CycleResult is the result of a synchronous cycle.
type CycleResult = models.CycleResult

// CycleListResponse wraps journaled cycles.
type CycleListResponse struct {
	Cycles []journal.Record `json:"cycles"`
}
