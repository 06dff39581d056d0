// Package sync implements the offline-first sync engine: a durable FIFO
// queue of pending mutations, a rate-limited client for the remote API,
// and the orchestrator that drains the queue and merges remote state
// back into the local repositories.
package sync

import (
	"encoding/json"
	"time"
)

// MutationKind identifies which entity a queued mutation belongs to
type MutationKind string

const (
	KindProfile         MutationKind = "profile"
	KindFavorites       MutationKind = "favorites"
	KindTrainingSession MutationKind = "training_session"
)

// PendingMutation is one queued local change awaiting delivery. The
// payload is the full entity snapshot at queue time, so delivery never
// re-reads mutable state.
type PendingMutation struct {
	ID       string          `json:"id"`
	Kind     MutationKind    `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queuedAt"`
	Attempts int             `json:"attempts"`
}

// Trigger names the event that started a sync cycle
type Trigger string

const (
	TriggerOnline      Trigger = "online"
	TriggerForeground  Trigger = "foreground"
	TriggerAuthChanged Trigger = "auth_changed"
	TriggerMutation    Trigger = "mutation"
	TriggerManual      Trigger = "manual"
)

// Result summarizes one sync cycle
type Result struct {
	Trigger    Trigger
	Skipped    bool  // Signed out, offline, disabled, or a cycle was already running
	Delivered  int   // Mutations pushed and removed from the queue
	Dropped    int   // Mutations discarded after exhausting their attempts
	Remaining  int   // Mutations still queued after the drain
	QueueError error // Failure persisting the queue after the drain
	PullErrors []error
}
