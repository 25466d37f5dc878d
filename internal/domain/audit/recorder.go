// Package audit provides the domain contract for the audit trail.
// The storage implementation lives in the infrastructure layer.
package audit

import (
	"context"

	"clinicore/internal/core/id"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionTransition Action = "transition"
	ActionPayment    Action = "payment"
	ActionMovement   Action = "movement"
)

// Recorder records who changed what. Implementations must tolerate being
// called outside a transaction; audit writes join the ambient transaction
// when one is open.
type Recorder interface {
	// RecordChange persists an audit entry for an entity mutation.
	RecordChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// NopRecorder discards all entries. Used in tests and when the trail is
// disabled by configuration.
type NopRecorder struct{}

// RecordChange implements Recorder.
func (NopRecorder) RecordChange(context.Context, string, id.ID, Action, map[string]any) error {
	return nil
}

var _ Recorder = NopRecorder{}
