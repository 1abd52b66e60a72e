package models

import "time"

// SyncState is the lifecycle state of a queued offline submission.
type SyncState string

const (
	SyncStatePending   SyncState = "pending"
	SyncStateUploading SyncState = "uploading"
	SyncStateSynced    SyncState = "synced"
	SyncStateFailed    SyncState = "failed"
)

// syncTransitions is the explicit transition table. Failed entries re-enter
// the pass as pending-equivalent work, so failed -> uploading is legal.
// Synced is terminal: the entry is deleted rather than kept in that state.
var syncTransitions = map[SyncState][]SyncState{
	SyncStatePending:   {SyncStateUploading},
	SyncStateUploading: {SyncStateUploading, SyncStateSynced, SyncStateFailed},
	SyncStateFailed:    {SyncStateUploading},
	SyncStateSynced:    {},
}

// CanTransition reports whether moving from one sync state to another is
// allowed by the transition table.
func CanTransition(from, to SyncState) bool {
	for _, next := range syncTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PendingObservation is an evaluation payload captured while offline,
// durably queued on the device until the server acknowledges it. The
// ClientEvalID doubles as the server-side dedup key so a crash after
// server success but before local deletion cannot create a duplicate.
type PendingObservation struct {
	ClientEvalID  string            `json:"client_evaluation_id" badgerhold:"key"`
	StoreCode     string            `json:"store_code"`
	EvaluatorID   string            `json:"evaluator_id"`
	CapturedAt    time.Time         `json:"captured_at"`
	Fields        map[string]string `json:"fields"`
	PhotoPaths    []string          `json:"photo_paths,omitempty"`
	State         SyncState         `json:"state"`
	Attempts      int               `json:"attempts"`
	LastAttemptAt time.Time         `json:"last_attempt_at"`
	LastError     string            `json:"last_error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
