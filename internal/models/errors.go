package models

import "errors"

// Sentinel errors shared across services and handlers.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded indicates the AI provider rejected the call with a
	// rate-limit or quota error. Callers surface this distinctly from
	// generic failures.
	ErrQuotaExceeded = errors.New("ai quota exceeded")

	// ErrSyncInProgress indicates a sync pass is already running; the
	// trigger is ignored rather than starting a second concurrent pass.
	ErrSyncInProgress = errors.New("sync pass already in progress")

	// ErrForbidden indicates the actor's role tier is insufficient.
	ErrForbidden = errors.New("insufficient role")
)
