package models

import (
	"encoding/json"
	"time"
)

// AuditRecord captures a state-changing action for traceability.
type AuditRecord struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	EntityID  string          `json:"entity_id"`
	Actor     string          `json:"actor"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Audit action constants.
const (
	AuditActionEvaluationCreated = "evaluation_created"
	AuditActionRatingOverridden  = "rating_overridden"
	AuditActionSettingChanged    = "setting_changed"
	AuditActionStoreImported     = "store_imported"
	AuditActionUserRoleChanged   = "user_role_changed"
)
