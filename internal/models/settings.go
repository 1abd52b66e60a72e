package models

import "time"

// SettingEvent is one append-only settings write. The current value of a
// key is the most recent event for that key; prior events are retained as
// an audit trail rather than updated in place.
type SettingEvent struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}
