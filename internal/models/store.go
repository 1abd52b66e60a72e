package models

import "time"

// Store is a retail outlet in the reference directory. CustomerCode is the
// natural key used for idempotent CSV import upserts.
type Store struct {
	CustomerCode string    `json:"customer_code"`
	Name         string    `json:"name"`
	Region       string    `json:"region,omitempty"`
	Address      string    `json:"address,omitempty"`
	Latitude     float64   `json:"latitude,omitempty"`
	Longitude    float64   `json:"longitude,omitempty"`
	BrandNames   []string  `json:"brand_names,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StoreImportResult reports exact created/updated counts for a CSV import.
// Prior existence is queried per row before upsert, so the split is
// accurate rather than inferred from batch ids.
type StoreImportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}
