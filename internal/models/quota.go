package models

import "time"

// QuotaRecord is the usage counter for one user, resource and calendar month.
// There is exactly one record per (UserID, ResourceKind, YearMonth).
type QuotaRecord struct {
	UserID       string       `db:"user_id"`
	ResourceKind ResourceKind `db:"resource_kind"`
	YearMonth    string       `db:"year_month"`
	Count        int          `db:"count"`
	UpdatedAt    time.Time    `db:"updated_at"`
}

// YearMonth returns the UTC calendar month key ("2025-11") for t
func YearMonth(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// ResourceUsage describes one metered resource for the current month
type ResourceUsage struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`     // -1 when unlimited
	Remaining int `json:"remaining"` // -1 when unlimited
}

// UsageSummary is the per-resource usage of a user for the current month
type UsageSummary struct {
	UserID    string                         `json:"user_id"`
	Tier      Tier                           `json:"tier"`
	YearMonth string                         `json:"year_month"`
	Resources map[ResourceKind]ResourceUsage `json:"resources"`
}
