package model

// OrderStats aggregates order counts by status for the dashboard.
// Counts are recomputed from the orders table on demand rather than
// maintained as denormalized counters.
type OrderStats struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}
