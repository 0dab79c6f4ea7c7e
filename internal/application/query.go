package application

import "time"

type SubmissionQueryFilter struct {
	From   string
	To     string
	TxHash string
	Since  *time.Time
	Until  *time.Time
	Limit  int
}

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// NormalizeLimit clamps a journal page size to (0, 1000], defaulting to 100
// when unset.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultQueryLimit
	case limit > maxQueryLimit:
		return maxQueryLimit
	default:
		return limit
	}
}
