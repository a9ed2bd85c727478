package enrollment

import (
	"math"
	"time"
)

// MetricsWindow is the rolling window behind "approved this week".
const MetricsWindow = 7 * 24 * time.Hour

// Metrics is the summary attached to a listing response.
type Metrics struct {
	PendingCount     int64 `json:"pendingCount"`
	ApprovedThisWeek int64 `json:"approvedThisWeek"`
	ReceiptsCount    int64 `json:"receiptsCount"`
	ApprovalRate     int   `json:"approvalRate"`
	TotalCount       int64 `json:"totalCount"`
}

// Counts are the raw figures both aggregation paths produce.
type Counts struct {
	Pending       int64
	Approved      int64
	ApprovedSince int64 // approved with reviewedAt inside the window
	Receipts      int64 // proof url on file
	Total         int64
}

// Metrics derives the summary from raw counts.
func (c Counts) Metrics() Metrics {
	return Metrics{
		PendingCount:     c.Pending,
		ApprovedThisWeek: c.ApprovedSince,
		ReceiptsCount:    c.Receipts,
		ApprovalRate:     ApprovalRate(c.Approved, c.Total),
		TotalCount:       c.Total,
	}
}

// ApprovalRate returns approved/total as a rounded percentage, 0 when total is 0.
func ApprovalRate(approved, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(approved) / float64(total) * 100))
}

// WindowStart returns the lower bound of the default metrics window ending
// at now.
func WindowStart(now time.Time) time.Time {
	return now.Add(-MetricsWindow)
}

// CountRows reduces an already fetched row set to Counts. Approvals reviewed
// at or after since count toward ApprovedSince.
func CountRows(rows []Request, since time.Time) Counts {
	var c Counts
	for i := range rows {
		r := &rows[i]
		c.Total++
		switch r.Status {
		case StatusPending:
			c.Pending++
		case StatusApproved:
			c.Approved++
			if r.ReviewedAt != nil && !r.ReviewedAt.Before(since) {
				c.ApprovedSince++
			}
		}
		if r.ProofURL != "" {
			c.Receipts++
		}
	}
	return c
}
