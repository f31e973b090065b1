package domain

import "math"

// NoPopularCategory is the sentinel name reported when no loans exist yet.
const NoPopularCategory = "N/A"

// PopularCategory is the category with the greatest number of loans, active
// and historical, together with that loan count.
type PopularCategory struct {
	Name  string `db:"name"`
	Loans int64  `db:"loans"`
}

// DashboardStats is a read-only snapshot of library-wide statistics,
// computed on demand from the catalog and the loan ledger.
type DashboardStats struct {
	TotalBooks          int64
	ActiveLoans         int64
	TotalUsers          int64
	AvailableBooks      int64
	OccupancyPercentage float64
	MostPopularCategory PopularCategory
}

// Occupancy returns the share of books currently loaned out as a percentage,
// rounded to two decimals. Zero when there are no books.
func Occupancy(activeLoans, totalBooks int64) float64 {
	if totalBooks == 0 {
		return 0
	}

	return math.Round(float64(activeLoans)/float64(totalBooks)*100*100) / 100
}
