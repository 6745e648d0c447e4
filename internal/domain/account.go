package domain

// Account represents a venue trading account. One login may return several
// accounts; the supervisor partitions them into asset-class buckets so that
// order routing and subscription batching can pick the right one.
type Account struct {
	ID         string     // Venue account identifier
	AssetClass AssetClass // Bucket the account trades in
	Balance    float64    // Total balance
	Available  float64    // Balance available for new orders
	Margin     float64    // Margin in use
}
