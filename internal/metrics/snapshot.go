package metrics

// Snapshot is one measurement of a business's bad-review counts. Bad1..Bad3
// are the one/two/three-star buckets; older rows only carry LegacyBadTotal.
// Nil means "never measured", which is distinct from zero.
type Snapshot struct {
	Bad1           *int
	Bad2           *int
	Bad3           *int
	LegacyBadTotal *int

	// Display-only, never feeds progress.
	TotalReviews  *int
	AverageRating *float64
}

// BadSum sums the defined bad-review buckets. When no bucket was ever
// measured it falls back to the legacy aggregate, and to nil when that is
// missing too.
func (s Snapshot) BadSum() *int {
	var sum int
	defined := false

	for _, v := range []*int{s.Bad1, s.Bad2, s.Bad3} {
		if v != nil {
			sum += *v
			defined = true
		}
	}

	if defined {
		return &sum
	}
	if s.LegacyBadTotal != nil {
		v := *s.LegacyBadTotal
		return &v
	}
	return nil
}

// Empty reports whether the snapshot carries no bad-review data at all.
func (s Snapshot) Empty() bool {
	return s.BadSum() == nil
}
