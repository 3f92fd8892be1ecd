package metrics

// Progress is the derived deletion-progress report for one order. All fields
// are nil when the baseline was never measured.
type Progress struct {
	StartSum *int
	LiveSum  *int
	Removed  *int
	Pct      *float64
}

// Compute derives removed-review counts and a bounded 0-100 percentage from
// the start and live snapshots. A live snapshot with no data means "no
// refresh happened yet" and is read as unchanged from start, not as zero.
// This is the single derivation of deletion progress; the charge gate and
// every report must call it rather than recompute.
func Compute(start, live Snapshot) Progress {
	startSum := start.BadSum()
	if startSum == nil {
		return Progress{}
	}

	liveSum := live.BadSum()
	if liveSum == nil {
		v := *startSum
		liveSum = &v
	}

	removed := *startSum - *liveSum
	if removed < 0 {
		removed = 0
	}

	var pct float64
	switch {
	case *startSum == 0 && *liveSum <= 0:
		// Baseline already clean and still clean.
		pct = 100
	case *startSum == 0:
		// Baseline clean but bad reviews appeared since: no progress signal.
		pct = 0
	default:
		pct = float64(*startSum-*liveSum) / float64(*startSum) * 100
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
	}

	return Progress{
		StartSum: startSum,
		LiveSum:  liveSum,
		Removed:  &removed,
		Pct:      &pct,
	}
}

// MeetsThreshold reports whether the computed percentage reaches the given
// threshold. An undefined percentage never qualifies.
func (p Progress) MeetsThreshold(thresholdPct float64) bool {
	return p.Pct != nil && *p.Pct >= thresholdPct
}
