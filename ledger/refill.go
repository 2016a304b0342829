package ledger

// RefillAmount is the one refill rule used everywhere: a refill is limited
// by the empties on hand and by the caps on hand (one cap per bottle), and
// never exceeds what was asked for.
//
//	refillable = min(empty, caps)
//	actual     = min(refillable, requested)
//
// An actual refill of zero is a valid no-op.
func RefillAmount(empty, caps, requested int) int {
	if requested <= 0 {
		return 0
	}
	return min(empty, caps, requested)
}

// RefillDelta turns n empties into n sellable bottles, spending n caps.
func RefillDelta(n int) UsageDelta {
	return UsageDelta{
		Empty:     -n,
		Caps:      -n,
		Refilled:  n,
		Remaining: n,
	}
}
