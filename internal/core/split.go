package core

// SplitCents distributes total cents across count installments with exact-cent
// accounting: every part is floor(total/count) and the first
// total-floor(total/count)*count parts carry one extra cent, so the parts
// always sum back to total and differ by at most one cent. The remainder is
// front-loaded so displayed installments are stable and reproducible.
//
// count must be at least 2 and total non-negative; SplitCents panics
// otherwise, since callers validate plans before splitting.
func SplitCents(total int64, count int) []int64 {
	if count < 2 {
		panic("core: split count must be >= 2")
	}
	if total < 0 {
		panic("core: split total must be >= 0")
	}
	base := total / int64(count)
	remainder := total - base*int64(count)
	parts := make([]int64, count)
	for i := range parts {
		parts[i] = base
		if int64(i) < remainder {
			parts[i]++
		}
	}
	return parts
}
