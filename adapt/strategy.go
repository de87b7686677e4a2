package adapt

import (
	"math"
	"sort"
)

// relative difference under which two element errors count as tied
const tieTol = 1e-3

func tied(a, b float64) bool {
	return math.Abs(a-b) <= tieTol*math.Max(math.Abs(a), math.Abs(b))
}

// byError returns record indices by descending error, ties by ascending element id
func byError(rec *ErrorRecord) (order []int) {
	order = make([]int, len(rec.Elements))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := rec.Squared[order[a]], rec.Squared[order[b]]
		if ea != eb {
			return ea > eb
		}
		return rec.Elements[order[a]] < rec.Elements[order[b]]
	})
	return
}

// Mark returns the element ids to refine, in the order they should be visited.
//
//	0: largest errors until threshold of the total squared error is covered, plus ties with the last one
//	1: errors above threshold times the largest error
//	2: relative errors above threshold
func Mark(strategy int, threshold float64, rec *ErrorRecord) (ids []int) {
	order := byError(rec)
	switch strategy {
	case 0:
		var (
			target    = threshold * rec.Total()
			processed float64
			last      = -1.
		)
		for _, i := range order {
			sq := rec.Squared[i]
			if sq == 0 {
				break
			}
			if last >= 0 && processed >= target && !tied(sq, last) {
				break
			}
			ids = append(ids, rec.Elements[i])
			processed += sq
			last = sq
		}
	case 1:
		if len(order) == 0 {
			return
		}
		limit := threshold * math.Sqrt(rec.Squared[order[0]])
		for _, i := range order {
			if math.Sqrt(rec.Squared[i]) > limit {
				ids = append(ids, rec.Elements[i])
			}
		}
	case 2:
		for _, i := range order {
			if rec.ElementError(i) > threshold {
				ids = append(ids, rec.Elements[i])
			}
		}
	}
	return
}
