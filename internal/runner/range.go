package runner

import "fmt"

// OpRange is an inclusive range of 1-based operation positions.
type OpRange struct {
	From uint64
	To   uint64
}

// SplitRange splits an operation range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]OpRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("range end must be >= range start")
	}

	ranges := make([]OpRange, 0, (to-from)/batchSize+1)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, OpRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
