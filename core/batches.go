package core

// PageBatches slices totalPages into contiguous half-open page ranges of
// batchSize pages each; the final batch may be shorter. The result is a pure
// function of (totalPages, batchSize): batches are contiguous, non-overlapping,
// cover [1, totalPages] exactly once, and a retried caller always gets
// identical ranges.
func PageBatches(totalPages, batchSize int) ([]PageRange, error) {
	if totalPages < 1 {
		return nil, ErrInvalidTotalPages
	}
	if batchSize < 1 {
		return nil, ErrInvalidBatchSize
	}

	batches := make([]PageRange, 0, (totalPages+batchSize-1)/batchSize)
	for start := 1; start <= totalPages; start += batchSize {
		end := start + batchSize
		if end > totalPages+1 {
			end = totalPages + 1
		}
		batches = append(batches, PageRange{Start: start, End: end})
	}
	return batches, nil
}
