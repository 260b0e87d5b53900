package recognition

// DefaultThreshold is the minimum cosine similarity for a face to
// count as a match. A best score at or below the threshold rejects
// the query.
const DefaultThreshold = 0.45

// Strategy decides which students are present given the query
// embeddings from one image. Greedy is the default; an assignment
// solver could be swapped in here without touching callers.
type Strategy func(queries [][]float32, set *CourseSet, threshold float64) PresentSet

// Match applies the default greedy strategy.
func Match(queries [][]float32, set *CourseSet, threshold float64) PresentSet {
	return Greedy(queries, set, threshold)
}

// Greedy matches every query embedding independently: each query is
// assigned to its highest-similarity reference, and the match is kept
// only if the score strictly exceeds the threshold. Two faces in the
// same image may both match the same student; the result is a set, so
// downstream only sees "appeared at least once".
func Greedy(queries [][]float32, set *CourseSet, threshold float64) PresentSet {
	present := make(PresentSet)
	if set.Len() == 0 {
		return present
	}
	for _, q := range queries {
		id, score, ok := set.Nearest(q)
		if ok && score > threshold {
			present.Add(id)
		}
	}
	return present
}
