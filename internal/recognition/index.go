package recognition

import "github.com/coder/hnsw"

const (
	// indexCutoff is the reference count above which a CourseSet gets
	// an HNSW index. Small rosters are faster to scan linearly.
	indexCutoff = 64

	hnswMaxNeighbors = 16
)

// hnswIndex wraps an HNSW graph over reference embeddings. The graph
// is approximate and only backs Similar; attendance matching scans
// every reference so the argmax is always exact.
type hnswIndex struct {
	graph *hnsw.Graph[int64]
}

func newHNSWIndex(refs map[int64]Reference, order []int64) *hnswIndex {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	for _, id := range order {
		g.Add(hnsw.MakeNode(id, refs[id].Vector))
	}
	return &hnswIndex{graph: g}
}

// candidates returns up to k student IDs close to the query.
func (ix *hnswIndex) candidates(query []float32, k int) []int64 {
	neighbors := ix.graph.Search(query, k)
	ids := make([]int64, 0, len(neighbors))
	for _, n := range neighbors {
		ids = append(ids, n.Key)
	}
	return ids
}
