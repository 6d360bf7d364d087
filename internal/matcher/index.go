package matcher

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attendance/internal/roster"
)

// HNSW parameters for roster-sized graphs.
const (
	// IndexMaxNeighbors (M) is the maximum number of neighbors per node.
	IndexMaxNeighbors = 16

	// IndexEfSearch is the search candidate pool size.
	IndexEfSearch = 64

	// IndexSearchK is how many neighbors are verified with the exact metric.
	IndexSearchK = 8
)

// Index wraps an HNSW graph keyed by roster position.
type Index struct {
	metric  Metric
	graph   *hnsw.Graph[int]
	version uint64
	built   bool
	mu      sync.RWMutex
}

// NewIndex creates an empty index for the given metric.
func NewIndex(metric Metric) *Index {
	return &Index{metric: metric}
}

func (ix *Index) newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = IndexMaxNeighbors
	g.Ml = 1.0 / float64(IndexMaxNeighbors) // Standard HNSW formula
	g.EfSearch = IndexEfSearch
	if ix.metric == MetricCosine {
		g.Distance = hnsw.CosineDistance
	} else {
		g.Distance = hnsw.EuclideanDistance
	}
	return g
}

// Sync rebuilds the graph when the roster version moved since the last build.
// The roster is append-only, so only new entries are added.
func (ix *Index) Sync(version uint64, entries []roster.Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.built && ix.version == version {
		return
	}
	if ix.graph == nil {
		ix.graph = ix.newGraph()
	}

	for i := ix.graph.Len(); i < len(entries); i++ {
		if len(entries[i].Embedding) == 0 {
			continue
		}
		ix.graph.Add(hnsw.MakeNode(i, entries[i].Embedding))
	}

	ix.version = version
	ix.built = true
}

// Search returns roster positions of up to k approximate nearest entries.
func (ix *Index) Search(query []float32, k int) []int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil || ix.graph.Len() == 0 {
		return nil
	}

	neighbors := ix.graph.Search(query, k)
	ids := make([]int, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
	}
	return ids
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.graph == nil {
		return 0
	}
	return ix.graph.Len()
}
