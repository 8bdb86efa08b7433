package index

import (
	"hash/fnv"
	"sort"
	"sync"
)

// shard is one partition of the term keyspace: a fixed slice of the global
// term -> (doc -> positions) map, guarded by its own lock so unrelated
// terms never contend. It plays the role of the teacher's per-engine shard
// (internal/indexer/shard) but partitions term buckets within a single
// in-memory index rather than whole distributed engines.
type shard struct {
	mu    sync.RWMutex
	terms map[string]map[DocumentId][]int
}

func newShard() *shard {
	return &shard{terms: make(map[string]map[DocumentId][]int)}
}

// shardSet routes terms to shards by an FNV-1a hash mod the shard count.
// The count is fixed at construction and never rebalanced, so shardFor is a
// pure function of (term, shard count) for the index's lifetime.
type shardSet struct {
	shards []*shard
}

func newShardSet(n int) *shardSet {
	if n < 1 {
		n = 1
	}
	ss := &shardSet{shards: make([]*shard, n)}
	for i := range ss.shards {
		ss.shards[i] = newShard()
	}
	return ss
}

func (ss *shardSet) shardFor(term string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return int(h.Sum32() % uint32(len(ss.shards)))
}

// groupByShard buckets terms by destination shard index and returns the
// distinct indices touched, sorted ascending. Callers must acquire shard
// write locks in this order to avoid deadlocking against a concurrent
// ingest touching the same shards in a different order.
func (ss *shardSet) groupByShard(terms []string) ([]int, map[int][]string) {
	byShard := make(map[int][]string)
	for _, term := range terms {
		idx := ss.shardFor(term)
		byShard[idx] = append(byShard[idx], term)
	}
	indices := make([]int, 0, len(byShard))
	for idx := range byShard {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices, byShard
}

// defaultShardCount picks a shard count proportional to cpus, rounded up to
// the next prime so hash distribution doesn't alias against common term-set
// sizes. cpus <= 0 falls back to 1.
func defaultShardCount(cpus int) int {
	if cpus < 1 {
		cpus = 1
	}
	return nextPrime(cpus * 16)
}

func nextPrime(n int) int {
	if n < 2 {
		return 2
	}
	for {
		if isPrime(n) {
			return n
		}
		n++
	}
}

func isPrime(n int) bool {
	if n < 2 {
		return false
	}
	for i := 2; i*i <= n; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}
