// Package index implements the in-memory, non-persistent inverted index:
// the sharded term -> (doc -> positions) map, the document registry, and
// the AND-only query planner's postings lookup. It is grounded on the
// teacher's internal/indexer/index (postings shape) and
// internal/indexer/shard (partitioning), adapted from "one engine per
// shard" to "one term-keyspace partition per shard" since there is exactly
// one in-memory index here, never a distributed set of engines.
package index

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/arlobridge/invertex/internal/tokenizer"
)

// record is the registry's internal representation. Filename and Content
// are set once at admission and never mutated; totalTerms is the only
// field written after construction, and it is written exactly once via an
// atomic store so Fetch never needs to take a lock to read a consistent
// DocumentRecord.
type record struct {
	id       DocumentId
	filename string
	content  []byte

	totalTerms atomic.Uint64
}

func (r *record) snapshot() DocumentRecord {
	return DocumentRecord{
		ID:         r.id,
		Filename:   r.filename,
		Content:    r.content,
		TotalTerms: r.totalTerms.Load(),
	}
}

// Index is the concurrent inverted index. All exported methods are safe
// for concurrent use by any number of goroutines.
type Index struct {
	shards *shardSet

	mu        sync.RWMutex // guards registry, filenames, nextID
	registry  map[DocumentId]*record
	filenames map[string]DocumentId
	nextID    DocumentId

	observer IngestObserver
}

// Option configures an Index at construction time.
type Option func(*Index)

// WithObserver registers an IngestObserver notified after every successful
// (non-duplicate) ingest.
func WithObserver(obs IngestObserver) Option {
	return func(i *Index) { i.observer = obs }
}

// WithShardCount overrides the default shard count (16 * GOMAXPROCS,
// rounded up to a prime).
func WithShardCount(n int) Option {
	return func(i *Index) { i.shards = newShardSet(n) }
}

// New builds an empty Index.
func New(opts ...Option) *Index {
	idx := &Index{
		shards:    newShardSet(defaultShardCount(runtime.GOMAXPROCS(0))),
		registry:  make(map[DocumentId]*record),
		filenames: make(map[string]DocumentId),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingest admits content under filename, tokenizes it, and merges its
// postings into the index. If filename was already admitted, Ingest
// returns the DocumentId assigned the first time and ErrAlreadyPresent;
// this is a no-op, not a failure, and the existing document is left
// untouched.
//
// The critical section that allocates the DocumentId and registers the
// filename is the only place two concurrent Ingest calls can conflict; it
// does no tokenization or I/O. Tokenizing and merging happen outside any
// registry lock, so unrelated ingests never serialize on each other except
// where they happen to touch the same term shard.
func (i *Index) Ingest(filename string, content []byte) (DocumentId, error) {
	i.mu.Lock()
	if id, ok := i.filenames[filename]; ok {
		i.mu.Unlock()
		return id, ErrAlreadyPresent
	}
	id := i.nextID
	i.nextID++
	rec := &record{id: id, filename: filename, content: content}
	i.registry[id] = rec
	i.filenames[filename] = id
	i.mu.Unlock()

	tokens := tokenizer.Tokenize(string(content))
	local := make(map[string][]int, len(tokens))
	for _, tok := range tokens {
		local[tok.Term] = append(local[tok.Term], tok.Position)
	}
	i.merge(id, local)

	rec.totalTerms.Store(uint64(len(tokens)))

	if i.observer != nil {
		snap := rec.snapshot()
		go i.observer.Observe(snap)
	}

	return id, nil
}

// merge writes id's local postings into the shards that own its terms,
// taking shard write locks in ascending index order. Every (term, id) pair
// is a first write: a freshly allocated id can never already exist under
// any term, so merge always inserts, never updates.
func (i *Index) merge(id DocumentId, local map[string][]int) {
	if len(local) == 0 {
		return
	}
	terms := make([]string, 0, len(local))
	for term := range local {
		terms = append(terms, term)
	}
	indices, byShard := i.shards.groupByShard(terms)

	for _, idx := range indices {
		sh := i.shards.shards[idx]
		sh.mu.Lock()
		for _, term := range byShard[idx] {
			docs, ok := sh.terms[term]
			if !ok {
				docs = make(map[DocumentId][]int)
				sh.terms[term] = docs
			}
			docs[id] = local[term]
		}
		sh.mu.Unlock()
	}
}

// Fetch returns the DocumentRecord for id, or ErrNotFound.
func (i *Index) Fetch(id DocumentId) (DocumentRecord, error) {
	i.mu.RLock()
	rec, ok := i.registry[id]
	i.mu.RUnlock()
	if !ok {
		return DocumentRecord{}, ErrNotFound
	}
	return rec.snapshot(), nil
}

// DocCount returns the number of documents ever admitted.
func (i *Index) DocCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.registry)
}

// Search runs an AND-only conjunctive query: it tokenizes rawQuery into its
// distinct terms Q, intersects each term's posting doc-set, and ranks
// surviving documents by total match count descending, DocumentId
// ascending on ties. An empty Q, or a term absent from every shard,
// yields a SearchResult with zero results.
func (i *Index) Search(rawQuery string) SearchResult {
	result := SearchResult{Query: rawQuery}

	terms := tokenizer.Terms(rawQuery)
	if len(terms) == 0 {
		return result
	}

	postingsByTerm := make(map[string]map[DocumentId][]int, len(terms))
	for _, term := range terms {
		idx := i.shards.shardFor(term)
		sh := i.shards.shards[idx]

		sh.mu.RLock()
		docs, ok := sh.terms[term]
		var snap map[DocumentId][]int
		if ok {
			snap = make(map[DocumentId][]int, len(docs))
			for d, p := range docs {
				snap[d] = p
			}
		}
		sh.mu.RUnlock()

		if len(snap) == 0 {
			// AND semantics: any missing term empties the whole result.
			return result
		}
		postingsByTerm[term] = snap
	}

	candidates := intersectDocIDs(terms, postingsByTerm)
	if len(candidates) == 0 {
		return result
	}

	matches := make([]DocMatch, 0, len(candidates))
	for _, docID := range candidates {
		positionsByTerm := make(map[string][]int, len(terms))
		var total uint64
		for _, term := range terms {
			pos := postingsByTerm[term][docID]
			positionsByTerm[term] = pos
			total += uint64(len(pos))
		}
		filename := ""
		if rec, err := i.Fetch(docID); err == nil {
			filename = rec.Filename
		}
		matches = append(matches, DocMatch{
			DocID:           docID,
			Filename:        filename,
			Matches:         total,
			PositionsByTerm: positionsByTerm,
		})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Matches != matches[b].Matches {
			return matches[a].Matches > matches[b].Matches
		}
		return matches[a].DocID < matches[b].DocID
	})

	result.Results = matches
	result.TotalResults = len(matches)
	return result
}

// intersectDocIDs returns, in ascending order, the doc ids present under
// every term in postingsByTerm. terms is used only to pick the smallest
// candidate set to start from.
func intersectDocIDs(terms []string, postingsByTerm map[string]map[DocumentId][]int) []DocumentId {
	smallest := terms[0]
	for _, term := range terms[1:] {
		if len(postingsByTerm[term]) < len(postingsByTerm[smallest]) {
			smallest = term
		}
	}

	candidates := make([]DocumentId, 0, len(postingsByTerm[smallest]))
outer:
	for docID := range postingsByTerm[smallest] {
		for _, term := range terms {
			if term == smallest {
				continue
			}
			if _, ok := postingsByTerm[term][docID]; !ok {
				continue outer
			}
		}
		candidates = append(candidates, docID)
	}

	sort.Slice(candidates, func(a, b int) bool { return candidates[a] < candidates[b] })
	return candidates
}
