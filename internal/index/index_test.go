package index

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestIngestAssignsMonotonicIDs(t *testing.T) {
	idx := New()
	id0, err := idx.Ingest("a.txt", []byte("fox"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id1, err := idx.Ingest("b.txt", []byte("dog"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id1 != id0+1 {
		t.Fatalf("expected monotonically increasing ids, got %d then %d", id0, id1)
	}
}

func TestIngestDuplicateFilenameIsNoop(t *testing.T) {
	idx := New()
	id0, err := idx.Ingest("a.txt", []byte("fox"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id1, err := idx.Ingest("a.txt", []byte("completely different content"))
	if err != ErrAlreadyPresent {
		t.Fatalf("expected ErrAlreadyPresent, got %v", err)
	}
	if id1 != id0 {
		t.Fatalf("expected same id %d back, got %d", id0, id1)
	}
	rec, _ := idx.Fetch(id0)
	if string(rec.Content) != "fox" {
		t.Fatalf("duplicate ingest must not overwrite content, got %q", rec.Content)
	}
}

func TestFetchUnknownID(t *testing.T) {
	idx := New()
	if _, err := idx.Fetch(999); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchReturnsExactContent(t *testing.T) {
	idx := New()
	id, _ := idx.Ingest("a.txt", []byte("the quick brown fox"))
	rec, err := idx.Fetch(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(rec.Content) != "the quick brown fox" {
		t.Fatalf("got content %q", rec.Content)
	}
	if rec.TotalTerms != 4 {
		t.Fatalf("got TotalTerms %d, want 4", rec.TotalTerms)
	}
}

func TestFetchEmptyDocument(t *testing.T) {
	idx := New()
	id, err := idx.Ingest("empty.txt", []byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := idx.Fetch(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Content) != 0 || rec.TotalTerms != 0 {
		t.Fatalf("expected empty document, got %+v", rec)
	}
}

func TestSearchSingleTerm(t *testing.T) {
	idx := New()
	idA, _ := idx.Ingest("a.txt", []byte("fox fox dog"))
	idB, _ := idx.Ingest("b.txt", []byte("fox"))

	res := idx.Search("fox")
	if res.TotalResults != 2 {
		t.Fatalf("got %d results, want 2: %+v", res.TotalResults, res)
	}
	if res.Results[0].DocID != idA || res.Results[0].Matches != 2 {
		t.Fatalf("expected doc %d ranked first with 2 matches, got %+v", idA, res.Results[0])
	}
	if res.Results[1].DocID != idB || res.Results[1].Matches != 1 {
		t.Fatalf("expected doc %d ranked second with 1 match, got %+v", idB, res.Results[1])
	}
}

func TestSearchIsANDOnly(t *testing.T) {
	idx := New()
	idx.Ingest("a.txt", []byte("fox dog"))
	idB, _ := idx.Ingest("b.txt", []byte("fox dog cat"))
	idx.Ingest("c.txt", []byte("dog cat"))

	res := idx.Search("fox dog cat")
	if res.TotalResults != 1 {
		t.Fatalf("got %d results, want 1: %+v", res.TotalResults, res)
	}
	if res.Results[0].DocID != idB {
		t.Fatalf("expected only doc %d to match all terms, got %+v", idB, res.Results[0])
	}
}

func TestSearchTiesBrokenByAscendingDocID(t *testing.T) {
	idx := New()
	idA, _ := idx.Ingest("a.txt", []byte("fox"))
	idB, _ := idx.Ingest("b.txt", []byte("fox"))

	res := idx.Search("fox")
	if res.Results[0].DocID != idA || res.Results[1].DocID != idB {
		t.Fatalf("expected ascending doc-id tie break, got %+v then %+v", res.Results[0], res.Results[1])
	}
}

func TestSearchUnknownTermYieldsNoResults(t *testing.T) {
	idx := New()
	idx.Ingest("a.txt", []byte("fox"))
	res := idx.Search("zebra")
	if res.TotalResults != 0 {
		t.Fatalf("got %d results, want 0", res.TotalResults)
	}
}

func TestSearchEmptyQueryYieldsNoResults(t *testing.T) {
	idx := New()
	idx.Ingest("a.txt", []byte("fox"))
	res := idx.Search("   ...   ")
	if res.TotalResults != 0 {
		t.Fatalf("got %d results, want 0", res.TotalResults)
	}
}

func TestSearchPositionsByTermAreCorrect(t *testing.T) {
	idx := New()
	id, _ := idx.Ingest("a.txt", []byte("fox runs, the fox jumps"))
	res := idx.Search("fox")
	if res.Results[0].DocID != id {
		t.Fatalf("unexpected doc in results: %+v", res.Results)
	}
	positions := res.Results[0].PositionsByTerm["fox"]
	want := []int{0, 3}
	if len(positions) != len(want) || positions[0] != want[0] || positions[1] != want[1] {
		t.Fatalf("got positions %v, want %v", positions, want)
	}
}

// TestConcurrentIngestAndSearch exercises P1-style invariants under
// concurrent load: every DocumentId returned by Search must resolve via
// Fetch, and postings never reference a doc-id absent from the registry.
func TestConcurrentIngestAndSearch(t *testing.T) {
	idx := New()
	const n = 200

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("doc-%d.txt", i)
			body := fmt.Sprintf("shared term-%d", i%10)
			idx.Ingest(name, []byte(body))
		}()
	}
	wg.Wait()

	res := idx.Search("shared")
	if res.TotalResults != n {
		t.Fatalf("got %d results, want %d", res.TotalResults, n)
	}
	for _, m := range res.Results {
		if _, err := idx.Fetch(m.DocID); err != nil {
			t.Fatalf("search returned doc-id %d absent from registry: %v", m.DocID, err)
		}
	}
}

func TestDocCount(t *testing.T) {
	idx := New()
	idx.Ingest("a.txt", []byte("x"))
	idx.Ingest("b.txt", []byte("y"))
	idx.Ingest("a.txt", []byte("z")) // duplicate, must not increase count
	if got := idx.DocCount(); got != 2 {
		t.Fatalf("got DocCount %d, want 2", got)
	}
}

func TestObserverNotifiedOnSuccessfulIngestOnly(t *testing.T) {
	notifications := make(chan DocumentRecord, 4)
	obs := IngestObserverFunc(func(rec DocumentRecord) { notifications <- rec })

	idx := New(WithObserver(obs))
	idx.Ingest("a.txt", []byte("fox"))
	idx.Ingest("a.txt", []byte("fox again")) // duplicate, must not notify

	select {
	case rec := <-notifications:
		if rec.Filename != "a.txt" {
			t.Fatalf("got notification for %q, want a.txt", rec.Filename)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an observer notification for the first ingest")
	}

	select {
	case rec := <-notifications:
		t.Fatalf("duplicate ingest should not notify the observer, got %+v", rec)
	case <-time.After(50 * time.Millisecond):
	}
}
