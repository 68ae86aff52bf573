package monograph

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/snapshot"
)

type fakeLookup struct {
	mu       sync.Mutex
	calls    map[string]int
	fail     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func newFakeLookup(fail ...string) *fakeLookup {
	f := &fakeLookup{calls: map[string]int{}, fail: map[string]bool{}}
	for _, code := range fail {
		f.fail[code] = true
	}
	return f
}

func (f *fakeLookup) Lookup(ctx context.Context, drugCode string) (entities.Enrichment, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[drugCode]++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail[drugCode] {
		return entities.Enrichment{}, fmt.Errorf("lookup %s failed", drugCode)
	}
	return entities.Enrichment{CurrentStatus: "MARKETED " + drugCode, MonographDate: "2020-01-01"}, nil
}

func pendingFor(codes ...string) []snapshot.Pending {
	out := make([]snapshot.Pending, len(codes))
	for i, code := range codes {
		out[i] = snapshot.Pending{DIN: "din-" + code, DrugCode: code}
	}
	return out
}

func TestEnrichCallsLookupOncePerEntry(t *testing.T) {
	lookup := newFakeLookup()
	enricher := NewEnricher(lookup, 4, time.Second)

	out, failed := enricher.Enrich(context.Background(), pendingFor("1", "2", "3"))

	if len(failed) != 0 {
		t.Errorf("unexpected failures %v", failed)
	}
	for _, code := range []string{"1", "2", "3"} {
		if lookup.calls[code] != 1 {
			t.Errorf("drug code %s looked up %d times, want 1", code, lookup.calls[code])
		}
	}
	for _, entry := range out {
		if entry.Enrichment.CurrentStatus != "MARKETED "+entry.DrugCode {
			t.Errorf("entry %s got enrichment %+v", entry.DrugCode, entry.Enrichment)
		}
	}
}

func TestEnrichIsolatesFailures(t *testing.T) {
	lookup := newFakeLookup("2", "4")
	enricher := NewEnricher(lookup, 2, time.Second)

	out, failed := enricher.Enrich(context.Background(), pendingFor("4", "1", "2", "3"))

	if !reflect.DeepEqual(failed, []string{"2", "4"}) {
		t.Errorf("failed = %v, want [2 4]", failed)
	}
	for _, entry := range out {
		isFailed := entry.DrugCode == "2" || entry.DrugCode == "4"
		if isFailed != entry.Enrichment.IsZero() {
			t.Errorf("entry %s: enrichment %+v", entry.DrugCode, entry.Enrichment)
		}
	}
}

func TestEnrichRespectsWorkerLimit(t *testing.T) {
	lookup := newFakeLookup()
	lookup.delay = 10 * time.Millisecond
	enricher := NewEnricher(lookup, 2, time.Second)

	enricher.Enrich(context.Background(), pendingFor("1", "2", "3", "4", "5", "6"))

	if peak := lookup.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency %d exceeds the limit of 2", peak)
	}
}

func TestEnrichDoesNotMutateInput(t *testing.T) {
	pending := pendingFor("1")
	NewEnricher(newFakeLookup(), 1, 0).Enrich(context.Background(), pending)

	if !pending[0].Enrichment.IsZero() {
		t.Error("Enrich mutated its input")
	}
}

func TestApplyCopiesEnrichmentByDrugCode(t *testing.T) {
	products := []entities.DrugProduct{{DrugCode: "1"}, {DrugCode: "2"}, {DrugCode: "3"}}
	pending := []snapshot.Pending{
		{DrugCode: "3", Enrichment: entities.Enrichment{CurrentStatus: "MARKETED"}},
		{DrugCode: "9", Enrichment: entities.Enrichment{CurrentStatus: "ORPHAN"}},
	}

	applied := Apply(products, pending)

	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
	if products[2].CurrentStatus != "MARKETED" {
		t.Errorf("product 3 not enriched: %+v", products[2].Enrichment)
	}
	if !products[0].Enrichment.IsZero() || !products[1].Enrichment.IsZero() {
		t.Error("unrelated products were enriched")
	}
}
