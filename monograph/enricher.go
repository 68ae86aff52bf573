package monograph

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"github.com/giygas/dpd-api/logging"
	"github.com/giygas/dpd-api/metrics"
	"github.com/giygas/dpd-api/snapshot"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 8

// Enricher runs lookups for pending products on a bounded pool. A failed
// lookup only affects its own drug code.
type Enricher struct {
	lookup  Lookup
	workers int
	timeout time.Duration
}

// NewEnricher returns an enricher using at most workers concurrent lookups,
// each limited to timeout (zero means no per-lookup limit).
func NewEnricher(lookup Lookup, workers int, timeout time.Duration) *Enricher {
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Enricher{lookup: lookup, workers: workers, timeout: timeout}
}

// Enrich looks up every pending entry once. It returns a copy of pending
// with the enrichment of successful lookups filled in, and the sorted drug
// codes whose lookup failed. Failed entries keep a zero enrichment.
func (e *Enricher) Enrich(ctx context.Context, pending []snapshot.Pending) ([]snapshot.Pending, []string) {
	out := make([]snapshot.Pending, len(pending))
	copy(out, pending)

	var (
		mu     sync.Mutex
		failed []string
	)

	// Plain group: a failing lookup must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(e.workers)

	for i := range out {
		i := i
		g.Go(func() error {
			entry := &out[i]

			lookupCtx := ctx
			if e.timeout > 0 {
				var cancel context.CancelFunc
				lookupCtx, cancel = context.WithTimeout(ctx, e.timeout)
				defer cancel()
			}

			enrichment, err := e.lookup.Lookup(lookupCtx, entry.DrugCode)
			if err != nil {
				metrics.MonographLookups.WithLabelValues("failure").Inc()
				logging.Warn("Monograph lookup failed", "drug_code", entry.DrugCode, "din", entry.DIN, "error", err)

				entry.Enrichment = entities.Enrichment{}
				mu.Lock()
				failed = append(failed, entry.DrugCode)
				mu.Unlock()
				return nil
			}

			metrics.MonographLookups.WithLabelValues("success").Inc()
			logging.Debug("Monograph fetched", "drug_code", entry.DrugCode)
			entry.Enrichment = enrichment
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(failed)
	return out, failed
}

// Apply copies the enrichment of each pending entry onto the product with
// the same drug code and returns how many products were updated.
func Apply(products []entities.DrugProduct, pending []snapshot.Pending) int {
	applied := 0
	for _, entry := range pending {
		for i := range products {
			if products[i].DrugCode == entry.DrugCode {
				products[i].Enrichment = entry.Enrichment
				applied++
				break
			}
		}
	}
	return applied
}
