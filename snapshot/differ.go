// Package snapshot carries enrichment forward from the previous run and
// reads and writes the JSON artifacts shared between runs.
package snapshot

import "github.com/giygas/dpd-api/dpdparser/entities"

// Pending is a product that had no match in the previous snapshot and
// needs a monograph lookup.
type Pending struct {
	DIN        string
	DrugCode   string
	Enrichment entities.Enrichment
}

// Result is the outcome of a diff. Products is a fresh slice; the input of
// Diff is left untouched.
type Result struct {
	Products []entities.DrugProduct
	Pending  []Pending
	Matched  int
	// Dropped counts previous DINs with no product in the new set.
	Dropped int
}

// Diff matches products against the previous snapshot by DIN. A match copies
// the whole enrichment of the first previous document with that DIN; a miss
// queues the product for enrichment.
func Diff(products []entities.DrugProduct, previous []Document) Result {
	byDIN := make(map[string][]Document, len(previous))
	for _, doc := range previous {
		byDIN[doc.DIN] = append(byDIN[doc.DIN], doc)
	}

	result := Result{
		Products: make([]entities.DrugProduct, len(products)),
	}
	copy(result.Products, products)

	seen := make(map[string]bool, len(products))
	for i := range result.Products {
		p := &result.Products[i]
		seen[p.DIN] = true

		bucket, ok := byDIN[p.DIN]
		if !ok {
			result.Pending = append(result.Pending, Pending{DIN: p.DIN, DrugCode: p.DrugCode})
			continue
		}
		p.Enrichment = bucket[0].EnrichmentFields()
		result.Matched++
	}

	for din := range byDIN {
		if !seen[din] {
			result.Dropped++
		}
	}

	return result
}
